package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/naveenspark/spendlog/pkg/domain"
)

// GenericFailure is shown when the server gave no usable reason.
const GenericFailure = "Something went wrong. Retry"

// ErrNotAuthenticated is returned by authenticated calls made without a
// current session. No request is sent.
var ErrNotAuthenticated = errors.New("not authenticated")

// HTTPError represents a non-2xx HTTP response from the API.
type HTTPError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsStatus returns true if err (or any wrapped error) is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}

// IsUnauthorized reports whether the server rejected the credential.
func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized)
}

// Reason returns a message fit for display: the server's reason, the local
// validation problems, or GenericFailure.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	if errors.Is(err, ErrNotAuthenticated) {
		return "Please log in"
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.Message != "" {
		return httpErr.Message
	}
	return GenericFailure
}
