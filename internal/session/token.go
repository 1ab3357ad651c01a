package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	// ErrMalformedToken means the token is not a readable three-segment JWT.
	ErrMalformedToken = errors.New("malformed token")
	// ErrNoExpiry means the claims carry no exp.
	ErrNoExpiry = errors.New("token has no expiry claim")
)

// DecodeExpiry reads the exp claim of a JWT without verifying its signature.
// Only the claims segment is interpreted; the header and signature are opaque.
func DecodeExpiry(token string) (time.Time, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}, ErrMalformedToken
	}
	raw, err := jwt.DecodeSegment(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: claims segment: %v", ErrMalformedToken, err)
	}
	var claims jwt.RegisteredClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: claims: %v", ErrMalformedToken, err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}
