// Package client is the gateway to the remote expense API.
//
// Every response is inspected: a 401 makes the client report the rejected
// token to the session before the error reaches the caller, whichever call
// triggered it. Calls are sent once; there is no retry or backoff.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/naveenspark/spendlog/pkg/domain"
)

// Session supplies the bearer token and receives rejections.
type Session interface {
	Token() (string, bool)
	// Reject is told which token the server refused.
	Reject(token string)
}

// Client is the spendlog API client.
type Client struct {
	baseURL    string
	session    Session
	httpClient *http.Client
	timeout    time.Duration
	log        *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
// It has no effect when WithHTTPClient supplies the client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger. The default discards.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l.Named("client") }
}

// New creates a new API client.
func New(baseURL string, sess Session, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: sess,
		timeout: 30 * time.Second,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// --- Users ---

// Login exchanges credentials for an access token. It does not start a
// session; hand the token to the session manager for that.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (string, error) {
	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/users/login", false, creds, &resp); err != nil {
		return "", fmt.Errorf("client.Login: %w", err)
	}
	if resp.AccessToken == "" {
		return "", errors.New("client.Login: response has no access_token")
	}
	return resp.AccessToken, nil
}

// Register creates a new user account.
func (c *Client) Register(ctx context.Context, reg domain.Registration) error {
	if err := c.doRequest(ctx, http.MethodPost, "/users/register", false, reg, nil); err != nil {
		return fmt.Errorf("client.Register: %w", err)
	}
	return nil
}

// --- Expenses ---

// ListExpenses returns the user's expenses in the order the server sends them.
// The filter is passed through as query parameters.
func (c *Client) ListExpenses(ctx context.Context, f domain.ExpenseFilter) ([]domain.Expense, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("client.ListExpenses: %w", err)
	}
	params := url.Values{}
	if f.Category != "" {
		params.Set("category", f.Category)
	}
	if f.Month != "" {
		params.Set("month", f.Month)
	}
	path := "/expenses"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	expenses := []domain.Expense{}
	if err := c.get(ctx, path, &expenses); err != nil {
		return nil, fmt.Errorf("client.ListExpenses: %w", err)
	}
	return expenses, nil
}

// CreateExpense records a new expense and returns it as stored.
func (c *Client) CreateExpense(ctx context.Context, in domain.ExpenseInput) (*domain.Expense, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("client.CreateExpense: %w", err)
	}
	var created domain.Expense
	if err := c.doRequest(ctx, http.MethodPost, "/expenses", true, in, &created); err != nil {
		return nil, fmt.Errorf("client.CreateExpense: %w", err)
	}
	return &created, nil
}

// UpdateExpense replaces the editable fields of an expense.
func (c *Client) UpdateExpense(ctx context.Context, id int64, in domain.ExpenseInput) (*domain.Expense, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("client.UpdateExpense: %w", err)
	}
	var updated domain.Expense
	if err := c.doRequest(ctx, http.MethodPut, expensePath(id), true, in, &updated); err != nil {
		return nil, fmt.Errorf("client.UpdateExpense: %w", err)
	}
	return &updated, nil
}

// DeleteExpense deletes an expense by ID.
func (c *Client) DeleteExpense(ctx context.Context, id int64) error {
	if err := c.doRequest(ctx, http.MethodDelete, expensePath(id), true, nil, nil); err != nil {
		return fmt.Errorf("client.DeleteExpense: %w", err)
	}
	return nil
}

// --- Summary ---

// Summary returns expense totals grouped by category or month, in server order.
func (c *Client) Summary(ctx context.Context, group domain.SummaryGroup) ([]domain.SummaryRow, error) {
	path := "/expenses/summary"
	if group == domain.GroupByMonth {
		path += "?group_by=month"
	}

	var raw []map[string]json.RawMessage
	if err := c.get(ctx, path, &raw); err != nil {
		return nil, fmt.Errorf("client.Summary: %w", err)
	}

	key := string(group)
	if key == "" {
		key = string(domain.GroupByCategory)
	}
	rows := make([]domain.SummaryRow, 0, len(raw))
	for _, item := range raw {
		var row domain.SummaryRow
		if v, ok := item[key]; ok {
			if err := json.Unmarshal(v, &row.Label); err != nil {
				return nil, fmt.Errorf("client.Summary: decode %s: %w", key, err)
			}
		}
		if v, ok := item["total"]; ok && string(v) != "null" {
			if err := json.Unmarshal(v, &row.Total); err != nil {
				return nil, fmt.Errorf("client.Summary: decode total: %w", err)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func expensePath(id int64) string {
	return "/expenses/" + strconv.FormatInt(id, 10)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doRequest(ctx, http.MethodGet, path, true, nil, out)
}

func (c *Client) doRequest(ctx context.Context, method, path string, auth bool, body any, out any) error {
	var token string
	if c.session != nil {
		token, _ = c.session.Token()
	}
	if auth && token == "" {
		return ErrNotAuthenticated
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("request failed",
			zap.String("method", method), zap.String("path", path),
			zap.String("request_id", reqID), zap.Error(err))
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	c.log.Debug("request",
		zap.String("method", method), zap.String("path", path),
		zap.Int("status", resp.StatusCode), zap.Duration("duration", time.Since(start)),
		zap.String("request_id", reqID))

	if resp.StatusCode == http.StatusUnauthorized && c.session != nil {
		c.log.Info("credential rejected by server", zap.String("path", path))
		c.session.Reject(token)
	}

	if resp.StatusCode >= 400 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max error body
		if readErr != nil {
			return &HTTPError{StatusCode: resp.StatusCode, RequestID: reqID}
		}
		return &HTTPError{StatusCode: resp.StatusCode, Message: errorMessage(respBody), RequestID: reqID}
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// errorMessage pulls a human-readable reason out of an error body. The API
// uses {"detail": "..."} and, for validation failures, a list of
// {"msg": "..."} objects under detail.
func errorMessage(body []byte) string {
	var apiErr struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err != nil {
		text := strings.TrimSpace(string(body))
		if text == "" || strings.HasPrefix(text, "<") || len(text) > 200 {
			return ""
		}
		return text
	}

	if len(apiErr.Detail) > 0 {
		var s string
		if json.Unmarshal(apiErr.Detail, &s) == nil && s != "" {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if json.Unmarshal(apiErr.Detail, &items) == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	return apiErr.Error
}
