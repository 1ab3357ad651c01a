package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/naveenspark/spendlog/internal/apitest"
	"github.com/naveenspark/spendlog/internal/session"
	"github.com/naveenspark/spendlog/pkg/domain"
)

// stubSession is a minimal Session that records rejections.
type stubSession struct {
	mu       sync.Mutex
	token    string
	rejected []string
}

func (s *stubSession) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

func (s *stubSession) Reject(tok string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected = append(s.rejected, tok)
	if tok == s.token {
		s.token = ""
	}
}

func mint(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestLogin(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("alice", "alice@example.com", "secret")

	c := New(srv.URL, &stubSession{})
	tok, err := c.Login(context.Background(), domain.Credentials{Username: "alice", Password: "secret"})
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if strings.Count(tok, ".") != 2 {
		t.Errorf("token = %q, want a three-segment JWT", tok)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("alice", "alice@example.com", "secret")

	c := New(srv.URL, &stubSession{})
	_, err := c.Login(context.Background(), domain.Credentials{Username: "alice", Password: "wrong"})
	if err == nil {
		t.Fatal("expected error for bad credentials")
	}
	if got := Reason(err); got != "Invalid credentials" {
		t.Errorf("Reason() = %q, want %q", got, "Invalid credentials")
	}
	if !IsStatus(err, http.StatusBadRequest) {
		t.Errorf("IsStatus(400) = false for %v", err)
	}
}

func TestRegister(t *testing.T) {
	srv := apitest.New(t)
	c := New(srv.URL, &stubSession{})
	reg := domain.Registration{Username: "bob", Email: "bob@example.com", Password: "pw"}

	if err := c.Register(context.Background(), reg); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	err := c.Register(context.Background(), reg)
	if err == nil {
		t.Fatal("expected error for duplicate registration")
	}
	if got := Reason(err); got != "Username or email already exists" {
		t.Errorf("Reason() = %q", got)
	}
}

func TestListExpenses_OrderAndQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/expenses" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID")
		}
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[
			{"id": 3, "amount": 1, "category": "B", "description": "x", "date": "2024-01-01T00:00:00"},
			{"id": 1, "amount": 2, "category": "A", "description": "y", "date": "2024-03-01T00:00:00"}
		]`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL, &stubSession{token: "tok"})
	got, err := c.ListExpenses(context.Background(), domain.ExpenseFilter{Category: "Food", Month: "2024-05"})
	if err != nil {
		t.Fatalf("ListExpenses() error: %v", err)
	}
	if len(got) != 2 || got[0].ID != 3 || got[1].ID != 1 {
		t.Errorf("order not preserved: %+v", got)
	}
	if gotQuery != "category=Food&month=2024-05" {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestListExpenses_Empty(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("alice", "a@example.com", "secret")
	c := New(srv.URL, &stubSession{token: srv.Mint("alice", time.Now().Add(time.Hour))})

	got, err := c.ListExpenses(context.Background(), domain.ExpenseFilter{})
	if err != nil {
		t.Fatalf("ListExpenses() error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty non-nil slice", got)
	}
}

func TestUnauthorized_RejectsSessionForEveryCallFamily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Invalid token"}) //nolint:errcheck
	}))
	defer srv.Close()

	valid := domain.ExpenseInput{Amount: domain.MustAmount("1"), Category: "Food", Description: "x"}
	calls := []struct {
		name string
		call func(c *Client) error
	}{
		{"login", func(c *Client) error {
			_, err := c.Login(context.Background(), domain.Credentials{Username: "a", Password: "b"})
			return err
		}},
		{"register", func(c *Client) error {
			return c.Register(context.Background(), domain.Registration{Username: "a", Email: "e", Password: "b"})
		}},
		{"list", func(c *Client) error {
			_, err := c.ListExpenses(context.Background(), domain.ExpenseFilter{})
			return err
		}},
		{"create", func(c *Client) error {
			_, err := c.CreateExpense(context.Background(), valid)
			return err
		}},
		{"update", func(c *Client) error {
			_, err := c.UpdateExpense(context.Background(), 1, valid)
			return err
		}},
		{"delete", func(c *Client) error { return c.DeleteExpense(context.Background(), 1) }},
		{"summary", func(c *Client) error {
			_, err := c.Summary(context.Background(), domain.GroupByMonth)
			return err
		}},
	}

	for _, tc := range calls {
		t.Run(tc.name, func(t *testing.T) {
			sess := &stubSession{token: "tok"}
			err := tc.call(New(srv.URL, sess))
			if !IsUnauthorized(err) {
				t.Fatalf("error = %v, want 401", err)
			}
			if _, ok := sess.Token(); ok {
				t.Error("session still authenticated after 401")
			}
			if len(sess.rejected) != 1 || sess.rejected[0] != "tok" {
				t.Errorf("rejected = %v, want [tok]", sess.rejected)
			}
			if got := Reason(err); got != "Invalid token" {
				t.Errorf("Reason() = %q", got)
			}
		})
	}
}

func TestNotAuthenticated_SendsNothing(t *testing.T) {
	srv := apitest.New(t)
	c := New(srv.URL, &stubSession{})

	_, err := c.ListExpenses(context.Background(), domain.ExpenseFilter{})
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("error = %v, want ErrNotAuthenticated", err)
	}
	if srv.Calls() != 0 {
		t.Errorf("server saw %d calls, want 0", srv.Calls())
	}
}

func TestValidation_SendsNothing(t *testing.T) {
	srv := apitest.New(t)
	c := New(srv.URL, &stubSession{token: "tok"})

	_, err := c.CreateExpense(context.Background(), domain.ExpenseInput{Category: "Food"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *domain.ValidationError", err)
	}
	if verr.Field("amount") == "" || verr.Field("description") == "" {
		t.Errorf("fields = %v", verr.Fields)
	}
	if _, err := c.ListExpenses(context.Background(), domain.ExpenseFilter{Month: "May"}); !errors.As(err, &verr) {
		t.Errorf("bad month error = %v, want *domain.ValidationError", err)
	}
	if srv.Calls() != 0 {
		t.Errorf("server saw %d calls, want 0", srv.Calls())
	}
}

func TestSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("group_by") == "month" {
			w.Write([]byte(`[{"month":"2024-05","total":42.5},{"month":"2024-04","total":10}]`)) //nolint:errcheck
			return
		}
		w.Write([]byte(`[{"category":"Food","total":12.25},{"category":null,"total":1}]`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL, &stubSession{token: "tok"})

	rows, err := c.Summary(context.Background(), domain.GroupByMonth)
	if err != nil {
		t.Fatalf("Summary(month) error: %v", err)
	}
	if len(rows) != 2 || rows[0].Label != "2024-05" || rows[0].Total.Display() != "42.50" || rows[1].Label != "2024-04" {
		t.Errorf("month rows = %+v", rows)
	}

	rows, err = c.Summary(context.Background(), domain.GroupByCategory)
	if err != nil {
		t.Fatalf("Summary(category) error: %v", err)
	}
	if len(rows) != 2 || rows[0].Label != "Food" || rows[1].Label != "" {
		t.Errorf("category rows = %+v", rows)
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"detail string", `{"detail":"Invalid credentials"}`, "Invalid credentials"},
		{"detail list", `{"detail":[{"msg":"field required"},{"msg":"bad email"}]}`, "field required; bad email"},
		{"error field", `{"error":"boom"}`, "boom"},
		{"plain text", `Internal Server Error`, "Internal Server Error"},
		{"html", `<html>oops</html>`, ""},
		{"empty object", `{}`, ""},
		{"empty", ``, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorMessage([]byte(tt.body)); got != tt.want {
				t.Errorf("errorMessage(%q) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}

func TestReason_Generic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	srv.Close() // connection refused

	c := New(srv.URL, &stubSession{})
	_, err := c.Login(context.Background(), domain.Credentials{Username: "a", Password: "b"})
	if err == nil {
		t.Fatal("expected network error")
	}
	if got := Reason(err); got != GenericFailure {
		t.Errorf("Reason() = %q, want generic failure", got)
	}
}

func TestOptions_Timeout(t *testing.T) {
	if got := New("http://x", nil).httpClient.Timeout; got != 30*time.Second {
		t.Errorf("default timeout = %v, want 30s", got)
	}
	if got := New("http://x", nil, WithTimeout(5*time.Second)).httpClient.Timeout; got != 5*time.Second {
		t.Errorf("WithTimeout = %v, want 5s", got)
	}

	tests := []struct {
		name string
		opts func(hc *http.Client) []Option
	}{
		{"timeout after client", func(hc *http.Client) []Option {
			return []Option{WithHTTPClient(hc), WithTimeout(time.Second)}
		}},
		{"timeout before client", func(hc *http.Client) []Option {
			return []Option{WithTimeout(time.Second), WithHTTPClient(hc)}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			hc := &http.Client{Timeout: time.Minute}
			c := New("http://x", nil, tc.opts(hc)...)
			if c.httpClient != hc {
				t.Fatal("supplied http.Client not used")
			}
			if hc.Timeout != time.Minute {
				t.Errorf("supplied client timeout changed to %v", hc.Timeout)
			}
		})
	}
}

func TestDoRequest_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(5 * time.Second) // slow server
		w.Write([]byte(`[]`))       //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL, &stubSession{token: "tok"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	if _, err := c.ListExpenses(ctx, domain.ExpenseFilter{}); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestLateRejection_DoesNotEndNewSession(t *testing.T) {
	release := make(chan struct{})
	arrived := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(arrived)
		<-release
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	mgr := session.NewManager(&session.MemoryStore{})
	first := mint(t, time.Now().Add(time.Hour))
	mgr.Login(first)
	c := New(srv.URL, mgr)

	done := make(chan error, 1)
	go func() {
		_, err := c.ListExpenses(context.Background(), domain.ExpenseFilter{})
		done <- err
	}()
	<-arrived

	mgr.Logout()
	second := mint(t, time.Now().Add(2*time.Hour))
	mgr.Login(second)
	close(release)

	if err := <-done; !IsUnauthorized(err) {
		t.Fatalf("error = %v, want 401", err)
	}
	got, ok := mgr.Token()
	if !ok || got != second {
		t.Error("late 401 for the old token ended the new session")
	}
}

// TestScenario walks the documented example: log in as alice, see an empty
// list, add lunch, see it listed.
func TestScenario(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("alice", "alice@example.com", "secret")

	mgr := session.NewManager(&session.MemoryStore{})
	c := New(srv.URL, mgr)
	ctx := context.Background()

	tok, err := c.Login(ctx, domain.Credentials{Username: "alice", Password: "secret"})
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	mgr.Login(tok)
	if mgr.State() != session.Authenticated {
		t.Fatalf("state = %v, want authenticated", mgr.State())
	}
	exp, _ := mgr.Expiry()
	if d := time.Until(exp); d < 59*time.Minute || d > time.Hour {
		t.Errorf("expiry in %v, want about an hour", d)
	}

	list, err := c.ListExpenses(ctx, domain.ExpenseFilter{})
	if err != nil {
		t.Fatalf("ListExpenses() error: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("got %d expenses, want 0", len(list))
	}

	created, err := c.CreateExpense(ctx, domain.ExpenseInput{
		Amount: domain.MustAmount("42.5"), Category: "Food", Description: "Lunch",
	})
	if err != nil {
		t.Fatalf("CreateExpense() error: %v", err)
	}

	list, err = c.ListExpenses(ctx, domain.ExpenseFilter{})
	if err != nil {
		t.Fatalf("ListExpenses() error: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d expenses, want 1", len(list))
	}
	got := list[0]
	if got.Amount.Display() != "42.50" || got.Category != "Food" || got.Description != "Lunch" {
		t.Errorf("listed = %+v", got)
	}
	if got.ID != created.ID || !got.Date.Equal(created.Date.Time) {
		t.Errorf("listed %+v differs from created %+v", got, created)
	}

	updated, err := c.UpdateExpense(ctx, created.ID, domain.ExpenseInput{
		Amount: domain.MustAmount("40"), Category: "Food", Description: "Lunch (shared)",
	})
	if err != nil {
		t.Fatalf("UpdateExpense() error: %v", err)
	}
	if updated.Description != "Lunch (shared)" {
		t.Errorf("Description = %q", updated.Description)
	}

	rows, err := c.Summary(ctx, domain.GroupByCategory)
	if err != nil {
		t.Fatalf("Summary() error: %v", err)
	}
	if len(rows) != 1 || rows[0].Label != "Food" || rows[0].Total.Display() != "40.00" {
		t.Errorf("summary = %+v", rows)
	}

	if err := c.DeleteExpense(ctx, created.ID); err != nil {
		t.Fatalf("DeleteExpense() error: %v", err)
	}
	if err := c.DeleteExpense(ctx, created.ID); !IsStatus(err, http.StatusNotFound) {
		t.Errorf("second delete error = %v, want 404", err)
	}

	srv.RevokeTokens()
	if _, err := c.ListExpenses(ctx, domain.ExpenseFilter{}); !IsUnauthorized(err) {
		t.Fatalf("error = %v, want 401", err)
	}
	if mgr.State() != session.Anonymous {
		t.Error("session survived a server-side revocation")
	}
}
