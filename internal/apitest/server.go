// Package apitest runs an in-memory stand-in for the expense API so client,
// TUI and CLI tests can exercise real HTTP round trips.
package apitest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v4"

	"github.com/naveenspark/spendlog/pkg/domain"
)

type user struct {
	id       int64
	username string
	email    string
	password string
}

type ctxKey struct{}

// Server is a fake expense API.
type Server struct {
	*httptest.Server

	secret []byte
	calls  atomic.Int64

	mu       sync.Mutex
	now      func() time.Time
	tokenTTL time.Duration
	users    map[string]*user
	expenses []domain.Expense
	nextID   int64
	revoked  bool
}

// New starts a server that is closed when t finishes.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		secret:   []byte("apitest-secret"),
		now:      time.Now,
		tokenTTL: time.Hour,
		users:    map[string]*user{},
		nextID:   1,
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.count)

	r.Post("/users/login", s.login)
	r.Post("/users/register", s.register)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/expenses", s.listExpenses)
		r.Post("/expenses", s.createExpense)
		r.Get("/expenses/summary", s.summary)
		r.Put("/expenses/{id}", s.updateExpense)
		r.Delete("/expenses/{id}", s.deleteExpense)
	})
	return r
}

// AddUser registers a user directly.
func (s *Server) AddUser(username, email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = &user{id: int64(len(s.users) + 1), username: username, email: email, password: password}
}

// SetTokenTTL changes the lifetime of tokens issued by /users/login.
func (s *Server) SetTokenTTL(d time.Duration) {
	s.mu.Lock()
	s.tokenTTL = d
	s.mu.Unlock()
}

// SetClock overrides the server's notion of now.
func (s *Server) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// RevokeTokens makes every authenticated call fail with 401 from now on, as
// if the server had invalidated all sessions.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	s.revoked = true
	s.mu.Unlock()
}

// Calls returns how many requests reached the server.
func (s *Server) Calls() int {
	return int(s.calls.Load())
}

// Expenses returns a copy of the stored expenses.
func (s *Server) Expenses() []domain.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Expense(nil), s.expenses...)
}

// Seed stores an expense for username with an explicit date.
func (s *Server) Seed(username string, in domain.ExpenseInput, date time.Time) domain.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.insertLocked(s.users[username], in, date)
	return e
}

// Mint issues a token for username expiring at exp.
func (s *Server) Mint(username string, exp time.Time) string {
	claims := jwt.RegisteredClaims{Subject: username, ExpiresAt: jwt.NewNumericDate(exp)}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	return tok
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	s.mu.Lock()
	u, ok := s.users[creds.Username]
	ttl, now := s.tokenTTL, s.now()
	s.mu.Unlock()
	if !ok || u.password != creds.Password {
		writeDetail(w, http.StatusBadRequest, "Invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": s.Mint(u.username, now.Add(ttl)),
		"token_type":   "bearer",
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var reg domain.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.username == reg.Username || u.email == reg.Email {
			writeDetail(w, http.StatusBadRequest, "Username or email already exists")
			return
		}
	}
	u := &user{id: int64(len(s.users) + 1), username: reg.Username, email: reg.Email, password: reg.Password}
	s.users[u.username] = u
	writeJSON(w, http.StatusOK, map[string]any{"id": u.id, "username": u.username, "email": u.email})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		var claims jwt.RegisteredClaims
		parser := jwt.NewParser(jwt.WithoutClaimsValidation())
		_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return s.secret, nil })

		s.mu.Lock()
		u, known := s.users[claims.Subject]
		valid := err == nil && known && !s.revoked &&
			claims.ExpiresAt != nil && s.now().Before(claims.ExpiresAt.Time)
		s.mu.Unlock()
		if !valid {
			writeDetail(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, u)))
	})
}

func currentUser(r *http.Request) *user {
	return r.Context().Value(ctxKey{}).(*user)
}

func (s *Server) listExpenses(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	category := strings.ToLower(r.URL.Query().Get("category"))
	month := r.URL.Query().Get("month")
	if month != "" && !domain.ValidMonth(month) {
		writeDetail(w, http.StatusBadRequest, "Month must be in YYYY-MM format")
		return
	}

	s.mu.Lock()
	out := []domain.Expense{}
	for _, e := range s.expenses {
		if e.UserID != u.id {
			continue
		}
		if category != "" && !strings.Contains(strings.ToLower(e.Category), category) {
			continue
		}
		if month != "" && e.Date.Month(time.UTC) != month {
			continue
		}
		out = append(out, e)
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date.Time) {
			return out[i].ID > out[j].ID
		}
		return out[i].Date.After(out[j].Date.Time)
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createExpense(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	e := s.insertLocked(currentUser(r), in, s.now())
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) insertLocked(u *user, in domain.ExpenseInput, date time.Time) domain.Expense {
	e := domain.Expense{
		ID:          s.nextID,
		Amount:      in.Amount,
		Category:    in.Category,
		Description: in.Description,
		Date:        domain.Timestamp{Time: date.UTC()},
		UserID:      u.id,
	}
	s.nextID++
	s.expenses = append(s.expenses, e)
	return e
}

func (s *Server) updateExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := expenseID(w, r)
	if !ok {
		return
	}
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}
	u := currentUser(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.expenses {
		e := &s.expenses[i]
		if e.ID == id && e.UserID == u.id {
			e.Amount = in.Amount
			e.Category = in.Category
			e.Description = in.Description
			e.Date = domain.Timestamp{Time: s.now().UTC()}
			writeJSON(w, http.StatusOK, *e)
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Expense not found")
}

func (s *Server) deleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := expenseID(w, r)
	if !ok {
		return
	}
	u := currentUser(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.expenses {
		if e.ID == id && e.UserID == u.id {
			s.expenses = append(s.expenses[:i], s.expenses[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Expense not found")
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group_by")
	if group == "" {
		group = string(domain.GroupByCategory)
	}
	if _, err := domain.ParseSummaryGroup(group); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid group_by value")
		return
	}
	u := currentUser(r)

	totals := map[string]domain.Amount{}
	s.mu.Lock()
	for _, e := range s.expenses {
		if e.UserID != u.id {
			continue
		}
		label := e.Category
		if group == string(domain.GroupByMonth) {
			label = e.Date.Month(time.UTC)
		}
		totals[label] = totals[label].Plus(e.Amount)
	}
	s.mu.Unlock()

	labels := make([]string, 0, len(totals))
	for l := range totals {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	out := make([]map[string]any, 0, len(labels))
	for _, l := range labels {
		out = append(out, map[string]any{group: l, "total": totals[l]})
	}
	writeJSON(w, http.StatusOK, out)
}

func decodeInput(w http.ResponseWriter, r *http.Request) (domain.ExpenseInput, bool) {
	var in domain.ExpenseInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]string{{"msg": "Input should be a valid number"}},
		})
		return in, false
	}
	return in, true
}

func expenseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid expense id")
		return 0, false
	}
	return id, true
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
