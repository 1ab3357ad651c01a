// Package session owns the client's single authentication token: loading it
// at startup, checking its expiry, logging out automatically when it lapses,
// and tearing it down when the API rejects it.
package session

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the authentication state of the session.
type State int

const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Reason says why a session ended or was refused.
type Reason string

const (
	ReasonLogout    Reason = "logout"
	ReasonExpired   Reason = "expired"
	ReasonRejected  Reason = "rejected"
	ReasonMalformed Reason = "malformed"
	ReasonExternal  Reason = "external"
)

// EventKind distinguishes session start from session end.
type EventKind int

const (
	EventLogin EventKind = iota
	EventLogout
)

// Event is delivered to the listener after every transition, and also when a
// login attempt is refused (Kind EventLogout with the refusal reason).
type Event struct {
	Kind   EventKind
	Reason Reason
	Expiry time.Time
}

// Timer is a cancellable scheduled call. *time.Timer satisfies it.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler func(d time.Duration, f func()) Timer

func afterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default discards.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.log = l.Named("session") }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithScheduler overrides time.AfterFunc.
func WithScheduler(s Scheduler) Option {
	return func(m *Manager) { m.schedule = s }
}

// WithListener registers the event listener.
func WithListener(fn func(Event)) Option {
	return func(m *Manager) { m.listener = fn }
}

// Manager is the single source of truth for "is the user authenticated".
// All methods are safe for concurrent use.
type Manager struct {
	store    Store
	log      *zap.Logger
	now      func() time.Time
	schedule Scheduler

	mu       sync.RWMutex
	listener func(Event)
	token    string
	expiry   time.Time
	timer    Timer
	// gen is bumped on every login and logout; a timer only acts if the
	// generation it was armed with is still current.
	gen uint64
}

// NewManager returns an anonymous manager backed by store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		log:      zap.NewNop(),
		now:      time.Now,
		schedule: afterFunc,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetListener replaces the event listener.
func (m *Manager) SetListener(fn func(Event)) {
	m.mu.Lock()
	m.listener = fn
	m.mu.Unlock()
}

// Restore adopts a previously persisted token if it is still valid and clears
// it otherwise.
func (m *Manager) Restore() {
	m.mu.Lock()
	tok, err := m.store.Load()
	if err != nil {
		m.mu.Unlock()
		m.log.Warn("load persisted token", zap.Error(err))
		return
	}
	if tok == "" {
		m.mu.Unlock()
		return
	}
	ev := m.adoptLocked(tok, false)
	fn := m.listener
	m.mu.Unlock()
	notify(fn, ev)
}

// Token returns the current token. A token past its expiry is reported as
// absent even if the expiry timer has not run yet.
func (m *Manager) Token() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == "" || !m.now().Before(m.expiry) {
		return "", false
	}
	return m.token, true
}

// Authenticated reports whether a usable token is held.
func (m *Manager) Authenticated() bool {
	_, ok := m.Token()
	return ok
}

// State returns the current state.
func (m *Manager) State() State {
	if m.Authenticated() {
		return Authenticated
	}
	return Anonymous
}

// Expiry returns when the current token lapses.
func (m *Manager) Expiry() (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == "" {
		return time.Time{}, false
	}
	return m.expiry, true
}

// Login establishes a session from a freshly issued token, replacing any
// current one. A token without a readable future expiry is refused and the
// session is left anonymous; the listener learns why.
func (m *Manager) Login(token string) {
	m.mu.Lock()
	ev := m.adoptLocked(token, true)
	fn := m.listener
	m.mu.Unlock()
	notify(fn, ev)
}

// Logout ends the session. Calling it while anonymous does nothing.
func (m *Manager) Logout() {
	m.end(ReasonLogout)
}

// Reject handles an authentication rejection for a request that was sent with
// token. Rejections for a token that is no longer current are ignored.
func (m *Manager) Reject(token string) {
	m.mu.Lock()
	if m.token == "" || token != m.token {
		m.mu.Unlock()
		m.log.Debug("ignoring rejection for stale token")
		return
	}
	ev, _ := m.endLocked(ReasonRejected)
	fn := m.listener
	m.mu.Unlock()
	notify(fn, ev)
}

// Sync reconciles with the store after another process changed it.
func (m *Manager) Sync() {
	m.mu.Lock()
	tok, err := m.store.Load()
	if err != nil {
		m.mu.Unlock()
		m.log.Warn("reload persisted token", zap.Error(err))
		return
	}
	if tok == m.token {
		m.mu.Unlock()
		return
	}
	var (
		ev      Event
		changed = true
	)
	if tok == "" {
		ev, changed = m.endLocked(ReasonExternal)
	} else {
		ev = m.adoptLocked(tok, false)
	}
	fn := m.listener
	m.mu.Unlock()
	if changed {
		notify(fn, ev)
	}
}

func (m *Manager) end(reason Reason) {
	m.mu.Lock()
	ev, changed := m.endLocked(reason)
	fn := m.listener
	m.mu.Unlock()
	if changed {
		notify(fn, ev)
	}
}

// adoptLocked makes token current or refuses it. m.mu must be held.
func (m *Manager) adoptLocked(token string, persist bool) Event {
	exp, err := DecodeExpiry(token)
	if err != nil {
		m.log.Warn("refusing token without readable expiry", zap.Error(err))
		ev, _ := m.endLocked(ReasonMalformed)
		return ev
	}
	now := m.now()
	if !exp.After(now) {
		m.log.Info("refusing expired token", zap.Time("expired_at", exp))
		ev, _ := m.endLocked(ReasonExpired)
		return ev
	}

	if persist {
		if err := m.store.Save(token); err != nil {
			m.log.Warn("persist token", zap.Error(err))
		}
	}
	m.stopTimerLocked()
	m.gen++
	gen := m.gen
	m.token = token
	m.expiry = exp
	m.timer = m.schedule(exp.Sub(now), func() { m.expire(gen) })

	m.log.Info("session started", zap.Time("expires_at", exp), zap.Duration("lifetime", exp.Sub(now)))
	return Event{Kind: EventLogin, Expiry: exp}
}

// endLocked clears all session state and reports whether a session was
// actually ended. m.mu must be held.
func (m *Manager) endLocked(reason Reason) (Event, bool) {
	if err := m.store.Clear(); err != nil {
		m.log.Warn("clear persisted token", zap.Error(err))
	}
	m.stopTimerLocked()
	m.gen++
	wasActive := m.token != ""
	m.token = ""
	m.expiry = time.Time{}
	if wasActive {
		m.log.Info("session ended", zap.String("reason", string(reason)))
	}
	return Event{Kind: EventLogout, Reason: reason}, wasActive
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) expire(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.token == "" {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	ev, _ := m.endLocked(ReasonExpired)
	fn := m.listener
	m.mu.Unlock()
	notify(fn, ev)
}

func notify(fn func(Event), ev Event) {
	if fn != nil {
		fn(ev)
	}
}
