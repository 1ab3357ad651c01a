package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/spendlog/internal/session"
)

// sessionEventMsg delivers a session transition to the App.
type sessionEventMsg struct {
	event session.Event
}

// Relay forwards session events to a running program in the order they
// happened. Listen only queues, so it is safe to call from inside Update,
// where a direct Program.Send would deadlock.
type Relay struct {
	events chan session.Event
}

// NewRelay creates a Relay.
func NewRelay() *Relay {
	return &Relay{events: make(chan session.Event, 64)}
}

// Listen is a session listener.
func (r *Relay) Listen(ev session.Event) {
	r.events <- ev
}

// Run delivers queued events to send until ctx is done.
func (r *Relay) Run(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.events:
			send(sessionEventMsg{event: ev})
		}
	}
}

// logoutNotice is shown on the login screen after the session ends.
func logoutNotice(reason session.Reason) string {
	switch reason {
	case session.ReasonExpired:
		return "Your session has expired. Please log in again."
	case session.ReasonRejected:
		return "Your session is no longer valid. Please log in again."
	case session.ReasonMalformed:
		return "The saved session could not be read. Please log in again."
	case session.ReasonExternal:
		return "You were signed out from another terminal."
	default:
		return "You have been logged out."
	}
}
