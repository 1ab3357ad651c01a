package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/spendlog/pkg/client"
	"github.com/naveenspark/spendlog/pkg/domain"
)

// -- messages --

type loginResultMsg struct {
	username string
	token    string
	err      error
}

type registerResultMsg struct {
	username string
	err      error
}

// showRegisterMsg and showLoginMsg switch between the two auth screens.
type showRegisterMsg struct{}

type showLoginMsg struct{}

const (
	loginUsername = iota
	loginPassword
)

const (
	regUsername = iota
	regEmail
	regPassword
)

// -- login --

type loginModel struct {
	client  *client.Client
	fields  fieldSet
	err     string
	notice  string
	pending bool
}

func newLoginModel(c *client.Client) loginModel {
	return loginModel{
		client: c,
		fields: newFieldSet(
			fieldSpec{label: "Username", placeholder: "username"},
			fieldSpec{label: "Password", placeholder: "password", secret: true},
		),
	}
}

func (m loginModel) Update(msg tea.Msg) (loginModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, m.fields.update(msg)
	}
	if m.pending {
		return m, nil
	}
	switch key.String() {
	case "tab", "down":
		return m, m.fields.move(1)
	case "shift+tab", "up":
		return m, m.fields.move(-1)
	case "ctrl+r":
		return m, func() tea.Msg { return showRegisterMsg{} }
	case "enter":
		if !m.fields.last() {
			return m, m.fields.move(1)
		}
		return m.submit()
	}
	m.err = ""
	return m, m.fields.update(msg)
}

func (m loginModel) submit() (loginModel, tea.Cmd) {
	creds := domain.Credentials{
		Username: m.fields.value(loginUsername),
		Password: m.fields.value(loginPassword),
	}
	if !creds.Complete() {
		m.err = "Please enter username and password"
		return m, nil
	}
	m.err = ""
	m.notice = ""
	m.pending = true
	c := m.client
	return m, func() tea.Msg {
		tok, err := c.Login(context.Background(), creds)
		return loginResultMsg{username: creds.Username, token: tok, err: err}
	}
}

func (m loginModel) View() string {
	var b strings.Builder
	b.WriteString("\n  " + selectedStyle.Render("Sign in") + "\n\n")
	if m.notice != "" {
		b.WriteString("  " + noticeStyle.Render(m.notice) + "\n\n")
	}
	b.WriteString(m.fields.view(nil))
	b.WriteString("\n")
	switch {
	case m.pending:
		b.WriteString("  " + dimStyle.Render("signing in..."))
	case m.err != "":
		b.WriteString("  " + errorStyle.Render(m.err))
	}
	return b.String()
}

func (m loginModel) helpKeys() string {
	return helpBar("tab", "next", "enter", "sign in", "ctrl+r", "register", "ctrl+c", "quit")
}

// -- register --

type registerModel struct {
	client  *client.Client
	fields  fieldSet
	err     string
	pending bool
}

func newRegisterModel(c *client.Client) registerModel {
	return registerModel{
		client: c,
		fields: newFieldSet(
			fieldSpec{label: "Username", placeholder: "username"},
			fieldSpec{label: "Email", placeholder: "you@example.com"},
			fieldSpec{label: "Password", placeholder: "password", secret: true},
		),
	}
}

func (m registerModel) Update(msg tea.Msg) (registerModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, m.fields.update(msg)
	}
	if m.pending {
		return m, nil
	}
	switch key.String() {
	case "tab", "down":
		return m, m.fields.move(1)
	case "shift+tab", "up":
		return m, m.fields.move(-1)
	case "esc":
		return m, func() tea.Msg { return showLoginMsg{} }
	case "enter":
		if !m.fields.last() {
			return m, m.fields.move(1)
		}
		return m.submit()
	}
	m.err = ""
	return m, m.fields.update(msg)
}

func (m registerModel) submit() (registerModel, tea.Cmd) {
	reg := domain.Registration{
		Username: m.fields.value(regUsername),
		Email:    m.fields.value(regEmail),
		Password: m.fields.value(regPassword),
	}
	if !reg.Complete() {
		m.err = "All fields are required"
		return m, nil
	}
	m.err = ""
	m.pending = true
	c := m.client
	return m, func() tea.Msg {
		return registerResultMsg{username: reg.Username, err: c.Register(context.Background(), reg)}
	}
}

func (m registerModel) View() string {
	var b strings.Builder
	b.WriteString("\n  " + selectedStyle.Render("Create an account") + "\n\n")
	b.WriteString(m.fields.view(nil))
	b.WriteString("\n")
	switch {
	case m.pending:
		b.WriteString("  " + dimStyle.Render("registering..."))
	case m.err != "":
		b.WriteString("  " + errorStyle.Render(m.err))
	}
	return b.String()
}

func (m registerModel) helpKeys() string {
	return helpBar("tab", "next", "enter", "register", "esc", "back", "ctrl+c", "quit")
}
