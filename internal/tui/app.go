package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/naveenspark/spendlog/internal/session"
	"github.com/naveenspark/spendlog/pkg/client"
)

type view int

const (
	viewLogin view = iota
	viewRegister
	viewExpenses
	viewForm
	viewSummary
)

// Session is the part of the session manager the TUI drives.
type Session interface {
	Login(token string)
	Logout()
	Authenticated() bool
	Expiry() (time.Time, bool)
}

// App is the root Bubbletea model.
type App struct {
	client   *client.Client
	session  Session
	log      *zap.Logger
	now      func() time.Time
	loc      *time.Location
	view     view
	login    loginModel
	register registerModel
	expenses expensesModel
	form     formModel
	summary  summaryModel
	helpOpen bool
	username string
	width    int
	height   int
	frame    int // logo shimmer animation frame
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger. The default discards.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) { a.log = l.Named("tui") }
}

// WithClock overrides time.Now for the session countdown.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// WithLocation sets the zone used for dates and month filters.
func WithLocation(loc *time.Location) Option {
	return func(a *App) { a.loc = loc }
}

// NewApp creates the TUI. It opens on the expense list when sess is already
// authenticated and on the login screen otherwise.
func NewApp(c *client.Client, sess Session, opts ...Option) App {
	a := App{
		client:  c,
		session: sess,
		log:     zap.NewNop(),
		now:     time.Now,
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(&a)
	}
	a.login = newLoginModel(c)
	a.register = newRegisterModel(c)
	a.expenses = newExpensesModel(c, a.loc)
	a.summary = newSummaryModel(c)
	a.form = newFormModel(c, nil)
	if sess != nil && sess.Authenticated() {
		a.view = viewExpenses
		a.expenses.loading = true
	}
	return a
}

func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{shimmerTickCmd(), textinput.Blink}
	if a.view == viewExpenses {
		cmds = append(cmds, a.expenses.Init())
	}
	return tea.Batch(cmds...)
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Chrome: header(2) + status(1) + help(1) = 4 lines
		bodyMsg := tea.WindowSizeMsg{Width: msg.Width, Height: msg.Height - 4}
		a.expenses, _ = a.expenses.Update(bodyMsg)
		return a, nil

	case shimmerTickMsg:
		a.frame++
		return a, shimmerTickCmd()

	case sessionEventMsg:
		return a.handleSessionEvent(msg.event)

	case loginResultMsg:
		a.login.pending = false
		if msg.err != nil {
			a.login.err = client.Reason(msg.err)
			return a, nil
		}
		a.session.Login(msg.token)
		if !a.session.Authenticated() {
			a.login.err = "The server returned an unusable session token"
			return a, nil
		}
		a.username = msg.username
		a.log.Info("signed in", zap.String("user", msg.username))
		return a, a.enterExpenses("")

	case registerResultMsg:
		a.register.pending = false
		if msg.err != nil {
			a.register.err = client.Reason(msg.err)
			return a, nil
		}
		a.view = viewLogin
		a.login = newLoginModel(a.client)
		a.login.fields.set(loginUsername, msg.username)
		a.login.notice = "Registration successful! You can now log in."
		a.register = newRegisterModel(a.client)
		return a, a.login.fields.focusOn(loginPassword)

	case showRegisterMsg:
		a.view = viewRegister
		a.register = newRegisterModel(a.client)
		return a, nil

	case showLoginMsg:
		a.view = viewLogin
		return a, nil

	case openFormMsg:
		a.view = viewForm
		a.form = newFormModel(a.client, msg.expense)
		return a, nil

	case closeFormMsg:
		a.view = viewExpenses
		return a, nil

	case expenseSavedMsg:
		if a.view != viewForm {
			return a, nil
		}
		if msg.err != nil {
			a.form, _ = a.form.Update(msg)
			return a, nil
		}
		status := "Expense updated"
		if msg.created {
			status = "Expense added"
		}
		return a, a.enterExpenses(status)

	case openSummaryMsg:
		a.view = viewSummary
		a.summary = newSummaryModel(a.client)
		a.summary.loading = true
		return a, a.summary.Init()

	case closeSummaryMsg:
		a.view = viewExpenses
		return a, nil

	case logoutRequestMsg:
		a.session.Logout()
		a.enterLogin(logoutNotice(session.ReasonLogout))
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.helpOpen {
			switch msg.String() {
			case "?", "esc", "h":
				a.helpOpen = false
			case "q":
				return a, tea.Quit
			}
			return a, nil
		}
		if !a.isEditing() {
			switch msg.String() {
			case "q":
				return a, tea.Quit
			case "?":
				a.helpOpen = true
				return a, nil
			}
		}
	}

	var cmd tea.Cmd
	switch a.view {
	case viewLogin:
		a.login, cmd = a.login.Update(msg)
	case viewRegister:
		a.register, cmd = a.register.Update(msg)
	case viewExpenses:
		a.expenses, cmd = a.expenses.Update(msg)
	case viewForm:
		a.form, cmd = a.form.Update(msg)
	case viewSummary:
		a.summary, cmd = a.summary.Update(msg)
	}
	return a, cmd
}

// handleSessionEvent reacts to transitions made outside the TUI's own key
// handling: expiry, server rejection and other terminals.
func (a App) handleSessionEvent(ev session.Event) (tea.Model, tea.Cmd) {
	switch ev.Kind {
	case session.EventLogout:
		if a.session.Authenticated() {
			return a, nil // superseded by a newer login
		}
		a.log.Info("session ended", zap.String("reason", string(ev.Reason)))
		if a.view == viewLogin || a.view == viewRegister {
			a.login.notice = logoutNotice(ev.Reason)
			return a, nil
		}
		a.enterLogin(logoutNotice(ev.Reason))
		return a, nil

	case session.EventLogin:
		if a.view == viewLogin || a.view == viewRegister {
			return a, a.enterExpenses("")
		}
	}
	return a, nil
}

func (a *App) enterExpenses(status string) tea.Cmd {
	a.view = viewExpenses
	a.helpOpen = false
	a.expenses.loading = true
	a.expenses.status = status
	a.expenses.err = ""
	return a.expenses.load()
}

// enterLogin drops everything loaded under the old session.
func (a *App) enterLogin(notice string) {
	a.view = viewLogin
	a.helpOpen = false
	a.username = ""
	a.login = newLoginModel(a.client)
	a.login.notice = notice
	a.register = newRegisterModel(a.client)
	a.expenses = newExpensesModel(a.client, a.loc)
	a.expenses.width, a.expenses.height = a.width, a.height-4
	a.form = newFormModel(a.client, nil)
	a.summary = newSummaryModel(a.client)
}

func (a App) isEditing() bool {
	switch a.view {
	case viewLogin, viewRegister, viewForm:
		return true
	case viewExpenses:
		return a.expenses.confirming
	}
	return false
}

// sessionLine renders who is signed in and how long the session has left.
func (a App) sessionLine() string {
	if a.session == nil || !a.session.Authenticated() {
		return metaStyle.Render("signed out")
	}
	exp, ok := a.session.Expiry()
	if !ok {
		return metaStyle.Render("signed in")
	}
	left := exp.Sub(a.now())
	who := "signed in"
	if a.username != "" {
		who = a.username
	}
	return metaStyle.Render(who+" . session ") + sessionStyle(left).Render(formatRemaining(left))
}

func center(s string, width int) string {
	pad := (width - lipgloss.Width(s)) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + s
}

func (a App) View() string {
	header := center(renderShimmerLogo(a.frame), a.width) + "\n" + center(a.sessionLine(), a.width)

	var body, help string
	switch a.view {
	case viewLogin:
		body, help = a.login.View(), a.login.helpKeys()
	case viewRegister:
		body, help = a.register.View(), a.register.helpKeys()
	case viewExpenses:
		body, help = a.expenses.View(), a.expenses.helpKeys()
	case viewForm:
		body, help = a.form.View(), a.form.helpKeys()
	case viewSummary:
		body, help = a.summary.View(), a.summary.helpKeys()
	}

	if a.helpOpen {
		body = helpView()
		help = helpBar("esc", "close", "q", "quit")
	}

	chrome := 4
	body = strings.TrimRight(truncateToHeight(body, a.height-chrome), "\n")

	return fmt.Sprintf("%s\n\n%s\n%s", header, body, help)
}
