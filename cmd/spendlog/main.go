package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/naveenspark/spendlog/internal/config"
	"github.com/naveenspark/spendlog/internal/logging"
	"github.com/naveenspark/spendlog/internal/session"
	"github.com/naveenspark/spendlog/internal/tui"
	"github.com/naveenspark/spendlog/pkg/client"
	"github.com/naveenspark/spendlog/pkg/domain"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// cli carries what every subcommand needs.
type cli struct {
	cfg   *config.Config
	log   *zap.Logger
	in    io.Reader
	lines *bufio.Reader
	out   io.Writer
	now   func() time.Time
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	cmd := ""
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "--version", "version", "-v":
		fmt.Fprintln(stdout, "spendlog "+version)
		return nil
	case "help", "--help", "-h":
		printHelp(stdout)
		return nil
	case "", "login", "register", "logout", "status", "summary":
	default:
		printHelp(stdout)
		return fmt.Errorf("unknown command %q", cmd)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cmd == "" {
		return runTUI(ctx, cfg)
	}

	log, err := logging.New(logging.CLI, cfg.LogLevel, "")
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck
	cfg.WarnUnknown(log)

	c := &cli{cfg: cfg, log: log, in: stdin, lines: bufio.NewReader(stdin), out: stdout, now: time.Now}
	switch cmd {
	case "login":
		return c.login(ctx)
	case "register":
		return c.register(ctx)
	case "logout":
		return c.logout()
	case "status":
		return c.status()
	default:
		return c.summary(ctx, args[1:])
	}
}

// session restores the persisted session, if any.
func (c *cli) session(opts ...session.Option) *session.Manager {
	opts = append([]session.Option{session.WithLogger(c.log)}, opts...)
	mgr := session.NewManager(session.NewFileStore(c.cfg.TokenFile), opts...)
	mgr.Restore()
	return mgr
}

func (c *cli) client(sess client.Session) *client.Client {
	return client.New(c.cfg.APIURL, sess, client.WithTimeout(c.cfg.Timeout), client.WithLogger(c.log))
}

func runTUI(ctx context.Context, cfg *config.Config) error {
	log, err := logging.New(logging.TUI, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck
	cfg.WarnUnknown(log)

	relay := tui.NewRelay()
	store := session.NewFileStore(cfg.TokenFile)
	mgr := session.NewManager(store, session.WithLogger(log), session.WithListener(relay.Listen))
	mgr.Restore()

	c := client.New(cfg.APIURL, mgr, client.WithTimeout(cfg.Timeout), client.WithLogger(log))
	app := tui.NewApp(c, mgr, tui.WithLogger(log))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	go relay.Run(ctx, p.Send)
	go func() {
		if err := mgr.Watch(ctx, store.Path()); err != nil {
			log.Warn("token watch stopped", zap.Error(err))
		}
	}()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}

func (c *cli) login(ctx context.Context) error {
	username, err := c.prompt("Username: ")
	if err != nil {
		return err
	}
	password, err := c.promptSecret("Password: ")
	if err != nil {
		return err
	}
	creds := domain.Credentials{Username: username, Password: password}
	if !creds.Complete() {
		return errors.New("Please enter username and password")
	}

	mgr := c.session()
	tok, err := c.client(mgr).Login(ctx, creds)
	if err != nil {
		return errors.New(client.Reason(err))
	}
	mgr.Login(tok)
	exp, ok := mgr.Expiry()
	if !ok {
		return errors.New("the server returned an unusable session token")
	}
	fmt.Fprintf(c.out, "Logged in as %s. Session expires %s.\n", username, c.describeExpiry(exp))
	return nil
}

func (c *cli) register(ctx context.Context) error {
	username, err := c.prompt("Username: ")
	if err != nil {
		return err
	}
	email, err := c.prompt("Email: ")
	if err != nil {
		return err
	}
	password, err := c.promptSecret("Password: ")
	if err != nil {
		return err
	}
	reg := domain.Registration{Username: username, Email: email, Password: password}
	if !reg.Complete() {
		return errors.New("All fields are required")
	}

	if err := c.client(nil).Register(ctx, reg); err != nil {
		return errors.New(client.Reason(err))
	}
	fmt.Fprintln(c.out, "Registration successful! You can now log in.")
	return nil
}

func (c *cli) logout() error {
	mgr := c.session()
	if !mgr.Authenticated() {
		fmt.Fprintln(c.out, "Already logged out.")
		return nil
	}
	mgr.Logout()
	fmt.Fprintln(c.out, "Logged out.")
	return nil
}

func (c *cli) status() error {
	mgr := c.session()
	exp, ok := mgr.Expiry()
	if !ok {
		fmt.Fprintln(c.out, "Not logged in.")
		return nil
	}
	fmt.Fprintf(c.out, "Logged in. Session expires %s.\n", c.describeExpiry(exp))
	return nil
}

func (c *cli) summary(ctx context.Context, args []string) error {
	group := domain.GroupByCategory
	if len(args) > 0 {
		g, err := domain.ParseSummaryGroup(args[0])
		if err != nil {
			return err
		}
		group = g
	}

	mgr := c.session()
	if !mgr.Authenticated() {
		return errors.New("not logged in: run spendlog login")
	}
	rows, err := c.client(mgr).Summary(ctx, group)
	if err != nil {
		return errors.New(client.Reason(err))
	}
	if len(rows) == 0 {
		fmt.Fprintln(c.out, "No expenses to summarize.")
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(group.Title(), "Total")
	for _, r := range rows {
		label := r.Label
		if group == domain.GroupByMonth {
			label = domain.MonthLabel(label)
		}
		t.Row(label, r.Total.Display())
	}
	t.Row("Total", domain.SummaryTotal(rows).Display())
	fmt.Fprintln(c.out, t.String())
	return nil
}

func (c *cli) describeExpiry(exp time.Time) string {
	left := exp.Sub(c.now()).Round(time.Minute)
	return fmt.Sprintf("at %s (in %s)", exp.Local().Format("2006-01-02 15:04"), left)
}

func (c *cli) prompt(label string) (string, error) {
	fmt.Fprint(c.out, label)
	line, err := c.lines.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads without echo when stdin is a terminal.
func (c *cli) promptSecret(label string) (string, error) {
	f, ok := c.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		line, err := c.prompt(label)
		return line, err
	}
	fmt.Fprint(c.out, label)
	b, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(c.out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}
