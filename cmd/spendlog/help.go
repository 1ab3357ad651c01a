package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

func printHelp(w io.Writer) {
	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#4ade80")).
		Bold(true).
		Render("S P E N D L O G")

	tagline := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Italic(true).
		Render("Track where the money goes.")

	cmdStyle := lipgloss.NewStyle().Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	commands := []struct{ cmd, desc string }{
		{"spendlog", "Open the expense tracker (interactive TUI)"},
		{"spendlog login", "Sign in with username and password"},
		{"spendlog register", "Create an account"},
		{"spendlog logout", "End your session"},
		{"spendlog status", "Show whether you are signed in"},
		{"spendlog summary", "Totals by category (or: summary month)"},
		{"spendlog version", "Show version"},
		{"spendlog help", "You are here"},
	}

	fmt.Fprintf(w, "\n  %s\n\n  %s\n\n  Commands:\n", title, tagline)
	for _, c := range commands {
		fmt.Fprintf(w, "    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-20s", c.cmd)), descStyle.Render(c.desc))
	}

	env := descStyle.Render("Config: ~/.spendlog/config.toml, .env, SPENDLOG_API_URL, SPENDLOG_TOKEN_FILE, SPENDLOG_LOG_LEVEL")
	fmt.Fprintf(w, "\n  %s\n\n", env)
}
