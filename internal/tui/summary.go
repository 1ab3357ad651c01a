package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/spendlog/pkg/client"
	"github.com/naveenspark/spendlog/pkg/domain"
)

// copyToClipboard is swapped in tests.
var copyToClipboard = clipboard.WriteAll

type summaryLoadedMsg struct {
	group domain.SummaryGroup
	rows  []domain.SummaryRow
	err   error
}

type closeSummaryMsg struct{}

type summaryModel struct {
	client  *client.Client
	group   domain.SummaryGroup
	rows    []domain.SummaryRow
	loading bool
	err     string
	status  string
}

func newSummaryModel(c *client.Client) summaryModel {
	return summaryModel{client: c, group: domain.GroupByCategory}
}

func (m summaryModel) Init() tea.Cmd {
	return m.load()
}

func (m summaryModel) load() tea.Cmd {
	c := m.client
	group := m.group
	return func() tea.Msg {
		rows, err := c.Summary(context.Background(), group)
		return summaryLoadedMsg{group: group, rows: rows, err: err}
	}
}

func (m summaryModel) Update(msg tea.Msg) (summaryModel, tea.Cmd) {
	switch msg := msg.(type) {
	case summaryLoadedMsg:
		if msg.group != m.group {
			return m, nil // answer to an earlier toggle
		}
		m.loading = false
		if msg.err != nil {
			m.err = client.Reason(msg.err)
			return m, nil
		}
		m.err = ""
		m.rows = msg.rows

	case tea.KeyMsg:
		m.status = ""
		switch msg.String() {
		case "esc", "b":
			return m, func() tea.Msg { return closeSummaryMsg{} }
		case "tab", "g":
			if m.group == domain.GroupByCategory {
				m.group = domain.GroupByMonth
			} else {
				m.group = domain.GroupByCategory
			}
			m.rows = nil
			m.loading = true
			return m, m.load()
		case "r":
			m.loading = true
			return m, m.load()
		case "c":
			if len(m.rows) == 0 {
				m.status = "Nothing to copy"
				return m, nil
			}
			if err := copyToClipboard(m.tsv()); err != nil {
				m.err = "Copy failed: " + err.Error()
				return m, nil
			}
			m.status = "Copied to clipboard"
		}
	}
	return m, nil
}

func (m summaryModel) label(row domain.SummaryRow) string {
	switch {
	case row.Label == "":
		return "(none)"
	case m.group == domain.GroupByMonth:
		return domain.MonthLabel(row.Label)
	default:
		return row.Label
	}
}

// tsv renders the summary as tab-separated values with a header and a total row.
func (m summaryModel) tsv() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\tTotal\n", m.group.Title())
	for _, r := range m.rows {
		fmt.Fprintf(&b, "%s\t%s\n", m.label(r), r.Total.Display())
	}
	fmt.Fprintf(&b, "Total\t%s\n", domain.SummaryTotal(m.rows).Display())
	return b.String()
}

func (m summaryModel) View() string {
	var b strings.Builder

	byCat, byMonth := dimStyle.Render("category"), dimStyle.Render("month")
	if m.group == domain.GroupByMonth {
		byMonth = selectedStyle.Underline(true).Render("month")
	} else {
		byCat = selectedStyle.Underline(true).Render("category")
	}
	fmt.Fprintf(&b, " %s %s  %s\n\n", sectionHeaderStyle.Render("by"), byCat, byMonth)

	if m.loading {
		b.WriteString(dimStyle.Render(" loading summary..."))
		return b.String()
	}
	if m.err != "" {
		b.WriteString(" " + errorStyle.Render(m.err) + "\n")
	}

	if len(m.rows) == 0 && m.err == "" {
		b.WriteString(dimStyle.Render(" No expenses to summarize.") + "\n")
	}
	if len(m.rows) > 0 {
		b.WriteString(metaStyle.Render(fmt.Sprintf("   %s  %s", padRight(m.group.Title(), 20), padLeft("Total", colAmount))) + "\n")
		for _, r := range m.rows {
			label := padRight(m.label(r), 20)
			if m.group == domain.GroupByCategory {
				label = CategoryStyle(r.Label).Render(label)
			}
			fmt.Fprintf(&b, "   %s  %s\n", label, amountStyle.Render(padLeft(r.Total.Display(), colAmount)))
		}
		fmt.Fprintf(&b, "\n   %s  %s\n", metaStyle.Render(padRight("Total", 20)),
			totalStyle.Render(padLeft(domain.SummaryTotal(m.rows).Display(), colAmount)))
	}

	if m.status != "" {
		b.WriteString("\n " + accentStyle.Render(m.status))
	}
	return b.String()
}

func (m summaryModel) helpKeys() string {
	return helpBar("g", "toggle", "c", "copy", "r", "refresh", "esc", "back", "q", "quit")
}
