package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/spendlog/pkg/client"
	"github.com/naveenspark/spendlog/pkg/domain"
)

// -- messages --

type expensesLoadedMsg struct {
	expenses []domain.Expense
	err      error
}

type expenseDeletedMsg struct {
	id  int64
	err error
}

// openFormMsg asks the App to show the expense form. A nil expense means a
// new one.
type openFormMsg struct {
	expense *domain.Expense
}

type openSummaryMsg struct{}

type logoutRequestMsg struct{}

// -- model --

type expensesModel struct {
	client     *client.Client
	loc        *time.Location
	all        []domain.Expense
	visible    []domain.Expense
	categories []string // "" first = all
	months     []string // "" first = all
	catCycle   int
	monthCycle int
	cursor     int
	confirming bool
	loading    bool
	err        string
	status     string
	width      int
	height     int
}

func newExpensesModel(c *client.Client, loc *time.Location) expensesModel {
	return expensesModel{
		client:     c,
		loc:        loc,
		categories: []string{""},
		months:     []string{""},
	}
}

func (m expensesModel) Init() tea.Cmd {
	return m.load()
}

func (m expensesModel) load() tea.Cmd {
	c := m.client
	return func() tea.Msg {
		expenses, err := c.ListExpenses(context.Background(), domain.ExpenseFilter{})
		return expensesLoadedMsg{expenses: expenses, err: err}
	}
}

func (m expensesModel) filter() domain.ExpenseFilter {
	return domain.ExpenseFilter{
		Category: m.categories[m.catCycle],
		Month:    m.months[m.monthCycle],
	}
}

// rebuild recomputes the filter choices and the visible rows. A selected
// value that disappeared from the data falls back to "all".
func (m *expensesModel) rebuild() {
	f := m.filter()

	m.categories = append([]string{""}, domain.Categories(m.all)...)
	m.months = append([]string{""}, domain.Months(m.all, m.loc)...)
	m.catCycle = indexOf(m.categories, f.Category)
	m.monthCycle = indexOf(m.months, f.Month)

	m.visible = m.filter().Apply(m.all, m.loc)
	if m.cursor >= len(m.visible) {
		m.cursor = max(len(m.visible)-1, 0)
	}
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return 0
}

func (m expensesModel) selected() (domain.Expense, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return domain.Expense{}, false
	}
	return m.visible[m.cursor], true
}

func (m expensesModel) Update(msg tea.Msg) (expensesModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case expensesLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = client.Reason(msg.err)
			return m, nil
		}
		m.err = ""
		m.all = msg.expenses
		m.rebuild()

	case expenseDeletedMsg:
		if msg.err != nil {
			m.err = client.Reason(msg.err)
			return m, nil
		}
		m.status = "Expense deleted"
		m.loading = true
		return m, m.load()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m expensesModel) handleKey(msg tea.KeyMsg) (expensesModel, tea.Cmd) {
	if m.confirming {
		m.confirming = false
		if msg.String() != "y" {
			m.status = "Delete cancelled"
			return m, nil
		}
		e, ok := m.selected()
		if !ok {
			return m, nil
		}
		c := m.client
		return m, func() tea.Msg {
			return expenseDeletedMsg{id: e.ID, err: c.DeleteExpense(context.Background(), e.ID)}
		}
	}

	m.status = ""
	switch msg.String() {
	case "j", "down":
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "c":
		if len(m.categories) > 1 {
			m.catCycle = (m.catCycle + 1) % len(m.categories)
			m.cursor = 0
			m.rebuild()
		}
	case "m":
		if len(m.months) > 1 {
			m.monthCycle = (m.monthCycle + 1) % len(m.months)
			m.cursor = 0
			m.rebuild()
		}
	case "x":
		m.catCycle, m.monthCycle, m.cursor = 0, 0, 0
		m.rebuild()
	case "r":
		m.loading = true
		return m, m.load()
	case "n":
		return m, func() tea.Msg { return openFormMsg{} }
	case "e", "enter":
		if e, ok := m.selected(); ok {
			return m, func() tea.Msg { return openFormMsg{expense: &e} }
		}
	case "d":
		if _, ok := m.selected(); ok {
			m.confirming = true
		}
	case "s":
		return m, func() tea.Msg { return openSummaryMsg{} }
	case "L":
		return m, func() tea.Msg { return logoutRequestMsg{} }
	}
	return m, nil
}

const (
	colDate     = 10
	colCategory = 14
	colAmount   = 12
)

func (m expensesModel) View() string {
	var b strings.Builder

	f := m.filter()
	cat, month := "All", "All"
	if f.Category != "" {
		cat = CategoryStyle(f.Category).Render(f.Category)
	}
	if f.Month != "" {
		month = domain.MonthLabel(f.Month)
	}
	fmt.Fprintf(&b, " %s %s   %s %s\n\n",
		sectionHeaderStyle.Render("category:"), cat,
		sectionHeaderStyle.Render("month:"), month)

	if m.loading && len(m.all) == 0 {
		b.WriteString(dimStyle.Render(" loading expenses..."))
		return b.String()
	}
	if m.err != "" {
		b.WriteString(" " + errorStyle.Render(m.err) + "\n\n")
	}

	if len(m.visible) == 0 {
		if len(m.all) == 0 {
			b.WriteString(dimStyle.Render(" No expenses yet. Press n to add one.") + "\n")
		} else {
			b.WriteString(dimStyle.Render(" No expenses match the filters.") + "\n")
		}
	} else {
		descWidth := m.width - colDate - colCategory - colAmount - 10
		if descWidth < 12 {
			descWidth = 12
		}
		header := fmt.Sprintf("   %s  %s  %s  %s",
			padRight("Date", colDate), padRight("Category", colCategory),
			padRight("Description", descWidth), padLeft("Amount", colAmount))
		b.WriteString(metaStyle.Render(header) + "\n")

		for i, e := range m.visible {
			cursor := "  "
			if i == m.cursor {
				cursor = inputPromptStyle.Render("> ")
			}
			row := fmt.Sprintf("%s  %s  %s  %s",
				dimStyle.Render(padRight(e.Date.In(m.loc).Format("2006-01-02"), colDate)),
				CategoryStyle(e.Category).Render(padRight(e.Category, colCategory)),
				normalStyle.Render(padRight(oneLine(e.Description), descWidth)),
				amountStyle.Render(padLeft(e.Amount.Display(), colAmount)))
			if i == m.cursor {
				row = selectedRowBg.Render(row)
			}
			b.WriteString(" " + cursor + row + "\n")
		}

		var total domain.Amount
		for _, e := range m.visible {
			total = total.Plus(e.Amount)
		}
		noun := "expenses"
		if len(m.visible) == 1 {
			noun = "expense"
		}
		fmt.Fprintf(&b, "\n %s %s %s\n",
			metaStyle.Render("Total"), totalStyle.Render(total.Display()),
			dimStyle.Render(fmt.Sprintf("(%d %s)", len(m.visible), noun)))
	}

	switch {
	case m.confirming:
		e, _ := m.selected()
		b.WriteString("\n " + errorStyle.Render(fmt.Sprintf("Delete %q (%s)? y to confirm", truncStr(oneLine(e.Description), 30), e.Amount.Display())))
	case m.status != "":
		b.WriteString("\n " + accentStyle.Render(m.status))
	}
	return b.String()
}

func (m expensesModel) helpKeys() string {
	if m.confirming {
		return helpBar("y", "delete", "any", "cancel")
	}
	return helpBar("j/k", "nav", "c/m", "filter", "x", "clear", "n", "new", "e", "edit", "d", "delete",
		"r", "refresh", "s", "summary", "L", "sign out", "?", "help", "q", "quit")
}
