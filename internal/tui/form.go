package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/spendlog/pkg/client"
	"github.com/naveenspark/spendlog/pkg/domain"
)

const (
	fieldAmount = iota
	fieldCategory
	fieldDescription
)

type expenseSavedMsg struct {
	expense *domain.Expense
	created bool
	err     error
}

// closeFormMsg returns to the expense list without saving.
type closeFormMsg struct{}

type formModel struct {
	client    *client.Client
	editing   *domain.Expense
	fields    fieldSet
	fieldErrs map[string]string
	err       string
	submitted bool
}

func newFormModel(c *client.Client, e *domain.Expense) formModel {
	m := formModel{
		client:  c,
		editing: e,
		fields: newFieldSet(
			fieldSpec{label: "Amount", placeholder: "0.00"},
			fieldSpec{label: "Category", placeholder: "Food"},
			fieldSpec{label: "Description", placeholder: "Lunch"},
		),
	}
	if e != nil {
		m.fields.set(fieldAmount, e.Amount.String())
		m.fields.set(fieldCategory, e.Category)
		m.fields.set(fieldDescription, e.Description)
	}
	return m
}

func (m formModel) Update(msg tea.Msg) (formModel, tea.Cmd) {
	switch msg := msg.(type) {
	case expenseSavedMsg:
		m.submitted = false
		if msg.err != nil {
			m.err = client.Reason(msg.err)
		}
		return m, nil

	case tea.KeyMsg:
		return m.updateKeys(msg)
	}
	return m, m.fields.update(msg)
}

func (m formModel) updateKeys(msg tea.KeyMsg) (formModel, tea.Cmd) {
	if m.submitted {
		return m, nil
	}
	switch msg.String() {
	case "esc":
		return m, func() tea.Msg { return closeFormMsg{} }
	case "ctrl+s":
		return m.submit()
	case "tab", "down":
		return m, m.fields.move(1)
	case "shift+tab", "up":
		return m, m.fields.move(-1)
	case "enter":
		if !m.fields.last() {
			return m, m.fields.move(1)
		}
		return m.submit()
	}
	m.err = ""
	return m, m.fields.update(msg)
}

// input reads the form. Per-field problems are returned keyed by field name.
func (m formModel) input() (domain.ExpenseInput, map[string]string) {
	in := domain.ExpenseInput{
		Category:    m.fields.value(fieldCategory),
		Description: m.fields.value(fieldDescription),
	}
	errs := map[string]string{}

	raw := m.fields.value(fieldAmount)
	if raw != "" {
		amt, err := domain.ParseAmount(raw)
		if err != nil {
			errs["amount"] = "Amount must be a number"
		} else {
			in.Amount = amt
		}
	}

	var verr *domain.ValidationError
	if err := in.Validate(); errors.As(err, &verr) {
		for k, v := range verr.Fields {
			if _, ok := errs[k]; !ok {
				errs[k] = v
			}
		}
	}
	return in, errs
}

func (m formModel) submit() (formModel, tea.Cmd) {
	in, errs := m.input()
	m.fieldErrs = errs
	if len(errs) > 0 {
		m.err = ""
		for i, name := range []string{"amount", "category", "description"} {
			if errs[name] != "" {
				return m, m.fields.focusOn(i)
			}
		}
		return m, nil
	}

	m.err = ""
	m.submitted = true
	c := m.client
	editing := m.editing
	return m, func() tea.Msg {
		if editing == nil {
			e, err := c.CreateExpense(context.Background(), in)
			return expenseSavedMsg{expense: e, created: true, err: err}
		}
		e, err := c.UpdateExpense(context.Background(), editing.ID, in)
		return expenseSavedMsg{expense: e, err: err}
	}
}

func (m formModel) View() string {
	var b strings.Builder

	title := "New expense"
	if m.editing != nil {
		title = fmt.Sprintf("Edit expense #%d", m.editing.ID)
	}
	b.WriteString("\n  " + selectedStyle.Render(title) + "\n\n")
	b.WriteString(m.fields.view(m.fieldErrs))
	b.WriteString("\n")

	switch {
	case m.submitted:
		b.WriteString("  " + dimStyle.Render("saving..."))
	case m.err != "":
		b.WriteString("  " + errorStyle.Render(m.err))
	}
	return b.String()
}

func (m formModel) helpKeys() string {
	return helpBar("tab", "next", "ctrl+s", "save", "esc", "cancel")
}
