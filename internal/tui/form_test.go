package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/spendlog/internal/apitest"
	"github.com/naveenspark/spendlog/pkg/client"
	"github.com/naveenspark/spendlog/pkg/domain"
)

func typeInto(m formModel, values ...string) formModel {
	for i, v := range values {
		if i > 0 {
			m, _ = m.Update(keyTab)
		}
		if v != "" {
			m, _ = m.Update(keyRunes(v))
		}
	}
	return m
}

func TestFormFieldErrors(t *testing.T) {
	srv := apitest.New(t)
	m := newFormModel(client.New(srv.URL, &fakeSession{token: "tok"}), nil)

	m = typeInto(m, "", "", "")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})

	want := map[string]string{
		"amount":      "Amount is required",
		"category":    "Category is required",
		"description": "Description is required",
	}
	for field, msg := range want {
		if m.fieldErrs[field] != msg {
			t.Errorf("fieldErrs[%s] = %q, want %q", field, m.fieldErrs[field], msg)
		}
	}
	if m.submitted {
		t.Error("invalid form must not submit")
	}
	if srv.Calls() != 0 {
		t.Errorf("server saw %d calls, want 0", srv.Calls())
	}
	if !strings.Contains(m.View(), "Category is required") {
		t.Errorf("expected field error in view, got:\n%s", m.View())
	}
}

func TestFormAmountRules(t *testing.T) {
	tests := []struct {
		amount string
		want   string
	}{
		{"abc", "Amount must be a number"},
		{"-5", "Amount must be positive"},
		{"0", "Amount is required"},
		{"1,299.50", ""},
	}
	for _, tc := range tests {
		t.Run(tc.amount, func(t *testing.T) {
			m := typeInto(newFormModel(nil, nil), tc.amount, "Food", "Lunch")
			_, errs := m.input()
			if errs["amount"] != tc.want {
				t.Errorf("amount %q: error = %q, want %q", tc.amount, errs["amount"], tc.want)
			}
		})
	}
}

func TestFormPrefillsWhenEditing(t *testing.T) {
	e := makeTestExpense(7, "12.5", "Food", "Dinner", time.Now())
	m := newFormModel(nil, &e)

	in, errs := m.input()
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if in.Amount.Display() != "12.50" || in.Category != "Food" || in.Description != "Dinner" {
		t.Errorf("input = %+v", in)
	}
	if !strings.Contains(m.View(), "Edit expense #7") {
		t.Errorf("expected edit title, got:\n%s", m.View())
	}
}

func TestFormCreateAgainstServer(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("alice", "a@example.com", "secret")
	c := client.New(srv.URL, &fakeSession{token: srv.Mint("alice", time.Now().Add(time.Hour))})

	m := typeInto(newFormModel(c, nil), "42.5", "Food", "Lunch")
	m, cmd := m.Update(keyEnter)
	if !m.submitted || cmd == nil {
		t.Fatal("expected submit on enter in last field")
	}
	msg, ok := cmd().(expenseSavedMsg)
	if !ok {
		t.Fatalf("unexpected message %T", msg)
	}
	if msg.err != nil || !msg.created {
		t.Fatalf("save = %+v", msg)
	}
	stored := srv.Expenses()
	if len(stored) != 1 || stored[0].Amount.Display() != "42.50" || stored[0].Description != "Lunch" {
		t.Errorf("stored = %+v", stored)
	}
}

func TestFormUpdateAgainstServer(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("alice", "a@example.com", "secret")
	e := srv.Seed("alice", domain.ExpenseInput{Amount: domain.MustAmount("5"), Category: "Food", Description: "Snack"}, time.Now())
	c := client.New(srv.URL, &fakeSession{token: srv.Mint("alice", time.Now().Add(time.Hour))})

	m := newFormModel(c, &e)
	m.fields.set(fieldDescription, "Big snack")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if cmd == nil {
		t.Fatal("expected save command")
	}
	msg := cmd().(expenseSavedMsg)
	if msg.err != nil || msg.created {
		t.Fatalf("save = %+v", msg)
	}
	if got := srv.Expenses()[0].Description; got != "Big snack" {
		t.Errorf("description = %q", got)
	}
}

func TestFormServerErrorShown(t *testing.T) {
	m := newFormModel(nil, nil)
	m.submitted = true
	m, _ = m.Update(expenseSavedMsg{err: &client.HTTPError{StatusCode: 422, Message: "Input should be a valid number"}})
	if m.submitted {
		t.Error("expected submitted reset")
	}
	if !strings.Contains(m.View(), "Input should be a valid number") {
		t.Errorf("expected server reason, got:\n%s", m.View())
	}
}
