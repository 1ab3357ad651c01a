package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Expense is a recorded expense as returned by the API.
type Expense struct {
	ID          int64     `json:"id"`
	Amount      Amount    `json:"amount"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Date        Timestamp `json:"date"`
	UserID      int64     `json:"user_id,omitempty"`
}

// ExpenseInput is the body for creating or updating an expense.
type ExpenseInput struct {
	Amount      Amount `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// Input returns the editable fields of e.
func (e Expense) Input() ExpenseInput {
	return ExpenseInput{Amount: e.Amount, Category: e.Category, Description: e.Description}
}

// ValidationError lists per-field problems found before a request is sent.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

// Field returns the message for a single field, or "".
func (e *ValidationError) Field(name string) string {
	if e == nil {
		return ""
	}
	return e.Fields[name]
}

// Validate checks the required fields. Amount must be positive.
func (in ExpenseInput) Validate() error {
	fields := map[string]string{}
	if in.Amount.IsZero() {
		fields["amount"] = "Amount is required"
	} else if !in.Amount.IsPositive() {
		fields["amount"] = "Amount must be positive"
	}
	if strings.TrimSpace(in.Category) == "" {
		fields["category"] = "Category is required"
	}
	if strings.TrimSpace(in.Description) == "" {
		fields["description"] = "Description is required"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ValidMonth reports whether s is a YYYY-MM month.
func ValidMonth(s string) bool {
	return monthPattern.MatchString(s)
}

// ExpenseFilter narrows an expense list. Empty fields match everything.
type ExpenseFilter struct {
	Category string
	Month    string // YYYY-MM
}

// IsZero reports whether the filter matches everything.
func (f ExpenseFilter) IsZero() bool {
	return f.Category == "" && f.Month == ""
}

// Validate rejects malformed months.
func (f ExpenseFilter) Validate() error {
	if f.Month != "" && !ValidMonth(f.Month) {
		return &ValidationError{Fields: map[string]string{"month": "Month must be in YYYY-MM format"}}
	}
	return nil
}

// Apply filters expenses locally, keeping their order. Category matches
// exactly and months are computed in loc.
func (f ExpenseFilter) Apply(expenses []Expense, loc *time.Location) []Expense {
	if f.IsZero() {
		return expenses
	}
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if f.Category != "" && e.Category != f.Category {
			continue
		}
		if f.Month != "" && e.Date.Month(loc) != f.Month {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Categories returns the distinct categories in first-seen order.
func Categories(expenses []Expense) []string {
	seen := make(map[string]bool, len(expenses))
	var out []string
	for _, e := range expenses {
		if !seen[e.Category] {
			seen[e.Category] = true
			out = append(out, e.Category)
		}
	}
	return out
}

// Months returns the distinct YYYY-MM months in first-seen order.
func Months(expenses []Expense, loc *time.Location) []string {
	seen := make(map[string]bool, len(expenses))
	var out []string
	for _, e := range expenses {
		m := e.Date.Month(loc)
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// MonthLabel renders "2024-05" as "May 2024". Invalid input is returned unchanged.
func MonthLabel(month string) string {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return month
	}
	return fmt.Sprintf("%s %d", t.Month(), t.Year())
}
