package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestExpenseInputValidate(t *testing.T) {
	tests := []struct {
		name       string
		in         ExpenseInput
		wantFields []string
	}{
		{"valid", ExpenseInput{Amount: MustAmount("42.5"), Category: "Food", Description: "Lunch"}, nil},
		{"missing amount", ExpenseInput{Category: "Food", Description: "Lunch"}, []string{"amount"}},
		{"negative amount", ExpenseInput{Amount: MustAmount("-1"), Category: "Food", Description: "Lunch"}, []string{"amount"}},
		{"blank category", ExpenseInput{Amount: MustAmount("1"), Category: "  ", Description: "Lunch"}, []string{"category"}},
		{"all missing", ExpenseInput{}, []string{"amount", "category", "description"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if len(verr.Fields) != len(tt.wantFields) {
				t.Errorf("got %d field errors, want %d: %v", len(verr.Fields), len(tt.wantFields), verr.Fields)
			}
			for _, f := range tt.wantFields {
				if verr.Field(f) == "" {
					t.Errorf("missing error for field %q", f)
				}
			}
		})
	}
}

func TestExpenseJSON(t *testing.T) {
	raw := `{"id":7,"amount":42.5,"category":"Food","description":null,"date":"2024-05-03T12:30:00.123456","user_id":1}`
	var e Expense
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if e.ID != 7 {
		t.Errorf("ID = %d, want 7", e.ID)
	}
	if !e.Amount.Equal(MustAmount("42.5").Decimal) {
		t.Errorf("Amount = %s, want 42.5", e.Amount)
	}
	if e.Description != "" {
		t.Errorf("Description = %q, want empty", e.Description)
	}
	want := time.Date(2024, 5, 3, 12, 30, 0, 123456000, time.UTC)
	if !e.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", e.Date.Time, want)
	}
}

func TestExpenseInputJSON_AmountIsNumber(t *testing.T) {
	data, err := json.Marshal(ExpenseInput{Amount: MustAmount("42.50"), Category: "Food", Description: "Lunch"})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if !strings.Contains(string(data), `"amount":42.5`) {
		t.Errorf("json = %s, want bare number amount", data)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-05-03T12:30:00Z", time.Date(2024, 5, 3, 12, 30, 0, 0, time.UTC)},
		{"2024-05-03T14:30:00+02:00", time.Date(2024, 5, 3, 12, 30, 0, 0, time.UTC)},
		{"2024-05-03T12:30:00", time.Date(2024, 5, 3, 12, 30, 0, 0, time.UTC)},
		{"2024-05-03 12:30:00.5", time.Date(2024, 5, 3, 12, 30, 0, 500000000, time.UTC)},
		{"2024-05-03", time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			if err != nil {
				t.Fatalf("ParseTimestamp(%q) error: %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got.Time, tt.want)
			}
		})
	}

	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Error("expected error for unparsable timestamp")
	}
}

func TestExpenseFilterApply(t *testing.T) {
	expenses := []Expense{
		{ID: 1, Category: "Food", Date: Timestamp{time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC)}},
		{ID: 2, Category: "Rent", Date: Timestamp{time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}},
		{ID: 3, Category: "Food", Date: Timestamp{time.Date(2024, 4, 28, 20, 0, 0, 0, time.UTC)}},
	}

	tests := []struct {
		name   string
		filter ExpenseFilter
		want   []int64
	}{
		{"no filter", ExpenseFilter{}, []int64{1, 2, 3}},
		{"category", ExpenseFilter{Category: "Food"}, []int64{1, 3}},
		{"month", ExpenseFilter{Month: "2024-05"}, []int64{1, 2}},
		{"both", ExpenseFilter{Category: "Food", Month: "2024-04"}, []int64{3}},
		{"no match", ExpenseFilter{Category: "Travel"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.Apply(expenses, time.UTC)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d expenses, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("got[%d].ID = %d, want %d", i, got[i].ID, id)
				}
			}
		})
	}

	if got := Categories(expenses); strings.Join(got, ",") != "Food,Rent" {
		t.Errorf("Categories() = %v", got)
	}
	if got := Months(expenses, time.UTC); strings.Join(got, ",") != "2024-05,2024-04" {
		t.Errorf("Months() = %v", got)
	}
}

func TestExpenseFilterValidate(t *testing.T) {
	if err := (ExpenseFilter{Month: "2024-13"}).Validate(); err == nil {
		t.Error("expected error for month 13")
	}
	if err := (ExpenseFilter{Month: "2024-12"}).Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestMonthLabel(t *testing.T) {
	if got := MonthLabel("2024-05"); got != "May 2024" {
		t.Errorf("MonthLabel() = %q, want %q", got, "May 2024")
	}
	if got := MonthLabel("garbage"); got != "garbage" {
		t.Errorf("MonthLabel() = %q, want input unchanged", got)
	}
}

func TestSummaryTotal(t *testing.T) {
	rows := []SummaryRow{
		{Label: "Food", Total: MustAmount("10.10")},
		{Label: "Rent", Total: MustAmount("0.20")},
	}
	if got := SummaryTotal(rows).Display(); got != "10.30" {
		t.Errorf("SummaryTotal() = %s, want 10.30", got)
	}
	if got := SummaryTotal(nil).Display(); got != "0.00" {
		t.Errorf("SummaryTotal(nil) = %s, want 0.00", got)
	}
}

func TestParseSummaryGroup(t *testing.T) {
	for _, s := range []string{"category", "month"} {
		if _, err := ParseSummaryGroup(s); err != nil {
			t.Errorf("ParseSummaryGroup(%q) error: %v", s, err)
		}
	}
	if _, err := ParseSummaryGroup("year"); err == nil {
		t.Error("expected error for year")
	}
}

func TestParseAmount(t *testing.T) {
	a, err := ParseAmount("1,299.5")
	if err != nil {
		t.Fatalf("ParseAmount() error: %v", err)
	}
	if a.Display() != "1299.50" {
		t.Errorf("Display() = %q, want 1299.50", a.Display())
	}
	if _, err := ParseAmount("abc"); err == nil {
		t.Error("expected error for non-numeric amount")
	}
}
