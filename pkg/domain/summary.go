package domain

import "fmt"

// SummaryGroup is the dimension a summary is aggregated over.
type SummaryGroup string

const (
	GroupByCategory SummaryGroup = "category"
	GroupByMonth    SummaryGroup = "month"
)

// ParseSummaryGroup accepts "category" or "month".
func ParseSummaryGroup(s string) (SummaryGroup, error) {
	switch SummaryGroup(s) {
	case GroupByCategory, GroupByMonth:
		return SummaryGroup(s), nil
	}
	return "", fmt.Errorf("invalid summary group %q: must be category or month", s)
}

// Title is the column heading for the group label.
func (g SummaryGroup) Title() string {
	if g == GroupByMonth {
		return "Month"
	}
	return "Category"
}

// SummaryRow is one aggregated total.
type SummaryRow struct {
	Label string `json:"label"`
	Total Amount `json:"total"`
}

// SummaryTotal sums all rows.
func SummaryTotal(rows []SummaryRow) Amount {
	var total Amount
	for _, r := range rows {
		total = total.Plus(r.Total)
	}
	return total
}
