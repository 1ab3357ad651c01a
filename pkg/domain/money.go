package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value. It is encoded as a bare JSON number because the
// API rejects quoted amounts.
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps a decimal.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// ParseAmount parses user input such as "42.5" or "1,299.00".
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(stripThousands(s))
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return Amount{Decimal: d}, nil
}

// MustAmount is ParseAmount for literals; it panics on bad input.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// MarshalJSON implements json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// Display renders the amount with two decimals.
func (a Amount) Display() string {
	return a.Decimal.StringFixed(2)
}

// Plus returns a + b.
func (a Amount) Plus(b Amount) Amount {
	return Amount{Decimal: a.Decimal.Add(b.Decimal)}
}

func stripThousands(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ',', ' ', '_':
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}
