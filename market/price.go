package market

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParsePrice parses a decimal price or volume string, trimming whitespace.
func ParsePrice(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad decimal %q: %w", s, err)
	}
	return d, nil
}

// Some wraps d as a present optional value.
func Some(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(d)
}

// F is shorthand for an optional decimal built from a float.
func F(x float64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromFloat(x))
}

// None is the absent optional decimal.
var None = decimal.NullDecimal{}
