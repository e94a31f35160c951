// Package units converts between ether and wei without floating point.
package units

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of decimal places between ether and wei.
const EtherDecimals = 18

var (
	ErrNegative   = errors.New("amount must not be negative")
	ErrFractional = errors.New("amount has more precision than 1 wei")
)

// ParseEther converts a human readable ether amount ("10.5") to wei.
func ParseEther(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse ether %q: %w", s, err)
	}
	return ToWei(d)
}

// ToWei shifts an ether decimal to wei and rejects sub-wei precision.
func ToWei(ether decimal.Decimal) (decimal.Decimal, error) {
	wei := ether.Shift(EtherDecimals)
	if wei.IsNegative() {
		return decimal.Zero, ErrNegative
	}
	if !wei.Equal(wei.Truncate(0)) {
		return decimal.Zero, ErrFractional
	}
	return wei.Truncate(0), nil
}

// FormatEther renders a wei amount in ether, always with a fractional part ("10.0").
func FormatEther(wei decimal.Decimal) string {
	s := wei.Shift(-EtherDecimals).String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Ether returns n whole ether in wei.
func Ether(n int64) decimal.Decimal {
	return decimal.NewFromInt(n).Shift(EtherDecimals)
}

// IsWholeWei reports whether d is a non-negative integer amount.
func IsWholeWei(d decimal.Decimal) bool {
	return !d.IsNegative() && d.Equal(d.Truncate(0))
}
