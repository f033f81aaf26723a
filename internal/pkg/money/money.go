// Package money parses and rounds currency amounts.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for amount text that is neither a number nor a known shortcut.
var ErrInvalidAmount = errors.New("invalid amount")

// Amount shortcuts accepted in place of a number.
const (
	ShortcutAll  = "all"
	ShortcutHalf = "half"
)

// Round rounds an amount to the given number of decimal places.
func Round(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Round(places)
}

// Parse resolves free-text amount input against the caller's balance.
// "all" is the whole balance, "half" is half of it, anything else must be a
// decimal number optionally prefixed with "$". The result is rounded but its
// sign is not checked.
func Parse(input string, balance decimal.Decimal, places int32) (decimal.Decimal, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	switch s {
	case "":
		return decimal.Zero, ErrInvalidAmount
	case ShortcutAll:
		return Round(balance, places), nil
	case ShortcutHalf:
		return balance.Div(decimal.NewFromInt(2)).RoundDown(places), nil
	}

	s = strings.TrimPrefix(s, "$")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return Round(d, places), nil
}

// Floor returns d or zero, whichever is larger.
func Floor(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
