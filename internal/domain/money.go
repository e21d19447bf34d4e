package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Cents is a monetary amount in hundredths of the currency unit.
type Cents int64

// String formats the amount with two decimals, e.g. "1500.00".
func (c Cents) String() string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, int64(c)/100, int64(c)%100)
}

// ParseAmount parses human-entered money text such as "1500", "1,500.50" or
// "RD$ 2,000". Thousands separators must be commas and at most two decimals
// are accepted. The amount must be positive.
func ParseAmount(raw string) (Cents, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, NewValidationError("amount", "amount is required")
	}
	s = strings.TrimLeft(s, "RDUS$ ")
	s = strings.ReplaceAll(s, ",", "")

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" || (hasFrac && (frac == "" || len(frac) > 2)) {
		return 0, NewValidationError("amount", fmt.Sprintf("amount %q is not a number", raw))
	}
	if len(frac) == 1 {
		frac += "0"
	}
	if frac == "" {
		frac = "00"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, NewValidationError("amount", fmt.Sprintf("amount %q is not a number", raw))
	}
	hundredths, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || hundredths < 0 {
		return 0, NewValidationError("amount", fmt.Sprintf("amount %q is not a number", raw))
	}

	if units > (math.MaxInt64-hundredths)/100 {
		return 0, NewValidationError("amount", fmt.Sprintf("amount %q is too large", raw))
	}
	total := Cents(units*100 + hundredths)
	if units < 0 || total <= 0 {
		return 0, NewValidationError("amount", "amount must be greater than zero")
	}
	return total, nil
}
