package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Monetary values are int64 counts of tenths of a rupee. One tenth is the
// smallest unit the ledger tracks; every stored and displayed amount has
// exactly one decimal place.

// TenthsFromFloat converts a decimal amount to tenths, rounding half away
// from zero to one decimal place.
func TenthsFromFloat(amount float64) int64 {
	return int64(math.Round(amount * 10))
}

// TenthsToFloat converts tenths back to a decimal amount.
func TenthsToFloat(tenths int64) float64 {
	return float64(tenths) / 10
}

// FormatTenths renders tenths as a decimal string with one fractional digit,
// e.g. 305 → "30.5", -12 → "-1.2".
func FormatTenths(tenths int64) string {
	sign := ""
	if tenths < 0 {
		sign = "-"
		tenths = -tenths
	}
	return fmt.Sprintf("%s%d.%d", sign, tenths/10, tenths%10)
}

// ParseTenths parses a decimal string into tenths. At most one fractional
// digit is accepted; extra precision is rejected rather than silently rounded.
func ParseTenths(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("amount is required")
	}

	negative := false
	if strings.HasPrefix(trimmed, "-") {
		negative = true
		trimmed = trimmed[1:]
	} else if strings.HasPrefix(trimmed, "+") {
		trimmed = trimmed[1:]
	}
	// One sign only. strconv would accept another in the whole part,
	// flipping the amount for input like "--1".
	if strings.ContainsAny(trimmed, "+-") {
		return 0, fmt.Errorf("invalid amount %q", value)
	}
	if !strings.ContainsAny(trimmed, "0123456789") {
		return 0, fmt.Errorf("invalid amount %q", value)
	}

	whole := trimmed
	frac := "0"
	if idx := strings.IndexByte(trimmed, '.'); idx >= 0 {
		whole = trimmed[:idx]
		frac = trimmed[idx+1:]
		if frac == "" {
			frac = "0"
		}
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 1 {
		return 0, fmt.Errorf("amount %q has more than one decimal place", value)
	}

	wholeVal, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", value)
	}
	fracVal, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || fracVal < 0 || fracVal > 9 {
		return 0, fmt.Errorf("invalid amount %q", value)
	}

	tenths := wholeVal*10 + fracVal
	if negative {
		tenths = -tenths
	}
	return tenths, nil
}
