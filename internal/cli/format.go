// Package cli provides formatting and rendering utilities for terminal output.
package cli

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

// FormatEuro formats an amount with German separators, e.g. 1234.5 -> "1.234,50 €".
func FormatEuro(amount float64) string {
	if math.IsInf(amount, 0) || math.IsNaN(amount) {
		return "n/a"
	}
	return humanize.FormatFloat("#.###,##", amount) + " €"
}

// FormatPercentage formats a percent value (not a 0-1 ratio), e.g. 12.5 -> "12,5 %".
func FormatPercentage(pct float64) string {
	if math.IsInf(pct, 0) || math.IsNaN(pct) {
		return "n/a"
	}
	return humanize.FormatFloat("#.###,#", pct) + " %"
}

// FormatUnits formats a break-even count, rendering +Inf as "never".
func FormatUnits(units float64) string {
	if math.IsInf(units, 1) {
		return "never"
	}
	return FormatNumber(int64(math.Ceil(units)))
}

// FormatNumber adds thousands separators to an integer.
// e.g., 1234567 -> "1.234.567"
func FormatNumber(n int64) string {
	return strings.ReplaceAll(humanize.Comma(n), ",", ".")
}

// FormatDelta formats a money delta with an explicit sign.
func FormatDelta(current, previous float64) string {
	delta := current - previous
	if delta >= 0 {
		return "+" + FormatEuro(delta)
	}
	return "-" + FormatEuro(-delta)
}

// FormatMonths renders a month count, e.g. 1 -> "1 month", 4 -> "4 months".
func FormatMonths(n int) string {
	if n == 1 {
		return "1 month"
	}
	return fmt.Sprintf("%d months", n)
}

// FormatScore formats a 0-100 score with one decimal, e.g. 72.46 -> "72,5".
func FormatScore(score float64) string {
	return humanize.FormatFloat("#.###,#", score)
}
