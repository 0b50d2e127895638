package util

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var en = message.NewPrinter(language.English)

// FormatPrice uses no decimals from 1000 up (with grouping), two from 100, four below.
func FormatPrice(p float64) string {
	switch {
	case p >= 1000:
		return en.Sprintf("$%.0f", p)
	case p >= 100:
		return fmt.Sprintf("$%.2f", p)
	default:
		return fmt.Sprintf("$%.4f", p)
	}
}

// FormatPercentage renders a percentage with two decimals and a leading + for non-negative values.
func FormatPercentage(v float64) string {
	if v >= 0 {
		return fmt.Sprintf("+%.2f%%", v)
	}
	return fmt.Sprintf("%.2f%%", v)
}

// FormatLargeNumber abbreviates with K, M or B suffixes.
func FormatLargeNumber(n int64) string {
	switch {
	case n >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", float64(n)/1e9)
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1e6)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1e3)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// FormatOptionsSummary renders chain activity one metric per line. ivRank is omitted when nil.
func FormatOptionsSummary(putCallRatio float64, totalVolume, openInterest int64, ivRank *float64) string {
	lines := []string{
		fmt.Sprintf("Put/Call Ratio: %.2f", putCallRatio),
		"Total Volume: " + FormatLargeNumber(totalVolume),
		"Open Interest: " + FormatLargeNumber(openInterest),
	}
	if ivRank != nil {
		lines = append(lines, fmt.Sprintf("IV Rank: %.0f%%", *ivRank))
	}
	return strings.Join(lines, "\n")
}
