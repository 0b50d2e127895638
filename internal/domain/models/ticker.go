package models

import (
	"regexp"
	"strings"

	"StockForecaster/internal/domain/errs"
)

const maxTickerLen = 10

var tickerPattern = regexp.MustCompile(`^[A-Z][A-Z0-9\-.]*$`)

// NormalizeTicker trims and uppercases s, then checks it against the ticker grammar.
func NormalizeTicker(s string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(s))
	if t == "" {
		return "", errs.NewValidationError("ticker", "ticker must not be empty")
	}
	if len(t) > maxTickerLen {
		return "", errs.NewValidationError("ticker", "ticker must be at most 10 characters")
	}
	if !tickerPattern.MatchString(t) {
		return "", errs.NewValidationError("ticker", "invalid ticker format: "+t)
	}
	return t, nil
}

// NormalizeTickers normalizes every entry and fails on the first invalid one.
func NormalizeTickers(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, s := range in {
		t, err := NormalizeTicker(s)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
