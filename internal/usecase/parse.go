package usecase

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"StockForecaster/internal/domain/errs"
	"StockForecaster/internal/domain/models"
)

const (
	defaultConfidence = 5
	minConfidence     = 1
	maxConfidence     = 10
)

// PredictionFields are the model-provided parts of a prediction.
type PredictionFields struct {
	Direction   models.Direction
	PriceTarget float64
	Confidence  int
	Reasoning   []string
	RiskFactors []string
}

// ParsePredictionFields validates a completion reply. Missing or null keys take
// defaults (neutral, currentPrice, 5, empty lists); present keys of the wrong
// shape are errors, as is a reply that was not a JSON object at all.
func ParsePredictionFields(c *models.Completion, currentPrice float64) (PredictionFields, error) {
	if c == nil {
		return PredictionFields{}, errs.NewValidationError("content", "empty completion")
	}
	if raw, ok := c.Raw(); ok {
		return PredictionFields{}, errs.NewValidationError("content", fmt.Sprintf("reply is not a JSON object (%d bytes)", len(raw)))
	}

	f := PredictionFields{
		Direction:   models.Neutral,
		PriceTarget: currentPrice,
		Confidence:  defaultConfidence,
		Reasoning:   []string{},
		RiskFactors: []string{},
	}
	content := c.Content

	if v, ok := present(content, "direction"); ok {
		s, isStr := v.(string)
		d := models.Direction(strings.ToLower(strings.TrimSpace(s)))
		if !isStr || !d.Valid() {
			return f, errs.NewValidationError("direction", fmt.Sprintf("invalid direction %v", v))
		}
		f.Direction = d
	}

	if v, ok := present(content, "price_target"); ok {
		p, err := toFloat(v)
		if err != nil || math.IsNaN(p) || math.IsInf(p, 0) {
			return f, errs.NewValidationError("price_target", fmt.Sprintf("invalid price target %v", v))
		}
		f.PriceTarget = p
	}

	if v, ok := present(content, "confidence"); ok {
		n, err := toInt(v)
		if err != nil {
			return f, errs.NewValidationError("confidence", fmt.Sprintf("invalid confidence %v", v))
		}
		if n < minConfidence || n > maxConfidence {
			return f, errs.NewValidationError("confidence", fmt.Sprintf("confidence %d out of range 1-10", n))
		}
		f.Confidence = n
	}

	var err error
	if f.Reasoning, err = stringList(content, "reasoning"); err != nil {
		return f, err
	}
	if f.RiskFactors, err = stringList(content, "risk_factors"); err != nil {
		return f, err
	}
	return f, nil
}

func present(m map[string]any, key string) (any, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	}
	return 0, fmt.Errorf("not a number: %T", v)
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int(n), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	}
	return 0, fmt.Errorf("not an integer: %T", v)
}

func stringList(m map[string]any, key string) ([]string, error) {
	v, ok := present(m, key)
	if !ok {
		return []string{}, nil
	}
	if ss, isStrs := v.([]string); isStrs {
		return ss, nil
	}
	items, isList := v.([]any)
	if !isList {
		return nil, errs.NewValidationError(key, "must be a list of strings")
	}
	out := make([]string, 0, len(items))
	for i, it := range items {
		s, isStr := it.(string)
		if !isStr {
			return nil, errs.NewValidationError(key, fmt.Sprintf("entry %d is not a string", i))
		}
		out = append(out, s)
	}
	return out, nil
}
