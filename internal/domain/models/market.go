package models

import (
	"strings"
	"time"

	"StockForecaster/internal/domain/errs"
)

type Timeframe string

const (
	Timeframe1D Timeframe = "1d"
	Timeframe1W Timeframe = "1w"
	Timeframe1M Timeframe = "1m"
)

// Valid reports whether tf is one of the supported horizons.
func (tf Timeframe) Valid() bool {
	switch tf {
	case Timeframe1D, Timeframe1W, Timeframe1M:
		return true
	}
	return false
}

// ParseTimeframe trims and lowercases s. Anything outside 1d, 1w, 1m is a ValidationError.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	if !tf.Valid() {
		return "", errs.NewValidationError("timeframe", "timeframe must be one of 1d, 1w, 1m")
	}
	return tf, nil
}

type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

func (d Direction) Valid() bool {
	switch d {
	case Bullish, Bearish, Neutral:
		return true
	}
	return false
}

type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// StockQuote is a last-close snapshot, re-fetched per request.
type StockQuote struct {
	Ticker        string    `json:"ticker"`
	Price         float64   `json:"price"`
	Volume        int64     `json:"volume"`
	DayChange     float64   `json:"day_change"`
	DayChangePct  float64   `json:"day_change_percent"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Open          float64   `json:"open"`
	PreviousClose float64   `json:"previous_close"`
	Timestamp     time.Time `json:"timestamp"`
}

// OptionContract is built once from an upstream record. Greeks are nil until populated.
type OptionContract struct {
	Strike            float64    `json:"strike"`
	Expiration        time.Time  `json:"expiration"`
	Type              OptionType `json:"option_type"`
	Bid               float64    `json:"bid"`
	Ask               float64    `json:"ask"`
	Last              float64    `json:"last"`
	Volume            int64      `json:"volume"`
	OpenInterest      int64      `json:"open_interest"`
	ImpliedVolatility float64    `json:"implied_volatility"`
	Delta             *float64   `json:"delta,omitempty"`
	Gamma             *float64   `json:"gamma,omitempty"`
	Theta             *float64   `json:"theta,omitempty"`
	Vega              *float64   `json:"vega,omitempty"`
}

type OptionsChain struct {
	Ticker          string           `json:"ticker"`
	UnderlyingPrice float64          `json:"underlying_price"`
	Timestamp       time.Time        `json:"timestamp"`
	Calls           []OptionContract `json:"calls"`
	Puts            []OptionContract `json:"puts"`
}

// PutCallRatio is total put volume over total call volume. It is 0 when
// call volume is 0, so "no calls traded" and "no puts traded" read the same.
func (c *OptionsChain) PutCallRatio() float64 {
	callVol := sumVolume(c.Calls)
	if callVol == 0 {
		return 0
	}
	return float64(sumVolume(c.Puts)) / float64(callVol)
}

func (c *OptionsChain) TotalVolume() int64 {
	return sumVolume(c.Calls) + sumVolume(c.Puts)
}

func (c *OptionsChain) TotalOpenInterest() int64 {
	var total int64
	for _, o := range c.Calls {
		total += o.OpenInterest
	}
	for _, o := range c.Puts {
		total += o.OpenInterest
	}
	return total
}

func sumVolume(cs []OptionContract) int64 {
	var total int64
	for _, o := range cs {
		total += o.Volume
	}
	return total
}

// OptionsMetrics is the snapshot fed into prediction prompts.
// Greek and IV fields hold placeholder values until real quotes are fetched.
type OptionsMetrics struct {
	PutCallRatio  float64 `json:"put_call_ratio"`
	TotalVolume   int64   `json:"total_volume"`
	OpenInterest  int64   `json:"open_interest"`
	NetDelta      float64 `json:"net_delta"`
	NetGamma      float64 `json:"net_gamma"`
	GammaExposure float64 `json:"gamma_exposure"`
	IVRank        float64 `json:"iv_rank"`
	IVPercentile  float64 `json:"iv_percentile"`
	IV30          float64 `json:"iv_30"`
	IVSkew        string  `json:"iv_skew"`
	TermStructure string  `json:"term_structure"`
}
