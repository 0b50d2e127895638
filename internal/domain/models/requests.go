package models

// Requests for the prediction and analysis endpoints. Bound by echo, then defaults, then validator.

type PredictionRequest struct {
	Ticker           string `json:"ticker" validate:"required"`
	Timeframe        string `json:"timeframe" default:"1d" validate:"oneof=1d 1w 1m"`
	IncludeReasoning *bool  `json:"include_reasoning" default:"true"`
}

// PredictionQuery is the GET variant; query values stay strings so binding is lossless.
type PredictionQuery struct {
	Ticker           string `param:"ticker" validate:"required"`
	Timeframe        string `query:"timeframe" default:"1d" validate:"oneof=1d 1w 1m"`
	IncludeReasoning string `query:"include_reasoning" default:"true" validate:"oneof=true false"`
}

type BatchPredictionRequest struct {
	Tickers   []string `json:"tickers" validate:"required,min=1,max=10"`
	Timeframe string   `json:"timeframe" default:"1d" validate:"oneof=1d 1w 1m"`
}

type AnalysisRequest struct {
	Ticker       string `json:"ticker" validate:"required"`
	AnalysisType string `json:"analysis_type" validate:"required,oneof=options volatility sentiment"`
	StartDate    string `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate      string `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type JobStatusRequest struct {
	JobID string `param:"job_id" validate:"required"`
}
