package models

import "time"

type PredictionResult struct {
	Ticker         string          `json:"ticker"`
	CurrentPrice   float64         `json:"current_price"`
	PredictionDate time.Time       `json:"prediction_date"`
	Timeframe      Timeframe       `json:"timeframe"`
	Direction      Direction       `json:"direction"`
	PriceTarget    float64         `json:"price_target"`
	Confidence     int             `json:"confidence"`
	Reasoning      []string        `json:"reasoning,omitempty"`
	RiskFactors    []string        `json:"risk_factors,omitempty"`
	OptionsMetrics *OptionsMetrics `json:"options_metrics,omitempty"`
}

const BatchStatusCompleted = "completed"

type BatchPredictionResult struct {
	Predictions []PredictionResult `json:"predictions"`
	JobID       string             `json:"job_id"`
	Status      string             `json:"status"`
	CreatedAt   *time.Time         `json:"created_at"`
	CompletedAt *time.Time         `json:"completed_at"`
}

// NewBatchResult stamps the batch with the first and last prediction dates.
func NewBatchResult(jobID string, preds []PredictionResult) *BatchPredictionResult {
	if preds == nil {
		preds = []PredictionResult{}
	}
	b := &BatchPredictionResult{
		Predictions: preds,
		JobID:       jobID,
		Status:      BatchStatusCompleted,
	}
	if len(preds) > 0 {
		first := preds[0].PredictionDate
		last := preds[len(preds)-1].PredictionDate
		b.CreatedAt = &first
		b.CompletedAt = &last
	}
	return b
}

type AnalysisType string

const (
	AnalysisOptions    AnalysisType = "options"
	AnalysisVolatility AnalysisType = "volatility"
	AnalysisSentiment  AnalysisType = "sentiment"
)

type AnalysisResult struct {
	Ticker          string         `json:"ticker"`
	AnalysisType    AnalysisType   `json:"analysis_type"`
	Timestamp       time.Time      `json:"timestamp"`
	Data            map[string]any `json:"data"`
	Summary         string         `json:"summary"`
	Recommendations []string       `json:"recommendations"`
}

type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is a parsed model reply. Content is {"raw_content": text} when
// the model did not return a JSON object.
type Completion struct {
	Content map[string]any `json:"content"`
	Usage   TokenUsage     `json:"usage"`
	Model   string         `json:"model"`
}

// RawContentKey marks a reply that could not be parsed as a JSON object.
const RawContentKey = "raw_content"

// Raw returns the unparsed text and true when the reply fell back to raw content.
func (c *Completion) Raw() (string, bool) {
	if len(c.Content) != 1 {
		return "", false
	}
	s, ok := c.Content[RawContentKey].(string)
	return s, ok
}

// PredictionEvent is emitted once per successful prediction.
type PredictionEvent struct {
	Prediction PredictionResult `json:"prediction"`
	Model      string           `json:"model"`
	Usage      TokenUsage       `json:"usage"`
}
