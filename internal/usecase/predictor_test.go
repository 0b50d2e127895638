package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"StockForecaster/internal/domain/errs"
	"StockForecaster/internal/domain/models"
	"StockForecaster/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)

type predictorFixture struct {
	market     *mockMarket
	completion *mockCompletion
	publisher  *mockPublisher
	metrics    *countingMetrics
	p          *Predictor
}

func newPredictorFixture() *predictorFixture {
	f := &predictorFixture{
		market:     newMockMarket(),
		completion: &mockCompletion{reply: map[string]any{"direction": "bullish", "price_target": 160.0, "confidence": 8.0, "reasoning": []any{"r1"}, "risk_factors": []any{"k1"}}},
		publisher:  &mockPublisher{},
		metrics:    newCountingMetrics(),
	}
	f.p = NewPredictor(f.market, f.completion, f.publisher, f.metrics, logger.Nop(), "cfg-model")
	f.p.now = func() time.Time { return testNow }
	f.p.newID = func() string { return "job-1" }
	return f
}

func TestPredictHappyPath(t *testing.T) {
	f := newPredictorFixture()
	f.market.price["AAPL"] = 150

	res, err := f.p.Predict(context.Background(), "AAPL", models.Timeframe1W, true)
	require.NoError(t, err)

	assert.Equal(t, "AAPL", res.Ticker)
	assert.Equal(t, 150.0, res.CurrentPrice)
	assert.Equal(t, testNow, res.PredictionDate)
	assert.Equal(t, models.Timeframe1W, res.Timeframe)
	assert.Equal(t, models.Bullish, res.Direction)
	assert.Equal(t, 160.0, res.PriceTarget)
	assert.Equal(t, 8, res.Confidence)
	assert.Equal(t, []string{"r1"}, res.Reasoning)
	assert.Equal(t, []string{"k1"}, res.RiskFactors)
	require.NotNil(t, res.OptionsMetrics)
	assert.Equal(t, 50.0, res.OptionsMetrics.IVRank)

	assert.Equal(t, []string{"quote:AAPL", "chain:AAPL"}, f.market.calls)

	prompt := f.completion.lastPrompt()
	assert.Contains(t, prompt, "for AAPL and provide a prediction")
	assert.Contains(t, prompt, "CURRENT PRICE: $150")
	assert.Contains(t, prompt, "DATE: 2024-03-01")
	assert.Contains(t, prompt, "Price target for 1w")
	assert.Contains(t, prompt, "No unusual activity detected")
	assert.Contains(t, prompt, "Term Structure: normal")

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, "mock-model", f.publisher.events[0].Model)
	assert.Equal(t, 42, f.publisher.events[0].Usage.TotalTokens)
	assert.Equal(t, 1, f.metrics.predictions[outcomeSuccess])
	assert.Equal(t, 1, f.metrics.published[outcomeSuccess])
}

func TestPredictWithoutReasoning(t *testing.T) {
	f := newPredictorFixture()
	res, err := f.p.Predict(context.Background(), "MSFT", models.Timeframe1D, false)
	require.NoError(t, err)
	assert.Nil(t, res.Reasoning)
	assert.Equal(t, []string{"k1"}, res.RiskFactors)
}

func TestPredictWrapsUpstreamFailure(t *testing.T) {
	f := newPredictorFixture()
	f.market.fail["AAPL"] = true

	_, err := f.p.Predict(context.Background(), "AAPL", models.Timeframe1D, true)
	var pf *errs.PredictionFailed
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, "AAPL", pf.Ticker)
	assert.ErrorIs(t, err, errUpstream)
	assert.Equal(t, []string{"quote:AAPL"}, f.market.calls)
	assert.Empty(t, f.publisher.events)
	assert.Equal(t, 1, f.metrics.predictions[outcomeFailure])
}

func TestPredictRejectsInvalidReply(t *testing.T) {
	f := newPredictorFixture()
	f.completion.reply = map[string]any{"confidence": 42.0}

	_, err := f.p.Predict(context.Background(), "AAPL", models.Timeframe1D, true)
	var pf *errs.PredictionFailed
	require.ErrorAs(t, err, &pf)
	assert.True(t, errs.IsValidation(err))
}

func TestPredictDefaultsFromEmptyReply(t *testing.T) {
	f := newPredictorFixture()
	f.market.price["AAPL"] = 99
	f.completion.reply = map[string]any{}

	res, err := f.p.Predict(context.Background(), "AAPL", models.Timeframe1D, true)
	require.NoError(t, err)
	assert.Equal(t, models.Neutral, res.Direction)
	assert.Equal(t, 99.0, res.PriceTarget)
	assert.Equal(t, 5, res.Confidence)
}

func TestPredictPublishFailureIsNotFatal(t *testing.T) {
	f := newPredictorFixture()
	f.publisher.err = errors.New("broker down")

	_, err := f.p.Predict(context.Background(), "AAPL", models.Timeframe1D, true)
	require.NoError(t, err)
	assert.Equal(t, 1, f.metrics.published[outcomeFailure])
}

func TestBatchPredictSkipsFailuresAndKeepsOrder(t *testing.T) {
	f := newPredictorFixture()
	f.market.fail["BAD"] = true

	batch := f.p.BatchPredict(context.Background(), []string{"AAPL", "BAD", "MSFT"}, models.Timeframe1D)
	require.Len(t, batch.Predictions, 2)
	assert.Equal(t, "AAPL", batch.Predictions[0].Ticker)
	assert.Equal(t, "MSFT", batch.Predictions[1].Ticker)
	assert.Equal(t, "job-1", batch.JobID)
	assert.Equal(t, models.BatchStatusCompleted, batch.Status)
	require.NotNil(t, batch.CreatedAt)
	assert.Equal(t, testNow, *batch.CreatedAt)
}

func TestBatchPredictAllFail(t *testing.T) {
	f := newPredictorFixture()
	f.completion.err = errors.New("no model")

	batch := f.p.BatchPredict(context.Background(), []string{"AAPL", "MSFT"}, models.Timeframe1D)
	assert.Empty(t, batch.Predictions)
	assert.NotNil(t, batch.Predictions)
	assert.Nil(t, batch.CreatedAt)
	assert.Nil(t, batch.CompletedAt)
}

func TestComputeMetrics(t *testing.T) {
	d1, d2 := 0.5, -0.4
	chain := &models.OptionsChain{
		Calls: []models.OptionContract{{Volume: 200, OpenInterest: 10, Delta: &d1}, {Volume: 0, OpenInterest: 5}},
		Puts:  []models.OptionContract{{Volume: 300, OpenInterest: 20, Delta: &d2}},
	}
	m := ComputeMetrics(chain)
	assert.Equal(t, 1.5, m.PutCallRatio)
	assert.Equal(t, int64(500), m.TotalVolume)
	assert.Equal(t, int64(35), m.OpenInterest)
	assert.InDelta(t, 5-8, m.NetDelta, 1e-9)
	assert.Zero(t, m.NetGamma)
	assert.Equal(t, 20.0, m.IV30)
	assert.Equal(t, "neutral", m.IVSkew)
}
