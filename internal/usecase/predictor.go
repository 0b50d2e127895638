package usecase

import (
	"context"
	"fmt"
	"time"

	"StockForecaster/internal/domain/errs"
	"StockForecaster/internal/domain/models"
	drepo "StockForecaster/internal/domain/repository"
	dsvc "StockForecaster/internal/domain/service"
	"StockForecaster/pkg/logger"
	"StockForecaster/pkg/util"

	"github.com/google/uuid"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// Predictor turns options data plus a model reply into a directional prediction.
type Predictor struct {
	market     dsvc.MarketData
	completion dsvc.Completion
	publisher  drepo.EventPublisher
	metrics    drepo.Metrics
	log        *logger.Logger
	model      string

	now   func() time.Time
	newID func() string
}

// NewPredictor wires the prediction flow. model is only reported on published events
// when the completion reply does not name one.
func NewPredictor(
	market dsvc.MarketData,
	completion dsvc.Completion,
	publisher drepo.EventPublisher,
	metrics drepo.Metrics,
	log *logger.Logger,
	model string,
) *Predictor {
	return &Predictor{
		market:     market,
		completion: completion,
		publisher:  publisher,
		metrics:    metrics,
		log:        log,
		model:      model,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Predict runs quote, chain, metrics, prompt, completion and parse in order.
// Any failing step aborts with *errs.PredictionFailed.
func (p *Predictor) Predict(ctx context.Context, ticker string, tf models.Timeframe, includeReasoning bool) (*models.PredictionResult, error) {
	res, ev, err := p.predict(ctx, ticker, tf, includeReasoning)
	if err != nil {
		p.metrics.RecordPrediction(outcomeFailure)
		p.log.Error("prediction failed", logger.String("ticker", ticker), logger.Error(err))
		return nil, &errs.PredictionFailed{Ticker: ticker, Cause: err}
	}
	p.metrics.RecordPrediction(outcomeSuccess)
	p.log.Info("prediction generated",
		logger.String("ticker", ticker),
		logger.String("direction", string(res.Direction)),
		logger.Int("confidence", res.Confidence),
		logger.Float64("price_target", res.PriceTarget),
		logger.Bool("reasoning", includeReasoning),
	)

	if perr := p.publisher.PublishPrediction(ctx, ev); perr != nil {
		p.metrics.RecordEventPublished(outcomeFailure)
		p.log.Warn("publish prediction event", logger.String("ticker", ticker), logger.Error(perr))
	} else {
		p.metrics.RecordEventPublished(outcomeSuccess)
	}
	return res, nil
}

func (p *Predictor) predict(ctx context.Context, ticker string, tf models.Timeframe, includeReasoning bool) (*models.PredictionResult, *models.PredictionEvent, error) {
	quote, err := p.market.GetCurrentPrice(ctx, ticker)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch quote: %w", err)
	}
	chain, err := p.market.GetOptionsChain(ctx, ticker, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch options chain: %w", err)
	}

	metrics := ComputeMetrics(chain)
	p.log.Debug("market snapshot",
		logger.String("ticker", ticker),
		logger.String("price", util.FormatPrice(quote.Price)),
		logger.String("day_change", util.FormatPercentage(quote.DayChangePct)),
		logger.Int64("options_volume", metrics.TotalVolume),
	)
	now := p.now()
	prompt, err := render(predictionTmpl, predictionPrompt{
		Ticker:          ticker,
		CurrentPrice:    quote.Price,
		Date:            util.FormatDate(now),
		Timeframe:       tf,
		UnusualActivity: noUnusualActivity,
		M:               metrics,
	})
	if err != nil {
		return nil, nil, err
	}

	reply, err := p.completion.Complete(ctx, prompt, "")
	if err != nil {
		return nil, nil, fmt.Errorf("completion: %w", err)
	}
	fields, err := ParsePredictionFields(reply, quote.Price)
	if err != nil {
		return nil, nil, fmt.Errorf("parse completion: %w", err)
	}

	res := &models.PredictionResult{
		Ticker:         ticker,
		CurrentPrice:   quote.Price,
		PredictionDate: now,
		Timeframe:      tf,
		Direction:      fields.Direction,
		PriceTarget:    fields.PriceTarget,
		Confidence:     fields.Confidence,
		RiskFactors:    fields.RiskFactors,
		OptionsMetrics: &metrics,
	}
	if includeReasoning {
		res.Reasoning = fields.Reasoning
	}

	model := reply.Model
	if model == "" {
		model = p.model
	}
	return res, &models.PredictionEvent{Prediction: *res, Model: model, Usage: reply.Usage}, nil
}

// BatchPredict predicts each ticker in turn with reasoning included. Failed
// tickers are logged and left out; the batch itself never fails.
func (p *Predictor) BatchPredict(ctx context.Context, tickers []string, tf models.Timeframe) *models.BatchPredictionResult {
	preds := make([]models.PredictionResult, 0, len(tickers))
	for _, t := range tickers {
		if ctx.Err() != nil {
			p.log.Warn("batch cancelled", logger.Int("done", len(preds)), logger.Int("total", len(tickers)))
			break
		}
		res, err := p.Predict(ctx, t, tf, true)
		if err != nil {
			continue
		}
		preds = append(preds, *res)
	}
	return models.NewBatchResult(p.newID(), preds)
}

// ComputeMetrics derives the prompt metrics from a chain. IV and Greek
// aggregates other than net delta are fixed placeholders.
func ComputeMetrics(chain *models.OptionsChain) models.OptionsMetrics {
	m := models.OptionsMetrics{
		PutCallRatio:  chain.PutCallRatio(),
		TotalVolume:   chain.TotalVolume(),
		OpenInterest:  chain.TotalOpenInterest(),
		IVRank:        50,
		IVPercentile:  50,
		IV30:          20,
		IVSkew:        "neutral",
		TermStructure: "normal",
	}
	for _, set := range [][]models.OptionContract{chain.Calls, chain.Puts} {
		for _, o := range set {
			if o.Delta != nil {
				m.NetDelta += *o.Delta * float64(o.OpenInterest)
			}
		}
	}
	return m
}
