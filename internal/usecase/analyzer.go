package usecase

import (
	"context"
	"fmt"
	"time"

	"StockForecaster/internal/domain/models"
	drepo "StockForecaster/internal/domain/repository"
	dsvc "StockForecaster/internal/domain/service"
	"StockForecaster/pkg/logger"
	"StockForecaster/pkg/util"
)

const analysisCachePrefix = "analysis"

// AnalyzeParams selects the analysis. Start and End are accepted for every type
// but no analysis reads them yet.
type AnalyzeParams struct {
	Ticker string
	Type   models.AnalysisType
	Start  *time.Time
	End    *time.Time
}

type Analyzer struct {
	market     dsvc.MarketData
	completion dsvc.Completion
	cache      drepo.Cache
	log        *logger.Logger
	now        func() time.Time
}

func NewAnalyzer(market dsvc.MarketData, completion dsvc.Completion, cache drepo.Cache, log *logger.Logger) *Analyzer {
	return &Analyzer{market: market, completion: completion, cache: cache, log: log, now: time.Now}
}

func (a *Analyzer) Analyze(ctx context.Context, p AnalyzeParams) (*models.AnalysisResult, error) {
	switch p.Type {
	case models.AnalysisOptions:
		return a.analyzeOptions(ctx, p.Ticker)
	case models.AnalysisVolatility:
		return a.pending(p.Ticker, p.Type, "Volatility"), nil
	case models.AnalysisSentiment:
		return a.pending(p.Ticker, p.Type, "Sentiment"), nil
	}
	return nil, fmt.Errorf("unknown analysis type: %s", p.Type)
}

func (a *Analyzer) pending(ticker string, t models.AnalysisType, label string) *models.AnalysisResult {
	return &models.AnalysisResult{
		Ticker:          ticker,
		AnalysisType:    t,
		Timestamp:       a.now(),
		Data:            map[string]any{"message": label + " analysis not yet implemented"},
		Summary:         label + " analysis pending implementation",
		Recommendations: []string{},
	}
}

func (a *Analyzer) analyzeOptions(ctx context.Context, ticker string) (*models.AnalysisResult, error) {
	key := a.cache.MakeKey(analysisCachePrefix, string(models.AnalysisOptions), ticker)
	var cached models.AnalysisResult
	if a.cache.Get(ctx, key, &cached) {
		a.log.Debug("options analysis cache hit", logger.String("ticker", ticker), logger.String("backend", a.cache.Backend()))
		return &cached, nil
	}

	chain, err := a.market.GetOptionsChain(ctx, ticker, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch options chain: %w", err)
	}
	prompt, err := optionsPrompt(chain)
	if err != nil {
		return nil, err
	}
	reply, err := a.completion.Complete(ctx, prompt, "")
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}

	res := &models.AnalysisResult{
		Ticker:       ticker,
		AnalysisType: models.AnalysisOptions,
		Timestamp:    chain.Timestamp,
		Data: map[string]any{
			"put_call_ratio":   chain.PutCallRatio(),
			"total_calls":      len(chain.Calls),
			"total_puts":       len(chain.Puts),
			"underlying_price": chain.UnderlyingPrice,
		},
		Summary:         "Options analysis completed",
		Recommendations: []string{},
	}
	if s, ok := reply.Content["summary"].(string); ok && s != "" {
		res.Summary = s
	}
	if recs, err := stringList(reply.Content, "recommendations"); err != nil {
		a.log.Warn("ignoring malformed recommendations", logger.String("ticker", ticker), logger.Error(err))
	} else {
		res.Recommendations = recs
	}

	a.cache.Set(ctx, key, res)
	return res, nil
}

// StreamOptionsAnalysis fetches the chain up front, then streams the model's
// options analysis. The returned error covers only the chain fetch and prompt.
func (a *Analyzer) StreamOptionsAnalysis(ctx context.Context, ticker string) (<-chan string, <-chan error, error) {
	chain, err := a.market.GetOptionsChain(ctx, ticker, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch options chain: %w", err)
	}
	prompt, err := optionsPrompt(chain)
	if err != nil {
		return nil, nil, err
	}
	tokens, errc := a.completion.StreamComplete(ctx, prompt, "")
	return tokens, errc, nil
}

func optionsPrompt(chain *models.OptionsChain) (string, error) {
	section := fmt.Sprintf(`Options Chain Summary:
- Total Calls: %d
- Total Puts: %d
- Put/Call Ratio: %.2f
- Underlying Price: %s

Activity:
%s`,
		len(chain.Calls), len(chain.Puts), chain.PutCallRatio(), util.FormatPrice(chain.UnderlyingPrice),
		util.FormatOptionsSummary(chain.PutCallRatio(), chain.TotalVolume(), chain.TotalOpenInterest(), nil),
	)
	return render(analysisTmpl, analysisPrompt{
		AnalysisType: models.AnalysisOptions,
		Ticker:       chain.Ticker,
		DataSection:  section,
	})
}
