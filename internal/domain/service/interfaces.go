package service

import (
	"context"
	"time"

	"StockForecaster/internal/domain/models"
)

// MarketData fetches quotes, option contracts and bars from the market-data provider.
type MarketData interface {
	GetCurrentPrice(ctx context.Context, ticker string) (*models.StockQuote, error)
	GetOptionsChain(ctx context.Context, ticker string, expiration *time.Time) (*models.OptionsChain, error)
	GetHistoricalData(ctx context.Context, ticker string, start, end time.Time, timespan string) ([]map[string]any, error)
	GetOptionsActivity(ctx context.Context, ticker string) ([]map[string]any, error)
}

// Completion sends prompts to the LLM provider.
type Completion interface {
	Complete(ctx context.Context, prompt, systemPrompt string) (*models.Completion, error)
	// StreamComplete yields content fragments. Both channels are closed when the stream ends.
	StreamComplete(ctx context.Context, prompt, systemPrompt string) (<-chan string, <-chan error)
}
