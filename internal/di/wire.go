//go:build wireinject
// +build wireinject

package di

import (
	"StockForecaster/pkg/config"
	"StockForecaster/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideRetryPolicy,

		// Upstream clients
		ProvideMarketDataClient,
		ProvideCompletionClient,

		// Repositories
		ProvideCacheStore,
		ProvideCache,
		ProvideEventPublisher,

		// Use cases
		ProvidePredictor,
		ProvideAnalyzer,
		ProvideHealth,

		// Transport
		ProvidePredictionsHandler,
		ProvideAnalysisHandler,
		ProvideHealthHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
