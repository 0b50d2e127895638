package di

import (
	"fmt"

	"StockForecaster/internal/domain/errs"
	"StockForecaster/internal/domain/repository"
	dsvc "StockForecaster/internal/domain/service"
	"StockForecaster/internal/handler/api"
	internalrepo "StockForecaster/internal/repository"
	icache "StockForecaster/internal/service/cache"
	"StockForecaster/internal/service/completion"
	"StockForecaster/internal/service/marketdata"
	"StockForecaster/internal/service/ratelimit"
	"StockForecaster/internal/service/upstream"
	"StockForecaster/internal/usecase"
	"StockForecaster/pkg/config"
	xhttp "StockForecaster/pkg/http"
	"StockForecaster/pkg/http/middleware"
	pkgkafka "StockForecaster/pkg/kafka"
	"StockForecaster/pkg/logger"
	"StockForecaster/pkg/metrics"
	"StockForecaster/pkg/retry"
	"StockForecaster/pkg/server"

	"github.com/labstack/echo/v4"
)

// ProvideLogger creates the process logger from cfg.Log.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("service", cfg.ProjectName), logger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder, or a no-op one when
// metrics are disabled.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New()
}

// ProvideRetryPolicy builds the upstream retry policy shared by both clients.
func ProvideRetryPolicy(cfg *config.Config) retry.Policy {
	return retry.New(
		retry.WithMaxAttempts(cfg.Retry.MaxAttempts),
		retry.WithBackoff(cfg.Retry.Multiplier, cfg.Retry.Min, cfg.Retry.Max),
	)
}

// ProvideMarketDataClient creates the Polygon-backed market data client.
func ProvideMarketDataClient(cfg *config.Config, policy retry.Policy, l *logger.Logger, m repository.Metrics) dsvc.MarketData {
	httpClient := xhttp.NewClient(
		xhttp.WithTimeout(cfg.MarketData.Timeout),
		xhttp.WithBearerToken(cfg.MarketData.APIKey),
	)
	api := upstream.New(errs.ServiceMarketData, httpClient,
		upstream.WithPolicy(policy),
		upstream.WithLogger(l),
		upstream.WithMetrics(m),
	)
	return marketdata.New(api,
		marketdata.WithBaseURL(cfg.MarketData.BaseURL),
		marketdata.WithRateLimit(cfg.MarketData.RateLimit),
		marketdata.WithLogger(l),
	)
}

// ProvideCompletionClient creates the OpenAI-backed completion client.
func ProvideCompletionClient(cfg *config.Config, policy retry.Policy, l *logger.Logger, m repository.Metrics) dsvc.Completion {
	httpClient := xhttp.NewClient(
		xhttp.WithTimeout(cfg.Completion.Timeout),
		xhttp.WithBearerToken(cfg.Completion.APIKey),
	)
	api := upstream.New(errs.ServiceCompletion, httpClient,
		upstream.WithPolicy(policy),
		upstream.WithLogger(l),
		upstream.WithMetrics(m),
	)
	return completion.New(api,
		completion.WithBaseURL(cfg.Completion.BaseURL),
		completion.WithModel(cfg.Completion.Model, cfg.Completion.MaxTokens, cfg.Completion.Temperature),
		completion.WithLogger(l),
	)
}

// ProvideCacheStore connects to Redis or falls back to memory.
func ProvideCacheStore(cfg *config.Config, l *logger.Logger, m repository.Metrics) *icache.Store {
	return icache.NewStore(icache.Config{
		RedisURL: cfg.Cache.RedisURL,
		Prefix:   cfg.Cache.Prefix,
		TTL:      cfg.Cache.TTL,
	}, l, m)
}

// ProvideCache exposes the store through the use-case interface.
func ProvideCache(s *icache.Store) repository.Cache {
	return s
}

// ProvideEventPublisher publishes prediction events to Kafka when brokers are
// configured and discards them otherwise.
func ProvideEventPublisher(cfg *config.Config, l *logger.Logger) (repository.EventPublisher, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		l.Info("no kafka brokers configured, prediction events are discarded")
		return internalrepo.NoopEventPublisher{}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithTopic(cfg.Kafka.Topic),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Async, func(err error, count int) {
			l.Warn("async prediction event write failed", logger.Int("messages", count), logger.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	l.Info("kafka producer ready", logger.Strings("brokers", cfg.Kafka.Brokers), logger.String("topic", producer.Topic()))
	return internalrepo.NewKafkaEventPublisher(producer, l), nil
}

func ProvidePredictor(
	cfg *config.Config,
	market dsvc.MarketData,
	comp dsvc.Completion,
	publisher repository.EventPublisher,
	m repository.Metrics,
	l *logger.Logger,
) *usecase.Predictor {
	return usecase.NewPredictor(market, comp, publisher, m, l, cfg.Completion.Model)
}

func ProvideAnalyzer(market dsvc.MarketData, comp dsvc.Completion, cache repository.Cache, l *logger.Logger) *usecase.Analyzer {
	return usecase.NewAnalyzer(market, comp, cache, l)
}

func ProvideHealth(cfg *config.Config, market dsvc.MarketData, comp dsvc.Completion, l *logger.Logger) *usecase.Health {
	return usecase.NewHealth(market, comp, l, cfg.Version, cfg.ProjectName)
}

func ProvidePredictionsHandler(cfg *config.Config, l *logger.Logger, p *usecase.Predictor) *api.PredictionsHandler {
	return api.NewPredictionsHandler(l, cfg.APIPrefix, p)
}

func ProvideAnalysisHandler(cfg *config.Config, l *logger.Logger, a *usecase.Analyzer) *api.AnalysisHandler {
	return api.NewAnalysisHandler(l, cfg.APIPrefix, a, cfg.Server.CORSOrigins)
}

func ProvideHealthHandler(cfg *config.Config, h *usecase.Health) *api.HealthHandler {
	return api.NewHealthHandler(cfg.APIPrefix, cfg.Version, h)
}

// ProvideHTTPServer assembles the echo server with every handler mounted.
func ProvideHTTPServer(
	cfg *config.Config,
	l *logger.Logger,
	m repository.Metrics,
	predictions *api.PredictionsHandler,
	analysis *api.AnalysisHandler,
	health *api.HealthHandler,
) *xhttp.Server {
	var mw []echo.MiddlewareFunc
	if cfg.RateLimit.Enabled {
		lim := ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		mw = append(mw, middleware.RateLimit(lim, api.RateLimited(l, m), cfg.Metrics.Path))
	}
	mw = append(mw, middleware.APIKey(cfg.Security.APIKeyHeader, middleware.AllowAll))

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}

	return xhttp.NewServer(
		[]xhttp.Handler{health, predictions, analysis},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins),
		xhttp.WithMetrics(metricsPath, cfg.Metrics.SlowThreshold, nil, nil),
		xhttp.WithMiddleware(mw...),
		xhttp.WithLogger(l),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	httpServer *xhttp.Server,
	cache *icache.Store,
	publisher repository.EventPublisher,
) *server.App {
	return server.New(cfg, l, httpServer, cache, publisher)
}
