package repository

import (
	"context"
	"time"

	"StockForecaster/internal/domain/models"
)

// Cache is best-effort: Get reports a miss on any failure, Set and Delete never fail.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl ...time.Duration)
	Delete(ctx context.Context, key string)
	MakeKey(prefix string, parts ...string) string
	Backend() string
}

type EventPublisher interface {
	PublishPrediction(ctx context.Context, ev *models.PredictionEvent) error
	Close() error
}

type Metrics interface {
	RecordUpstreamAttempt(service, outcome string)
	RecordUpstreamLatency(service string, seconds float64)
	RecordPrediction(outcome string)
	RecordCache(backend, result string)
	RecordRateLimited(route string)
	RecordEventPublished(outcome string)
}
