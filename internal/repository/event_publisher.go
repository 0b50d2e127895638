package repository

import (
	"context"

	"StockForecaster/internal/domain/models"
	drepo "StockForecaster/internal/domain/repository"
	"StockForecaster/pkg/logger"
)

type keyedPublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
	Close() error
}

// KafkaEventPublisher emits prediction events keyed by ticker.
type KafkaEventPublisher struct {
	producer keyedPublisher
	log      *logger.Logger
}

var _ drepo.EventPublisher = (*KafkaEventPublisher)(nil)

func NewKafkaEventPublisher(producer keyedPublisher, log *logger.Logger) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, log: log}
}

func (p *KafkaEventPublisher) PublishPrediction(ctx context.Context, ev *models.PredictionEvent) error {
	if err := p.producer.Publish(ctx, ev.Prediction.Ticker, ev); err != nil {
		return err
	}
	p.log.Debug("prediction event published", logger.String("ticker", ev.Prediction.Ticker))
	return nil
}

func (p *KafkaEventPublisher) Close() error { return p.producer.Close() }

// NoopEventPublisher drops events. Used when no brokers are configured.
type NoopEventPublisher struct{}

func (NoopEventPublisher) PublishPrediction(context.Context, *models.PredictionEvent) error {
	return nil
}

func (NoopEventPublisher) Close() error { return nil }
