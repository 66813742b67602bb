package repository

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"StockTracker/internal/domain/models"
	"StockTracker/internal/domain/repository"
	pkgkafka "StockTracker/pkg/kafka"
	applogger "StockTracker/pkg/logger"
)

// KafkaEventPublisher publishes one prices.ingested message per ticker, keyed by ticker.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) PublishIngested(ctx context.Context, events []models.IngestedEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(events))
	for i, e := range events {
		msgs[i] = pkgkafka.Message{Key: []byte(e.Ticker), Value: e}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

// Close is a no-op; the producer is shared with the log collector and closed by its owner.
func (p *KafkaEventPublisher) Close() error {
	return nil
}

// NoopEventPublisher is used when Kafka is disabled.
type NoopEventPublisher struct{}

func (NoopEventPublisher) PublishIngested(context.Context, []models.IngestedEvent) error { return nil }

func (NoopEventPublisher) Close() error { return nil }

// BreakerEventPublisher stops calling the broker after repeated failures so a
// Kafka outage does not add the write timeout to every upload.
type BreakerEventPublisher struct {
	next repository.EventPublisher
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerEventPublisher(next repository.EventPublisher, failures uint32, openFor time.Duration, l *applogger.Logger) *BreakerEventPublisher {
	st := gobreaker.Settings{
		Name:    "event-publisher",
		Timeout: openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("circuit breaker state changed",
				applogger.String("breaker", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()),
			)
		},
	}
	return &BreakerEventPublisher{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

func (p *BreakerEventPublisher) PublishIngested(ctx context.Context, events []models.IngestedEvent) error {
	_, err := p.cb.Execute(func() (interface{}, error) {
		return nil, p.next.PublishIngested(ctx, events)
	})
	return err
}

func (p *BreakerEventPublisher) Close() error {
	return p.next.Close()
}
