// Package eventpublisher polls the transactional outbox and delivers events
// to an external sink. Delivery is at-least-once: an event is marked
// published only after the sink accepts it, and consumers are expected to
// dedupe on event id.
package eventpublisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/railledger/internal/domain"
)

// OutboxStore is the slice of the outbox repository the publisher needs.
type OutboxStore interface {
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// Publisher delivers one event to an external system.
type Publisher interface {
	Publish(ctx context.Context, event *domain.OutboxEvent) error
}

// Retrier retries transient store failures.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// EventPublisher is the polling worker.
type EventPublisher struct {
	store     OutboxStore
	publisher Publisher
	retrier   Retrier
	logger    zerolog.Logger
	batchSize int
	interval  time.Duration
	retention time.Duration
}

// Config for EventPublisher.
type Config struct {
	Store     OutboxStore
	Publisher Publisher
	Retrier   Retrier
	Logger    zerolog.Logger
	BatchSize int           // events fetched per poll
	Interval  time.Duration // polling interval
	Retention time.Duration // how long published events are kept; 0 disables pruning
}

// NewEventPublisher creates a new EventPublisher.
func NewEventPublisher(cfg Config) *EventPublisher {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Second
	}

	return &EventPublisher{
		store:     cfg.Store,
		publisher: cfg.Publisher,
		retrier:   cfg.Retrier,
		logger:    cfg.Logger.With().Str("component", "event_publisher").Logger(),
		batchSize: cfg.BatchSize,
		interval:  cfg.Interval,
		retention: cfg.Retention,
	}
}

// Start runs the polling loop until the context is cancelled.
func (ep *EventPublisher) Start(ctx context.Context) error {
	ep.logger.Info().
		Int("batch_size", ep.batchSize).
		Dur("interval", ep.interval).
		Msg("event publisher started")

	ticker := time.NewTicker(ep.interval)
	defer ticker.Stop()

	if err := ep.ProcessOnce(ctx); err != nil {
		ep.logger.Error().Err(err).Msg("error processing events on start")
	}

	for {
		select {
		case <-ctx.Done():
			ep.logger.Info().Msg("event publisher shutting down")
			return ctx.Err()
		case <-ticker.C:
			if err := ep.ProcessOnce(ctx); err != nil {
				ep.logger.Error().Err(err).Msg("error processing events")
			}
		}
	}
}

// ProcessOnce fetches and publishes one batch of unpublished events. One
// event's delivery failure never blocks the rest of the batch; the failed
// event stays unpublished and is retried on the next poll.
func (ep *EventPublisher) ProcessOnce(ctx context.Context) error {
	var events []*domain.OutboxEvent

	err := ep.retry(ctx, func() error {
		var err error
		events, err = ep.store.GetUnpublished(ctx, ep.batchSize)
		return err
	})
	if err != nil {
		return err
	}

	if len(events) == 0 {
		return nil
	}

	ep.logger.Debug().Int("count", len(events)).Msg("processing outbox events")

	for _, event := range events {
		if err := ep.publisher.Publish(ctx, event); err != nil {
			ep.logger.Error().
				Err(err).
				Str("event_id", event.ID).
				Str("event_type", event.EventType).
				Msg("failed to publish event")
			continue
		}

		err := ep.retry(ctx, func() error {
			return ep.store.MarkPublished(ctx, event.ID, time.Now().UTC())
		})
		if err != nil {
			// The event will be re-delivered on the next poll; consumers
			// dedupe on event id.
			ep.logger.Error().
				Err(err).
				Str("event_id", event.ID).
				Msg("failed to mark event as published")
		}
	}

	if ep.retention > 0 {
		cutoff := time.Now().UTC().Add(-ep.retention)
		if err := ep.store.DeletePublished(ctx, cutoff); err != nil {
			ep.logger.Warn().Err(err).Msg("failed to prune published events")
		}
	}

	return nil
}

func (ep *EventPublisher) retry(ctx context.Context, operation func() error) error {
	if ep.retrier == nil {
		return operation()
	}

	return ep.retrier.Retry(ctx, operation)
}

// LogPublisher logs events instead of delivering them. It is the default
// sink when no broker is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event.
func (p *LogPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	p.logger.Info().
		Str("event_id", event.ID).
		Str("event_type", event.EventType).
		Str("aggregate_type", event.AggregateType).
		Str("aggregate_id", event.AggregateID).
		RawJSON("payload", payload).
		Msg("event published")

	return nil
}
