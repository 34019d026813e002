package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/rx-scheduler/internal/model"
	"github.com/jwalitptl/rx-scheduler/internal/repository"
	"github.com/jwalitptl/rx-scheduler/pkg/logger"
	"github.com/jwalitptl/rx-scheduler/pkg/messaging"
	"github.com/jwalitptl/rx-scheduler/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize int
	// PollInterval is the delay between batches.
	PollInterval time.Duration
	// RetryAttempts and RetryDelay bound in-process publish attempts.
	RetryAttempts int
	RetryDelay    time.Duration
	// MaxRetries is how many batches may retry an event before it is failed.
	MaxRetries int
}

// Handler reacts to an event after it was relayed. Handler errors are
// logged and do not affect the event status.
type Handler interface {
	Handle(ctx context.Context, event *model.OutboxEvent) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event *model.OutboxEvent) error

func (f HandlerFunc) Handle(ctx context.Context, event *model.OutboxEvent) error {
	return f(ctx, event)
}

type OutboxProcessor struct {
	tx       repository.TxManager
	repo     repository.OutboxRepository
	broker   messaging.Broker
	handlers []Handler
	config   OutboxProcessorConfig
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewOutboxProcessor(
	tx repository.TxManager,
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	handlers ...Handler,
) *OutboxProcessor {
	// Zero values are rejected rather than defaulted.
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		panic("MaxRetries must be greater than 0")
	}

	return &OutboxProcessor{
		tx:       tx,
		repo:     repo,
		broker:   broker,
		handlers: handlers,
		config:   config,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// ProcessBatch relays one batch of due events and returns how many were
// published. Rows stay locked for the duration of the batch so concurrent
// workers skip them. Handlers run only once the batch has committed.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	var published []*model.OutboxEvent
	err := p.tx.WithinTx(ctx, func(ctx context.Context) error {
		events, err := p.repo.GetPendingEventsWithLock(ctx, p.config.BatchSize)
		p.metrics.ObserveDB("get_pending_events", err)
		if err != nil {
			return fmt.Errorf("failed to get pending events: %w", err)
		}

		for _, event := range events {
			ok, err := p.processEvent(ctx, event)
			if err != nil {
				return err
			}
			if ok {
				published = append(published, event)
			}
		}
		return nil
	})
	if err != nil {
		return len(published), err
	}

	for _, event := range published {
		p.runHandlers(ctx, event)
	}
	return len(published), nil
}

// processEvent publishes one event and records the outcome. The returned
// error is reserved for status updates that could not be stored.
func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) (bool, error) {
	err := p.publish(ctx, event)
	if err != nil {
		return false, p.recordFailure(ctx, event, err)
	}

	p.metrics.OutboxEventsProcessed.Inc()
	err = p.repo.UpdateStatus(ctx, event.ID, model.OutboxStatusProcessed, nil, nil)
	p.metrics.ObserveDB("update_event_status", err)
	if err != nil {
		return false, fmt.Errorf("failed to mark event %s processed: %w", event.ID, err)
	}
	return true, nil
}

func (p *OutboxProcessor) runHandlers(ctx context.Context, event *model.OutboxEvent) {
	for _, h := range p.handlers {
		if err := h.Handle(ctx, event); err != nil {
			p.logger.Error(err, "Event handler failed",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
		}
	}
}

func (p *OutboxProcessor) publish(ctx context.Context, event *model.OutboxEvent) error {
	data, err := json.Marshal(messaging.Envelope{
		ID:          event.ID.String(),
		Type:        event.EventType,
		AggregateID: event.AggregateID.String(),
		OccurredAt:  event.CreatedAt.UTC().Format(time.RFC3339),
		Payload:     event.Payload,
	})
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return retry(ctx, p.config.RetryAttempts, p.config.RetryDelay, func() error {
		return p.broker.Publish(ctx, event.EventType, data)
	})
}

// recordFailure schedules the event for a later batch with exponential
// backoff, or fails it once MaxRetries is used up.
func (p *OutboxProcessor) recordFailure(ctx context.Context, event *model.OutboxEvent, cause error) error {
	errStr := cause.Error()
	p.logger.Error(cause, "Failed to publish event",
		"event_id", event.ID.String(),
		"event_type", event.EventType,
		"retry_count", event.RetryCount)

	var err error
	if event.RetryCount+1 >= p.config.MaxRetries {
		p.metrics.OutboxEventsFailed.Inc()
		err = p.repo.UpdateStatus(ctx, event.ID, model.OutboxStatusFailed, &errStr, nil)
	} else {
		p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
		retryAt := p.now().Add(p.config.RetryDelay << uint(event.RetryCount))
		err = p.repo.UpdateStatus(ctx, event.ID, model.OutboxStatusRetry, &errStr, &retryAt)
	}
	p.metrics.ObserveDB("update_event_status", err)
	if err != nil {
		return fmt.Errorf("failed to record failure of event %s: %w", event.ID, err)
	}
	return nil
}

// retry calls fn up to attempts times, sleeping delay between calls.
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}
