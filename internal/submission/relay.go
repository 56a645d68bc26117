package submission

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/pdf-station/internal/storage"
)

// OutboxStore hands out unpublished outbox rows
type OutboxStore interface {
	RelayOutbox(ctx context.Context, limit int, publish func(ctx context.Context, msg storage.OutboxMessage) error) (int, error)
}

// MessagePublisher writes a pre-encoded event to the exchange
type MessagePublisher interface {
	Publish(ctx context.Context, routingKey string, jobID uuid.UUID, body []byte) error
}

// RelayConfig holds relay configuration
type RelayConfig struct {
	Logger    *slog.Logger
	Store     OutboxStore
	Publisher MessagePublisher
	Interval  time.Duration
	BatchSize int
}

// Relay publishes committed outbox rows to the exchange
type Relay struct {
	logger    *slog.Logger
	store     OutboxStore
	publisher MessagePublisher
	interval  time.Duration
	batchSize int
	wake      chan struct{}
}

// NewRelay creates a new outbox relay
func NewRelay(cfg *RelayConfig) *Relay {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	return &Relay{
		logger:    cfg.Logger,
		store:     cfg.Store,
		publisher: cfg.Publisher,
		interval:  interval,
		batchSize: batchSize,
		wake:      make(chan struct{}, 1),
	}
}

// Notify triggers a flush without waiting for the next tick
func (r *Relay) Notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run flushes the outbox on every tick or notification until ctx is canceled
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("Starting outbox relay",
		slog.Duration("interval", r.interval),
		slog.Int("batch_size", r.batchSize),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Outbox relay stopped")
			return nil
		case <-ticker.C:
		case <-r.wake:
		}

		if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn("Outbox relay failed", slog.Any("error", err))
		}
	}
}

// Flush publishes pending rows batch by batch until the outbox is drained
func (r *Relay) Flush(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := r.store.RelayOutbox(ctx, r.batchSize, r.publish)
		total += n
		if err != nil {
			return total, err
		}
		if n < r.batchSize {
			return total, nil
		}
	}
}

func (r *Relay) publish(ctx context.Context, msg storage.OutboxMessage) error {
	return r.publisher.Publish(ctx, msg.RoutingKey, msg.JobID, []byte(msg.Payload))
}
