package statuscache

import (
	"context"
	"errors"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/pdf-station/internal/domain"
	"github.com/cuongbtq/pdf-station/internal/exchange"
)

// ErrDeliveriesClosed is returned when the broker closes the status consumer
var ErrDeliveriesClosed = errors.New("status delivery channel closed")

// Consumer is the broker side of the subscriber
type Consumer interface {
	Consume(queue, consumerTag string) (<-chan amqp.Delivery, error)
	Cancel(consumerTag string) error
}

// Writer records status events
type Writer interface {
	Set(ctx context.Context, event domain.JobStatusEvent) error
}

// SubscriberConfig holds subscriber configuration
type SubscriberConfig struct {
	Logger      *slog.Logger
	Consumer    Consumer
	Cache       Writer
	Queue       string
	ConsumerTag string
}

// Subscriber mirrors job-status events into the cache
type Subscriber struct {
	logger   *slog.Logger
	consumer Consumer
	cache    Writer
	queue    string
	tag      string
}

// NewSubscriber creates a new status subscriber
func NewSubscriber(cfg *SubscriberConfig) *Subscriber {
	return &Subscriber{
		logger:   cfg.Logger,
		consumer: cfg.Consumer,
		cache:    cfg.Cache,
		queue:    cfg.Queue,
		tag:      cfg.ConsumerTag,
	}
}

// Run consumes status events until ctx is canceled or the broker closes the channel
func (s *Subscriber) Run(ctx context.Context) error {
	deliveries, err := s.consumer.Consume(s.queue, s.tag)
	if err != nil {
		return err
	}

	s.logger.Info("Status subscriber started", slog.String("queue", s.queue))

	defer func() {
		if err := s.consumer.Cancel(s.tag); err != nil {
			s.logger.Warn("Failed to cancel status consumer", slog.Any("error", err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Status subscriber stopped")
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			s.handle(ctx, delivery)
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, delivery amqp.Delivery) {
	event, err := exchange.DecodeStatus(delivery.Body)
	if err != nil {
		s.logger.Error("Failed to decode status message",
			slog.Any("error", err),
			slog.String("body", string(delivery.Body)),
		)
		if nackErr := delivery.Nack(false, false); nackErr != nil {
			s.logger.Error("Failed to NACK malformed status message", slog.Any("error", nackErr))
		}
		return
	}

	// Entries expire with the TTL and the store stays authoritative
	if err := s.cache.Set(ctx, event); err != nil {
		s.logger.Warn("Failed to cache job status",
			slog.String("job_id", event.JobID.String()),
			slog.String("status", event.Status.String()),
			slog.Any("error", err),
		)
	}

	if err := delivery.Ack(false); err != nil {
		s.logger.Error("Failed to ACK status message", slog.Any("error", err))
	}
}
