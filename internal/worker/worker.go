package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/pdf-station/internal/domain"
)

// ErrDeliveriesClosed is returned when the broker closes the consumer channel
var ErrDeliveriesClosed = errors.New("rabbitmq delivery channel closed")

// Consumer is the broker side of the worker
type Consumer interface {
	Consume(queue, consumerTag string) (<-chan amqp.Delivery, error)
	Cancel(consumerTag string) error
}

// JobProcessor handles one decoded job message
type JobProcessor interface {
	Process(ctx context.Context, msg *domain.JobMessage) Result
}

// Config holds worker configuration
type Config struct {
	Logger      *slog.Logger
	Consumer    Consumer
	Processor   JobProcessor
	Queue       string
	WorkerID    string
	Concurrency int
}

// job is a dispatched message and the channel that settles it
type job struct {
	msg *domain.JobMessage
	ack amqp.Acknowledger
}

// Worker consumes job-submitted messages and processes them on a goroutine pool
type Worker struct {
	logger      *slog.Logger
	consumer    Consumer
	processor   JobProcessor
	queue       string
	workerID    string
	concurrency int
	jobsChan    chan *job
	wg          sync.WaitGroup
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Worker{
		logger:      cfg.Logger,
		consumer:    cfg.Consumer,
		processor:   cfg.Processor,
		queue:       cfg.Queue,
		workerID:    cfg.WorkerID,
		concurrency: concurrency,
		jobsChan:    make(chan *job),
	}
}

// Start consumes until ctx is canceled or the broker closes the delivery channel.
// In-flight jobs run to completion before Start returns.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.String("queue", w.queue),
		slog.Int("concurrency", w.concurrency),
	)

	deliveries, err := w.consumer.Consume(w.queue, w.workerID)
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)
	closed := w.startMessageDispatcher(ctx, deliveries)

	if err := w.consumer.Cancel(w.workerID); err != nil {
		w.logger.Warn("Failed to cancel consumer", slog.Any("error", err))
	}

	close(w.jobsChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped", slog.String("worker_id", w.workerID))

	if closed {
		return ErrDeliveriesClosed
	}
	return nil
}
