package worker

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}

	w.logger.Info("Worker pool spawned", slog.Int("worker_count", w.concurrency))
}

// workerLoop processes jobs until jobsChan is closed. A job that has started
// is not interrupted by shutdown.
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	jobCtx := context.WithoutCancel(ctx)

	for j := range w.jobsChan {
		log := w.logger.With(
			slog.String("worker_name", workerName),
			slog.String("job_id", j.msg.Event.JobID.String()),
			slog.Uint64("delivery_tag", j.msg.DeliveryTag),
		)

		result := w.processor.Process(jobCtx, j.msg)
		settle(log, j.ack, j.msg.DeliveryTag, result)
	}

	w.logger.Debug("Worker goroutine stopped", slog.String("worker_name", workerName))
}

// settle translates a processing result into a broker acknowledgement
func settle(log *slog.Logger, ack amqp.Acknowledger, tag uint64, result Result) {
	log = log.With(slog.String("result", result.Kind.String()))

	var err error
	switch {
	case result.Kind == KindRetry:
		err = ack.Nack(tag, false, true)
		log.Info("Message NACKed for redelivery")
	case result.Kind == KindTerminal && !result.DeadLettered:
		err = ack.Nack(tag, false, false)
		log.Info("Message NACKed to broker dead-letter exchange")
	default:
		err = ack.Ack(tag, false)
		log.Debug("Message ACKed")
	}

	if err != nil {
		log.Error("Failed to settle message", slog.Any("error", err))
	}
}
