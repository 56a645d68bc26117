package worker

import (
	"context"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/pdf-station/internal/domain"
	"github.com/cuongbtq/pdf-station/internal/exchange"
)

// startMessageDispatcher decodes deliveries and hands them to the worker pool.
// It reports whether it stopped because the delivery channel closed.
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) bool {
	w.logger.Info("Message dispatcher started", slog.String("worker_id", w.workerID))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return false

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return true
			}

			event, err := exchange.DecodeSubmitted(delivery.Body)
			if err != nil {
				w.logger.Error("Failed to decode job message",
					slog.Any("error", err),
					slog.String("body", string(delivery.Body)),
				)
				// Malformed messages are routed to the DLQ by the broker
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK malformed message", slog.Any("error", nackErr))
				}
				continue
			}

			msg := &job{
				msg: &domain.JobMessage{
					Event:       event,
					Body:        delivery.Body,
					DeliveryTag: delivery.DeliveryTag,
					Redelivered: delivery.Redelivered,
				},
				ack: delivery.Acknowledger,
			}

			select {
			case w.jobsChan <- msg:
				w.logger.Debug("Job dispatched to worker pool",
					slog.String("job_id", event.JobID.String()),
					slog.Uint64("delivery_tag", delivery.DeliveryTag),
				)
			case <-ctx.Done():
				w.logger.Info("Message dispatcher stopped while dispatching job")
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown", slog.Any("error", nackErr))
				}
				return false
			}
		}
	}
}
