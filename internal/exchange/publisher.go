package exchange

import (
	"context"

	"github.com/google/uuid"

	"github.com/cuongbtq/pdf-station/internal/domain"
	"github.com/cuongbtq/pdf-station/shared/rabbitmq"
)

// Broker is the transport the publisher writes to
type Broker interface {
	PublishWithRetry(ctx context.Context, msg rabbitmq.Message) error
}

// Publisher emits job events on the exchange
type Publisher struct {
	broker Broker
}

// NewPublisher creates a publisher over broker
func NewPublisher(broker Broker) *Publisher {
	return &Publisher{broker: broker}
}

// Publish sends a pre-encoded body; the job id becomes the AMQP message id
func (p *Publisher) Publish(ctx context.Context, routingKey string, jobID uuid.UUID, body []byte) error {
	return p.broker.PublishWithRetry(ctx, rabbitmq.Message{
		RoutingKey:  routingKey,
		Body:        body,
		ContentType: ContentTypeJSON,
		MessageID:   jobID.String(),
	})
}

// PublishStatus broadcasts the current status of job
func (p *Publisher) PublishStatus(ctx context.Context, job *domain.Job) error {
	body, err := EncodeStatus(domain.JobStatusEvent{
		JobID:     job.ID,
		Status:    job.Status,
		UpdatedAt: job.UpdatedAt,
	})
	if err != nil {
		return err
	}
	return p.Publish(ctx, StatusKey(job.ID), job.ID, body)
}

// PublishDeadLetter forwards the original submitted body unchanged
func (p *Publisher) PublishDeadLetter(ctx context.Context, jobID uuid.UUID, body []byte) error {
	return p.Publish(ctx, DeadLetterKey(jobID), jobID, body)
}
