package exchange

import (
	"github.com/google/uuid"

	"github.com/cuongbtq/pdf-station/shared/rabbitmq"
)

// Routing key prefixes of the three event channels; the job id is appended
const (
	SubmittedPrefix  = "job.submitted"
	StatusPrefix     = "job.status"
	DeadLetterPrefix = "job.dead-letter"

	// RejectedKey routes messages the broker dead-letters on Nack without requeue
	RejectedKey = DeadLetterPrefix + ".rejected"

	ContentTypeJSON = "application/json"
)

// Queues names the queue behind each channel
type Queues struct {
	Submitted  string
	Status     string
	DeadLetter string
}

// Topology declares the three durable queues. Rejected submissions are
// dead-lettered by the broker into the dead-letter channel.
func Topology(exchangeName string, queues Queues) []rabbitmq.QueueConfig {
	return []rabbitmq.QueueConfig{
		{
			Name:                 queues.Submitted,
			BindingKey:           SubmittedPrefix + ".#",
			Durable:              true,
			DeadLetterExchange:   exchangeName,
			DeadLetterRoutingKey: RejectedKey,
		},
		{
			Name:       queues.Status,
			BindingKey: StatusPrefix + ".#",
			Durable:    true,
		},
		{
			Name:       queues.DeadLetter,
			BindingKey: DeadLetterPrefix + ".#",
			Durable:    true,
		},
	}
}

// SubmittedKey routes a job-submitted event
func SubmittedKey(jobID uuid.UUID) string { return SubmittedPrefix + "." + jobID.String() }

// StatusKey routes a job-status event
func StatusKey(jobID uuid.UUID) string { return StatusPrefix + "." + jobID.String() }

// DeadLetterKey routes a dead-letter entry
func DeadLetterKey(jobID uuid.UUID) string { return DeadLetterPrefix + "." + jobID.String() }
