package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobSubmitted announces a committed job to the processor
type JobSubmitted struct {
	JobID            uuid.UUID `json:"job_id"`
	Operation        Operation `json:"operation"`
	PrimaryInputPath *string   `json:"primary_input_path"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewJobSubmitted builds the submission event for job
func NewJobSubmitted(job *Job) JobSubmitted {
	event := JobSubmitted{
		JobID:     job.ID,
		Operation: job.Operation,
		CreatedAt: job.CreatedAt,
	}
	if primary := job.PrimaryInputPath(); primary != "" {
		event.PrimaryInputPath = &primary
	}
	return event
}

// JobStatusEvent is broadcast on every status transition
type JobStatusEvent struct {
	JobID     uuid.UUID `json:"job_id"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobMessage represents a job-submitted delivery from RabbitMQ
type JobMessage struct {
	Event       JobSubmitted
	Body        []byte
	DeliveryTag uint64
	Redelivered bool
}
