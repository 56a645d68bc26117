package exchange

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cuongbtq/pdf-station/internal/domain"
)

// ErrMalformedMessage is returned for bodies that cannot describe a job
var ErrMalformedMessage = errors.New("malformed message")

// EncodeSubmitted renders the job-submitted payload
func EncodeSubmitted(event domain.JobSubmitted) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job submitted event: %w", err)
	}
	return body, nil
}

// DecodeSubmitted parses a job-submitted payload
func DecodeSubmitted(body []byte) (domain.JobSubmitted, error) {
	var event domain.JobSubmitted
	if err := json.Unmarshal(body, &event); err != nil {
		return domain.JobSubmitted{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if event.JobID == uuid.Nil {
		return domain.JobSubmitted{}, fmt.Errorf("%w: missing job_id", ErrMalformedMessage)
	}
	return event, nil
}

// EncodeStatus renders the job-status payload
func EncodeStatus(event domain.JobStatusEvent) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job status event: %w", err)
	}
	return body, nil
}

// DecodeStatus parses a job-status payload
func DecodeStatus(body []byte) (domain.JobStatusEvent, error) {
	var event domain.JobStatusEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return domain.JobStatusEvent{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if event.JobID == uuid.Nil {
		return domain.JobStatusEvent{}, fmt.Errorf("%w: missing job_id", ErrMalformedMessage)
	}
	if _, err := domain.ParseStatus(string(event.Status)); err != nil {
		return domain.JobStatusEvent{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return event, nil
}
