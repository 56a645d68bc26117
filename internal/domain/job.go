package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxRetries bounds processing attempts when no limit is configured
const DefaultMaxRetries = 3

// Job is a document transformation request and its processing state
type Job struct {
	ID           uuid.UUID
	Operation    Operation
	Status       Status
	InputPaths   []string
	OutputPath   string
	RetryCount   int
	MaxRetries   int
	ErrorMessage string
	Params       Params
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewJob builds a CREATED job after validating its operation, inputs and parameters
func NewJob(id uuid.UUID, op Operation, inputPaths []string, params Params, maxRetries int) (*Job, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOperation, op)
	}
	if len(inputPaths) == 0 {
		return nil, ErrNoFiles
	}
	if err := params.ValidateFor(op); err != nil {
		return nil, err
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	return &Job{
		ID:         id,
		Operation:  op,
		Status:     StatusCreated,
		InputPaths: inputPaths,
		MaxRetries: maxRetries,
		Params:     params,
	}, nil
}

// PrimaryInputPath returns the first staged input
func (j *Job) PrimaryInputPath() string {
	if len(j.InputPaths) == 0 {
		return ""
	}
	return j.InputPaths[0]
}

// MarkProcessing moves the job into PROCESSING
func (j *Job) MarkProcessing() error {
	return j.transition(StatusProcessing)
}

// Complete records the output and moves the job into COMPLETED
func (j *Job) Complete(outputPath string) error {
	if outputPath == "" {
		return fmt.Errorf("%w: completed job needs an output path", ErrInvalidTransition)
	}
	if err := j.transition(StatusCompleted); err != nil {
		return err
	}
	j.OutputPath = outputPath
	return nil
}

// RecordFailure counts a failed attempt and reports whether the retry budget is exhausted.
// A terminal cause spends the whole remaining budget so the job fails on this attempt.
func (j *Job) RecordFailure(cause error, terminal bool) (bool, error) {
	if j.Status.IsTerminal() {
		return false, fmt.Errorf("%w: job is already %s", ErrInvalidTransition, j.Status)
	}

	j.RetryCount++
	if terminal || j.RetryCount > j.MaxRetries {
		j.RetryCount = j.MaxRetries
	}
	if cause != nil {
		j.ErrorMessage = cause.Error()
	}

	if j.RetryCount < j.MaxRetries {
		return false, nil
	}
	if err := j.transition(StatusFailed); err != nil {
		return false, err
	}
	return true, nil
}

func (j *Job) transition(next Status) error {
	if !j.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, next)
	}
	j.Status = next
	return nil
}
