package domain

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a job
type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// ParseStatus converts a raw value into a Status
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case StatusCreated, StatusProcessing, StatusCompleted, StatusFailed:
		return s, nil
	}
	return "", fmt.Errorf("invalid status: %q", raw)
}

// IsTerminal reports whether no further transition is allowed from s
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next is allowed.
// PROCESSING may be re-entered on redelivery; COMPLETED and FAILED are final.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusCreated:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusProcessing || next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}
