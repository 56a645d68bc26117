package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("job not found")

	// ErrNotReady is returned when output is requested before the job completed
	ErrNotReady = errors.New("job output not ready")

	// ErrOutputMissing is returned when a completed job's output file is gone
	ErrOutputMissing = errors.New("job output file missing")

	// ErrInvalidOperation is returned for operations outside the supported set
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrInvalidParameters is returned when operation parameters fail validation
	ErrInvalidParameters = errors.New("invalid job parameters")

	// ErrInvalidTransition is returned when a status change breaks the lifecycle
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNoFiles is returned when a submission carries no input files
	ErrNoFiles = errors.New("no files provided")

	// ErrFileTooLarge is returned when an upload exceeds the configured limit
	ErrFileTooLarge = errors.New("file too large")

	// ErrUnsupportedMedia is returned when an upload is not a PDF
	ErrUnsupportedMedia = errors.New("unsupported media type")
)

// TerminalError wraps processing errors that retrying cannot fix
type TerminalError struct {
	Err error
}

func (e *TerminalError) Error() string {
	return "terminal error: " + e.Err.Error()
}

func (e *TerminalError) Unwrap() error {
	return e.Err
}

// NewTerminalError creates a new terminal error
func NewTerminalError(err error) error {
	return &TerminalError{Err: err}
}

// IsTerminal reports whether err must fail the job without consuming more retries.
// Parameter and operation validation errors are always terminal.
func IsTerminal(err error) bool {
	var terminalErr *TerminalError
	if errors.As(err, &terminalErr) {
		return true
	}
	return errors.Is(err, ErrInvalidParameters) || errors.Is(err, ErrInvalidOperation)
}
