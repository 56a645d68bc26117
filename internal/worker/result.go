package worker

// Kind classifies how a processed delivery is settled with the broker
type Kind int

const (
	// KindSuccess means the job completed
	KindSuccess Kind = iota
	// KindRetry means the attempt failed and the job has budget left
	KindRetry
	// KindTerminal means the job is FAILED
	KindTerminal
	// KindDiscard means the message referenced no known job
	KindDiscard
	// KindDuplicate means the job was already handled
	KindDuplicate
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindRetry:
		return "retry"
	case KindTerminal:
		return "terminal"
	case KindDiscard:
		return "discard"
	case KindDuplicate:
		return "duplicate"
	}
	return "unknown"
}

// Result is the outcome of processing one job-submitted message
type Result struct {
	Kind       Kind
	OutputPath string
	Err        error

	// DeadLettered is set when a terminal job's body reached the dead-letter queue
	DeadLettered bool
}
