package domain

import (
	"fmt"
	"strings"
)

// Operation is the transformation a job performs
type Operation string

const (
	OperationCompress  Operation = "COMPRESS"
	OperationMerge     Operation = "MERGE"
	OperationSplit     Operation = "SPLIT"
	OperationProtect   Operation = "PROTECT"
	OperationPDFToWord Operation = "PDF_TO_WORD"
)

// Operations lists every supported operation
var Operations = []Operation{
	OperationCompress,
	OperationMerge,
	OperationSplit,
	OperationProtect,
	OperationPDFToWord,
}

// ParseOperation converts a raw value into an Operation.
// Values outside the closed set are rejected with ErrInvalidOperation.
func ParseOperation(raw string) (Operation, error) {
	op := Operation(strings.ToUpper(strings.TrimSpace(raw)))
	if !op.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidOperation, raw)
	}
	return op, nil
}

// Valid reports whether o is one of the supported operations
func (o Operation) Valid() bool {
	switch o {
	case OperationCompress, OperationMerge, OperationSplit, OperationProtect, OperationPDFToWord:
		return true
	}
	return false
}

func (o Operation) String() string {
	return string(o)
}
