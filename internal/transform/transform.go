// Package transform implements the page-level PDF operations: merge, split,
// password protection and text conversion to Word.
package transform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/pdf-station/internal/domain"
)

// Request is the input of one transformation
type Request struct {
	Inputs     []string
	Params     domain.Params
	OutputPath string

	// WorkDir holds intermediate files, split parts for example
	WorkDir string
}

// Adapter runs one operation
type Adapter func(ctx context.Context, log *slog.Logger, req Request) error

// Transformer dispatches non-compression operations to their adapter
type Transformer struct {
	adapters map[domain.Operation]Adapter
}

// NewTransformer creates a transformer with every adapter registered
func NewTransformer() *Transformer {
	return &Transformer{
		adapters: map[domain.Operation]Adapter{
			domain.OperationMerge:     Merge,
			domain.OperationSplit:     Split,
			domain.OperationProtect:   Protect,
			domain.OperationPDFToWord: ToWord,
		},
	}
}

// Transform runs the adapter registered for op
func (t *Transformer) Transform(ctx context.Context, log *slog.Logger, op domain.Operation, req Request) error {
	adapter, ok := t.adapters[op]
	if !ok {
		return domain.NewTerminalError(fmt.Errorf("%w: no adapter for %q", domain.ErrInvalidOperation, op))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return adapter(ctx, log, req)
}

func singleInput(req Request) (string, error) {
	if len(req.Inputs) != 1 {
		return "", domain.NewTerminalError(fmt.Errorf("%w: expected one input, got %d", domain.ErrInvalidParameters, len(req.Inputs)))
	}
	return req.Inputs[0], nil
}
