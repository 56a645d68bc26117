package transform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/cuongbtq/pdf-station/internal/domain"
)

// Merge concatenates the inputs in order into one document
func Merge(ctx context.Context, log *slog.Logger, req Request) error {
	if len(req.Inputs) == 0 {
		return domain.NewTerminalError(fmt.Errorf("%w: merge needs at least one input", domain.ErrInvalidParameters))
	}

	if err := api.MergeCreateFile(req.Inputs, req.OutputPath, false, nil); err != nil {
		return fmt.Errorf("failed to merge %d files: %w", len(req.Inputs), err)
	}

	log.Info("Merged files", slog.Int("inputs", len(req.Inputs)), slog.String("output", req.OutputPath))
	return nil
}
