package compression

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cuongbtq/pdf-station/internal/pdfdoc"
)

// Report summarises one compression run
type Report struct {
	InputSize          int64
	OutputSize         int64
	ImagesRecompressed int
	ImagesSkipped      int
	ImagesFailed       int
	StreamsCompressed  int
	DuplicatesRemoved  int
}

// Ratio is the output size as a fraction of the input size
func (r *Report) Ratio() float64 {
	if r.InputSize == 0 {
		return 0
	}
	return float64(r.OutputSize) / float64(r.InputSize)
}

// Engine reduces PDF size by re-encoding images, deflating content streams
// and collapsing duplicate images
type Engine struct{}

// NewEngine creates a compression engine
func NewEngine() *Engine {
	return &Engine{}
}

// Compress writes a compressed copy of inputPath to outputPath. quality is in [0,1].
func (e *Engine) Compress(ctx context.Context, log *slog.Logger, inputPath, outputPath string, quality float64) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	in, err := os.Stat(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat input: %w", err)
	}

	doc, err := pdfdoc.Open(inputPath)
	if err != nil {
		return nil, err
	}

	report := e.Optimize(log, doc, quality)
	report.InputSize = in.Size()

	if err := doc.Save(outputPath); err != nil {
		return nil, err
	}

	out, err := os.Stat(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat output: %w", err)
	}
	report.OutputSize = out.Size()

	log.Info("Compression finished",
		slog.String("input_size", formatSize(report.InputSize)),
		slog.String("output_size", formatSize(report.OutputSize)),
		slog.Float64("ratio", report.Ratio()),
		slog.Int("images_recompressed", report.ImagesRecompressed),
		slog.Int("images_skipped", report.ImagesSkipped),
		slog.Int("images_failed", report.ImagesFailed),
		slog.Int("streams_compressed", report.StreamsCompressed),
		slog.Int("duplicates_removed", report.DuplicatesRemoved),
	)

	return report, nil
}

// Optimize runs every phase over doc in order. Per-object failures are logged and skipped.
func (e *Engine) Optimize(log *slog.Logger, doc Document, quality float64) *Report {
	report := &Report{}

	pages, err := doc.Pages()
	if err != nil {
		log.Warn("Failed to list pages, skipping page phases", slog.Any("error", err))
	} else {
		e.recompressImages(log, doc, pages, quality, report)
		e.compressStreams(log, doc, pages, report)
	}

	e.removeDuplicates(log, doc, report)
	return report
}

// EstimateSize predicts the compressed size from the original size and a 0-100 quality
func EstimateSize(originalBytes int64, quality int) int64 {
	return int64(float64(originalBytes) * (float64(quality) / 100) * 0.85)
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
