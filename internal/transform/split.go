package transform

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/cuongbtq/pdf-station/internal/domain"
)

// part is one output file of a split and the pages it collects
type part struct {
	name  string
	pages []string
}

// Split writes the selected parts of the input into a zip archive
func Split(ctx context.Context, log *slog.Logger, req Request) error {
	input, err := singleInput(req)
	if err != nil {
		return err
	}
	if req.Params.Split == nil {
		return domain.NewTerminalError(fmt.Errorf("%w: split parameters are required", domain.ErrInvalidParameters))
	}
	if req.WorkDir == "" {
		return fmt.Errorf("split needs a work directory")
	}

	pageCount, err := api.PageCountFile(input)
	if err != nil {
		return fmt.Errorf("failed to count pages: %w", err)
	}

	parts, err := planParts(req.Params.Split, pageCount)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return domain.NewTerminalError(fmt.Errorf("%w: no selected page exists in a %d page document", domain.ErrInvalidParameters, pageCount))
	}

	paths := make([]string, 0, len(parts))
	for _, p := range parts {
		if err := ctx.Err(); err != nil {
			return err
		}

		path := filepath.Join(req.WorkDir, p.name)
		if err := api.CollectFile(input, path, p.pages, nil); err != nil {
			return fmt.Errorf("failed to write %s: %w", p.name, err)
		}
		paths = append(paths, path)
	}

	if err := createZip(req.OutputPath, paths); err != nil {
		return err
	}

	log.Info("Split file", slog.Int("pages", pageCount), slog.Int("parts", len(parts)), slog.String("output", req.OutputPath))
	return nil
}

// planParts resolves split parameters against the page count
func planParts(params *domain.SplitParams, pageCount int) ([]part, error) {
	switch params.Type {
	case domain.SplitPages:
		ranges, err := domain.ParsePageRanges(params.Ranges)
		if err != nil {
			return nil, domain.NewTerminalError(err)
		}
		return pageParts(ranges, pageCount), nil
	case domain.SplitInterval:
		if params.Interval < 1 {
			return nil, domain.NewTerminalError(fmt.Errorf("%w: interval must be positive", domain.ErrInvalidParameters))
		}
		return intervalParts(params.Interval, pageCount), nil
	case domain.SplitAll:
		return intervalParts(1, pageCount), nil
	}

	return nil, domain.NewTerminalError(fmt.Errorf("%w: unsupported split type %q", domain.ErrInvalidParameters, params.Type))
}

// pageParts emits one single-page part per selected page. Pages past the end are skipped.
func pageParts(ranges []domain.PageRange, pageCount int) []part {
	seen := make(map[int]bool)
	var parts []part

	for _, r := range ranges {
		for page := r.From; page <= r.To && page <= pageCount; page++ {
			if seen[page] {
				continue
			}
			seen[page] = true
			parts = append(parts, part{
				name:  fmt.Sprintf("page_%d.pdf", page),
				pages: []string{strconv.Itoa(page)},
			})
		}
	}
	return parts
}

func intervalParts(interval, pageCount int) []part {
	var parts []part
	for start := 1; start <= pageCount; start += interval {
		end := min(start+interval-1, pageCount)

		pages := make([]string, 0, end-start+1)
		for page := start; page <= end; page++ {
			pages = append(pages, strconv.Itoa(page))
		}
		parts = append(parts, part{
			name:  fmt.Sprintf("part_%d.pdf", len(parts)+1),
			pages: pages,
		})
	}
	return parts
}

// createZip stores files in the given order
func createZip(outputPath string, files []string) error {
	outFile, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create zip file: %w", err)
	}
	defer outFile.Close()

	zipWriter := zip.NewWriter(outFile)

	for _, path := range files {
		if err := addZipEntry(zipWriter, path); err != nil {
			zipWriter.Close()
			return err
		}
	}

	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish zip file: %w", err)
	}
	return nil
}

func addZipEntry(zipWriter *zip.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open zip input: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat zip input: %w", err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to build zip header: %w", err)
	}
	header.Name = filepath.Base(path)
	header.Method = zip.Deflate

	writer, err := zipWriter.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to write zip header: %w", err)
	}
	if _, err := io.Copy(writer, file); err != nil {
		return fmt.Errorf("failed to write zip entry: %w", err)
	}
	return nil
}
