package staging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/cuongbtq/pdf-station/internal/domain"
)

const pdfMIME = "application/pdf"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Area stages uploads per job and places outputs per operation
type Area struct {
	uploadDir     string
	outputDir     string
	maxUploadSize int64
	logger        *slog.Logger
}

// New creates the staging directories when missing
func New(uploadDir, outputDir string, maxUploadSize int64, logger *slog.Logger) (*Area, error) {
	for _, dir := range []string{uploadDir, outputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create staging directory %s: %w", dir, err)
		}
	}

	return &Area{
		uploadDir:     uploadDir,
		outputDir:     outputDir,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}, nil
}

// MaxUploadSize is the per-file byte limit
func (a *Area) MaxUploadSize() int64 {
	return a.maxUploadSize
}

// SaveInput writes the index-th upload of a job to <upload_dir>/<jobId>/<NN>_<name>.pdf.
// Files over the size limit and non-PDF content are rejected and removed.
func (a *Area) SaveInput(jobID uuid.UUID, index int, name string, r io.Reader) (string, error) {
	dir := filepath.Join(a.uploadDir, jobID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create job upload directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%02d_%s", index, sanitizeName(name)))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}

	written, err := io.Copy(file, io.LimitReader(r, a.maxUploadSize+1))
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}

	if written > a.maxUploadSize {
		os.Remove(path)
		return "", fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrFileTooLarge, name, a.maxUploadSize)
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to detect upload type: %w", err)
	}
	if !mtype.Is(pdfMIME) {
		os.Remove(path)
		return "", fmt.Errorf("%w: %s is %s", domain.ErrUnsupportedMedia, name, mtype.String())
	}

	a.logger.Debug("Upload staged",
		slog.String("job_id", jobID.String()),
		slog.String("path", path),
		slog.Int64("size", written),
	)

	return path, nil
}

// Remove deletes every staged input of a job
func (a *Area) Remove(jobID uuid.UUID) error {
	if err := os.RemoveAll(filepath.Join(a.uploadDir, jobID.String())); err != nil {
		return fmt.Errorf("failed to remove staged inputs: %w", err)
	}
	return nil
}

// OutputPath returns the deterministic output location of job, creating its directory
func (a *Area) OutputPath(job *domain.Job) (string, error) {
	artifact, err := ArtifactFor(job)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(a.outputDir, artifact.Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	return filepath.Join(dir, job.ID.String()+artifact.Suffix), nil
}

// WorkDir returns a fresh scratch directory for multi-file outputs of job
func (a *Area) WorkDir(job *domain.Job) (string, error) {
	dir := filepath.Join(a.outputDir, "work", job.ID.String())
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("failed to reset work directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create work directory: %w", err)
	}
	return dir, nil
}

// Exists reports whether path names a regular file
func Exists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// MissingInputs returns a terminal error naming the first input that is gone
func MissingInputs(paths []string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return domain.NewTerminalError(fmt.Errorf("input file not found: %s", path))
			}
			return fmt.Errorf("failed to stat input %s: %w", path, err)
		}
	}
	return nil
}

func sanitizeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.Trim(unsafeChars.ReplaceAllString(base, "_"), "._")
	if base == "" {
		base = "document"
	}
	return base + ".pdf"
}
