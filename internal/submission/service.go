package submission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cuongbtq/pdf-station/internal/compression"
	"github.com/cuongbtq/pdf-station/internal/domain"
	"github.com/cuongbtq/pdf-station/internal/exchange"
	"github.com/cuongbtq/pdf-station/internal/staging"
	"github.com/cuongbtq/pdf-station/internal/storage"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Store is the job persistence used by the service
type Store interface {
	CreateJob(ctx context.Context, job *domain.Job, outbox storage.OutboxFunc) error
	GetJobByID(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]*domain.Job, error)
}

// Stager places uploads in the staging area
type Stager interface {
	SaveInput(jobID uuid.UUID, index int, name string, r io.Reader) (string, error)
	Remove(jobID uuid.UUID) error
}

// StatusCache holds the latest broadcast status per job
type StatusCache interface {
	Get(ctx context.Context, jobID uuid.UUID) (*domain.JobStatusEvent, error)
	Set(ctx context.Context, event domain.JobStatusEvent) error
}

// Notifier is woken after a job commits so its outbox row goes out promptly
type Notifier interface {
	Notify()
}

// Config holds service dependencies
type Config struct {
	Logger     *slog.Logger
	Store      Store
	Stager     Stager
	Cache      StatusCache
	Notifier   Notifier
	MaxRetries int
}

// Service accepts job submissions and answers job queries
type Service struct {
	logger     *slog.Logger
	store      Store
	stager     Stager
	cache      StatusCache
	notifier   Notifier
	maxRetries int
}

// NewService creates a new submission service
func NewService(cfg *Config) *Service {
	return &Service{
		logger:     cfg.Logger,
		store:      cfg.Store,
		stager:     cfg.Stager,
		cache:      cfg.Cache,
		notifier:   cfg.Notifier,
		maxRetries: cfg.MaxRetries,
	}
}

// Upload is one submitted file
type Upload struct {
	Name    string
	Content io.Reader
}

// Request is a job submission
type Request struct {
	Operation string
	Uploads   []Upload
	Params    domain.Params
}

// Submit validates and stages the uploads, then persists the job together with its
// submitted event. The event is published by the relay once the transaction has committed.
func (s *Service) Submit(ctx context.Context, req Request) (*domain.Job, error) {
	op, err := domain.ParseOperation(req.Operation)
	if err != nil {
		return nil, err
	}
	if err := checkUploads(op, len(req.Uploads)); err != nil {
		return nil, err
	}
	if err := req.Params.ValidateFor(op); err != nil {
		return nil, err
	}

	jobID := uuid.New()
	log := s.logger.With(
		slog.String("job_id", jobID.String()),
		slog.String("operation", op.String()),
	)

	paths := make([]string, 0, len(req.Uploads))
	for i, upload := range req.Uploads {
		path, err := s.stager.SaveInput(jobID, i+1, upload.Name, upload.Content)
		if err != nil {
			s.discard(log, jobID)
			return nil, err
		}
		paths = append(paths, path)
	}

	job, err := domain.NewJob(jobID, op, paths, req.Params, s.maxRetries)
	if err != nil {
		s.discard(log, jobID)
		return nil, err
	}

	if err := s.store.CreateJob(ctx, job, submittedOutbox); err != nil {
		s.discard(log, jobID)
		return nil, err
	}

	log.Info("Job submitted", slog.Int("inputs", len(paths)))

	if s.notifier != nil {
		s.notifier.Notify()
	}

	return job, nil
}

// submittedOutbox enqueues the job-submitted event carrying the stored creation time
func submittedOutbox(job *domain.Job) ([]storage.OutboxMessage, error) {
	payload, err := exchange.EncodeSubmitted(domain.NewJobSubmitted(job))
	if err != nil {
		return nil, err
	}
	return []storage.OutboxMessage{{
		JobID:      job.ID,
		RoutingKey: exchange.SubmittedKey(job.ID),
		Payload:    payload,
	}}, nil
}

func checkUploads(op domain.Operation, count int) error {
	if count == 0 {
		return domain.ErrNoFiles
	}
	if op == domain.OperationMerge {
		if count < 2 {
			return fmt.Errorf("%w: merge requires at least two files", domain.ErrInvalidParameters)
		}
		return nil
	}
	if count != 1 {
		return fmt.Errorf("%w: %s accepts exactly one file", domain.ErrInvalidParameters, op)
	}
	return nil
}

func (s *Service) discard(log *slog.Logger, jobID uuid.UUID) {
	if err := s.stager.Remove(jobID); err != nil {
		log.Warn("Failed to remove staged inputs", slog.Any("error", err))
	}
}

// GetJob returns a job by id
func (s *Service) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	return s.store.GetJobByID(ctx, jobID)
}

// Page is one page of ListJobs results
type Page struct {
	Jobs []*domain.Job
	Next *storage.JobCursor
}

// ListJobs returns jobs newest first. Next is set when another page exists.
func (s *Service) ListJobs(ctx context.Context, filter storage.JobFilter) (*Page, error) {
	filter.PageSize = clampPageSize(filter.PageSize)

	jobs, err := s.store.ListJobs(ctx, filter)
	if err != nil {
		return nil, err
	}

	page := &Page{Jobs: jobs}
	if len(jobs) > filter.PageSize {
		page.Jobs = jobs[:filter.PageSize]
		last := page.Jobs[len(page.Jobs)-1]
		page.Next = &storage.JobCursor{CreatedAt: last.CreatedAt, JobID: last.ID}
	}

	return page, nil
}

func clampPageSize(size int) int {
	switch {
	case size <= 0:
		return DefaultPageSize
	case size > MaxPageSize:
		return MaxPageSize
	}
	return size
}

// Status returns the latest known status, served from the cache when possible
func (s *Service) Status(ctx context.Context, jobID uuid.UUID) (*domain.JobStatusEvent, error) {
	if s.cache != nil {
		event, err := s.cache.Get(ctx, jobID)
		if err != nil {
			s.logger.Warn("Status cache lookup failed",
				slog.String("job_id", jobID.String()),
				slog.Any("error", err),
			)
		} else if event != nil {
			return event, nil
		}
	}

	job, err := s.store.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	event := &domain.JobStatusEvent{JobID: job.ID, Status: job.Status, UpdatedAt: job.UpdatedAt}
	if s.cache != nil {
		if err := s.cache.Set(ctx, *event); err != nil {
			s.logger.Warn("Failed to backfill status cache",
				slog.String("job_id", jobID.String()),
				slog.Any("error", err),
			)
		}
	}

	return event, nil
}

// Download describes a completed job's output file
type Download struct {
	Path        string
	Name        string
	ContentType string
}

// Download resolves the output of a completed job
func (s *Service) Download(ctx context.Context, jobID uuid.UUID) (*Download, error) {
	job, err := s.store.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != domain.StatusCompleted {
		return nil, fmt.Errorf("%w: job is %s", domain.ErrNotReady, job.Status)
	}
	if job.OutputPath == "" || !staging.Exists(job.OutputPath) {
		return nil, fmt.Errorf("%w: %s", domain.ErrOutputMissing, job.OutputPath)
	}

	artifact, err := staging.ArtifactFor(job)
	if err != nil {
		var terminalErr *domain.TerminalError
		if errors.As(err, &terminalErr) {
			return nil, terminalErr.Err
		}
		return nil, err
	}

	return &Download{
		Path:        job.OutputPath,
		Name:        artifact.DownloadName(job),
		ContentType: artifact.ContentType,
	}, nil
}

// EstimateSize predicts the compressed size of a document at quality 0-100
func (s *Service) EstimateSize(originalSize int64, quality int) (int64, error) {
	if originalSize <= 0 {
		return 0, fmt.Errorf("%w: original size must be positive", domain.ErrInvalidParameters)
	}
	if quality < 0 || quality > 100 {
		return 0, fmt.Errorf("%w: quality must be between 0 and 100", domain.ErrInvalidParameters)
	}
	return compression.EstimateSize(originalSize, quality), nil
}
