package handler

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cuongbtq/pdf-station/internal/domain"
	"github.com/cuongbtq/pdf-station/internal/storage"
	"github.com/cuongbtq/pdf-station/internal/submission"
)

// JobService is the submission side the handlers drive
type JobService interface {
	Submit(ctx context.Context, req submission.Request) (*domain.Job, error)
	GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) (*submission.Page, error)
	Status(ctx context.Context, jobID uuid.UUID) (*domain.JobStatusEvent, error)
	Download(ctx context.Context, jobID uuid.UUID) (*submission.Download, error)
	EstimateSize(originalSize int64, quality int) (int64, error)
}

// HealthChecker is a dependency probed by GET /health
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NamedCheck labels a health checker in the health report
type NamedCheck struct {
	Name    string
	Checker HealthChecker
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger             *slog.Logger
	Service            JobService
	Checks             []NamedCheck
	ServiceName        string
	MaxUploadSize      int64
	CORSAllowedOrigins []string
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger        *slog.Logger
	service       JobService
	maxUploadSize int64
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:        deps.Logger,
		service:       deps.Service,
		maxUploadSize: deps.MaxUploadSize,
	}
}
