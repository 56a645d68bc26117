package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/pdf-station/internal/compression"
	"github.com/cuongbtq/pdf-station/internal/domain"
	"github.com/cuongbtq/pdf-station/internal/staging"
	"github.com/cuongbtq/pdf-station/internal/transform"
)

// JobStore is the persistence the processor needs
type JobStore interface {
	GetJobByID(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)
	MarkProcessing(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)
	UpdateJob(ctx context.Context, jobID uuid.UUID, fn func(job *domain.Job) error) (*domain.Job, error)
	TouchHeartbeat(ctx context.Context, jobID uuid.UUID) error
}

// EventPublisher emits status and dead-letter events
type EventPublisher interface {
	PublishStatus(ctx context.Context, job *domain.Job) error
	PublishDeadLetter(ctx context.Context, jobID uuid.UUID, body []byte) error
}

// Compressor runs the compression engine
type Compressor interface {
	Compress(ctx context.Context, log *slog.Logger, inputPath, outputPath string, quality float64) (*compression.Report, error)
}

// Transformer runs merge, split, protect and conversion jobs
type Transformer interface {
	Transform(ctx context.Context, log *slog.Logger, op domain.Operation, req transform.Request) error
}

// Staging resolves output and scratch locations
type Staging interface {
	OutputPath(job *domain.Job) (string, error)
	WorkDir(job *domain.Job) (string, error)
}

// Reporter records terminal failures
type Reporter interface {
	Capture(err error, tags map[string]string)
}

// ProcessorConfig holds the processor dependencies
type ProcessorConfig struct {
	Logger            *slog.Logger
	Store             JobStore
	Events            EventPublisher
	Compressor        Compressor
	Transformer       Transformer
	Staging           Staging
	Reporter          Reporter
	DefaultQuality    float64
	HeartbeatInterval time.Duration
}

// Processor drives one job through its lifecycle per delivery
type Processor struct {
	logger            *slog.Logger
	store             JobStore
	events            EventPublisher
	compressor        Compressor
	transformer       Transformer
	staging           Staging
	reporter          Reporter
	defaultQuality    float64
	heartbeatInterval time.Duration
}

// NewProcessor creates a processor
func NewProcessor(cfg *ProcessorConfig) *Processor {
	return &Processor{
		logger:            cfg.Logger,
		store:             cfg.Store,
		events:            cfg.Events,
		compressor:        cfg.Compressor,
		transformer:       cfg.Transformer,
		staging:           cfg.Staging,
		reporter:          cfg.Reporter,
		defaultQuality:    cfg.DefaultQuality,
		heartbeatInterval: cfg.HeartbeatInterval,
	}
}

// Process handles one job-submitted message and reports how to settle it
func (p *Processor) Process(ctx context.Context, msg *domain.JobMessage) Result {
	jobID := msg.Event.JobID
	log := p.logger.With(
		slog.String("job_id", jobID.String()),
		slog.String("operation", msg.Event.Operation.String()),
	)

	job, err := p.store.GetJobByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			log.Error("Job referenced by message does not exist, discarding")
			return Result{Kind: KindDiscard, Err: err}
		}
		log.Error("Failed to load job", slog.Any("error", err))
		return Result{Kind: KindRetry, Err: err}
	}

	if job.Status.IsTerminal() {
		log.Info("Job already handled, skipping", slog.String("status", job.Status.String()))
		return Result{Kind: KindDuplicate, OutputPath: job.OutputPath}
	}

	log = log.With(slog.Int("attempt", job.RetryCount+1))

	job, err = p.store.MarkProcessing(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			log.Info("Job finished concurrently, skipping")
			return Result{Kind: KindDuplicate}
		}
		log.Error("Failed to mark job processing", slog.Any("error", err))
		return Result{Kind: KindRetry, Err: err}
	}
	p.publishStatus(ctx, log, job)

	log.Info("Processing job", slog.Bool("redelivered", msg.Redelivered))

	stopHeartbeat := p.startHeartbeat(ctx, log, job.ID)
	outputPath, runErr := p.run(ctx, log, job)
	stopHeartbeat()

	if runErr == nil {
		completed, err := p.store.UpdateJob(ctx, job.ID, func(j *domain.Job) error {
			return j.Complete(outputPath)
		})
		if err == nil {
			p.publishStatus(ctx, log, completed)
			log.Info("Job completed", slog.String("output_path", outputPath))
			return Result{Kind: KindSuccess, OutputPath: outputPath}
		}
		log.Error("Failed to record job completion", slog.Any("error", err))
		runErr = fmt.Errorf("failed to record completion: %w", err)
	}

	return p.fail(ctx, log, job, msg, runErr)
}

// run dispatches the job to its engine and returns the output path
func (p *Processor) run(ctx context.Context, log *slog.Logger, job *domain.Job) (string, error) {
	if err := staging.MissingInputs(job.InputPaths); err != nil {
		return "", err
	}

	outputPath, err := p.staging.OutputPath(job)
	if err != nil {
		return "", err
	}

	req := transform.Request{
		Inputs:     job.InputPaths,
		Params:     job.Params,
		OutputPath: outputPath,
	}

	switch job.Operation {
	case domain.OperationCompress:
		quality := job.Params.CompressionQuality(p.defaultQuality)
		if _, err := p.compressor.Compress(ctx, log, job.PrimaryInputPath(), outputPath, quality); err != nil {
			return "", fmt.Errorf("compression failed: %w", err)
		}

	case domain.OperationSplit:
		workDir, err := p.staging.WorkDir(job)
		if err != nil {
			return "", err
		}
		defer func() {
			if err := os.RemoveAll(workDir); err != nil {
				log.Warn("Failed to remove work directory", slog.String("dir", workDir), slog.Any("error", err))
			}
		}()
		req.WorkDir = workDir
		if err := p.transformer.Transform(ctx, log, job.Operation, req); err != nil {
			return "", fmt.Errorf("split failed: %w", err)
		}

	case domain.OperationMerge, domain.OperationProtect, domain.OperationPDFToWord:
		if err := p.transformer.Transform(ctx, log, job.Operation, req); err != nil {
			return "", fmt.Errorf("%s failed: %w", job.Operation, err)
		}

	default:
		return "", domain.NewTerminalError(fmt.Errorf("%w: %q", domain.ErrInvalidOperation, job.Operation))
	}

	if !staging.Exists(outputPath) {
		return "", fmt.Errorf("output %s was not written", outputPath)
	}
	return outputPath, nil
}

// fail records a failed attempt and decides between retry and dead-letter
func (p *Processor) fail(ctx context.Context, log *slog.Logger, job *domain.Job, msg *domain.JobMessage, cause error) Result {
	terminal := domain.IsTerminal(cause)

	var exhausted bool
	failed, err := p.store.UpdateJob(ctx, job.ID, func(j *domain.Job) error {
		var recordErr error
		exhausted, recordErr = j.RecordFailure(cause, terminal)
		return recordErr
	})
	if err != nil {
		log.Error("Failed to record job failure",
			slog.Any("cause", cause),
			slog.Any("error", err),
		)
		return Result{Kind: KindRetry, Err: cause}
	}

	if !exhausted {
		log.Warn("Job attempt failed, will retry",
			slog.Any("error", cause),
			slog.Int("retry_count", failed.RetryCount),
			slog.Int("max_retries", failed.MaxRetries),
		)
		return Result{Kind: KindRetry, Err: cause}
	}

	p.publishStatus(ctx, log, failed)

	deadLettered := true
	if err := p.events.PublishDeadLetter(ctx, failed.ID, msg.Body); err != nil {
		log.Error("Failed to publish to dead-letter queue", slog.Any("error", err))
		deadLettered = false
	}

	p.reporter.Capture(cause, map[string]string{
		"job_id":    failed.ID.String(),
		"operation": failed.Operation.String(),
	})

	log.Error("Job failed",
		slog.Any("error", cause),
		slog.Bool("terminal_cause", terminal),
		slog.Int("retry_count", failed.RetryCount),
		slog.Bool("dead_lettered", deadLettered),
	)

	return Result{Kind: KindTerminal, Err: cause, DeadLettered: deadLettered}
}

// publishStatus is best effort: the database row stays the source of truth
func (p *Processor) publishStatus(ctx context.Context, log *slog.Logger, job *domain.Job) {
	if err := p.events.PublishStatus(ctx, job); err != nil {
		log.Warn("Failed to publish job status",
			slog.String("status", job.Status.String()),
			slog.Any("error", err),
		)
	}
}

// startHeartbeat touches last_heartbeat_at until the returned stop func is called
func (p *Processor) startHeartbeat(ctx context.Context, log *slog.Logger, jobID uuid.UUID) func() {
	if p.heartbeatInterval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		ticker := time.NewTicker(p.heartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := p.store.TouchHeartbeat(ctx, jobID); err != nil {
					log.Warn("Failed to update job heartbeat", slog.Any("error", err))
				} else {
					log.Debug("Job heartbeat updated")
				}
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}
