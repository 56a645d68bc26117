package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/pdf-station/internal/domain"
	"github.com/cuongbtq/pdf-station/shared/postgresql"
)

// Storage handles all job and outbox persistence
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// OutboxFunc builds the messages enqueued with a job once its row exists
type OutboxFunc func(job *domain.Job) ([]OutboxMessage, error)

// CreateJob inserts job and its outbox messages in a single transaction.
// The database assigns created_at and updated_at; both are written back to job.
func (s *Storage) CreateJob(ctx context.Context, job *domain.Job, outbox OutboxFunc) error {
	row, err := newJobRow(job)
	if err != nil {
		return err
	}

	return postgresql.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		query, args, err := tx.BindNamed(`
			INSERT INTO jobs (
				job_id, operation, status, input_paths, output_path,
				retry_count, max_retries, error_message, params
			) VALUES (
				:job_id, :operation, :status, :input_paths, :output_path,
				:retry_count, :max_retries, :error_message, :params
			)
			RETURNING created_at, updated_at
		`, row)
		if err != nil {
			return fmt.Errorf("failed to bind job: %w", err)
		}

		var createdAt, updatedAt time.Time
		if err := tx.QueryRowxContext(ctx, query, args...).Scan(&createdAt, &updatedAt); err != nil {
			return fmt.Errorf("failed to create job: %w", err)
		}
		job.CreatedAt, job.UpdatedAt = createdAt.UTC(), updatedAt.UTC()

		if outbox == nil {
			return nil
		}
		msgs, err := outbox(job)
		if err != nil {
			return err
		}

		for _, msg := range msgs {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO outbox (job_id, routing_key, payload) VALUES ($1, $2, $3)`,
				msg.JobID, msg.RoutingKey, msg.Payload,
			)
			if err != nil {
				return fmt.Errorf("failed to insert outbox message: %w", err)
			}
		}

		return nil
	})
}

// GetJobByID retrieves a job from the database by its ID
func (s *Storage) GetJobByID(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	var row jobRow
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = $1`

	if err := s.db.GetContext(ctx, &row, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return row.toDomain()
}

// MarkProcessing moves a job into PROCESSING using optimistic locking.
// A job that is already COMPLETED or FAILED is left untouched.
func (s *Storage) MarkProcessing(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $2
		  AND status IN ($3, $4)
		RETURNING ` + jobColumns

	var row jobRow
	err := s.db.GetContext(ctx, &row, query,
		domain.StatusProcessing, jobID, domain.StatusCreated, domain.StatusProcessing,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Failed to mark job processing - already finished or not found",
				slog.String("job_id", jobID.String()),
			)
			return nil, fmt.Errorf("%w: job %s is not claimable", domain.ErrInvalidTransition, jobID)
		}
		return nil, fmt.Errorf("failed to mark job processing: %w", err)
	}

	return row.toDomain()
}

// UpdateJob reloads the job under a row lock, applies fn and persists the result
func (s *Storage) UpdateJob(ctx context.Context, jobID uuid.UUID, fn func(job *domain.Job) error) (*domain.Job, error) {
	var updated *domain.Job

	err := postgresql.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var row jobRow
		query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &row, query, jobID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrJobNotFound
			}
			return fmt.Errorf("failed to lock job: %w", err)
		}

		job, err := row.toDomain()
		if err != nil {
			return err
		}
		if err := fn(job); err != nil {
			return err
		}

		update := `
			UPDATE jobs
			SET status = $1,
			    output_path = $2,
			    retry_count = $3,
			    error_message = $4,
			    updated_at = NOW()
			WHERE job_id = $5
			RETURNING updated_at
		`
		err = tx.GetContext(ctx, &job.UpdatedAt, update,
			job.Status, nullString(job.OutputPath), job.RetryCount, nullString(job.ErrorMessage), job.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update job: %w", err)
		}

		updated = job
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Job updated",
		slog.String("job_id", jobID.String()),
		slog.String("status", updated.Status.String()),
		slog.Int("retry_count", updated.RetryCount),
	)

	return updated, nil
}

// TouchHeartbeat updates the last_heartbeat_at timestamp for a processing job
func (s *Storage) TouchHeartbeat(ctx context.Context, jobID uuid.UUID) error {
	query := `
		UPDATE jobs
		SET last_heartbeat_at = NOW()
		WHERE job_id = $1 AND status = $2
	`

	result, err := s.db.ExecContext(ctx, query, jobID, domain.StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to update job heartbeat: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		s.logger.Warn("Job heartbeat update - no rows affected (job may not be processing)",
			slog.String("job_id", jobID.String()),
		)
	}

	return nil
}

// JobFilter narrows ListJobs
type JobFilter struct {
	Operation domain.Operation
	Status    domain.Status
	PageSize  int
	Cursor    *JobCursor
}

// JobCursor marks the last row of the previous page
type JobCursor struct {
	CreatedAt time.Time
	JobID     uuid.UUID
}

// ListJobs returns up to PageSize+1 jobs, newest first; the extra row signals another page
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]*domain.Job, error) {
	query, args := buildListQuery(filter)

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]*domain.Job, 0, len(rows))
	for i := range rows {
		job, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

func buildListQuery(filter JobFilter) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`)

	args := []any{}
	argIdx := 1

	if filter.Operation != "" {
		fmt.Fprintf(&b, " AND operation = $%d", argIdx)
		args = append(args, filter.Operation)
		argIdx++
	}

	if filter.Status != "" {
		fmt.Fprintf(&b, " AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		fmt.Fprintf(&b, " AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	// job_id breaks created_at ties so pages never overlap
	b.WriteString(" ORDER BY created_at DESC, job_id DESC")

	fmt.Fprintf(&b, " LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	return b.String(), args
}
