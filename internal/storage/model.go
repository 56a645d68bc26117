package storage

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/cuongbtq/pdf-station/internal/domain"
)

const jobColumns = `job_id, operation, status, input_paths, output_path,
	retry_count, max_retries, error_message, params, created_at, updated_at`

// jobRow is the jobs table representation of domain.Job
type jobRow struct {
	JobID        uuid.UUID      `db:"job_id"`
	Operation    string         `db:"operation"`
	Status       string         `db:"status"`
	InputPaths   pq.StringArray `db:"input_paths"`
	OutputPath   sql.NullString `db:"output_path"`
	RetryCount   int            `db:"retry_count"`
	MaxRetries   int            `db:"max_retries"`
	ErrorMessage sql.NullString `db:"error_message"`
	Params       jsonColumn     `db:"params"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func newJobRow(job *domain.Job) (*jobRow, error) {
	params, err := json.Marshal(job.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	return &jobRow{
		JobID:        job.ID,
		Operation:    job.Operation.String(),
		Status:       job.Status.String(),
		InputPaths:   pq.StringArray(job.InputPaths),
		OutputPath:   nullString(job.OutputPath),
		RetryCount:   job.RetryCount,
		MaxRetries:   job.MaxRetries,
		ErrorMessage: nullString(job.ErrorMessage),
		Params:       params,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}, nil
}

func (r *jobRow) toDomain() (*domain.Job, error) {
	op, err := domain.ParseOperation(r.Operation)
	if err != nil {
		return nil, err
	}
	status, err := domain.ParseStatus(r.Status)
	if err != nil {
		return nil, err
	}

	var params domain.Params
	if len(r.Params) > 0 {
		if err := json.Unmarshal(r.Params, &params); err != nil {
			return nil, fmt.Errorf("failed to unmarshal params: %w", err)
		}
	}

	return &domain.Job{
		ID:           r.JobID,
		Operation:    op,
		Status:       status,
		InputPaths:   []string(r.InputPaths),
		OutputPath:   r.OutputPath.String,
		RetryCount:   r.RetryCount,
		MaxRetries:   r.MaxRetries,
		ErrorMessage: r.ErrorMessage.String,
		Params:       params,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}, nil
}

// jsonColumn is sent as text; lib/pq would encode a raw []byte as bytea
type jsonColumn []byte

func (j jsonColumn) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return string(j), nil
}

func (j *jsonColumn) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = jsonColumn(v)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// OutboxMessage is an event waiting to be relayed to the exchange
type OutboxMessage struct {
	ID          int64        `db:"id"`
	JobID       uuid.UUID    `db:"job_id"`
	RoutingKey  string       `db:"routing_key"`
	Payload     jsonColumn   `db:"payload"`
	CreatedAt   time.Time    `db:"created_at"`
	PublishedAt sql.NullTime `db:"published_at"`
}
