package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/pdf-station/internal/domain"
)

var jobColumnNames = []string{
	"job_id", "operation", "status", "input_paths", "output_path",
	"retry_count", "max_retries", "error_message", "params", "created_at", "updated_at",
}

func newMockStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStorage(sqlx.NewDb(db, "postgres"), logger), mock
}

func jobRows(id uuid.UUID, status domain.Status, at time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(jobColumnNames).AddRow(
		id.String(), "COMPRESS", status.String(), []byte("{/uploads/doc.pdf}"), nil,
		0, 3, nil, []byte(`{}`), at, at,
	)
}

func TestStorage_CreateJobTakesTimestampsFromDatabase(t *testing.T) {
	store, mock := newMockStorage(t)
	id := uuid.New()
	stamped := time.Date(2026, 3, 4, 5, 6, 7, 123000, time.UTC)

	anyArgs := make([]driver.Value, 9)
	for i := range anyArgs {
		anyArgs[i] = sqlmock.AnyArg()
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO jobs \([^)]*params\s*\)\s*VALUES \([^)]*\)\s*RETURNING created_at, updated_at`).
		WithArgs(anyArgs...).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(stamped, stamped))
	mock.ExpectExec(`INSERT INTO outbox`).
		WithArgs(id, "job.submitted."+id.String(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	job := &domain.Job{
		ID:         id,
		Operation:  domain.OperationCompress,
		Status:     domain.StatusCreated,
		InputPaths: []string{"/uploads/doc.pdf"},
		MaxRetries: 3,
	}

	var seen time.Time
	err := store.CreateJob(context.Background(), job, func(j *domain.Job) ([]OutboxMessage, error) {
		seen = j.CreatedAt
		return []OutboxMessage{{JobID: j.ID, RoutingKey: "job.submitted." + j.ID.String(), Payload: []byte(`{}`)}}, nil
	})
	require.NoError(t, err)

	assert.True(t, stamped.Equal(job.CreatedAt))
	assert.True(t, stamped.Equal(job.UpdatedAt))
	assert.True(t, stamped.Equal(seen))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_CreateJobRollsBackWhenOutboxFails(t *testing.T) {
	store, mock := newMockStorage(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO jobs`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectRollback()

	job := &domain.Job{ID: uuid.New(), Operation: domain.OperationMerge, Status: domain.StatusCreated}
	encodeErr := errors.New("encode failed")

	err := store.CreateJob(context.Background(), job, func(*domain.Job) ([]OutboxMessage, error) {
		return nil, encodeErr
	})
	require.ErrorIs(t, err, encodeErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_MarkProcessingFinishedJob(t *testing.T) {
	store, mock := newMockStorage(t)
	id := uuid.New()

	mock.ExpectQuery(`UPDATE jobs\s+SET status = \$1`).
		WithArgs(domain.StatusProcessing, id, domain.StatusCreated, domain.StatusProcessing).
		WillReturnRows(sqlmock.NewRows(jobColumnNames))

	job, err := store.MarkProcessing(context.Background(), id)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Nil(t, job)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_MarkProcessingClaimsJob(t *testing.T) {
	store, mock := newMockStorage(t)
	id := uuid.New()
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	mock.ExpectQuery(`UPDATE jobs\s+SET status = \$1`).
		WithArgs(domain.StatusProcessing, id, domain.StatusCreated, domain.StatusProcessing).
		WillReturnRows(jobRows(id, domain.StatusProcessing, now))

	job, err := store.MarkProcessing(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, job.Status)
	assert.Equal(t, []string{"/uploads/doc.pdf"}, job.InputPaths)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_UpdateJobRollsBackOnCallbackError(t *testing.T) {
	store, mock := newMockStorage(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM jobs WHERE job_id = \$1 FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(jobRows(id, domain.StatusProcessing, time.Now()))
	mock.ExpectRollback()

	refused := errors.New("transition refused")
	job, err := store.UpdateJob(context.Background(), id, func(*domain.Job) error {
		return refused
	})
	require.ErrorIs(t, err, refused)
	assert.Nil(t, job)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_UpdateJobMissingRow(t *testing.T) {
	store, mock := newMockStorage(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(id).WillReturnRows(sqlmock.NewRows(jobColumnNames))
	mock.ExpectRollback()

	_, err := store.UpdateJob(context.Background(), id, func(*domain.Job) error {
		t.Fatal("callback must not run for a missing job")
		return nil
	})
	require.ErrorIs(t, err, domain.ErrJobNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_UpdateJobPersists(t *testing.T) {
	store, mock := newMockStorage(t)
	id := uuid.New()
	updated := time.Date(2026, 3, 4, 5, 7, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(id).WillReturnRows(jobRows(id, domain.StatusProcessing, time.Now()))
	mock.ExpectQuery(`UPDATE jobs\s+SET status = \$1,\s+output_path = \$2`).
		WithArgs(domain.StatusCompleted, "/outputs/doc.pdf", 0, nil, id).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(updated))
	mock.ExpectCommit()

	job, err := store.UpdateJob(context.Background(), id, func(j *domain.Job) error {
		j.Status = domain.StatusCompleted
		j.OutputPath = "/outputs/doc.pdf"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, job.Status)
	assert.True(t, updated.Equal(job.UpdatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_RelayOutboxStopsAtFirstPublishError(t *testing.T) {
	store, mock := newMockStorage(t)
	jobID := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "job_id", "routing_key", "payload", "created_at", "published_at"})
	for id := int64(1); id <= 3; id++ {
		rows.AddRow(id, jobID.String(), "job.submitted", []byte(`{}`), now, nil)
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM outbox\s+WHERE published_at IS NULL`).WithArgs(10).WillReturnRows(rows)
	mock.ExpectExec(`UPDATE outbox SET published_at = NOW\(\) WHERE id = ANY\(\$1\)`).
		WithArgs(pq.Int64Array{1, 2}).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	brokerDown := errors.New("broker down")
	var attempted []int64
	n, err := store.RelayOutbox(context.Background(), 10, func(_ context.Context, msg OutboxMessage) error {
		attempted = append(attempted, msg.ID)
		if msg.ID == 3 {
			return brokerDown
		}
		return nil
	})

	require.ErrorIs(t, err, brokerDown)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 2, 3}, attempted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_RelayOutboxNothingPublished(t *testing.T) {
	store, mock := newMockStorage(t)

	rows := sqlmock.NewRows([]string{"id", "job_id", "routing_key", "payload", "created_at", "published_at"}).
		AddRow(int64(7), uuid.New().String(), "job.submitted", []byte(`{}`), time.Now(), nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM outbox`).WithArgs(5).WillReturnRows(rows)
	mock.ExpectCommit()

	n, err := store.RelayOutbox(context.Background(), 5, func(context.Context, OutboxMessage) error {
		return errors.New("broker down")
	})
	require.Error(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
