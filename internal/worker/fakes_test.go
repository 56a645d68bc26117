package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/pdf-station/internal/compression"
	"github.com/cuongbtq/pdf-station/internal/domain"
	"github.com/cuongbtq/pdf-station/internal/transform"
)

var errStoreDown = errors.New("store unavailable")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore mirrors the row-level semantics of storage.Storage
type memStore struct {
	mu         sync.Mutex
	jobs       map[uuid.UUID]domain.Job
	heartbeats int
	failUpdate bool
}

func newMemStore(jobs ...*domain.Job) *memStore {
	s := &memStore{jobs: make(map[uuid.UUID]domain.Job)}
	for _, j := range jobs {
		s.jobs[j.ID] = *j
	}
	return s
}

func (s *memStore) get(id uuid.UUID) domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

func (s *memStore) GetJobByID(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return &j, nil
}

func (s *memStore) MarkProcessing(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status.IsTerminal() {
		return nil, domain.ErrInvalidTransition
	}
	j.Status = domain.StatusProcessing
	j.UpdatedAt = time.Now()
	s.jobs[id] = j
	return &j, nil
}

func (s *memStore) UpdateJob(_ context.Context, id uuid.UUID, fn func(job *domain.Job) error) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate {
		return nil, errStoreDown
	}
	j, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	if err := fn(&j); err != nil {
		return nil, err
	}
	j.UpdatedAt = time.Now()
	s.jobs[id] = j
	return &j, nil
}

func (s *memStore) TouchHeartbeat(_ context.Context, _ uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeats++
	return nil
}

type recordingEvents struct {
	mu          sync.Mutex
	statuses    []domain.Status
	deadLetters [][]byte
	failDLQ     bool
}

func (e *recordingEvents) PublishStatus(_ context.Context, job *domain.Job) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statuses = append(e.statuses, job.Status)
	return nil
}

func (e *recordingEvents) PublishDeadLetter(_ context.Context, _ uuid.UUID, body []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failDLQ {
		return errors.New("broker unavailable")
	}
	e.deadLetters = append(e.deadLetters, body)
	return nil
}

// fakeCompressor fails the first failures calls, then writes a placeholder output
type fakeCompressor struct {
	failures int
	err      error
	calls    int
	quality  float64
	delay    time.Duration
}

func (c *fakeCompressor) Compress(_ context.Context, _ *slog.Logger, _, outputPath string, quality float64) (*compression.Report, error) {
	c.calls++
	c.quality = quality
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.calls <= c.failures {
		if c.err != nil {
			return nil, c.err
		}
		return nil, errors.New("engine crashed")
	}
	if err := os.WriteFile(outputPath, []byte("%PDF-1.7"), 0o644); err != nil {
		return nil, err
	}
	return &compression.Report{}, nil
}

type fakeTransformer struct {
	requests []transform.Request
	ops      []domain.Operation
	err      error
}

func (t *fakeTransformer) Transform(_ context.Context, _ *slog.Logger, op domain.Operation, req transform.Request) error {
	t.ops = append(t.ops, op)
	t.requests = append(t.requests, req)
	if t.err != nil {
		return t.err
	}
	return os.WriteFile(req.OutputPath, []byte("output"), 0o644)
}

type recordingReporter struct {
	captured []error
}

func (r *recordingReporter) Capture(err error, _ map[string]string) {
	r.captured = append(r.captured, err)
}

// fakeAck records how each delivery tag was settled
type fakeAck struct {
	mu      sync.Mutex
	acks    []uint64
	nacks   []uint64
	requeue []bool
}

func (a *fakeAck) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, tag)
	return nil
}

func (a *fakeAck) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks = append(a.nacks, tag)
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *fakeAck) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}
