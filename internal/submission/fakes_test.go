package submission

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/pdf-station/internal/domain"
	"github.com/cuongbtq/pdf-station/internal/storage"
)

var errStoreDown = errors.New("store unavailable")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memStore struct {
	mu         sync.Mutex
	jobs       map[uuid.UUID]*domain.Job
	outbox     []storage.OutboxMessage
	failCreate bool
	lastFilter storage.JobFilter
	gets       int
}

func newMemStore(jobs ...*domain.Job) *memStore {
	s := &memStore{jobs: make(map[uuid.UUID]*domain.Job)}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *memStore) CreateJob(_ context.Context, job *domain.Job, outbox storage.OutboxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return errStoreDown
	}

	// column defaults
	now := time.Now().UTC()
	job.CreatedAt, job.UpdatedAt = now, now

	if outbox != nil {
		msgs, err := outbox(job)
		if err != nil {
			return err
		}
		s.outbox = append(s.outbox, msgs...)
	}

	stored := *job
	s.jobs[job.ID] = &stored
	return nil
}

func (s *memStore) GetJobByID(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	j, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	copied := *j
	return &copied, nil
}

func (s *memStore) ListJobs(_ context.Context, filter storage.JobFilter) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFilter = filter

	var jobs []*domain.Job
	for _, j := range s.jobs {
		if filter.Operation != "" && j.Operation != filter.Operation {
			continue
		}
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		if filter.Cursor != nil && !j.CreatedAt.Before(filter.Cursor.CreatedAt) {
			continue
		}
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(a, b int) bool { return jobs[a].CreatedAt.After(jobs[b].CreatedAt) })

	if len(jobs) > filter.PageSize+1 {
		jobs = jobs[:filter.PageSize+1]
	}
	return jobs, nil
}

type memCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]domain.JobStatusEvent
	failGet bool
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[uuid.UUID]domain.JobStatusEvent)}
}

func (c *memCache) Get(_ context.Context, id uuid.UUID) (*domain.JobStatusEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return nil, errors.New("cache unavailable")
	}
	event, ok := c.entries[id]
	if !ok {
		return nil, nil
	}
	return &event, nil
}

func (c *memCache) Set(_ context.Context, event domain.JobStatusEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[event.JobID] = event
	return nil
}

type countingNotifier struct {
	mu    sync.Mutex
	count int
}

func (n *countingNotifier) Notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.count++
}

// memOutbox mirrors storage.Storage.RelayOutbox
type memOutbox struct {
	mu      sync.Mutex
	pending []storage.OutboxMessage
}

func (o *memOutbox) add(msgs ...storage.OutboxMessage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = append(o.pending, msgs...)
}

func (o *memOutbox) remaining() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

func (o *memOutbox) RelayOutbox(ctx context.Context, limit int, publish func(ctx context.Context, msg storage.OutboxMessage) error) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := 0
	for n < limit && n < len(o.pending) {
		if err := publish(ctx, o.pending[n]); err != nil {
			o.pending = o.pending[n:]
			return n, err
		}
		n++
	}
	o.pending = o.pending[n:]
	return n, nil
}

type published struct {
	routingKey string
	jobID      uuid.UUID
	body       []byte
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []published
	failOn   int
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, jobID uuid.UUID, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOn > 0 && len(p.messages)+1 == p.failOn {
		p.failOn = 0
		return errors.New("broker unavailable")
	}
	p.messages = append(p.messages, published{routingKey: routingKey, jobID: jobID, body: body})
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}
