package statuscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/cuongbtq/pdf-station/internal/domain"
	"github.com/cuongbtq/pdf-station/internal/exchange"
)

const keyPrefix = "job-status:"

// setIfNewer keeps the highest-ranked status so late redeliveries never move a job backwards.
// KEYS[1] entry, ARGV[1] payload, ARGV[2] rank, ARGV[3] ttl in ms (0 keeps the entry forever).
var setIfNewer = goredis.NewScript(`
local current = tonumber(redis.call('HGET', KEYS[1], 'rank') or '-1')
if current > tonumber(ARGV[2]) then
	return 0
end
redis.call('HSET', KEYS[1], 'rank', ARGV[2], 'payload', ARGV[1])
if tonumber(ARGV[3]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

// Cache stores the latest status of each job in Redis
type Cache struct {
	rdb goredis.Cmdable
	ttl time.Duration
}

// New creates a cache whose entries expire after ttl
func New(rdb goredis.Cmdable, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

// Get returns the cached status of a job, or nil when none is cached
func (c *Cache) Get(ctx context.Context, jobID uuid.UUID) (*domain.JobStatusEvent, error) {
	data, err := c.rdb.HGet(ctx, key(jobID), "payload").Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached status: %w", err)
	}

	event, err := exchange.DecodeStatus(data)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// Set records event unless a later lifecycle state is already cached
func (c *Cache) Set(ctx context.Context, event domain.JobStatusEvent) error {
	payload, err := exchange.EncodeStatus(event)
	if err != nil {
		return err
	}

	err = setIfNewer.Run(ctx, c.rdb,
		[]string{key(event.JobID)},
		payload, rank(event.Status), c.ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to cache status: %w", err)
	}
	return nil
}

func key(jobID uuid.UUID) string {
	return keyPrefix + jobID.String()
}

// rank orders statuses along the lifecycle
func rank(status domain.Status) int {
	switch status {
	case domain.StatusCreated:
		return 0
	case domain.StatusProcessing:
		return 1
	case domain.StatusCompleted, domain.StatusFailed:
		return 2
	}
	return -1
}
