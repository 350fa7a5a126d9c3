package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lorekeep/internal/domain"
)

// JobSnapshotCache keeps terminal job snapshots in Redis so that status
// polling of finished jobs does not hammer the registry and the store. Live
// jobs are never cached (their state changes with every item transition);
// cancel and retry invalidate explicitly. The registry remains the source
// of truth.
type JobSnapshotCache interface {
	SetJob(ctx context.Context, job *domain.Job, ttl time.Duration) error
	GetJob(ctx context.Context, jobID string) (*domain.Job, bool, error)
	InvalidateJob(ctx context.Context, jobID string) error
	Ping(ctx context.Context) error
}

// RedisCache implements JobSnapshotCache using go-redis/v9.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a cache from a Redis URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) SetJob(ctx context.Context, job *domain.Job, ttl time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, jobKey(job.ID), data, ttl).Err()
}

func (c *RedisCache) GetJob(ctx context.Context, jobID string) (*domain.Job, bool, error) {
	data, err := c.client.Get(ctx, jobKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var job domain.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, false, err
	}
	return &job, true, nil
}

func (c *RedisCache) InvalidateJob(ctx context.Context, jobID string) error {
	return c.client.Del(ctx, jobKey(jobID)).Err()
}

func jobKey(jobID string) string {
	return fmt.Sprintf("lorekeep:job:%s", jobID)
}

var _ JobSnapshotCache = (*RedisCache)(nil)
