package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// Key prefix for job records
	jobKeyPrefix = "job:"

	// Sorted set indexing jobs by creation time, for listing
	jobIndexKey = "jobs:recent"
)

// RedisStore keeps job records as JSON values with a TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a Redis-backed job store.
func NewRedis(addr, password string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Create(ctx context.Context, id uuid.UUID, operation string) error {
	now := time.Now().UTC()
	job := Job{
		ID:        id,
		Operation: operation,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.put(ctx, job); err != nil {
		return err
	}
	// Index entries whose job keys have expired are dead weight; trim
	// everything older than the TTL horizon so the set stays bounded.
	if s.ttl > 0 {
		horizon := strconv.FormatInt(now.Add(-s.ttl).UnixNano(), 10)
		if err := s.client.ZRemRangeByScore(ctx, jobIndexKey, "-inf", horizon).Err(); err != nil {
			return err
		}
	}
	return s.client.ZAdd(ctx, jobIndexKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: id.String(),
	}).Err()
}

func (s *RedisStore) SetRunning(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, func(job *Job) error {
		job.Status = StatusRunning
		return nil
	})
}

func (s *RedisStore) Complete(ctx context.Context, id uuid.UUID, result any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.transition(ctx, id, func(job *Job) error {
		job.Status = StatusSuccess
		job.Result = data
		return nil
	})
}

func (s *RedisStore) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	return s.transition(ctx, id, func(job *Job) error {
		job.Status = StatusFailure
		job.Error = errMsg
		return nil
	})
}

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (Job, error) {
	data, err := s.client.Get(ctx, jobKeyPrefix+id.String()).Bytes()
	if err == redis.Nil {
		return Job{}, ErrJobNotFound
	}
	if err != nil {
		return Job{}, err
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return Job{}, err
	}
	return job, nil
}

func (s *RedisStore) List(ctx context.Context, operations []string, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 20
	}
	ids, err := s.client.ZRevRange(ctx, jobIndexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	opFilter := map[string]bool{}
	for _, op := range operations {
		opFilter[op] = true
	}

	var jobs []Job
	for _, idStr := range ids {
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		job, err := s.Get(ctx, id)
		if errors.Is(err, ErrJobNotFound) {
			// The record expired out from under its index entry; drop it.
			s.client.ZRem(ctx, jobIndexKey, idStr)
			continue
		}
		if err != nil {
			continue
		}
		if len(opFilter) > 0 && !opFilter[job.Operation] {
			continue
		}
		jobs = append(jobs, job)
		if len(jobs) == limit {
			break
		}
	}
	return jobs, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// transition applies a mutation to a stored job. Terminal jobs are immutable.
func (s *RedisStore) transition(ctx context.Context, id uuid.UUID, mutate func(*Job) error) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return fmt.Errorf("job %s already in terminal state %s", id, job.Status)
	}
	if err := mutate(&job); err != nil {
		return err
	}
	job.UpdatedAt = time.Now().UTC()
	return s.put(ctx, job)
}

func (s *RedisStore) put(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, jobKeyPrefix+job.ID.String(), data, s.ttl).Err()
}
