package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"text-services/internal/retry"
)

// TaskType enumerates supported task categories. Each type is bound to its
// own logical channel so operations can be scaled independently.
type TaskType string

const (
	TaskTypeSummarize       TaskType = "summarize"
	TaskTypeCategorize      TaskType = "categorize"
	TaskTypeExtractKeywords TaskType = "extract_keywords"
	TaskTypeProcess         TaskType = "process"
	TaskTypeTest            TaskType = "test"
)

// Task represents a unit of work dispatched from the API to the workers.
type Task struct {
	ID          uuid.UUID
	Type        TaskType
	Payload     []byte
	Attempts    int
	MaxAttempts int
	NotBefore   time.Time
}

type Handler func(context.Context, Task) error

// FailureHandler is invoked when a task has exhausted its retry budget.
type FailureHandler func(context.Context, Task, error)

// Queue exposes a minimal contract to enqueue and consume tasks.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Worker(ctx context.Context, taskType TaskType, handler Handler) error
}

// EnqueueWithRetry attempts to enqueue with retries and exponential backoff.
func EnqueueWithRetry(ctx context.Context, q Queue, task Task, attempts int, base time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if err := q.Enqueue(ctx, task); err == nil {
			return nil
		} else if attempt == attempts-1 {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry.ExponentialBackoff(attempt, base)):
		}
	}
	return nil
}
