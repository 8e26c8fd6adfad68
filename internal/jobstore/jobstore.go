// Package jobstore tracks the lifecycle and terminal result of dispatched
// jobs, keyed by job id.
package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the job lifecycle state. A job is created PENDING, moves to
// RUNNING when a worker picks it up, and ends in SUCCESS or FAILURE.
// Terminal records are immutable; repeated reads return the same payload.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusRunning Status = "RUNNING"
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// Terminal reports whether no further transition can occur.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// ErrJobNotFound is returned by Get for ids the store has never seen or has
// already evicted.
var ErrJobNotFound = errors.New("job not found")

// Job is one asynchronously dispatched unit of work.
type Job struct {
	ID        uuid.UUID       `json:"id"`
	Operation string          `json:"operation"`
	Status    Status          `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Store defines the job persistence contract.
type Store interface {
	Create(ctx context.Context, id uuid.UUID, operation string) error
	SetRunning(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID, result any) error
	Fail(ctx context.Context, id uuid.UUID, errMsg string) error
	Get(ctx context.Context, id uuid.UUID) (Job, error)
	List(ctx context.Context, operations []string, limit int) ([]Job, error)
	Close() error
}
