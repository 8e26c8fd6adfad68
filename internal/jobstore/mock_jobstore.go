package jobstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of Store using testify/mock.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Create(ctx context.Context, id uuid.UUID, operation string) error {
	args := m.Called(ctx, id, operation)
	return args.Error(0)
}

func (m *MockStore) SetRunning(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) Complete(ctx context.Context, id uuid.UUID, result any) error {
	args := m.Called(ctx, id, result)
	return args.Error(0)
}

func (m *MockStore) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	args := m.Called(ctx, id, errMsg)
	return args.Error(0)
}

func (m *MockStore) Get(ctx context.Context, id uuid.UUID) (Job, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Job), args.Error(1)
}

func (m *MockStore) List(ctx context.Context, operations []string, limit int) ([]Job, error) {
	args := m.Called(ctx, operations, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Job), args.Error(1)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
