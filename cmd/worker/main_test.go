package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"text-services/internal/app"
	"text-services/internal/jobstore"
	"text-services/internal/pipeline"
	"text-services/internal/queue"
)

func newTestDeps(st jobstore.Store) app.Deps {
	return app.Deps{
		Jobs: st,
		Log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func textTask(t *testing.T, id uuid.UUID, text string) queue.Task {
	t.Helper()
	payload, err := json.Marshal(textTaskPayload{Text: text})
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	return queue.Task{ID: id, Type: queue.TaskTypeSummarize, Payload: payload}
}

func TestTextHandler(t *testing.T) {
	jobID := uuid.New()
	successResult := pipeline.SummarizeResult{Summary: "A summary.", Status: pipeline.StatusSuccess}
	validationResult := pipeline.SummarizeResult{Status: pipeline.StatusError}

	tests := []struct {
		name    string
		task    func(*testing.T) queue.Task
		run     func(context.Context, string) (any, error)
		setup   func(*jobstore.MockStore)
		wantErr bool
	}{
		{
			name: "successful operation completes the job",
			task: func(t *testing.T) queue.Task { return textTask(t, jobID, "a long enough article") },
			run: func(ctx context.Context, text string) (any, error) {
				return successResult, nil
			},
			setup: func(s *jobstore.MockStore) {
				s.On("SetRunning", mock.Anything, jobID).Return(nil).Once()
				s.On("Complete", mock.Anything, jobID, successResult).Return(nil).Once()
			},
		},
		{
			name: "validation failure completes the job with ERROR payload",
			task: func(t *testing.T) queue.Task { return textTask(t, jobID, "tiny") },
			run: func(ctx context.Context, text string) (any, error) {
				return validationResult, &pipeline.Error{Kind: pipeline.KindValidation, Err: errors.New("text is too short to process")}
			},
			setup: func(s *jobstore.MockStore) {
				s.On("SetRunning", mock.Anything, jobID).Return(nil).Once()
				s.On("Complete", mock.Anything, jobID, validationResult).Return(nil).Once()
			},
			wantErr: false,
		},
		{
			name: "provider failure is returned for queue retry",
			task: func(t *testing.T) queue.Task { return textTask(t, jobID, "a long enough article") },
			run: func(ctx context.Context, text string) (any, error) {
				return validationResult, &pipeline.Error{Kind: pipeline.KindProvider, Err: errors.New("rate limited")}
			},
			setup: func(s *jobstore.MockStore) {
				s.On("SetRunning", mock.Anything, jobID).Return(nil).Once()
			},
			wantErr: true,
		},
		{
			name: "configuration failure records FAILURE without retry",
			task: func(t *testing.T) queue.Task { return textTask(t, jobID, "a long enough article") },
			run: func(ctx context.Context, text string) (any, error) {
				return validationResult, &pipeline.Error{Kind: pipeline.KindConfiguration, Err: errors.New("missing credential")}
			},
			setup: func(s *jobstore.MockStore) {
				s.On("SetRunning", mock.Anything, jobID).Return(nil).Once()
				s.On("Fail", mock.Anything, jobID, mock.MatchedBy(func(msg string) bool {
					return msg != ""
				})).Return(nil).Once()
			},
			wantErr: false,
		},
		{
			name: "result for an already-terminal job is dropped without retry",
			task: func(t *testing.T) queue.Task { return textTask(t, jobID, "a long enough article") },
			run: func(ctx context.Context, text string) (any, error) {
				return successResult, nil
			},
			setup: func(s *jobstore.MockStore) {
				s.On("SetRunning", mock.Anything, jobID).Return(nil).Once()
				s.On("Complete", mock.Anything, jobID, successResult).Return(jobstore.ErrJobNotFound).Once()
			},
			wantErr: false,
		},
		{
			name: "malformed payload records FAILURE",
			task: func(t *testing.T) queue.Task {
				return queue.Task{ID: jobID, Type: queue.TaskTypeSummarize, Payload: []byte("{not json")}
			},
			run: func(ctx context.Context, text string) (any, error) {
				t.Fatal("pipeline must not run for malformed payload")
				return nil, nil
			},
			setup: func(s *jobstore.MockStore) {
				s.On("Fail", mock.Anything, jobID, mock.Anything).Return(nil).Once()
			},
			wantErr: false,
		},
		{
			name: "marking running fails but processing continues",
			task: func(t *testing.T) queue.Task { return textTask(t, jobID, "a long enough article") },
			run: func(ctx context.Context, text string) (any, error) {
				return successResult, nil
			},
			setup: func(s *jobstore.MockStore) {
				s.On("SetRunning", mock.Anything, jobID).Return(errors.New("store hiccup")).Once()
				s.On("Complete", mock.Anything, jobID, successResult).Return(nil).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStore := new(jobstore.MockStore)
			if tt.setup != nil {
				tt.setup(mockStore)
			}
			deps := newTestDeps(mockStore)

			handler := textHandler(deps, tt.run)
			err := handler(context.Background(), tt.task(t))

			if (err != nil) != tt.wantErr {
				t.Errorf("handler error = %v, wantErr %v", err, tt.wantErr)
			}
			mockStore.AssertExpectations(t)
		})
	}
}

func TestTestHandlerEchoesHostIdentity(t *testing.T) {
	jobID := uuid.New()
	payload, _ := json.Marshal(testTaskPayload{Message: "ping"})

	mockStore := new(jobstore.MockStore)
	mockStore.On("SetRunning", mock.Anything, jobID).Return(nil).Once()
	mockStore.On("Complete", mock.Anything, jobID, mock.MatchedBy(func(result any) bool {
		m, ok := result.(map[string]any)
		return ok && m["message"] == "ping" && m["hostname"] != ""
	})).Return(nil).Once()
	deps := newTestDeps(mockStore)

	handler := testHandler(deps)
	if err := handler(context.Background(), queue.Task{ID: jobID, Type: queue.TaskTypeTest, Payload: payload}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mockStore.AssertExpectations(t)
}
