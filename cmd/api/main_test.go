package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"text-services/internal/app"
	"text-services/internal/config"
	"text-services/internal/jobstore"
	"text-services/internal/queue"
)

func newTestDeps(st jobstore.Store, q queue.Queue) app.Deps {
	return app.Deps{
		Jobs:  st,
		Queue: q,
		Config: config.Config{
			MaxUploadSize: 1024 * 1024, // 1MB for tests
		},
		Log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSubmitHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(*jobstore.MockStore, *queue.MockQueue)
		wantStatus int
		checkBody  func(*testing.T, map[string]any)
	}{
		{
			name: "successful submission",
			body: `{"text":"This is a sufficiently long article about renewable energy."}`,
			setup: func(s *jobstore.MockStore, q *queue.MockQueue) {
				s.On("Create", mock.Anything, mock.Anything, "summarize").Return(nil).Once()
				q.On("Enqueue", mock.Anything, mock.MatchedBy(func(task queue.Task) bool {
					return task.Type == queue.TaskTypeSummarize && task.ID != uuid.Nil
				})).Return(nil).Once()
			},
			wantStatus: http.StatusAccepted,
			checkBody: func(t *testing.T, body map[string]any) {
				if body["task_id"] == "" {
					t.Error("expected task_id in response")
				}
				if body["status"] != "Pending" {
					t.Errorf("expected status Pending, got %v", body["status"])
				}
			},
		},
		{
			// Short text is accepted here; the pipeline rejects it asynchronously.
			name: "short text still dispatches",
			body: `{"text":"tiny"}`,
			setup: func(s *jobstore.MockStore, q *queue.MockQueue) {
				s.On("Create", mock.Anything, mock.Anything, "summarize").Return(nil).Once()
				q.On("Enqueue", mock.Anything, mock.Anything).Return(nil).Once()
			},
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "missing text field",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed json",
			body:       `{"text":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "job store failure",
			body: `{"text":"This is a sufficiently long article about renewable energy."}`,
			setup: func(s *jobstore.MockStore, q *queue.MockQueue) {
				s.On("Create", mock.Anything, mock.Anything, "summarize").
					Return(errors.New("store down")).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "enqueue failure marks job failed",
			body: `{"text":"This is a sufficiently long article about renewable energy."}`,
			setup: func(s *jobstore.MockStore, q *queue.MockQueue) {
				s.On("Create", mock.Anything, mock.Anything, "summarize").Return(nil).Once()
				q.On("Enqueue", mock.Anything, mock.Anything).Return(errors.New("broker down")).Times(3)
				s.On("Fail", mock.Anything, mock.Anything, "failed to enqueue task").Return(nil).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStore := new(jobstore.MockStore)
			mockQueue := new(queue.MockQueue)
			if tt.setup != nil {
				tt.setup(mockStore, mockQueue)
			}
			deps := newTestDeps(mockStore, mockQueue)

			req := httptest.NewRequest(http.MethodPost, "/summarize", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			submitHandler(deps, queue.TaskTypeSummarize)(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.checkBody != nil {
				var body map[string]any
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				tt.checkBody(t, body)
			}
			mockStore.AssertExpectations(t)
			mockQueue.AssertExpectations(t)
		})
	}
}

func TestTestHandlerDefaultsMessage(t *testing.T) {
	mockStore := new(jobstore.MockStore)
	mockQueue := new(queue.MockQueue)
	mockStore.On("Create", mock.Anything, mock.Anything, "test").Return(nil).Once()
	mockQueue.On("Enqueue", mock.Anything, mock.MatchedBy(func(task queue.Task) bool {
		var payload testTaskPayload
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			return false
		}
		return task.Type == queue.TaskTypeTest && payload.Message == "Hello from API!"
	})).Return(nil).Once()
	deps := newTestDeps(mockStore, mockQueue)

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	rec := httptest.NewRecorder()
	testHandler(deps)(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	mockStore.AssertExpectations(t)
	mockQueue.AssertExpectations(t)
}

func TestTaskStatusHandler(t *testing.T) {
	jobID := uuid.New()
	resultJSON := json.RawMessage(`{"summary":"A summary.","status":"SUCCESS"}`)

	tests := []struct {
		name       string
		taskID     string
		setup      func(*jobstore.MockStore)
		wantStatus int
		wantState  string
		wantResult bool
		wantError  bool
	}{
		{
			name:   "unknown id reported pending",
			taskID: jobID.String(),
			setup: func(s *jobstore.MockStore) {
				s.On("Get", mock.Anything, jobID).Return(jobstore.Job{}, jobstore.ErrJobNotFound).Once()
			},
			wantStatus: http.StatusOK,
			wantState:  "PENDING",
		},
		{
			name:   "running job reported pending",
			taskID: jobID.String(),
			setup: func(s *jobstore.MockStore) {
				s.On("Get", mock.Anything, jobID).
					Return(jobstore.Job{ID: jobID, Status: jobstore.StatusRunning}, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantState:  "PENDING",
		},
		{
			name:   "completed job returns result",
			taskID: jobID.String(),
			setup: func(s *jobstore.MockStore) {
				s.On("Get", mock.Anything, jobID).
					Return(jobstore.Job{ID: jobID, Status: jobstore.StatusSuccess, Result: resultJSON}, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantState:  "SUCCESS",
			wantResult: true,
		},
		{
			name:   "failed job returns error string",
			taskID: jobID.String(),
			setup: func(s *jobstore.MockStore) {
				s.On("Get", mock.Anything, jobID).
					Return(jobstore.Job{ID: jobID, Status: jobstore.StatusFailure, Error: "provider: timeout"}, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantState:  "FAILURE",
			wantError:  true,
		},
		{
			name:   "store failure reported as ERROR",
			taskID: jobID.String(),
			setup: func(s *jobstore.MockStore) {
				s.On("Get", mock.Anything, jobID).
					Return(jobstore.Job{}, errors.New("connection refused")).Once()
			},
			wantStatus: http.StatusOK,
			wantState:  "ERROR",
			wantError:  true,
		},
		{
			name:       "malformed id rejected",
			taskID:     "not-a-uuid",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStore := new(jobstore.MockStore)
			if tt.setup != nil {
				tt.setup(mockStore)
			}
			deps := newTestDeps(mockStore, new(queue.MockQueue))

			r := chi.NewRouter()
			r.Get("/tasks/{task_id}", taskStatusHandler(deps))

			req := httptest.NewRequest(http.MethodGet, "/tasks/"+tt.taskID, nil)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var body map[string]any
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body["status"] != tt.wantState {
				t.Errorf("state = %v, want %v", body["status"], tt.wantState)
			}
			if tt.wantResult && body["result"] == nil {
				t.Error("expected result in response")
			}
			if tt.wantError && body["error"] == nil {
				t.Error("expected error in response")
			}
			mockStore.AssertExpectations(t)
		})
	}
}

func TestTaskStatusIdempotentReads(t *testing.T) {
	jobID := uuid.New()
	resultJSON := json.RawMessage(`{"category":"Technology","status":"SUCCESS"}`)

	mockStore := new(jobstore.MockStore)
	mockStore.On("Get", mock.Anything, jobID).
		Return(jobstore.Job{ID: jobID, Status: jobstore.StatusSuccess, Result: resultJSON}, nil).Twice()
	deps := newTestDeps(mockStore, new(queue.MockQueue))

	r := chi.NewRouter()
	r.Get("/tasks/{task_id}", taskStatusHandler(deps))

	var bodies []string
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/tasks/"+jobID.String(), nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		bodies = append(bodies, rec.Body.String())
	}
	if bodies[0] != bodies[1] {
		t.Error("repeated reads of a terminal job returned different payloads")
	}
	mockStore.AssertExpectations(t)
}

func TestListTasksHandler(t *testing.T) {
	mockStore := new(jobstore.MockStore)
	mockStore.On("List", mock.Anything, []string{"summarize", "process"}, 5).
		Return([]jobstore.Job{{ID: uuid.New(), Operation: "summarize", Status: jobstore.StatusSuccess}}, nil).Once()
	deps := newTestDeps(mockStore, new(queue.MockQueue))

	req := httptest.NewRequest(http.MethodGet, "/tasks?op=summarize,process&limit=5", nil)
	rec := httptest.NewRecorder()
	listTasksHandler(deps)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body struct {
		Tasks []jobstore.Job `json:"tasks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Tasks) != 1 {
		t.Errorf("expected 1 task, got %d", len(body.Tasks))
	}
	mockStore.AssertExpectations(t)
}

func TestUploadHandlerDispatchesProcessJob(t *testing.T) {
	mockStore := new(jobstore.MockStore)
	mockQueue := new(queue.MockQueue)
	mockStore.On("Create", mock.Anything, mock.Anything, "process").Return(nil).Once()
	mockQueue.On("Enqueue", mock.Anything, mock.MatchedBy(func(task queue.Task) bool {
		var payload textTaskPayload
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			return false
		}
		return task.Type == queue.TaskTypeProcess && payload.Text == "A long enough article body."
	})).Return(nil).Once()
	deps := newTestDeps(mockStore, mockQueue)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "article.txt")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := fw.Write([]byte("A long enough article body.")); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	uploadHandler(deps)(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusAccepted, rec.Body.String())
	}
	mockStore.AssertExpectations(t)
	mockQueue.AssertExpectations(t)
}

func TestUploadHandlerRejectsOversizedFile(t *testing.T) {
	deps := newTestDeps(new(jobstore.MockStore), new(queue.MockQueue))

	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewBuffer(make([]byte, 16)))
	req.ContentLength = deps.Config.MaxUploadSize + 1
	rec := httptest.NewRecorder()
	uploadHandler(deps)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestUploadHandlerRejectsUnsupportedType(t *testing.T) {
	deps := newTestDeps(new(jobstore.MockStore), new(queue.MockQueue))

	var buf bytes.Buffer
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	uploadHandler(deps)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
