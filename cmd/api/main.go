package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"text-services/internal/app"
	"text-services/internal/httputil"
	"text-services/internal/jobstore"
	"text-services/internal/queue"
)

type textRequest struct {
	Text string `json:"text" validate:"required"`
}

type testRequest struct {
	Message string `json:"message"`
}

type textTaskPayload struct {
	Text string `json:"text"`
}

type testTaskPayload struct {
	Message string `json:"message"`
}

func main() {
	deps, err := app.Build(false)
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	r := httputil.NewRouter(deps.Log)

	r.Post("/summarize", submitHandler(deps, queue.TaskTypeSummarize))
	r.Post("/categorize", submitHandler(deps, queue.TaskTypeCategorize))
	r.Post("/extract-keywords", submitHandler(deps, queue.TaskTypeExtractKeywords))
	r.Post("/process", submitHandler(deps, queue.TaskTypeProcess))
	r.Post("/test", testHandler(deps))
	r.Post("/upload", uploadHandler(deps))
	r.Get("/tasks/{task_id}", taskStatusHandler(deps))
	r.Get("/tasks", listTasksHandler(deps))
	r.Get("/health", httputil.HealthHandler("text-processing-api"))

	addr := fmt.Sprintf(":%d", deps.Config.Port)
	deps.Log.Info("api listening", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		deps.Log.Error("server failed", "err", err)
	}
}

// submitHandler accepts article text and dispatches the given operation as an
// asynchronous job. Text length is not checked here; the pipeline validates
// it when the worker picks the job up.
func submitHandler(deps app.Deps, op queue.TaskType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req textRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Fail(deps.Log, w, "invalid payload", err, http.StatusBadRequest)
			return
		}
		if err := httputil.Validator.Struct(&req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}

		dispatch(deps, w, r.Context(), op, textTaskPayload{Text: req.Text})
	}
}

// testHandler dispatches a diagnostic job that echoes the worker's identity.
func testHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := testRequest{Message: "Hello from API!"}
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httputil.Fail(deps.Log, w, "invalid payload", err, http.StatusBadRequest)
				return
			}
		}

		dispatch(deps, w, r.Context(), queue.TaskTypeTest, testTaskPayload{Message: req.Message})
	}
}

// dispatch registers a PENDING job and enqueues its task, replying with the
// job id immediately.
func dispatch(deps app.Deps, w http.ResponseWriter, ctx context.Context, op queue.TaskType, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		httputil.Fail(deps.Log, w, "marshal payload failed", err, http.StatusInternalServerError)
		return
	}

	id := uuid.New()
	if err := deps.Jobs.Create(ctx, id, string(op)); err != nil {
		httputil.Fail(deps.Log, w, "failed to register job", err, http.StatusInternalServerError)
		return
	}

	task := queue.Task{ID: id, Type: op, Payload: body}
	if err := queue.EnqueueWithRetry(ctx, deps.Queue, task, 3, 200*time.Millisecond); err != nil {
		if failErr := deps.Jobs.Fail(ctx, id, "failed to enqueue task"); failErr != nil {
			deps.Log.Error("failed to mark job failed", "id", id, "err", failErr)
		}
		httputil.Fail(deps.Log, w, "failed to enqueue task; please retry", err, http.StatusInternalServerError)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
		"task_id": id.String(),
		"status":  "Pending",
	})
}

// taskStatusHandler returns the current status of a job and, once terminal,
// its result or error. Repeated reads of a terminal job return the same
// payload. Ids the store has never seen are reported as PENDING.
func taskStatusHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idStr := chi.URLParam(r, "task_id")
		id, err := uuid.Parse(idStr)
		if err != nil {
			httputil.Fail(deps.Log, w, "invalid task id", err, http.StatusBadRequest)
			return
		}

		job, err := deps.Jobs.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, jobstore.ErrJobNotFound) {
				httputil.WriteJSON(w, http.StatusOK, map[string]any{"status": string(jobstore.StatusPending)})
				return
			}
			deps.Log.Error("failed to query job store", "id", id, "err", err)
			httputil.WriteJSON(w, http.StatusOK, map[string]any{
				"status": "ERROR",
				"error":  err.Error(),
			})
			return
		}

		switch job.Status {
		case jobstore.StatusSuccess:
			httputil.WriteJSON(w, http.StatusOK, map[string]any{
				"status": string(job.Status),
				"result": job.Result,
			})
		case jobstore.StatusFailure:
			httputil.WriteJSON(w, http.StatusOK, map[string]any{
				"status": string(job.Status),
				"error":  job.Error,
			})
		default:
			// RUNNING is internal; poll clients only see PENDING until terminal.
			httputil.WriteJSON(w, http.StatusOK, map[string]any{"status": string(jobstore.StatusPending)})
		}
	}
}

// listTasksHandler returns recent jobs, optionally filtered by operation.
func listTasksHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ops []string
		if op := r.URL.Query().Get("op"); op != "" {
			ops = strings.Split(op, ",")
		}
		limit := 20
		if l := r.URL.Query().Get("limit"); l != "" {
			if _, err := fmt.Sscanf(l, "%d", &limit); err != nil {
				httputil.Fail(deps.Log, w, "invalid limit", err, http.StatusBadRequest)
				return
			}
		}

		jobs, err := deps.Jobs.List(r.Context(), ops, limit)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to list jobs", err, http.StatusInternalServerError)
			return
		}
		if jobs == nil {
			jobs = []jobstore.Job{}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"tasks": jobs})
	}
}

// uploadHandler accepts a PDF or TXT article file, extracts its text, and
// dispatches a process job for it.
func uploadHandler(deps app.Deps) http.HandlerFunc {
	maxFileSize := deps.Config.MaxUploadSize

	return func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			httputil.Fail(deps.Log, w, "file is required", err, http.StatusBadRequest)
			return
		}
		defer file.Close()

		if header.Size > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
			return
		}

		contentType := header.Header.Get("Content-Type")
		if contentType == "" || contentType == "application/octet-stream" {
			switch strings.ToLower(filepath.Ext(header.Filename)) {
			case ".txt":
				contentType = "text/plain"
			case ".pdf":
				contentType = "application/pdf"
			}
		}
		allowedTypes := map[string]bool{
			"text/plain":      true,
			"application/pdf": true,
		}
		if !allowedTypes[contentType] {
			httputil.Fail(deps.Log, w, "unsupported file type (only PDF and TXT allowed)", nil, http.StatusBadRequest)
			return
		}

		content, err := io.ReadAll(file)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to read file", err, http.StatusInternalServerError)
			return
		}
		text := extractText(deps, header.Filename, content)

		dispatch(deps, w, r.Context(), queue.TaskTypeProcess, textTaskPayload{Text: text})
	}
}

// extractText extracts text from uploaded files, with PDF support.
func extractText(deps app.Deps, filename string, content []byte) string {
	if strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		text, err := extractPDF(content)
		if err != nil {
			deps.Log.Warn("pdf extraction failed, using raw bytes", "err", err, "filename", filename)
			return string(content)
		}
		return text
	}
	// Treat other files as plain text
	return string(content)
}

func extractPDF(content []byte) (string, error) {
	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, int64(len(content)))
	if err != nil {
		return "", err
	}

	var textBuilder strings.Builder
	numPages := pdfReader.NumPage()

	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := pdfReader.Page(pageNum)
		if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that fail to extract
			continue
		}
		textBuilder.WriteString(text)
		textBuilder.WriteString("\n")
	}

	return textBuilder.String(), nil
}
