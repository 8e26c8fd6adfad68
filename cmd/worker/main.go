package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"text-services/internal/app"
	"text-services/internal/httputil"
	"text-services/internal/jobstore"
	"text-services/internal/pipeline"
	"text-services/internal/prompts"
	"text-services/internal/queue"
)

type textTaskPayload struct {
	Text string `json:"text"`
}

type testTaskPayload struct {
	Message string `json:"message"`
}

func main() {
	deps, err := app.Build(true)
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	deps.Log.Info("worker starting")

	svc := pipeline.New(deps.LLM, prompts.NewBank(), deps.Log)

	g, ctx := errgroup.WithContext(context.Background())

	// One consumer per operation channel.
	operations := map[queue.TaskType]func(context.Context, string) (any, error){
		queue.TaskTypeSummarize: func(ctx context.Context, text string) (any, error) {
			return svc.Summarize(ctx, text)
		},
		queue.TaskTypeCategorize: func(ctx context.Context, text string) (any, error) {
			return svc.Categorize(ctx, text)
		},
		queue.TaskTypeExtractKeywords: func(ctx context.Context, text string) (any, error) {
			return svc.ExtractKeywords(ctx, text)
		},
		queue.TaskTypeProcess: func(ctx context.Context, text string) (any, error) {
			return svc.Process(ctx, text)
		},
	}
	for taskType, run := range operations {
		g.Go(func() error {
			return deps.Queue.Worker(ctx, taskType, textHandler(deps, run))
		})
	}

	g.Go(func() error {
		return deps.Queue.Worker(ctx, queue.TaskTypeTest, testHandler(deps))
	})

	// Run health check server
	g.Go(func() error {
		return httputil.ServeHealth(deps.Log, "text-processing-worker", deps.Config.Port)
	})

	if err := g.Wait(); err != nil {
		deps.Log.Error("worker stopped", "err", err)
	}
}

// textHandler wraps a pipeline operation as a queue handler. Validation
// failures complete the job with an ERROR-status payload; provider failures
// are returned to the queue so its retry policy applies (exhaustion records
// job FAILURE via the dead-letter callback); configuration failures record
// FAILURE immediately since retrying cannot fix them.
func textHandler(deps app.Deps, run func(context.Context, string) (any, error)) queue.Handler {
	return func(ctx context.Context, task queue.Task) error {
		var payload textTaskPayload
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			deps.Log.Error("invalid task payload", "id", task.ID, "err", err)
			return failJob(ctx, deps, task, "invalid task payload: "+err.Error())
		}

		if err := deps.Jobs.SetRunning(ctx, task.ID); err != nil {
			deps.Log.Warn("failed to mark job running", "id", task.ID, "err", err)
		}

		result, err := run(ctx, payload.Text)
		if err != nil {
			var perr *pipeline.Error
			if errors.As(err, &perr) {
				switch perr.Kind {
				case pipeline.KindValidation:
					return completeJob(ctx, deps, task, result)
				case pipeline.KindConfiguration:
					return failJob(ctx, deps, task, err.Error())
				}
			}
			return err
		}

		return completeJob(ctx, deps, task, result)
	}
}

// testHandler echoes the message along with the worker host identity. Used
// only for connectivity verification.
func testHandler(deps app.Deps) queue.Handler {
	return func(ctx context.Context, task queue.Task) error {
		var payload testTaskPayload
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			deps.Log.Error("invalid task payload", "id", task.ID, "err", err)
			return failJob(ctx, deps, task, "invalid task payload: "+err.Error())
		}

		if err := deps.Jobs.SetRunning(ctx, task.ID); err != nil {
			deps.Log.Warn("failed to mark job running", "id", task.ID, "err", err)
		}

		hostname, _ := os.Hostname()
		deps.Log.Info("test task running", "host", hostname, "message", payload.Message)

		// Simulate some work
		time.Sleep(2 * time.Second)

		return completeJob(ctx, deps, task, map[string]any{
			"message":   payload.Message,
			"hostname":  hostname,
			"timestamp": time.Now().Unix(),
		})
	}
}

// completeJob records the result. A job the store no longer accepts a result
// for (missing or already terminal) is dropped rather than returned to the
// queue, since redelivery would re-run the work with nowhere to put it.
func completeJob(ctx context.Context, deps app.Deps, task queue.Task, result any) error {
	err := deps.Jobs.Complete(ctx, task.ID, result)
	if errors.Is(err, jobstore.ErrJobNotFound) {
		deps.Log.Warn("dropping result for missing or terminal job", "id", task.ID)
		return nil
	}
	return err
}

func failJob(ctx context.Context, deps app.Deps, task queue.Task, msg string) error {
	if err := deps.Jobs.Fail(ctx, task.ID, msg); err != nil {
		deps.Log.Error("failed to record job failure", "id", task.ID, "err", err)
	}
	return nil
}
