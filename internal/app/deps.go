package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/openai/openai-go/v3"

	"text-services/internal/config"
	"text-services/internal/jobstore"
	"text-services/internal/llm"
	"text-services/internal/logger"
	"text-services/internal/queue"
)

// Deps bundles common runtime dependencies for services.
type Deps struct {
	Config config.Config
	Log    *slog.Logger
	Jobs   jobstore.Store
	Queue  queue.Queue
	LLM    llm.Client
}

// Build loads env, config, and shared components. The API process passes
// withLLM=false since it never talks to a provider itself.
func Build(withLLM bool) (Deps, error) {
	// A missing .env file is fine; real deployments configure via environment.
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	jobs, err := buildJobStore(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize job store: %w", err)
	}
	// Exhausted retries dead-letter into the job store as FAILURE so poll
	// clients see a terminal state instead of waiting forever.
	onFailure := func(ctx context.Context, task queue.Task, taskErr error) {
		if err := jobs.Fail(ctx, task.ID, taskErr.Error()); err != nil {
			log.Error("failed to record job failure", "id", task.ID, "err", err)
		}
	}
	q, err := buildQueue(cfg, log, onFailure)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize queue: %w", err)
	}
	deps := Deps{
		Config: cfg,
		Log:    log,
		Jobs:   jobs,
		Queue:  q,
	}
	if withLLM {
		client, err := BuildLLM(cfg, log)
		if err != nil {
			return Deps{}, fmt.Errorf("failed to initialize LLM: %w", err)
		}
		deps.LLM = client
	}
	return deps, nil
}

func buildJobStore(cfg config.Config, log *slog.Logger) (jobstore.Store, error) {
	switch cfg.JobStoreProvider {
	case "redis":
		st, err := jobstore.NewRedis(cfg.RedisAddr, cfg.RedisPassword, time.Duration(cfg.ResultTTL)*time.Second)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis job store: %w", err)
		}
		log.Info("using Redis job store", "addr", cfg.RedisAddr)
		return st, nil
	case "postgres":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("DB_URL is required when JOB_STORE_PROVIDER=postgres")
		}
		st, err := jobstore.NewPostgres(cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres job store: %w", err)
		}
		log.Info("using Postgres job store")
		return st, nil
	default:
		return nil, fmt.Errorf("invalid JOB_STORE_PROVIDER: %s (valid options: redis, postgres)", cfg.JobStoreProvider)
	}
}

func buildQueue(cfg config.Config, log *slog.Logger, onFailure queue.FailureHandler) (queue.Queue, error) {
	switch cfg.QueueProvider {
	case "nats":
		if cfg.QueueURL == "" {
			return nil, fmt.Errorf("QUEUE_URL is required when QUEUE_PROVIDER=nats")
		}
		nc, err := nats.Connect(cfg.QueueURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		log.Info("using NATS queue")
		return queue.NewNATS(log, nc, queue.Options{
			MaxAttempts: cfg.TaskRetryCount,
			BackoffBase: time.Duration(cfg.TaskRetryBackoff) * time.Second,
			OnFailure:   onFailure,
		}), nil
	default:
		return nil, fmt.Errorf("invalid QUEUE_PROVIDER: %s (valid option: nats)", cfg.QueueProvider)
	}
}

// BuildLLM resolves the active provider from configuration and constructs the
// matching client. An unrecognized provider name falls back to ollama with a
// warning; a credentialed provider without its key is an error.
func BuildLLM(cfg config.Config, log *slog.Logger) (llm.Client, error) {
	provider := cfg.LLMProvider
	timeout := time.Duration(cfg.LLMRequestTimeout) * time.Second

	switch provider {
	case "ollama":
	case "openai", "anthropic", "gemini":
	default:
		log.Warn("unknown LLM provider, falling back to ollama", "provider", provider)
		provider = "ollama"
	}

	switch provider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
		client, err := llm.NewOpenAIClient(cfg.OpenAIKey, openai.ChatModel(cfg.OpenAIModel), timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
		}
		log.Info("using OpenAI LLM client", "model", cfg.OpenAIModel)
		return client, nil
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER=anthropic")
		}
		client, err := llm.NewAnthropicClient(cfg.AnthropicKey, cfg.AnthropicModel, timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Anthropic client: %w", err)
		}
		log.Info("using Anthropic LLM client", "model", cfg.AnthropicModel)
		return client, nil
	case "gemini":
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required when LLM_PROVIDER=gemini")
		}
		client, err := llm.NewGeminiClient(cfg.GeminiKey, cfg.GeminiModel, timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
		}
		log.Info("using Gemini LLM client", "model", cfg.GeminiModel)
		return client, nil
	default:
		log.Info("using Ollama LLM client", "host", cfg.OllamaHost, "model", cfg.OllamaModel)
		return llm.NewOllamaClient(cfg.OllamaHost, cfg.OllamaModel, timeout), nil
	}
}
