package config

import (
	"log/slog"

	"github.com/caarlos0/env/v10"
)

// Config holds process-wide runtime configuration. It is loaded once at
// startup and passed by value to constructors; components never read the
// environment themselves.
type Config struct {
	// Server
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Upload limits
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"` // 10MB in bytes

	// Job store
	JobStoreProvider string `env:"JOB_STORE_PROVIDER" envDefault:"redis"` // "redis" or "postgres"
	RedisAddr        string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword    string `env:"REDIS_PASSWORD"`
	DBURL            string `env:"DB_URL"`
	ResultTTL        int    `env:"RESULT_TTL_SECONDS" envDefault:"86400"`

	// Queue
	QueueProvider    string `env:"QUEUE_PROVIDER" envDefault:"nats"`
	QueueURL         string `env:"QUEUE_URL"`
	TaskRetryCount   int    `env:"TASK_RETRY_COUNT" envDefault:"3"`
	TaskRetryBackoff int    `env:"TASK_RETRY_BACKOFF" envDefault:"5"` // backoff base in seconds

	// LLM
	LLMProvider    string `env:"LLM_PROVIDER" envDefault:"ollama"` // "ollama", "openai", "anthropic", "gemini"
	OllamaHost     string `env:"OLLAMA_HOST" envDefault:"http://localhost:11434"`
	OllamaModel    string `env:"OLLAMA_MODEL" envDefault:"llama3.2"`
	OpenAIKey      string `env:"OPENAI_API_KEY"`
	OpenAIModel    string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	AnthropicKey   string `env:"ANTHROPIC_API_KEY"`
	AnthropicModel string `env:"ANTHROPIC_MODEL" envDefault:"claude-3-5-haiku-latest"`
	GeminiKey      string `env:"GEMINI_API_KEY"`
	GeminiModel    string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`

	// LLMRequestTimeout bounds a single provider call, in seconds.
	LLMRequestTimeout int `env:"LLM_REQUEST_TIMEOUT" envDefault:"60"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}

// ModelName returns the model configured for the given provider name.
func (c Config) ModelName(provider string) string {
	switch provider {
	case "openai":
		return c.OpenAIModel
	case "anthropic":
		return c.AnthropicModel
	case "gemini":
		return c.GeminiModel
	default:
		return c.OllamaModel
	}
}
