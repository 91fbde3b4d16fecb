package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Veraticus/spice-capture/internal/common"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the typed application configuration.
type Config struct {
	LLM        LLMConfig
	Redis      RedisConfig
	Database   DatabaseConfig
	Server     ServerConfig
	Checkpoint CheckpointConfig
	Finish     FinishConfig
	Workflow   WorkflowConfig
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `validate:"required"`
}

// CheckpointConfig selects the conversation checkpoint backend.
type CheckpointConfig struct {
	Backend   string        `validate:"oneof=sqlite redis"`
	Retention time.Duration `validate:"gt=0"`
}

// RedisConfig configures the Redis checkpoint backend.
type RedisConfig struct {
	Address   string
	Password  string
	KeyPrefix string
	DB        int `validate:"gte=0"`
}

// LLMConfig configures the language model provider.
type LLMConfig struct {
	Provider    string `validate:"oneof=openai anthropic"`
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64       `validate:"gte=0,lte=2"`
	MaxTokens   int           `validate:"gt=0"`
	MaxRetries  int           `validate:"gte=0"`
	RetryDelay  time.Duration `validate:"gte=0"`
	CacheTTL    time.Duration `validate:"gte=0"`
	RateLimit   int           `validate:"gte=0"`
}

// WorkflowConfig tunes the capture workflow.
type WorkflowConfig struct {
	DefaultUser         string        `validate:"required"`
	ConfirmationTimeout time.Duration `validate:"gt=0"`
	ExternalTimeout     time.Duration `validate:"gt=0"`
	WriteTimeout        time.Duration `validate:"gt=0"`
	ReplayWindow        time.Duration `validate:"gte=0"`
	HistoryLimit        int           `validate:"gt=0"`
}

// FinishConfig tunes the budget check and advice steps.
type FinishConfig struct {
	AdvicePolicy string  `validate:"oneof=warning_only include_failed_checks never"`
	WarnRatio    float64 `validate:"gt=0"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host string
	Port int `validate:"gt=0,lte=65535"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "~/.local/share/spice/capture.db")
	v.SetDefault("checkpoint.backend", "sqlite")
	v.SetDefault("checkpoint.retention", 24*time.Hour)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "spice:conversation:")
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 500)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.retry_delay", 200*time.Millisecond)
	v.SetDefault("llm.cache_ttl", 10*time.Minute)
	v.SetDefault("llm.rate_limit", 60)
	v.SetDefault("workflow.default_user", "default")
	v.SetDefault("workflow.confirmation_timeout", 10*time.Minute)
	v.SetDefault("workflow.external_timeout", 4*time.Second)
	v.SetDefault("workflow.write_timeout", 5*time.Second)
	v.SetDefault("workflow.replay_window", 2*time.Minute)
	v.SetDefault("workflow.history_limit", 20)
	v.SetDefault("finish.advice_policy", "warning_only")
	v.SetDefault("finish.warn_ratio", 1.0)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
}

// Load builds a validated Config from v.
// API keys fall back to the provider's conventional environment variable.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{Path: ExpandPath(v.GetString("database.path"))},
		Checkpoint: CheckpointConfig{
			Backend:   strings.ToLower(v.GetString("checkpoint.backend")),
			Retention: v.GetDuration("checkpoint.retention"),
		},
		Redis: RedisConfig{
			Address:   v.GetString("redis.address"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			KeyPrefix: v.GetString("redis.key_prefix"),
		},
		LLM: LLMConfig{
			Provider:    strings.ToLower(v.GetString("llm.provider")),
			Model:       v.GetString("llm.model"),
			BaseURL:     v.GetString("llm.base_url"),
			Temperature: v.GetFloat64("llm.temperature"),
			MaxTokens:   v.GetInt("llm.max_tokens"),
			MaxRetries:  v.GetInt("llm.max_retries"),
			RetryDelay:  v.GetDuration("llm.retry_delay"),
			CacheTTL:    v.GetDuration("llm.cache_ttl"),
			RateLimit:   v.GetInt("llm.rate_limit"),
		},
		Workflow: WorkflowConfig{
			DefaultUser:         v.GetString("workflow.default_user"),
			ConfirmationTimeout: v.GetDuration("workflow.confirmation_timeout"),
			ExternalTimeout:     v.GetDuration("workflow.external_timeout"),
			WriteTimeout:        v.GetDuration("workflow.write_timeout"),
			ReplayWindow:        v.GetDuration("workflow.replay_window"),
			HistoryLimit:        v.GetInt("workflow.history_limit"),
		},
		Finish: FinishConfig{
			AdvicePolicy: v.GetString("finish.advice_policy"),
			WarnRatio:    v.GetFloat64("finish.warn_ratio"),
		},
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetInt("server.port"),
		},
	}

	switch cfg.LLM.Provider {
	case "openai":
		cfg.LLM.APIKey = firstNonEmpty(v.GetString("llm.openai_api_key"), os.Getenv("OPENAI_API_KEY"))
	case "anthropic":
		cfg.LLM.APIKey = firstNonEmpty(v.GetString("llm.anthropic_api_key"), os.Getenv("ANTHROPIC_API_KEY"))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	if c.Checkpoint.Backend == "redis" && c.Redis.Address == "" {
		return fmt.Errorf("%w: redis.address is required for the redis checkpoint backend", common.ErrMissingConfig)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
