package llm

import (
	"context"
	"time"
)

// Client defines the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest is a single-turn completion with an optional image attachment.
type CompletionRequest struct {
	System    string
	Prompt    string
	ImageType string
	Image     []byte
	MaxTokens int
}

// Config holds configuration for the LLM provider and the assistant wrapping it.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	MaxRetries  int
	RetryDelay  time.Duration
	CacheTTL    time.Duration
	RateLimit   int
	Temperature float64
	MaxTokens   int
}
