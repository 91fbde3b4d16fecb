package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/spice-capture/internal/common"
	"github.com/Veraticus/spice-capture/internal/service"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// ExtractionInput is one capture utterance handed to the model.
type ExtractionInput struct {
	Now        time.Time
	Text       string
	ImageType  string
	Image      []byte
	Categories []string
}

// ExtractionResult is the model's structured reading of an utterance.
type ExtractionResult struct {
	Amount             FlexibleString `json:"amount"`
	Counterparty       string         `json:"counterparty"`
	Date               string         `json:"date"`
	Description        string         `json:"description"`
	CategoryGuess      string         `json:"category_guess"`
	Reason             string         `json:"reason"`
	CategoryConfidence float64        `json:"category_confidence"`
	Failed             bool           `json:"failed"`
}

// IntentInput is a reply to a pending draft.
type IntentInput struct {
	DraftSummary string
	Reply        string
	History      []string
	Categories   []string
}

// RawCorrections holds the fields a model reported as changed. Nil means untouched.
type RawCorrections struct {
	Amount       *FlexibleString `json:"amount"`
	Counterparty *string         `json:"counterparty"`
	Date         *string         `json:"date"`
	Description  *string         `json:"description"`
	Category     *string         `json:"category"`
}

// IntentResult is the model's classification of a reply.
type IntentResult struct {
	Intent      string         `json:"intent"`
	Corrections RawCorrections `json:"corrections"`
}

// AdviceInput describes a finalized record for advice generation.
type AdviceInput struct {
	RecordSummary  string
	WarningSummary string
}

// Assistant wraps a raw Client with rate limiting, retries, and an extraction cache.
type Assistant struct {
	client    Client
	cache     *cache.Cache
	limiter   *rate.Limiter
	logger    *slog.Logger
	retryOpts service.RetryOptions
}

// New creates an Assistant backed by the configured provider.
func New(cfg Config, logger *slog.Logger) (*Assistant, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return NewAssistant(client, cfg, logger), nil
}

// NewAssistant wraps an existing client.
func NewAssistant(client Client, cfg Config, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 2
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = 200 * time.Millisecond
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	limit := rate.Inf
	burst := 1
	if cfg.RateLimit > 0 {
		limit = rate.Limit(float64(cfg.RateLimit) / 60.0)
		burst = max(1, cfg.RateLimit/10)
	}

	return &Assistant{
		client:    client,
		cache:     cache.New(ttl, 10*time.Minute),
		limiter:   rate.NewLimiter(limit, burst),
		logger:    logger,
		retryOpts: retryOpts,
	}
}

// Extract reads an utterance into a structured draft. A result with Failed set is
// a valid answer from the model, not an error.
func (a *Assistant) Extract(ctx context.Context, in ExtractionInput) (*ExtractionResult, error) {
	key := extractionKey(in)
	if cached, found := a.cache.Get(key); found {
		a.logger.Debug("extraction cache hit", "key", key[:12])
		result := cached.(ExtractionResult)
		return &result, nil
	}

	content, err := a.complete(ctx, CompletionRequest{
		System:    extractionSystemPrompt,
		Prompt:    buildExtractionPrompt(in),
		Image:     in.Image,
		ImageType: in.ImageType,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrExtractionFailed, err)
	}

	result, err := decodeResponse[ExtractionResult](content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrExtractionFailed, err)
	}

	if !result.Failed {
		a.cache.Set(key, result, cache.DefaultExpiration)
	}

	a.logger.Debug("utterance extracted",
		"counterparty", result.Counterparty,
		"amount", result.Amount.String(),
		"category_guess", result.CategoryGuess,
		"failed", result.Failed)

	return &result, nil
}

// ClassifyIntent classifies a reply to a pending draft.
func (a *Assistant) ClassifyIntent(ctx context.Context, in IntentInput) (*IntentResult, error) {
	content, err := a.complete(ctx, CompletionRequest{
		System:    intentSystemPrompt,
		Prompt:    buildIntentPrompt(in),
		MaxTokens: 200,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrClassificationFailed, err)
	}

	result, err := decodeResponse[IntentResult](content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrClassificationFailed, err)
	}
	result.Intent = strings.ToLower(strings.TrimSpace(result.Intent))

	return &result, nil
}

// Advise generates a short piece of advice for a finalized record.
func (a *Assistant) Advise(ctx context.Context, in AdviceInput) (string, error) {
	content, err := a.complete(ctx, CompletionRequest{
		System:    adviceSystemPrompt,
		Prompt:    buildAdvicePrompt(in),
		MaxTokens: 150,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrAdviceFailed, err)
	}

	advice := strings.TrimSpace(cleanMarkdownWrapper(content))
	if advice == "" {
		return "", fmt.Errorf("%w: empty response", common.ErrAdviceFailed)
	}
	return advice, nil
}

func (a *Assistant) complete(ctx context.Context, req CompletionRequest) (string, error) {
	var content string
	err := common.WithRetry(ctx, func() error {
		if err := a.limiter.Wait(ctx); err != nil {
			return &common.RetryableError{Err: fmt.Errorf("rate limiter error: %w", err), Retryable: false}
		}
		var err error
		content, err = a.client.Complete(ctx, req)
		return err
	}, a.retryOpts)
	return content, err
}

func extractionKey(in ExtractionInput) string {
	h := sha256.New()
	h.Write([]byte(in.Now.Format("2006-01-02")))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(in.Text)))
	h.Write([]byte{0})
	h.Write(in.Image)
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(in.Categories, "\x1f")))
	return hex.EncodeToString(h.Sum(nil))
}
