// Package extractor turns a free-form capture utterance into a categorized draft.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/spice-capture/internal/common"
	"github.com/Veraticus/spice-capture/internal/llm"
	"github.com/Veraticus/spice-capture/internal/model"
	"github.com/Veraticus/spice-capture/internal/pattern"
	"github.com/Veraticus/spice-capture/internal/service"
)

// Model reads an utterance into loosely typed fields.
type Model interface {
	Extract(ctx context.Context, in llm.ExtractionInput) (*llm.ExtractionResult, error)
}

// Input is the content of one user turn.
type Input struct {
	At        time.Time
	Text      string
	ImageType string
	Image     []byte
}

// Extractor builds drafts from user turns.
type Extractor struct {
	model      Model
	categories service.CategoryStore
	rules      service.RuleStore
	logger     *slog.Logger
}

// New creates an Extractor.
func New(m Model, categories service.CategoryStore, rules service.RuleStore, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		model:      m,
		categories: categories,
		rules:      rules,
		logger:     logger,
	}
}

// Extract reads the turn into a draft with a resolved category.
// Every failure, including a model that reports it could not extract, wraps common.ErrExtractionFailed.
func (e *Extractor) Extract(ctx context.Context, userID string, in Input) (*model.Draft, error) {
	if strings.TrimSpace(in.Text) == "" && len(in.Image) == 0 {
		return nil, fmt.Errorf("%w: empty input", common.ErrExtractionFailed)
	}
	if in.At.IsZero() {
		in.At = time.Now()
	}

	categories, err := e.categories.GetCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: loading categories: %w", common.ErrExtractionFailed, err)
	}

	names := make([]string, 0, len(categories))
	for _, c := range categories {
		if c.IsActive {
			names = append(names, c.Name)
		}
	}

	result, err := e.model.Extract(ctx, llm.ExtractionInput{
		Now:        in.At,
		Text:       in.Text,
		Image:      in.Image,
		ImageType:  in.ImageType,
		Categories: names,
	})
	if err != nil {
		if errors.Is(err, common.ErrExtractionFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", common.ErrExtractionFailed, err)
	}
	if result.Failed {
		return nil, fmt.Errorf("%w: %s", common.ErrExtractionFailed, result.Reason)
	}

	draft := &model.Draft{
		Counterparty: cleanText(result.Counterparty),
		Description:  cleanText(result.Description),
		SourceText:   cleanText(in.Text),
	}

	if raw := result.Amount.String(); raw != "" {
		amount, parseErr := ParseAmount(raw)
		if parseErr != nil {
			e.logger.Debug("discarding unreadable amount", "amount", raw, "error", parseErr)
		} else {
			draft.Amount = amount
		}
	}

	draft.Date, _ = ParseDate(result.Date, in.At)

	if err := e.resolveCategory(ctx, userID, draft, categories, result); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrExtractionFailed, err)
	}

	return draft, nil
}

// resolveCategory applies rule matches first, then the model's guess, then Uncategorized.
func (e *Extractor) resolveCategory(ctx context.Context, userID string, draft *model.Draft, categories []model.Category, result *llm.ExtractionResult) error {
	rules, err := e.rules.GetActiveRules(ctx, userID)
	if err != nil {
		e.logger.Warn("rule lookup failed, skipping rule match", "user_id", userID, "error", err)
	}

	if len(rules) > 0 {
		if rule, ok := pattern.NewMatcher(rules).Best(draft.Counterparty, draft.Description); ok {
			draft.CategoryID = rule.CategoryID
			draft.CategoryName = rule.CategoryName
			draft.CategoryConfidence = rule.Confidence
			draft.CategorySource = model.CategoryFromRule
			return nil
		}
	}

	if guess := strings.TrimSpace(result.CategoryGuess); guess != "" {
		if c := findCategory(categories, guess); c != nil && !c.IsUncategorized() {
			draft.CategoryID = c.ID
			draft.CategoryName = c.Name
			draft.CategoryConfidence = result.CategoryConfidence
			draft.CategorySource = model.CategoryFromModel
			return nil
		}
	}

	fallback := findCategory(categories, model.UncategorizedName)
	if fallback == nil {
		created, err := e.categories.CreateCategory(ctx, userID, model.UncategorizedName, "")
		if err != nil {
			return fmt.Errorf("creating fallback category: %w", err)
		}
		fallback = created
	}
	draft.CategoryID = fallback.ID
	draft.CategoryName = fallback.Name
	draft.CategoryConfidence = 0
	draft.CategorySource = model.CategoryFromFallback
	return nil
}

// ResolveCategory finds a user's category by name, case-insensitively, creating it when absent.
func (e *Extractor) ResolveCategory(ctx context.Context, userID, name string) (*model.Category, error) {
	name = cleanText(name)
	if name == "" {
		name = model.UncategorizedName
	}

	c, err := e.categories.GetCategoryByName(ctx, userID, name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("looking up category %q: %w", name, err)
	}

	c, err = e.categories.CreateCategory(ctx, userID, name, "")
	if err != nil {
		return nil, fmt.Errorf("creating category %q: %w", name, err)
	}
	e.logger.Info("created category from correction", "user_id", userID, "category", c.Name)
	return c, nil
}

func findCategory(categories []model.Category, name string) *model.Category {
	for i := range categories {
		if categories[i].IsActive && strings.EqualFold(categories[i].Name, name) {
			return &categories[i]
		}
	}
	return nil
}
