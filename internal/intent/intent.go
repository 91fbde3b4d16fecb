// Package intent classifies a user's reply to a draft awaiting confirmation.
package intent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/spice-capture/internal/common"
	"github.com/Veraticus/spice-capture/internal/extractor"
	"github.com/Veraticus/spice-capture/internal/llm"
	"github.com/Veraticus/spice-capture/internal/model"
)

// Model classifies replies into loosely typed results.
type Model interface {
	ClassifyIntent(ctx context.Context, in llm.IntentInput) (*llm.IntentResult, error)
}

// Request is a reply together with the context it was given in.
type Request struct {
	At         time.Time
	Draft      *model.Draft
	Reply      string
	History    []model.Turn
	Categories []string
}

// Classifier turns replies into typed intents.
type Classifier struct {
	model  Model
	logger *slog.Logger
}

// NewClassifier creates a Classifier.
func NewClassifier(m Model, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{model: m, logger: logger}
}

// Classify returns the intent of the reply. A correction that names no readable
// field is reported as unrelated so the user is asked again.
func (c *Classifier) Classify(ctx context.Context, req Request) (model.Intent, error) {
	if req.Draft == nil {
		return model.Intent{}, fmt.Errorf("%w: no draft to classify against", common.ErrClassificationFailed)
	}

	history := make([]string, 0, len(req.History))
	for _, turn := range req.History {
		content := turn.Content
		if turn.Kind == model.ContentImage {
			content = "[image]"
		}
		history = append(history, fmt.Sprintf("%s: %s", turn.Role, content))
	}

	raw, err := c.model.ClassifyIntent(ctx, llm.IntentInput{
		DraftSummary: req.Draft.Summary(),
		Reply:        req.Reply,
		History:      history,
		Categories:   req.Categories,
	})
	if err != nil {
		if errors.Is(err, common.ErrClassificationFailed) {
			return model.Intent{}, err
		}
		return model.Intent{}, fmt.Errorf("%w: %w", common.ErrClassificationFailed, err)
	}

	ref := req.At
	if ref.IsZero() {
		ref = time.Now()
	}

	switch model.IntentKind(raw.Intent) {
	case model.IntentConfirm:
		return model.Intent{Kind: model.IntentConfirm}, nil
	case model.IntentCancel:
		return model.Intent{Kind: model.IntentCancel}, nil
	case model.IntentCorrect:
		corrections := c.convertCorrections(raw.Corrections, ref)
		if corrections.IsEmpty() {
			c.logger.Debug("correction without readable fields treated as unrelated", "reply", req.Reply)
			return model.Intent{Kind: model.IntentUnrelated}, nil
		}
		return model.Intent{Kind: model.IntentCorrect, Corrections: corrections}, nil
	case model.IntentUnrelated:
		return model.Intent{Kind: model.IntentUnrelated}, nil
	default:
		c.logger.Debug("unknown intent treated as unrelated", "intent", raw.Intent)
		return model.Intent{Kind: model.IntentUnrelated}, nil
	}
}

// convertCorrections normalizes model-reported corrections. Unreadable fields are dropped.
func (c *Classifier) convertCorrections(raw llm.RawCorrections, ref time.Time) *model.Corrections {
	out := &model.Corrections{}

	if raw.Amount != nil && raw.Amount.String() != "" {
		amount, err := extractor.ParseAmount(raw.Amount.String())
		if err != nil || amount == 0 {
			c.logger.Debug("dropping unreadable amount correction", "amount", raw.Amount.String())
		} else {
			out.Amount = &amount
		}
	}

	if raw.Date != nil && strings.TrimSpace(*raw.Date) != "" {
		if date, ok := extractor.ParseDate(*raw.Date, ref); ok {
			out.Date = &date
		} else {
			c.logger.Debug("dropping unreadable date correction", "date", *raw.Date)
		}
	}

	out.Counterparty = nonEmpty(raw.Counterparty)
	out.Description = nonEmpty(raw.Description)
	out.Category = nonEmpty(raw.Category)

	return out
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.Join(strings.Fields(*s), " ")
	if v == "" {
		return nil
	}
	return &v
}
