// Package learner turns user category corrections into categorization rules.
package learner

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/spice-capture/internal/metrics"
	"github.com/Veraticus/spice-capture/internal/model"
	"github.com/Veraticus/spice-capture/internal/pattern"
	"github.com/Veraticus/spice-capture/internal/service"
)

// DefaultTimeout bounds one asynchronous learning pass.
const DefaultTimeout = 5 * time.Second

// Event describes a category correction made by a user.
type Event struct {
	UserID           string
	SourceText       string
	Counterparty     string
	OriginalCategory string
	CategoryName     string
	CategoryID       int64
}

// Learner upserts keyword and exact rules from corrections.
// Failures are logged and never reach the caller.
type Learner struct {
	rules   service.RuleStore
	logger  *slog.Logger
	wg      sync.WaitGroup
	timeout time.Duration
}

// New creates a learner writing to rules.
func New(rules service.RuleStore, logger *slog.Logger, timeout time.Duration) *Learner {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Learner{rules: rules, logger: logger, timeout: timeout}
}

// LearnAsync learns from ev in the background, detached from the caller's lifetime.
func (l *Learner) LearnAsync(ev Event) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		defer cancel()
		l.Learn(ctx, ev)
	}()
}

// Wait blocks until every background learning pass has finished.
func (l *Learner) Wait() {
	l.wg.Wait()
}

// Learn upserts one keyword rule per token of the source text and an exact rule for the
// counterparty, all pointing at the corrected category. It returns the number of rules written.
func (l *Learner) Learn(ctx context.Context, ev Event) int {
	if ev.UserID == "" || ev.CategoryID <= 0 {
		l.logger.Warn("Skipping learning event without user or category",
			"user_id", ev.UserID, "category_id", ev.CategoryID)
		return 0
	}

	tokens := pattern.Tokenize(ev.SourceText)
	var rules []*model.CategorizationRule
	for _, token := range tokens {
		rules = append(rules, &model.CategorizationRule{
			UserID:     ev.UserID,
			Pattern:    token,
			MatchType:  model.MatchKeyword,
			CategoryID: ev.CategoryID,
			Confidence: model.KeywordRuleBaseConfidence,
		})
	}
	if cp := strings.ToLower(strings.TrimSpace(ev.Counterparty)); cp != "" && !slices.Contains(tokens, cp) && len(pattern.Tokenize(cp)) > 0 {
		rules = append(rules, &model.CategorizationRule{
			UserID:     ev.UserID,
			Pattern:    cp,
			MatchType:  model.MatchExact,
			CategoryID: ev.CategoryID,
			Confidence: model.ExactRuleBaseConfidence,
		})
	}

	written := 0
	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			l.logger.Warn("Learning interrupted", "user_id", ev.UserID, "error", err)
			break
		}
		if err := l.rules.UpsertRule(ctx, rule); err != nil {
			metrics.LearnerUpserts.WithLabelValues("error").Inc()
			l.logger.Warn("Failed to upsert learned rule",
				"user_id", ev.UserID,
				"pattern", rule.Pattern,
				"error", err)
			continue
		}
		metrics.LearnerUpserts.WithLabelValues("ok").Inc()
		written++
	}

	l.logger.Info("Learned from category correction",
		"user_id", ev.UserID,
		"from", ev.OriginalCategory,
		"to", ev.CategoryName,
		"rules", written)
	return written
}
