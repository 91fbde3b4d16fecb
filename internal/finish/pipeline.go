package finish

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/spice-capture/internal/llm"
	"github.com/Veraticus/spice-capture/internal/metrics"
	"github.com/Veraticus/spice-capture/internal/model"
)

// AdvicePolicy decides when advice is generated after a confirmation.
type AdvicePolicy string

// Advice policies.
const (
	AdviseOnWarning      AdvicePolicy = "warning_only"
	AdviseOnFailedChecks AdvicePolicy = "include_failed_checks"
	AdviseNever          AdvicePolicy = "never"
)

// ParseAdvicePolicy maps a config value to a policy. Empty means AdviseOnWarning.
func ParseAdvicePolicy(s string) (AdvicePolicy, error) {
	switch AdvicePolicy(s) {
	case "", AdviseOnWarning:
		return AdviseOnWarning, nil
	case AdviseOnFailedChecks, AdviseNever:
		return AdvicePolicy(s), nil
	default:
		return "", fmt.Errorf("unknown advice policy %q", s)
	}
}

// Evaluator checks a confirmed record against its budget.
type Evaluator interface {
	Evaluate(ctx context.Context, record *model.CandidateRecord) (*model.BudgetWarning, error)
}

// Advisor produces advice text.
type Advisor interface {
	Advise(ctx context.Context, in llm.AdviceInput) (string, error)
}

// CheckResult is the outcome of the budget step. Failed is set when the evaluator errored.
type CheckResult struct {
	Warning *model.BudgetWarning
	Failed  bool
}

// Pipeline runs the post-confirmation steps. Both steps are soft: failures are
// logged and produce no warning or no advice.
type Pipeline struct {
	evaluator Evaluator
	advisor   Advisor
	logger    *slog.Logger
	policy    AdvicePolicy
}

// NewPipeline creates a Pipeline. A nil advisor disables advice.
func NewPipeline(evaluator Evaluator, advisor Advisor, policy AdvicePolicy, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == "" {
		policy = AdviseOnWarning
	}
	return &Pipeline{
		evaluator: evaluator,
		advisor:   advisor,
		policy:    policy,
		logger:    logger,
	}
}

// CheckBudget evaluates the record's budget.
func (p *Pipeline) CheckBudget(ctx context.Context, record *model.CandidateRecord) CheckResult {
	if p.evaluator == nil {
		return CheckResult{}
	}
	warning, err := p.evaluator.Evaluate(ctx, record)
	if err != nil {
		metrics.ExternalFailures.WithLabelValues("budget").Inc()
		p.logger.Warn("budget check failed, continuing without warning",
			"record_id", record.ID,
			"error", err)
		return CheckResult{Failed: true}
	}
	return CheckResult{Warning: warning}
}

// ShouldAdvise applies the advice policy to a budget check result.
func (p *Pipeline) ShouldAdvise(check CheckResult) bool {
	if p.advisor == nil {
		return false
	}
	switch p.policy {
	case AdviseNever:
		return false
	case AdviseOnFailedChecks:
		return check.Warning != nil || check.Failed
	default:
		return check.Warning != nil
	}
}

// Advise generates advice for the record. It returns nil when the advisor fails.
func (p *Pipeline) Advise(ctx context.Context, record *model.CandidateRecord, check CheckResult) *string {
	if p.advisor == nil {
		return nil
	}
	advice, err := p.advisor.Advise(ctx, llm.AdviceInput{
		RecordSummary:  record.Summary(),
		WarningSummary: WarningSummary(check.Warning),
	})
	if err != nil {
		metrics.ExternalFailures.WithLabelValues("advice").Inc()
		p.logger.Warn("advice generation failed, continuing without advice",
			"record_id", record.ID,
			"error", err)
		return nil
	}
	return &advice
}
