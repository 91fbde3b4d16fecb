package engine

import (
	"context"

	"github.com/Veraticus/spice-capture/internal/extractor"
	"github.com/Veraticus/spice-capture/internal/finish"
	"github.com/Veraticus/spice-capture/internal/intent"
	"github.com/Veraticus/spice-capture/internal/learner"
	"github.com/Veraticus/spice-capture/internal/model"
)

// DraftExtractor reads a user turn into a categorized draft.
type DraftExtractor interface {
	Extract(ctx context.Context, userID string, in extractor.Input) (*model.Draft, error)
	// ResolveCategory finds or creates a category by name for a user correction.
	ResolveCategory(ctx context.Context, userID, name string) (*model.Category, error)
}

// IntentClassifier classifies a reply to a pending draft.
type IntentClassifier interface {
	Classify(ctx context.Context, req intent.Request) (model.Intent, error)
}

// Finisher runs the post-confirmation budget check and advice steps.
type Finisher interface {
	CheckBudget(ctx context.Context, record *model.CandidateRecord) finish.CheckResult
	ShouldAdvise(check finish.CheckResult) bool
	Advise(ctx context.Context, record *model.CandidateRecord, check finish.CheckResult) *string
}

// Learner records user category corrections as rules without blocking the turn.
type Learner interface {
	LearnAsync(ev learner.Event)
}
