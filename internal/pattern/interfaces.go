// Package pattern matches categorization rules against captured text and tokenizes
// text for rule learning.
package pattern

import (
	"github.com/Veraticus/spice-capture/internal/model"
)

// Rule is an alias to the model.CategorizationRule type for convenience.
type Rule = model.CategorizationRule

// Matcher evaluates text against categorization rules.
type Matcher interface {
	// Match returns the matching rules, best first.
	Match(counterparty, description string) []Rule
	// Best returns the best matching rule, if any.
	Best(counterparty, description string) (Rule, bool)
}

// Match types re-exported for callers that only import pattern.
const (
	MatchExact   = model.MatchExact
	MatchKeyword = model.MatchKeyword
	MatchRegex   = model.MatchRegex
)
