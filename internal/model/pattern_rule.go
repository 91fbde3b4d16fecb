// Package model defines the core data structures for the spice capture engine.
package model

import (
	"time"
)

// MatchType describes how a categorization rule pattern is compared to text.
type MatchType string

// Match type constants.
const (
	MatchExact   MatchType = "exact"
	MatchKeyword MatchType = "keyword"
	MatchRegex   MatchType = "regex"
)

// Valid reports whether the match type is known.
func (m MatchType) Valid() bool {
	switch m {
	case MatchExact, MatchKeyword, MatchRegex:
		return true
	default:
		return false
	}
}

// Rule confidence constants used when learning from corrections.
const (
	KeywordRuleBaseConfidence = 0.6
	ExactRuleBaseConfidence   = 0.8
	RuleConfidenceBoost       = 0.1
	MaxRuleConfidence         = 1.0
)

// CategorizationRule maps a per-user pattern to a category.
// A user never has two rules with the same pattern.
type CategorizationRule struct {
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	UserID       string    `json:"user_id"`
	Pattern      string    `json:"pattern"`
	MatchType    MatchType `json:"match_type"`
	CategoryName string    `json:"category_name"`
	ID           int64     `json:"id"`
	CategoryID   int64     `json:"category_id"`
	Confidence   float64   `json:"confidence"`
	UseCount     int       `json:"use_count"`
	IsActive     bool      `json:"is_active"`
}
