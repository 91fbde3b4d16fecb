package model

import (
	"fmt"
	"strings"
	"time"
)

// CategorySource records where a draft's category came from.
type CategorySource string

// Category source constants.
const (
	CategoryFromRule     CategorySource = "rule"
	CategoryFromModel    CategorySource = "model"
	CategoryFromUser     CategorySource = "user"
	CategoryFromFallback CategorySource = "fallback"
)

// Draft is the structured, unconfirmed interpretation of a user turn.
type Draft struct {
	Date               time.Time      `json:"date"`
	Counterparty       string         `json:"counterparty"`
	Description        string         `json:"description"`
	CategoryName       string         `json:"category_name"`
	CategorySource     CategorySource `json:"category_source"`
	SourceText         string         `json:"source_text"`
	Amount             float64        `json:"amount"`
	CategoryID         int64          `json:"category_id"`
	CategoryConfidence float64        `json:"category_confidence"`
}

// IsMinimallyValid reports whether the draft has enough detail to ask for confirmation.
func (d *Draft) IsMinimallyValid() bool {
	if d == nil || d.Amount == 0 {
		return false
	}
	return strings.TrimSpace(d.Counterparty) != "" || strings.TrimSpace(d.Description) != ""
}

// LearningText is the text the category learner tokenizes for this draft.
func (d *Draft) LearningText() string {
	if d.SourceText != "" {
		return d.SourceText
	}
	return strings.TrimSpace(d.Counterparty + " " + d.Description)
}

// SameFields reports whether two drafts would be saved as the same record content.
func (d *Draft) SameFields(o *Draft) bool {
	if d == nil || o == nil {
		return d == o
	}
	return d.Amount == o.Amount &&
		d.Counterparty == o.Counterparty &&
		d.Description == o.Description &&
		d.CategoryID == o.CategoryID &&
		d.Date.Equal(o.Date)
}

// Clone returns a copy of the draft.
func (d *Draft) Clone() *Draft {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// Summary renders the draft in a single human readable line.
func (d *Draft) Summary() string {
	who := d.Counterparty
	if who == "" {
		who = d.Description
	}
	category := d.CategoryName
	if category == "" {
		category = UncategorizedName
	}
	return fmt.Sprintf("%s at %s on %s (%s)", FormatAmount(d.Amount), who, d.Date.Format("2006-01-02"), category)
}

// Corrections holds field-level overrides supplied by the user.
// Nil fields are left untouched when applied.
type Corrections struct {
	Amount       *float64   `json:"amount,omitempty"`
	Counterparty *string    `json:"counterparty,omitempty"`
	Date         *time.Time `json:"date,omitempty"`
	Description  *string    `json:"description,omitempty"`
	Category     *string    `json:"category,omitempty"`
}

// IsEmpty reports whether no field is overridden.
func (c *Corrections) IsEmpty() bool {
	return c == nil || (c.Amount == nil && c.Counterparty == nil && c.Date == nil &&
		c.Description == nil && c.Category == nil)
}

// Apply merges the overrides into the draft and returns the names of changed fields.
// The category override only sets the name; resolving it to an id is left to the caller.
func (c *Corrections) Apply(d *Draft) []string {
	if c == nil || d == nil {
		return nil
	}

	var changed []string
	if c.Amount != nil && *c.Amount != d.Amount {
		d.Amount = *c.Amount
		changed = append(changed, "amount")
	}
	if c.Counterparty != nil && strings.TrimSpace(*c.Counterparty) != d.Counterparty {
		d.Counterparty = strings.TrimSpace(*c.Counterparty)
		changed = append(changed, "counterparty")
	}
	if c.Date != nil && !c.Date.Equal(d.Date) {
		d.Date = *c.Date
		changed = append(changed, "date")
	}
	if c.Description != nil && strings.TrimSpace(*c.Description) != d.Description {
		d.Description = strings.TrimSpace(*c.Description)
		changed = append(changed, "description")
	}
	if c.Category != nil && !strings.EqualFold(strings.TrimSpace(*c.Category), d.CategoryName) {
		d.CategoryName = strings.TrimSpace(*c.Category)
		d.CategoryID = 0
		d.CategorySource = CategoryFromUser
		d.CategoryConfidence = 1.0
		changed = append(changed, "category")
	}
	return changed
}

// RecordStatus is the confirmation state of a record version.
type RecordStatus string

// Record status constants.
const (
	RecordUnconfirmed RecordStatus = "unconfirmed"
	RecordConfirmed   RecordStatus = "confirmed"
)

// CandidateRecord is one immutable version of a captured record.
// Corrections produce a new version with the same ID.
type CandidateRecord struct {
	CreatedAt      time.Time    `json:"created_at"`
	ConfirmedAt    *time.Time   `json:"confirmed_at,omitempty"`
	ID             string       `json:"id"`
	UserID         string       `json:"user_id"`
	ConversationID string       `json:"conversation_id"`
	Status         RecordStatus `json:"status"`
	Draft
	Version int `json:"version"`
}

// IsConfirmed reports whether the record version has been confirmed.
func (r *CandidateRecord) IsConfirmed() bool {
	return r.Status == RecordConfirmed
}

// FormatAmount renders an amount with thousands separators and at most two decimals.
func FormatAmount(amount float64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	cents := int64(amount*100 + 0.5)
	whole := cents / 100
	frac := cents % 100

	digits := fmt.Sprintf("%d", whole)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if frac != 0 {
		out = fmt.Sprintf("%s.%02d", out, frac)
	}
	if neg {
		out = "-" + out
	}
	return out
}
