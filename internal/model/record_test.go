package model

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraft_IsMinimallyValid(t *testing.T) {
	tests := []struct {
		draft *Draft
		name  string
		want  bool
	}{
		{name: "nil draft", draft: nil, want: false},
		{name: "missing amount", draft: &Draft{Counterparty: "Store X"}, want: false},
		{name: "amount only", draft: &Draft{Amount: 25000}, want: false},
		{name: "amount and counterparty", draft: &Draft{Amount: 25000, Counterparty: "Store X"}, want: true},
		{name: "amount and description", draft: &Draft{Amount: 12.5, Description: "lunch"}, want: true},
		{name: "whitespace counterparty", draft: &Draft{Amount: 10, Counterparty: "   "}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.draft.IsMinimallyValid())
		})
	}
}

func TestCorrections_Apply(t *testing.T) {
	date := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	amount := 30000.0
	category := "Transportation"
	counterparty := " Store Y "

	draft := &Draft{
		Amount:         25000,
		Counterparty:   "Store X",
		Date:           date,
		CategoryID:     7,
		CategoryName:   "Shopping",
		CategorySource: CategoryFromRule,
	}

	c := &Corrections{Amount: &amount, Category: &category, Counterparty: &counterparty}
	changed := c.Apply(draft)

	assert.ElementsMatch(t, []string{"amount", "category", "counterparty"}, changed)
	assert.InDelta(t, 30000.0, draft.Amount, 0.001)
	assert.Equal(t, "Store Y", draft.Counterparty)
	assert.Equal(t, "Transportation", draft.CategoryName)
	assert.Zero(t, draft.CategoryID)
	assert.Equal(t, CategoryFromUser, draft.CategorySource)
	assert.Equal(t, date, draft.Date)
}

func TestCorrections_ApplyUnchangedCategoryIsNoop(t *testing.T) {
	category := "shopping"
	draft := &Draft{Amount: 10, Counterparty: "A", CategoryID: 3, CategoryName: "Shopping"}

	changed := (&Corrections{Category: &category}).Apply(draft)

	assert.Empty(t, changed)
	assert.Equal(t, int64(3), draft.CategoryID)
}

func TestCorrections_IsEmpty(t *testing.T) {
	var nilCorrections *Corrections
	assert.True(t, nilCorrections.IsEmpty())
	assert.True(t, (&Corrections{}).IsEmpty())

	desc := "x"
	assert.False(t, (&Corrections{Description: &desc}).IsEmpty())
}

func TestConversationState_AppendTurnBounded(t *testing.T) {
	state := NewConversationState("conv-1", "user-1")
	for i := 0; i < 25; i++ {
		state.AppendTurn(Turn{Role: RoleUser, Content: fmt.Sprintf("turn %d", i)}, DefaultHistoryLimit)
	}

	require.Len(t, state.TurnHistory, DefaultHistoryLimit)
	assert.Equal(t, "turn 5", state.TurnHistory[0].Content)
	assert.Equal(t, "turn 24", state.TurnHistory[DefaultHistoryLimit-1].Content)
}

func TestConversationState_DeadlinePassed(t *testing.T) {
	now := time.Now()
	state := NewConversationState("conv-1", "user-1")
	assert.False(t, state.DeadlinePassed(now))

	state.PendingConfirmation = true
	state.ConfirmationDeadline = now.Add(time.Minute)
	assert.False(t, state.DeadlinePassed(now))
	assert.True(t, state.DeadlinePassed(now.Add(2*time.Minute)))
}

func TestConversationState_ResetCycleKeepsHistory(t *testing.T) {
	state := NewConversationState("conv-1", "user-1")
	state.AppendTurn(Turn{Role: RoleUser, Content: "hi"}, 0)
	state.Draft = &Draft{Amount: 1}
	state.RecordID = "rec"
	state.PendingConfirmation = true
	state.Version = 4

	state.ResetCycle()

	assert.Nil(t, state.Draft)
	assert.Empty(t, state.RecordID)
	assert.False(t, state.PendingConfirmation)
	assert.Equal(t, NodeStart, state.CurrentNode)
	assert.Len(t, state.TurnHistory, 1)
	assert.Equal(t, int64(4), state.Version)
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		want   string
		amount float64
	}{
		{want: "25,000", amount: 25000},
		{want: "1,234,567.89", amount: 1234567.89},
		{want: "12.50", amount: 12.5},
		{want: "999", amount: 999},
		{want: "-1,000", amount: -1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAmount(tt.amount))
	}
}

func TestMonthBounds(t *testing.T) {
	start, end := MonthBounds(time.Date(2024, 12, 17, 15, 4, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestDraft_SameFields(t *testing.T) {
	base := Draft{
		Date:         time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		Counterparty: "Store X",
		Description:  "coffee",
		Amount:       25000,
		CategoryID:   3,
		SourceText:   "coffee 25000 at Store X",
	}

	tests := []struct {
		mutate func(d *Draft)
		name   string
		want   bool
	}{
		{name: "identical", mutate: func(*Draft) {}, want: true},
		{name: "same instant in another zone", mutate: func(d *Draft) {
			d.Date = d.Date.In(time.FixedZone("WIB", 7*3600))
		}, want: true},
		{name: "source text is not content", mutate: func(d *Draft) { d.SourceText = "" }, want: true},
		{name: "amount", mutate: func(d *Draft) { d.Amount = 35000 }},
		{name: "counterparty", mutate: func(d *Draft) { d.Counterparty = "Store Y" }},
		{name: "category", mutate: func(d *Draft) { d.CategoryID = 4 }},
		{name: "date", mutate: func(d *Draft) { d.Date = d.Date.AddDate(0, 0, 1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base
			tt.mutate(&other)
			assert.Equal(t, tt.want, base.SameFields(&other))
		})
	}

	var missing *Draft
	assert.False(t, base.SameFields(missing))
	assert.True(t, missing.SameFields(nil))
}
