package llm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/spice-capture/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedClient struct {
	errs      []error
	responses []string
	requests  []CompletionRequest
	mu        sync.Mutex
}

func (s *scriptedClient) Complete(_ context.Context, req CompletionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	i := len(s.requests) - 1
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return s.responses[len(s.responses)-1], nil
}

func (s *scriptedClient) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func newTestAssistant(client Client) *Assistant {
	return NewAssistant(client, Config{MaxRetries: 2, RetryDelay: time.Millisecond}, nil)
}

func TestAssistant_Extract(t *testing.T) {
	client := &scriptedClient{responses: []string{"```json\n" +
		`{"amount": 25000, "counterparty": "Store X", "date": "2024-05-01", "description": "groceries",` +
		` "category_guess": "Shopping", "category_confidence": 0.7, "failed": false}` + "\n```"}}
	a := newTestAssistant(client)

	in := ExtractionInput{Now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), Text: "Spent 25.000 at Store X", Categories: []string{"Shopping"}}
	got, err := a.Extract(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, FlexibleString("25000"), got.Amount)
	assert.Equal(t, "Store X", got.Counterparty)
	assert.Equal(t, "Shopping", got.CategoryGuess)
	assert.InDelta(t, 0.7, got.CategoryConfidence, 0.0001)
	assert.Contains(t, client.requests[0].Prompt, "Categories: Shopping")

	// Identical input is served from the cache.
	again, err := a.Extract(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, got, again)
	assert.Equal(t, 1, client.calls())
}

func TestAssistant_ExtractFailedResultNotCached(t *testing.T) {
	client := &scriptedClient{responses: []string{`{"failed": true, "reason": "no amount"}`}}
	a := newTestAssistant(client)

	in := ExtractionInput{Now: time.Now(), Text: "hello there"}
	for range 2 {
		got, err := a.Extract(context.Background(), in)
		require.NoError(t, err)
		assert.True(t, got.Failed)
	}
	assert.Equal(t, 2, client.calls())
}

func TestAssistant_ExtractRetriesTransientErrors(t *testing.T) {
	client := &scriptedClient{
		errs:      []error{&common.RetryableError{Err: errors.New("502"), Retryable: true}},
		responses: []string{"", `{"amount": "12.50", "counterparty": "Cafe"}`},
	}
	a := newTestAssistant(client)

	got, err := a.Extract(context.Background(), ExtractionInput{Now: time.Now(), Text: "12.50 at Cafe"})
	require.NoError(t, err)
	assert.Equal(t, FlexibleString("12.50"), got.Amount)
	assert.Equal(t, 2, client.calls())
}

func TestAssistant_ExtractErrors(t *testing.T) {
	tests := []struct {
		client *scriptedClient
		name   string
		calls  int
	}{
		{
			name:   "non-retryable provider error",
			client: &scriptedClient{errs: []error{&common.RetryableError{Err: errors.New("401"), Retryable: false}}, responses: []string{""}},
			calls:  1,
		},
		{
			name:   "garbage response",
			client: &scriptedClient{responses: []string{"I cannot help with that."}},
			calls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestAssistant(tt.client).Extract(context.Background(), ExtractionInput{Now: time.Now(), Text: "x"})
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrExtractionFailed)
			assert.Equal(t, tt.calls, tt.client.calls())
		})
	}
}

func TestAssistant_ClassifyIntent(t *testing.T) {
	client := &scriptedClient{responses: []string{
		`Sure! {"intent": "Correct", "corrections": {"amount": "30k", "category": "Food & Dining", "date": null}}`,
	}}
	a := newTestAssistant(client)

	got, err := a.ClassifyIntent(context.Background(), IntentInput{DraftSummary: "25,000 at Store X", Reply: "actually 30k, food"})
	require.NoError(t, err)
	assert.Equal(t, "correct", got.Intent)
	require.NotNil(t, got.Corrections.Amount)
	assert.Equal(t, FlexibleString("30k"), *got.Corrections.Amount)
	require.NotNil(t, got.Corrections.Category)
	assert.Equal(t, "Food & Dining", *got.Corrections.Category)
	assert.Nil(t, got.Corrections.Date)
	assert.Nil(t, got.Corrections.Counterparty)
}

func TestAssistant_Advise(t *testing.T) {
	a := newTestAssistant(&scriptedClient{responses: []string{"  Consider cooking at home this week.  "}})
	got, err := a.Advise(context.Background(), AdviceInput{RecordSummary: "25,000 at Store X", WarningSummary: "over budget"})
	require.NoError(t, err)
	assert.Equal(t, "Consider cooking at home this week.", got)

	_, err = newTestAssistant(&scriptedClient{responses: []string{"   "}}).Advise(context.Background(), AdviceInput{})
	assert.ErrorIs(t, err, common.ErrAdviceFailed)
}

func TestFlexibleString_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  FlexibleString
	}{
		{name: "number", input: `{"v": 25000}`, want: "25000"},
		{name: "decimal", input: `{"v": 12.5}`, want: "12.5"},
		{name: "string", input: `{"v": " Rp 25.000 "}`, want: "Rp 25.000"},
		{name: "null", input: `{"v": null}`, want: ""},
		{name: "missing", input: `{}`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				V FlexibleString `json:"v"`
			}
			require.NoError(t, json.Unmarshal([]byte(tt.input), &out))
			assert.Equal(t, tt.want, out.V)
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "bare", input: `{"a":1}`, want: `{"a":1}`},
		{name: "fenced", input: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "prose around", input: `Here you go: {"a":{"b":2}} hope it helps`, want: `{"a":{"b":2}}`},
		{name: "no object", input: "nothing here", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSONObject(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
