package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/spice-capture/internal/extractor"
	"github.com/Veraticus/spice-capture/internal/finish"
	"github.com/Veraticus/spice-capture/internal/intent"
	"github.com/Veraticus/spice-capture/internal/learner"
	"github.com/Veraticus/spice-capture/internal/llm"
	"github.com/Veraticus/spice-capture/internal/model"
	"github.com/Veraticus/spice-capture/internal/service"
	"github.com/Veraticus/spice-capture/internal/storage"
	"github.com/Veraticus/spice-capture/internal/testutil"
	"github.com/stretchr/testify/require"
)

const testUser = "user-1"

type fakeClock struct {
	now time.Time
	mu  sync.Mutex
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// waitForCancel blocks like a stalled external service until ctx ends.
func waitForCancel(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return errors.New("call was never cancelled")
	}
}

// scriptedExtraction answers extraction requests by message text.
type scriptedExtraction struct {
	byText   map[string]llm.ExtractionResult
	fallback *llm.ExtractionResult
	imageErr error
	calls    int
	block    bool
	mu       sync.Mutex
}

func (s *scriptedExtraction) Extract(ctx context.Context, in llm.ExtractionInput) (*llm.ExtractionResult, error) {
	s.mu.Lock()
	s.calls++
	block := s.block
	s.mu.Unlock()
	if block {
		return nil, waitForCancel(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(in.Image) > 0 && s.imageErr != nil {
		return nil, s.imageErr
	}
	if r, ok := s.byText[in.Text]; ok {
		return &r, nil
	}
	if s.fallback != nil {
		r := *s.fallback
		return &r, nil
	}
	return &llm.ExtractionResult{Failed: true, Reason: "no purchase found"}, nil
}

func (s *scriptedExtraction) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// scriptedIntents answers classification requests by reply text. Unknown replies are unrelated.
type scriptedIntents struct {
	byReply map[string]llm.IntentResult
	err     error
	block   bool
	mu      sync.Mutex
}

func (s *scriptedIntents) ClassifyIntent(ctx context.Context, in llm.IntentInput) (*llm.IntentResult, error) {
	s.mu.Lock()
	block := s.block
	s.mu.Unlock()
	if block {
		return nil, waitForCancel(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if r, ok := s.byReply[in.Reply]; ok {
		return &r, nil
	}
	return &llm.IntentResult{Intent: "unrelated"}, nil
}

type stubAdvisor struct {
	err    error
	advice string
	calls  int
	block  bool
	mu     sync.Mutex
}

func (s *stubAdvisor) Advise(ctx context.Context, _ llm.AdviceInput) (string, error) {
	s.mu.Lock()
	s.calls++
	advice, err, block := s.advice, s.err, s.block
	s.mu.Unlock()
	if block {
		return "", waitForCancel(ctx)
	}
	return advice, err
}

// stalledEvaluator never answers a budget check before ctx ends.
type stalledEvaluator struct{}

func (stalledEvaluator) Evaluate(ctx context.Context, _ *model.CandidateRecord) (*model.BudgetWarning, error) {
	return nil, waitForCancel(ctx)
}

// flakyCheckpoints fails checkpoint operations on demand.
type flakyCheckpoints struct {
	service.CheckpointStore
	saveErr error
	loadErr error
	mu      sync.Mutex
}

func (f *flakyCheckpoints) failSaves(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveErr = err
}

func (f *flakyCheckpoints) failLoads(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadErr = err
}

func (f *flakyCheckpoints) SaveCheckpoint(ctx context.Context, state *model.ConversationState) error {
	f.mu.Lock()
	err := f.saveErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.CheckpointStore.SaveCheckpoint(ctx, state)
}

func (f *flakyCheckpoints) LoadCheckpoint(ctx context.Context, id string) (*model.ConversationState, error) {
	f.mu.Lock()
	err := f.loadErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.CheckpointStore.LoadCheckpoint(ctx, id)
}

type harness struct {
	engine      *Engine
	db          *testutil.TestDB
	store       *storage.SQLiteStorage
	checkpoints *flakyCheckpoints
	clock       *fakeClock
	extraction  *scriptedExtraction
	intents     *scriptedIntents
	advisor     *stubAdvisor
	learner     *learner.Learner
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	evaluator       finish.Evaluator
	policy          finish.AdvicePolicy
	externalTimeout time.Duration
}

func withAdvicePolicy(p finish.AdvicePolicy) harnessOption {
	return func(c *harnessConfig) { c.policy = p }
}

func withExternalTimeout(d time.Duration) harnessOption {
	return func(c *harnessConfig) { c.externalTimeout = d }
}

func withEvaluator(ev finish.Evaluator) harnessOption {
	return func(c *harnessConfig) { c.evaluator = ev }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	cfg := harnessConfig{policy: finish.AdviseOnWarning}
	for _, opt := range opts {
		opt(&cfg)
	}

	db := testutil.SetupTestDB(t)
	store := db.SQLiteStorage

	h := &harness{
		db:          db,
		store:       store,
		checkpoints: &flakyCheckpoints{CheckpointStore: store},
		clock:       &fakeClock{now: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)},
		extraction: &scriptedExtraction{byText: map[string]llm.ExtractionResult{
			"coffee 25000 at Store X": {Amount: "25000", Counterparty: "Store X", Description: "coffee"},
			"lunch 50000 at Warung":   {Amount: "50000", Counterparty: "Warung", Description: "lunch", CategoryGuess: "Food & Dining", CategoryConfidence: 0.8},
		}},
		intents: &scriptedIntents{byReply: map[string]llm.IntentResult{
			"yes":                        {Intent: "confirm"},
			"no, change amount to 35000": {Intent: "correct", Corrections: llm.RawCorrections{Amount: flexible("35000")}},
			"that was food":              {Intent: "correct", Corrections: llm.RawCorrections{Category: ptr("Food & Dining")}},
			"never mind":                 {Intent: "cancel"},
			"it was 25000":               {Intent: "correct", Corrections: llm.RawCorrections{Amount: flexible("25000")}},
		}},
		advisor: &stubAdvisor{advice: "Consider a cheaper option next time."},
	}
	h.learner = learner.New(store, nil, time.Second)

	ex := extractor.New(h.extraction, store, store, nil)
	classifier := intent.NewClassifier(h.intents, nil)
	var evaluator finish.Evaluator = finish.NewBudgetEvaluator(store, 1.0)
	if cfg.evaluator != nil {
		evaluator = cfg.evaluator
	}
	pipeline := finish.NewPipeline(evaluator, h.advisor, cfg.policy, nil)

	e, err := New(Deps{
		Categories:  store,
		Records:     store,
		Checkpoints: h.checkpoints,
		Extractor:   ex,
		Classifier:  classifier,
		Finisher:    pipeline,
		Learner:     h.learner,
	}, Config{DefaultUser: testUser, ExternalTimeout: cfg.externalTimeout})
	require.NoError(t, err)
	e.now = h.clock.Now
	h.engine = e

	t.Cleanup(h.learner.Wait)
	return h
}

func (h *harness) submit(t *testing.T, conversationID, content string) *model.TurnResponse {
	t.Helper()
	resp, err := h.engine.SubmitTurn(context.Background(), model.TurnRequest{ConversationID: conversationID, Content: content})
	require.NoError(t, err)
	require.NotNil(t, resp)
	return resp
}

func (h *harness) checkpoint(t *testing.T, conversationID string) *model.ConversationState {
	t.Helper()
	state, err := h.store.LoadCheckpoint(context.Background(), conversationID)
	require.NoError(t, err)
	return state
}

func (h *harness) records(t *testing.T) []model.CandidateRecord {
	t.Helper()
	records, err := h.store.ListRecords(context.Background(), service.RecordFilter{UserID: testUser})
	require.NoError(t, err)
	return records
}

func (h *harness) setBudget(t *testing.T, category string, limit float64) {
	t.Helper()
	h.db.SetMonthlyLimit(testUser, category, limit)
}

var errStoreDown = errors.New("database is locked")

func ptr(s string) *string { return &s }

func flexible(s string) *llm.FlexibleString {
	f := llm.FlexibleString(s)
	return &f
}
