// Package engine implements the capture workflow: a checkpointed state machine that
// turns user utterances into confirmed records, one conversation turn at a time.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/spice-capture/internal/common"
	"github.com/Veraticus/spice-capture/internal/finish"
	"github.com/Veraticus/spice-capture/internal/metrics"
	"github.com/Veraticus/spice-capture/internal/model"
	"github.com/Veraticus/spice-capture/internal/service"
	"github.com/google/uuid"
)

// ErrInvalidTurn indicates a turn request that can never succeed as sent.
var ErrInvalidTurn = errors.New("invalid turn")

// Config holds the workflow timing and sizing options.
type Config struct {
	DefaultUser         string
	ConfirmationTimeout time.Duration
	ExternalTimeout     time.Duration
	WriteTimeout        time.Duration
	ReplayWindow        time.Duration
	Retention           time.Duration
	HistoryLimit        int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		DefaultUser:         "default",
		ConfirmationTimeout: 10 * time.Minute,
		ExternalTimeout:     4 * time.Second,
		WriteTimeout:        5 * time.Second,
		ReplayWindow:        2 * time.Minute,
		Retention:           24 * time.Hour,
		HistoryLimit:        model.DefaultHistoryLimit,
	}
}

// Deps are the collaborators of the engine. Learner is optional.
type Deps struct {
	Categories  service.CategoryStore
	Records     service.RecordStore
	Checkpoints service.CheckpointStore
	Extractor   DraftExtractor
	Classifier  IntentClassifier
	Finisher    Finisher
	Learner     Learner
	Logger      *slog.Logger
}

// Engine runs conversation turns through the capture workflow.
type Engine struct {
	categories  service.CategoryStore
	records     service.RecordStore
	checkpoints service.CheckpointStore
	extractor   DraftExtractor
	classifier  IntentClassifier
	finisher    Finisher
	learner     Learner
	logger      *slog.Logger
	locks       *keyedMutex
	now         func() time.Time
	newID       func() string
	nodes       map[model.Node]nodeFunc
	cfg         Config
}

// New creates an engine. Zero config values fall back to DefaultConfig.
func New(deps Deps, cfg Config) (*Engine, error) {
	if deps.Categories == nil || deps.Records == nil || deps.Checkpoints == nil {
		return nil, fmt.Errorf("%w: category, record and checkpoint stores are required", common.ErrMissingConfig)
	}
	if deps.Extractor == nil || deps.Classifier == nil || deps.Finisher == nil {
		return nil, fmt.Errorf("%w: extractor, classifier and finisher are required", common.ErrMissingConfig)
	}

	defaults := DefaultConfig()
	if cfg.DefaultUser == "" {
		cfg.DefaultUser = defaults.DefaultUser
	}
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = defaults.ConfirmationTimeout
	}
	if cfg.ExternalTimeout <= 0 {
		cfg.ExternalTimeout = defaults.ExternalTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.ReplayWindow <= 0 {
		cfg.ReplayWindow = defaults.ReplayWindow
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaults.Retention
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaults.HistoryLimit
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		categories:  deps.Categories,
		records:     deps.Records,
		checkpoints: deps.Checkpoints,
		extractor:   deps.Extractor,
		classifier:  deps.Classifier,
		finisher:    deps.Finisher,
		learner:     deps.Learner,
		logger:      logger,
		locks:       newKeyedMutex(),
		now:         time.Now,
		newID:       uuid.NewString,
		cfg:         cfg,
	}
	e.nodes = e.transitions()
	return e, nil
}

// turn carries one SubmitTurn invocation through the nodes.
type turn struct {
	at      time.Time
	state   *model.ConversationState
	resp    *model.TurnResponse
	check   finish.CheckResult
	advice  *string
	req     model.TurnRequest
	key     string
	changed []string
	notice  notice
	outcome string
}

// SubmitTurn processes one user turn. Persistence failures return a retryable error
// and leave the stored checkpoint where it was.
func (e *Engine) SubmitTurn(ctx context.Context, req model.TurnRequest) (*model.TurnResponse, error) {
	start := time.Now()

	resp, outcome, err := e.submit(ctx, req)
	if err != nil {
		outcome = "error"
	}
	metrics.TurnsTotal.WithLabelValues(outcome).Inc()
	metrics.TurnDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	return resp, err
}

func (e *Engine) submit(ctx context.Context, req model.TurnRequest) (*model.TurnResponse, string, error) {
	resumed := req.ConversationID != ""
	if err := e.normalizeRequest(&req); err != nil {
		return nil, "invalid", err
	}

	unlock := e.locks.Lock(req.ConversationID)
	defer unlock()

	logger := e.logger.With("conversation_id", req.ConversationID, "user_id", req.UserID)

	if err := e.storeCall(ctx, func(wctx context.Context) error {
		return e.categories.EnsureUserSeeded(wctx, req.UserID)
	}); err != nil {
		return nil, "", persistenceError("seeding user", err)
	}

	state, err := e.loadState(ctx, req, resumed, logger)
	if err != nil {
		return nil, "", err
	}

	t := &turn{
		at:    e.now(),
		state: state,
		req:   req,
		key:   turnKey(req),
	}

	if resp, ok := e.replay(t); ok {
		logger.Info("replaying finalized turn", "record_id", state.RecordID)
		return resp, "replay", nil
	}

	node := e.entryNode(t, logger)

	content := req.Content
	if req.Kind == model.ContentImage && strings.TrimSpace(content) == "" {
		content = "[image]"
	}
	state.AppendTurn(model.Turn{At: t.at, Role: model.RoleUser, Content: content, Kind: req.Kind}, e.cfg.HistoryLimit)

	for node != "" {
		fn, ok := e.nodes[node]
		if !ok {
			return nil, "", fmt.Errorf("no handler for node %q", node)
		}
		metrics.NodeVisits.WithLabelValues(string(node)).Inc()
		logger.Debug("entering node", "node", node)

		next, err := fn(ctx, t)
		if err != nil {
			logger.Error("turn failed", "node", node, "error", err)
			return nil, "", err
		}
		node = next
	}

	return t.resp, t.outcome, nil
}

func (e *Engine) normalizeRequest(req *model.TurnRequest) error {
	req.Content = strings.TrimSpace(req.Content)
	if req.Kind == "" {
		req.Kind = model.ContentText
		if len(req.Image) > 0 {
			req.Kind = model.ContentImage
		}
	}
	if !req.Kind.Valid() {
		return fmt.Errorf("%w: unsupported content kind %q", ErrInvalidTurn, req.Kind)
	}
	if req.Kind == model.ContentImage && len(req.Image) == 0 {
		return fmt.Errorf("%w: image turn without image data", ErrInvalidTurn)
	}
	if req.Kind == model.ContentText && req.Content == "" {
		return fmt.Errorf("%w: empty content", ErrInvalidTurn)
	}
	if req.UserID == "" {
		req.UserID = e.cfg.DefaultUser
	}
	if req.ConversationID == "" {
		req.ConversationID = e.newID()
	}
	return nil
}

// loadState returns the stored checkpoint or a fresh one when none exists.
func (e *Engine) loadState(ctx context.Context, req model.TurnRequest, resumed bool, logger *slog.Logger) (*model.ConversationState, error) {
	var state *model.ConversationState
	err := e.storeCall(ctx, func(wctx context.Context) error {
		var loadErr error
		state, loadErr = e.checkpoints.LoadCheckpoint(wctx, req.ConversationID)
		return loadErr
	})
	switch {
	case errors.Is(err, common.ErrNotFound):
		if resumed {
			logger.Info("no checkpoint for conversation, starting fresh")
		}
		return model.NewConversationState(req.ConversationID, req.UserID), nil
	case err != nil:
		return nil, persistenceError("loading checkpoint", err)
	}

	if state.UserID != "" && state.UserID != req.UserID {
		logger.Warn("conversation belongs to another user", "owner", state.UserID)
		return nil, fmt.Errorf("%w: conversation %s belongs to another user", ErrInvalidTurn, req.ConversationID)
	}
	return state, nil
}

// replay returns the stored response of a finalized turn that is being re-sent.
func (e *Engine) replay(t *turn) (*model.TurnResponse, bool) {
	s := t.state
	if s.CurrentNode != model.NodeEnd || s.LastResponse == nil || s.LastTurnKey == "" || s.LastTurnKey != t.key {
		return nil, false
	}
	finishedAt := lastTurnAt(s)
	if finishedAt.IsZero() || t.at.Sub(finishedAt) > e.cfg.ReplayWindow {
		return nil, false
	}
	resp := *s.LastResponse
	return &resp, true
}

// entryNode decides where the turn enters the workflow.
func (e *Engine) entryNode(t *turn, logger *slog.Logger) model.Node {
	s := t.state
	if s.PendingConfirmation {
		if s.DeadlinePassed(t.at) {
			logger.Info("confirmation deadline passed, starting over",
				"record_id", s.RecordID,
				"deadline", s.ConfirmationDeadline)
			s.ResetCycle()
			t.notice = noticeExpired
			return model.NodeStart
		}
		return model.NodeClassifyReply
	}
	s.ResetCycle()
	return model.NodeStart
}

// storeCall runs fn on a context that survives caller cancellation, bounded by the write timeout.
func (e *Engine) storeCall(ctx context.Context, fn func(context.Context) error) error {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.WriteTimeout)
	defer cancel()
	return fn(wctx)
}

// external bounds a call to an external collaborator with the external timeout.
func (e *Engine) external(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.cfg.ExternalTimeout)
}

// persist writes the checkpoint. Conflicts and corruption are retryable.
func (e *Engine) persist(ctx context.Context, t *turn) error {
	t.state.ExpiresAt = t.at.Add(e.cfg.Retention)
	err := e.storeCall(ctx, func(wctx context.Context) error {
		return e.checkpoints.SaveCheckpoint(wctx, t.state)
	})
	if err != nil {
		if errors.Is(err, common.ErrVersionConflict) {
			metrics.CheckpointConflicts.Inc()
		}
		return persistenceError("saving checkpoint", err)
	}
	return nil
}

func persistenceError(op string, err error) error {
	return common.NewRetryableError(fmt.Errorf("%s: %w", op, err))
}

// turnKey identifies a turn for replay detection.
func turnKey(req model.TurnRequest) string {
	if req.IdempotencyKey != "" {
		return "key:" + req.IdempotencyKey
	}
	h := sha256.New()
	h.Write([]byte(req.Kind))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(req.Content)))
	h.Write([]byte{0})
	h.Write(req.Image)
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

func lastTurnAt(s *model.ConversationState) time.Time {
	if len(s.TurnHistory) == 0 {
		return time.Time{}
	}
	return s.TurnHistory[len(s.TurnHistory)-1].At
}
