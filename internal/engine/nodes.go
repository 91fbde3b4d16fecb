package engine

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/Veraticus/spice-capture/internal/common"
	"github.com/Veraticus/spice-capture/internal/extractor"
	"github.com/Veraticus/spice-capture/internal/intent"
	"github.com/Veraticus/spice-capture/internal/learner"
	"github.com/Veraticus/spice-capture/internal/metrics"
	"github.com/Veraticus/spice-capture/internal/model"
)

// nodeFunc runs one workflow node and returns the next node.
// An empty node ends the turn; the node that returns it has persisted the checkpoint.
type nodeFunc func(ctx context.Context, t *turn) (model.Node, error)

const stop model.Node = ""

func (e *Engine) transitions() map[model.Node]nodeFunc {
	return map[model.Node]nodeFunc{
		model.NodeStart:             e.startNode,
		model.NodeExtract:           e.extractNode,
		model.NodeSaveDraft:         e.saveDraftNode,
		model.NodeAwaitConfirmation: e.awaitConfirmationNode,
		model.NodeClassifyReply:     e.classifyReplyNode,
		model.NodeApplyCorrection:   e.applyCorrectionNode,
		model.NodeFinalize:          e.finalizeNode,
		model.NodeBudgetCheck:       e.budgetCheckNode,
		model.NodeAdvise:            e.adviseNode,
		model.NodeEnd:               e.endNode,
		model.NodeClarify:           e.clarifyNode,
		model.NodeClosed:            e.closedNode,
	}
}

func (e *Engine) startNode(_ context.Context, _ *turn) (model.Node, error) {
	return model.NodeExtract, nil
}

func (e *Engine) extractNode(ctx context.Context, t *turn) (model.Node, error) {
	ectx, cancel := e.external(ctx)
	defer cancel()

	draft, err := e.extractor.Extract(ectx, t.state.UserID, extractor.Input{
		At:    t.at,
		Text:  t.req.Content,
		Image: t.req.Image,
	})
	if err != nil {
		metrics.ExternalFailures.WithLabelValues("extractor").Inc()
		e.logger.Warn("extraction failed, asking for clarification",
			"conversation_id", t.state.ConversationID,
			"error", err)
		return model.NodeClarify, nil
	}
	if !draft.IsMinimallyValid() {
		e.logger.Debug("draft incomplete, asking for clarification",
			"conversation_id", t.state.ConversationID,
			"amount", draft.Amount,
			"counterparty", draft.Counterparty)
		return model.NodeClarify, nil
	}

	t.state.Draft = draft
	return model.NodeSaveDraft, nil
}

// saveDraftNode persists the draft as a new unconfirmed record version.
func (e *Engine) saveDraftNode(ctx context.Context, t *turn) (model.Node, error) {
	if err := e.writeDraftVersion(ctx, t); err != nil {
		return stop, err
	}
	return model.NodeAwaitConfirmation, nil
}

// writeDraftVersion stores the state's draft as the record's next version.
// The stored record may be ahead of the checkpoint when an earlier attempt wrote a
// version but failed to save the checkpoint; an identical unconfirmed latest version
// is adopted and anything else is written after it.
func (e *Engine) writeDraftVersion(ctx context.Context, t *turn) error {
	s := t.state

	id, version := s.RecordID, s.RecordVersion+1
	if id == "" {
		id, version = e.newID(), 1
	} else {
		var latest *model.CandidateRecord
		err := e.storeCall(ctx, func(wctx context.Context) error {
			var getErr error
			latest, getErr = e.records.GetRecord(wctx, id)
			return getErr
		})
		switch {
		case errors.Is(err, common.ErrNotFound):
		case err != nil:
			return persistenceError("loading draft record", err)
		case latest.Version >= version:
			if !latest.IsConfirmed() && latest.Draft.SameFields(s.Draft) {
				e.logger.Info("adopting record version written by an earlier attempt",
					"conversation_id", s.ConversationID,
					"record_id", id,
					"version", latest.Version)
				s.RecordID = id
				s.RecordVersion = latest.Version
				return nil
			}
			version = latest.Version + 1
		}
	}

	record := &model.CandidateRecord{
		CreatedAt:      t.at,
		ID:             id,
		UserID:         s.UserID,
		ConversationID: s.ConversationID,
		Draft:          *s.Draft,
		Version:        version,
	}
	if err := e.storeCall(ctx, func(wctx context.Context) error {
		return e.records.SaveRecordVersion(wctx, record)
	}); err != nil {
		return persistenceError("saving draft record", err)
	}

	s.RecordID = id
	s.RecordVersion = version
	return nil
}

// awaitConfirmationNode interrupts the turn until the user replies.
func (e *Engine) awaitConfirmationNode(ctx context.Context, t *turn) (model.Node, error) {
	s := t.state
	s.CurrentNode = model.NodeAwaitConfirmation
	s.PendingConfirmation = true
	s.ConfirmationDeadline = t.at.Add(e.cfg.ConfirmationTimeout)
	s.CorrectionBuffer = nil

	message := confirmationMessage(s.Draft, t.notice, t.changed)
	t.resp = e.respond(t, message)
	t.resp.AwaitingConfirmation = true
	t.outcome = "awaiting_confirmation"

	return stop, e.persist(ctx, t)
}

func (e *Engine) classifyReplyNode(ctx context.Context, t *turn) (model.Node, error) {
	s := t.state

	var names []string
	if categories, err := e.categories.GetCategories(ctx, s.UserID); err == nil {
		for _, c := range categories {
			names = append(names, c.Name)
		}
	}

	history := s.TurnHistory
	if len(history) > 0 {
		history = history[:len(history)-1]
	}

	cctx, cancel := e.external(ctx)
	defer cancel()

	in, err := e.classifier.Classify(cctx, intent.Request{
		At:         t.at,
		Draft:      s.Draft,
		Reply:      t.req.Content,
		History:    history,
		Categories: names,
	})
	if err != nil {
		metrics.ExternalFailures.WithLabelValues("classifier").Inc()
		e.logger.Warn("intent classification failed, asking again",
			"conversation_id", s.ConversationID,
			"error", err)
		t.notice = noticeUnclear
		return model.NodeAwaitConfirmation, nil
	}

	switch in.Kind {
	case model.IntentConfirm:
		return model.NodeFinalize, nil
	case model.IntentCorrect:
		if in.Corrections.IsEmpty() {
			t.notice = noticeUnclear
			return model.NodeAwaitConfirmation, nil
		}
		s.CorrectionBuffer = in.Corrections
		return model.NodeApplyCorrection, nil
	case model.IntentCancel:
		return model.NodeClosed, nil
	default:
		t.notice = noticeUnclear
		return model.NodeAwaitConfirmation, nil
	}
}

// applyCorrectionNode merges buffered corrections into the draft.
func (e *Engine) applyCorrectionNode(ctx context.Context, t *turn) (model.Node, error) {
	s := t.state
	previous := s.Draft.Clone()

	changed := s.CorrectionBuffer.Apply(s.Draft)
	s.CorrectionBuffer = nil
	if len(changed) == 0 {
		t.notice = noticeNothingChanged
		return model.NodeAwaitConfirmation, nil
	}

	if slices.Contains(changed, "category") {
		var category *model.Category
		if err := e.storeCall(ctx, func(wctx context.Context) error {
			var err error
			category, err = e.extractor.ResolveCategory(wctx, s.UserID, s.Draft.CategoryName)
			return err
		}); err != nil {
			return stop, persistenceError("resolving corrected category", err)
		}
		s.Draft.CategoryID = category.ID
		s.Draft.CategoryName = category.Name

		if e.learner != nil {
			e.learner.LearnAsync(learner.Event{
				UserID:           s.UserID,
				SourceText:       s.Draft.LearningText(),
				Counterparty:     s.Draft.Counterparty,
				OriginalCategory: previous.CategoryName,
				CategoryName:     category.Name,
				CategoryID:       category.ID,
			})
		}
	}

	e.logger.Info("draft corrected",
		"conversation_id", s.ConversationID,
		"record_id", s.RecordID,
		"fields", changed)

	t.changed = changed
	t.notice = noticeCorrected
	return model.NodeSaveDraft, nil
}

// finalizeNode confirms the latest record version. Confirming twice is a no-op.
// When the stored record moved past the checkpoint, the confirmed draft is written
// as the latest version first.
func (e *Engine) finalizeNode(ctx context.Context, t *turn) (model.Node, error) {
	s := t.state
	confirm := func() error {
		return e.storeCall(ctx, func(wctx context.Context) error {
			return e.records.ConfirmRecord(wctx, s.RecordID, s.RecordVersion, t.at)
		})
	}

	err := confirm()
	if errors.Is(err, common.ErrVersionConflict) {
		e.logger.Warn("record ahead of checkpoint, resaving confirmed draft",
			"conversation_id", s.ConversationID,
			"record_id", s.RecordID,
			"version", s.RecordVersion)
		if err := e.writeDraftVersion(ctx, t); err != nil {
			return stop, err
		}
		err = confirm()
	}
	if err != nil {
		return stop, persistenceError("confirming record", err)
	}

	e.logger.Info("record confirmed",
		"conversation_id", s.ConversationID,
		"record_id", s.RecordID,
		"version", s.RecordVersion)
	return model.NodeBudgetCheck, nil
}

func (e *Engine) budgetCheckNode(ctx context.Context, t *turn) (model.Node, error) {
	bctx, cancel := e.external(ctx)
	defer cancel()
	t.check = e.finisher.CheckBudget(bctx, e.confirmedRecord(t))
	return model.NodeAdvise, nil
}

func (e *Engine) adviseNode(ctx context.Context, t *turn) (model.Node, error) {
	if !e.finisher.ShouldAdvise(t.check) {
		return model.NodeEnd, nil
	}
	actx, cancel := e.external(ctx)
	defer cancel()
	t.advice = e.finisher.Advise(actx, e.confirmedRecord(t), t.check)
	return model.NodeEnd, nil
}

// endNode closes the cycle. The checkpoint keeps the finalized response for replays.
func (e *Engine) endNode(ctx context.Context, t *turn) (model.Node, error) {
	s := t.state
	s.CurrentNode = model.NodeEnd
	s.PendingConfirmation = false
	s.ConfirmationDeadline = time.Time{}
	s.CorrectionBuffer = nil

	t.resp = e.respond(t, finalizedMessage(s.Draft, t.check.Warning))
	t.resp.BudgetWarning = t.check.Warning
	t.resp.Advice = t.advice
	t.outcome = "confirmed"

	s.LastTurnKey = t.key
	stored := *t.resp
	s.LastResponse = &stored

	return stop, e.persist(ctx, t)
}

// clarifyNode asks for more detail and parks the conversation at start.
// A draft that lapsed on this turn is mentioned before the question.
func (e *Engine) clarifyNode(ctx context.Context, t *turn) (model.Node, error) {
	t.state.ResetCycle()
	t.resp = e.respond(t, clarifyPrompt(t.notice))
	t.outcome = "clarify"
	return stop, e.persist(ctx, t)
}

// closedNode discards the pending draft. Its record stays unconfirmed.
func (e *Engine) closedNode(ctx context.Context, t *turn) (model.Node, error) {
	s := t.state
	e.logger.Info("draft cancelled",
		"conversation_id", s.ConversationID,
		"record_id", s.RecordID)

	s.CurrentNode = model.NodeClosed
	s.PendingConfirmation = false
	s.ConfirmationDeadline = time.Time{}
	s.CorrectionBuffer = nil

	t.resp = e.respond(t, closedMessage)
	t.outcome = "closed"
	return stop, e.persist(ctx, t)
}

// respond builds the response for the current state and records it in the history.
func (e *Engine) respond(t *turn, message string) *model.TurnResponse {
	s := t.state
	s.AppendTurn(model.Turn{At: t.at, Role: model.RoleAssistant, Content: message, Kind: model.ContentText}, e.cfg.HistoryLimit)

	node := s.CurrentNode
	if node == model.NodeStart {
		node = model.NodeClarify
	}

	return &model.TurnResponse{
		ConversationID: s.ConversationID,
		Message:        message,
		Draft:          s.Draft.Clone(),
		RecordID:       s.RecordID,
		RecordVersion:  s.RecordVersion,
		Node:           node,
	}
}

func (e *Engine) confirmedRecord(t *turn) *model.CandidateRecord {
	s := t.state
	confirmedAt := t.at
	return &model.CandidateRecord{
		CreatedAt:      t.at,
		ConfirmedAt:    &confirmedAt,
		ID:             s.RecordID,
		UserID:         s.UserID,
		ConversationID: s.ConversationID,
		Status:         model.RecordConfirmed,
		Draft:          *s.Draft,
		Version:        s.RecordVersion,
	}
}
