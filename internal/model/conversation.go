package model

import (
	"time"
)

// Node identifies a step of the capture workflow.
type Node string

// Workflow nodes.
const (
	NodeStart             Node = "start"
	NodeExtract           Node = "extract"
	NodeSaveDraft         Node = "save_draft"
	NodeAwaitConfirmation Node = "await_confirmation"
	NodeClassifyReply     Node = "classify_reply"
	NodeApplyCorrection   Node = "apply_correction"
	NodeFinalize          Node = "finalize"
	NodeBudgetCheck       Node = "budget_check"
	NodeAdvise            Node = "advise"
	NodeEnd               Node = "end"
	NodeClarify           Node = "clarify"
	NodeClosed            Node = "closed"
)

// DefaultHistoryLimit is the number of turns kept on a checkpoint.
const DefaultHistoryLimit = 20

// Role identifies who produced a turn.
type Role string

// Turn roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentKind is the modality of an inbound turn.
type ContentKind string

// Content kinds.
const (
	ContentText  ContentKind = "text"
	ContentImage ContentKind = "image"
)

// Valid reports whether the content kind is supported.
func (k ContentKind) Valid() bool {
	return k == ContentText || k == ContentImage
}

// Turn is one entry of the conversation history.
type Turn struct {
	At      time.Time   `json:"at"`
	Role    Role        `json:"role"`
	Content string      `json:"content"`
	Kind    ContentKind `json:"kind"`
}

// ConversationState is the durable checkpoint of a conversation.
type ConversationState struct {
	ConfirmationDeadline time.Time     `json:"confirmation_deadline"`
	ExpiresAt            time.Time     `json:"expires_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
	Draft                *Draft        `json:"draft,omitempty"`
	CorrectionBuffer     *Corrections  `json:"correction_buffer,omitempty"`
	LastResponse         *TurnResponse `json:"last_response,omitempty"`
	ConversationID       string        `json:"conversation_id"`
	UserID               string        `json:"user_id"`
	CurrentNode          Node          `json:"current_node"`
	RecordID             string        `json:"record_id,omitempty"`
	LastTurnKey          string        `json:"last_turn_key,omitempty"`
	TurnHistory          []Turn        `json:"turn_history"`
	RecordVersion        int           `json:"record_version,omitempty"`
	Version              int64         `json:"version"`
	PendingConfirmation  bool          `json:"pending_confirmation"`
}

// NewConversationState returns an empty checkpoint positioned at the start node.
func NewConversationState(conversationID, userID string) *ConversationState {
	return &ConversationState{
		ConversationID: conversationID,
		UserID:         userID,
		CurrentNode:    NodeStart,
	}
}

// AppendTurn adds a turn and trims the history to the newest limit entries.
func (s *ConversationState) AppendTurn(turn Turn, limit int) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	s.TurnHistory = append(s.TurnHistory, turn)
	if over := len(s.TurnHistory) - limit; over > 0 {
		trimmed := make([]Turn, limit)
		copy(trimmed, s.TurnHistory[over:])
		s.TurnHistory = trimmed
	}
}

// ResetCycle clears the per-record fields so a new capture cycle can begin.
// History and version are preserved.
func (s *ConversationState) ResetCycle() {
	s.Draft = nil
	s.CorrectionBuffer = nil
	s.RecordID = ""
	s.RecordVersion = 0
	s.PendingConfirmation = false
	s.ConfirmationDeadline = time.Time{}
	s.LastResponse = nil
	s.LastTurnKey = ""
	s.CurrentNode = NodeStart
}

// DeadlinePassed reports whether a pending confirmation has expired at now.
func (s *ConversationState) DeadlinePassed(now time.Time) bool {
	return s.PendingConfirmation && !s.ConfirmationDeadline.IsZero() && now.After(s.ConfirmationDeadline)
}

// IntentKind is the classified meaning of a reply to a confirmation prompt.
type IntentKind string

// Intent kinds.
const (
	IntentConfirm   IntentKind = "confirm"
	IntentCorrect   IntentKind = "correct"
	IntentUnrelated IntentKind = "unrelated"
	IntentCancel    IntentKind = "cancel"
)

// Intent is the classifier output for a reply.
type Intent struct {
	Corrections *Corrections `json:"corrections,omitempty"`
	Kind        IntentKind   `json:"intent"`
}

// TurnRequest is an inbound user turn.
type TurnRequest struct {
	ConversationID string      `json:"conversation_id,omitempty"`
	UserID         string      `json:"user_id,omitempty"`
	Content        string      `json:"content"`
	Kind           ContentKind `json:"content_kind"`
	IdempotencyKey string      `json:"idempotency_key,omitempty"`
	Image          []byte      `json:"-"`
}

// TurnResponse is the engine's reply to a turn.
type TurnResponse struct {
	Draft                *Draft         `json:"draft,omitempty"`
	BudgetWarning        *BudgetWarning `json:"budget_warning,omitempty"`
	Advice               *string        `json:"advice,omitempty"`
	ConversationID       string         `json:"conversation_id"`
	Message              string         `json:"message"`
	RecordID             string         `json:"record_id,omitempty"`
	Node                 Node           `json:"node"`
	RecordVersion        int            `json:"record_version,omitempty"`
	AwaitingConfirmation bool           `json:"awaiting_confirmation"`
}
