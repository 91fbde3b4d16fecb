package ofx

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/spice-capture/internal/model"
)

// TurnSubmitter runs one conversation turn.
type TurnSubmitter interface {
	SubmitTurn(ctx context.Context, req model.TurnRequest) (*model.TurnResponse, error)
}

// ImportOptions controls how statement lines are fed to the workflow.
type ImportOptions struct {
	// Progress is called after each line. It may be nil.
	Progress    func(done, total int)
	UserID      string
	AutoConfirm bool
}

// ImportResult summarizes an import.
type ImportResult struct {
	Captured  int
	Confirmed int
	Skipped   int
	Failed    int
}

// Importer replays statement debits through the capture workflow, one
// conversation per line keyed by the statement's transaction id.
type Importer struct {
	turns  TurnSubmitter
	logger *slog.Logger
}

// NewImporter creates an importer.
func NewImporter(turns TurnSubmitter, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{turns: turns, logger: logger}
}

// Import submits every debit line. Credits and zero amounts are skipped.
func (i *Importer) Import(ctx context.Context, lines []StatementLine, opts ImportOptions) (ImportResult, error) {
	var result ImportResult

	for n, line := range lines {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !line.Debit || line.Amount == 0 {
			result.Skipped++
			i.report(opts, n+1, len(lines))
			continue
		}

		conversationID := fmt.Sprintf("ofx-%s-%s", line.AccountID, line.ID)
		resp, err := i.turns.SubmitTurn(ctx, model.TurnRequest{
			ConversationID: conversationID,
			UserID:         opts.UserID,
			Content:        line.Utterance(),
			IdempotencyKey: "ofx:" + line.ID,
		})
		if err != nil {
			result.Failed++
			i.logger.Warn("Failed to capture statement line", "fitid", line.ID, "error", err)
			i.report(opts, n+1, len(lines))
			continue
		}

		switch {
		case resp.AwaitingConfirmation:
			result.Captured++
			if opts.AutoConfirm {
				if err := i.confirm(ctx, conversationID, line, opts.UserID); err != nil {
					result.Failed++
					i.logger.Warn("Failed to confirm statement line", "fitid", line.ID, "error", err)
				} else {
					result.Confirmed++
				}
			}
		case resp.Node == model.NodeEnd:
			result.Confirmed++
		default:
			result.Skipped++
		}
		i.report(opts, n+1, len(lines))
	}

	i.logger.Info("Imported statement",
		"captured", result.Captured,
		"confirmed", result.Confirmed,
		"skipped", result.Skipped,
		"failed", result.Failed)
	return result, nil
}

func (i *Importer) confirm(ctx context.Context, conversationID string, line StatementLine, userID string) error {
	resp, err := i.turns.SubmitTurn(ctx, model.TurnRequest{
		ConversationID: conversationID,
		UserID:         userID,
		Content:        "yes",
		IdempotencyKey: "ofx-confirm:" + line.ID,
	})
	if err != nil {
		return err
	}
	if resp.Node != model.NodeEnd {
		return fmt.Errorf("draft for %s not confirmed (node %s)", line.ID, resp.Node)
	}
	return nil
}

func (i *Importer) report(opts ImportOptions, done, total int) {
	if opts.Progress != nil {
		opts.Progress(done, total)
	}
}
