package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Veraticus/spice-capture/internal/common"
	"github.com/Veraticus/spice-capture/internal/model"
)

// TurnSubmitter runs one conversation turn.
type TurnSubmitter interface {
	SubmitTurn(ctx context.Context, req model.TurnRequest) (*model.TurnResponse, error)
}

// Console is a line-oriented capture conversation.
type Console struct {
	// OnConversation, when set, is told each time the conversation id changes.
	OnConversation func(id string)
	turns          TurnSubmitter
	reader         *NonBlockingReader
	writer         io.Writer
	userID         string
	conversationID string
}

// NewConsole creates a console that resumes conversationID, or starts a new
// conversation when it is empty.
func NewConsole(turns TurnSubmitter, in io.Reader, out io.Writer, userID, conversationID string) *Console {
	return &Console{
		turns:          turns,
		reader:         NewNonBlockingReader(in),
		writer:         out,
		userID:         userID,
		conversationID: conversationID,
	}
}

// ConversationID returns the conversation the console is attached to.
func (c *Console) ConversationID() string {
	return c.conversationID
}

// Run reads lines until EOF, "quit", or cancellation. Retryable failures are
// reported and the user can simply send the same line again.
func (c *Console) Run(ctx context.Context) error {
	c.printf("%s\n", FormatTitle("Tell me what you spent"))

	for {
		c.printf("%s", FormatPrompt("you"))
		line, err := c.reader.ReadLine(ctx)
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, ErrInputCancelled):
			return ctx.Err()
		case err != nil:
			return fmt.Errorf("reading input: %w", err)
		}

		if line == "" {
			continue
		}
		if strings.EqualFold(line, "quit") || strings.EqualFold(line, "exit") {
			return nil
		}

		resp, err := c.turns.SubmitTurn(ctx, model.TurnRequest{
			ConversationID: c.conversationID,
			UserID:         c.userID,
			Content:        line,
		})
		if err != nil {
			if common.IsRetryable(err) {
				c.printf("%s\n", FormatWarning("Couldn't save that just now, please send it again."))
				continue
			}
			c.printf("%s\n", FormatError(err.Error()))
			continue
		}

		if resp.ConversationID != c.conversationID {
			c.conversationID = resp.ConversationID
			if c.OnConversation != nil {
				c.OnConversation(c.conversationID)
			}
		}
		c.printf("%s\n", RenderTurnResponse(resp))
	}
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.writer, format, args...)
}
