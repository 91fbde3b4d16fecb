package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/Veraticus/spice-capture/internal/cli"
	"github.com/Veraticus/spice-capture/internal/model"
	"github.com/spf13/cobra"
)

func captureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture [text...]",
		Short: "Send one message to a capture conversation",
		Long: `Send a single turn and print the reply. Pass --conversation to answer a
pending draft from a previous capture.

Examples:
  spice capture "coffee 25.000 at Store X"
  spice capture --conversation 3f2a... yes
  spice capture --image ~/receipt.jpg`,
		RunE: runCapture,
	}

	cmd.Flags().StringP("conversation", "c", "", "conversation id to continue")
	cmd.Flags().StringP("image", "i", "", "path to a receipt image")
	cmd.Flags().String("key", "", "idempotency key for safe retries")

	return cmd
}

func runCapture(cmd *cobra.Command, args []string) error {
	conversationID, _ := cmd.Flags().GetString("conversation")
	imagePath, _ := cmd.Flags().GetString("image")
	key, _ := cmd.Flags().GetString("key")

	req := model.TurnRequest{
		ConversationID: conversationID,
		Content:        strings.Join(args, " "),
		IdempotencyKey: key,
	}
	if imagePath != "" {
		img, err := os.ReadFile(imagePath)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		req.Image = img
		req.Kind = model.ContentImage
	}
	if req.Content == "" && req.Image == nil {
		return fmt.Errorf("nothing to capture: pass text or --image")
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	req.UserID = a.userID()

	resp, err := a.engine.SubmitTurn(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.RenderTurnResponse(resp))
	if resp.AwaitingConfirmation {
		fmt.Fprintln(out, cli.SubtleStyle.Render(fmt.Sprintf("Reply with: spice capture -c %s <reply>", resp.ConversationID)))
	}
	return nil
}
