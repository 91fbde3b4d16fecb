package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veraticus/spice-capture/internal/cli"
	"github.com/Veraticus/spice-capture/internal/tui"
	"github.com/spf13/cobra"
)

func chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive capture conversation",
		Long: `Chat with spice to capture purchases. Each draft is shown for confirmation;
reply "yes", correct a field, or say "never mind".

Use --plain for a line-based prompt when no full terminal is available.`,
		RunE: runChat,
	}

	cmd.Flags().StringP("conversation", "c", "", "conversation id to resume")
	cmd.Flags().Bool("plain", false, "use a plain line prompt instead of the full-screen chat")

	return cmd
}

func runChat(cmd *cobra.Command, _ []string) error {
	conversationID, _ := cmd.Flags().GetString("conversation")
	plain, _ := cmd.Flags().GetBool("plain")

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()

	if plain {
		handler := cli.NewInterruptHandler(out)
		ctx := handler.HandleInterrupts(cmd.Context())

		handler.SetConversation(conversationID)

		console := cli.NewConsole(a.engine, cmd.InOrStdin(), out, a.userID(), conversationID)
		console.OnConversation = handler.SetConversation
		err := console.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	id, err := tui.Run(cmd.Context(), tui.Config{
		Turns:          a.engine,
		UserID:         a.userID(),
		ConversationID: conversationID,
	}, nil, nil)
	if err != nil {
		return err
	}
	if id != "" {
		fmt.Fprintln(out, cli.FormatInfo("Resume with: spice chat --conversation "+id))
	}
	return nil
}
