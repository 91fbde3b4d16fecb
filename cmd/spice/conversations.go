package main

import (
	"fmt"
	"time"

	"github.com/Veraticus/spice-capture/internal/cli"
	"github.com/spf13/cobra"
)

func conversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "Maintain conversation checkpoints",
	}

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete checkpoints past their retention",
		Long: `Delete conversation checkpoints whose retention has passed. Records are
never deleted. The redis backend expires checkpoints on its own.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.checkpoints.PruneCheckpoints(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Pruned %d conversations", n)))
			return nil
		},
	}

	reset := &cobra.Command{
		Use:   "reset <conversation-id>",
		Short: "Forget a conversation so the next turn starts fresh",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.checkpoints.DeleteCheckpoint(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Conversation "+args[0]+" reset"))
			return nil
		},
	}

	cmd.AddCommand(prune, reset)
	return cmd
}
