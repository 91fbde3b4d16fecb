package main

import (
	"fmt"
	"strconv"

	"github.com/Veraticus/spice-capture/internal/cli"
	"github.com/spf13/cobra"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage learned categorization rules",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List active rules, strongest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store.EnsureUserSeeded(cmd.Context(), a.userID()); err != nil {
				return err
			}
			rules, err := a.store.GetActiveRules(cmd.Context(), a.userID())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderRules(rules))
			return nil
		},
	}

	disable := &cobra.Command{
		Use:   "disable <rule-id>",
		Short: "Stop a rule from matching",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id %q", args[0])
			}

			a, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store.DeactivateRule(cmd.Context(), a.userID(), id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Rule %d disabled", id)))
			return nil
		},
	}

	cmd.AddCommand(list, disable)
	return cmd
}
