package main

import (
	"fmt"

	"github.com/Veraticus/spice-capture/internal/cli"
	"github.com/spf13/cobra"
)

func initUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-user",
		Short: "Create default categories and starter rules for a user",
		Long: `Seed the default categories and starter keyword rules for the user given by
--user (or workflow.default_user). Seeding happens once per user; running this
again changes nothing. Capture seeds users on first use, so this is only needed
to prepare budgets or rules ahead of time.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store.EnsureUserSeeded(cmd.Context(), a.userID()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("User %s is ready", a.userID())))
			return nil
		},
	}
}
