package main

import (
	"fmt"
	"strings"

	"github.com/Veraticus/spice-capture/internal/cli"
	"github.com/Veraticus/spice-capture/internal/extractor"
	"github.com/Veraticus/spice-capture/internal/model"
	"github.com/spf13/cobra"
)

func budgetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budgets",
		Short: "Manage monthly category budgets",
	}

	set := &cobra.Command{
		Use:   "set <category> <amount>",
		Short: "Set the monthly limit for a category",
		Example: `  spice budgets set "Food & Dining" 1.500.000
  spice budgets set Shopping 2jt`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := extractor.ParseAmount(args[1])
			if err != nil || limit <= 0 {
				return fmt.Errorf("invalid amount %q", args[1])
			}

			ctx := cmd.Context()
			a, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store.EnsureUserSeeded(ctx, a.userID()); err != nil {
				return err
			}
			category, err := a.store.GetCategoryByName(ctx, a.userID(), strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("unknown category %q: %w", args[0], err)
			}

			if err := a.store.SetBudget(ctx, &model.Budget{
				UserID:       a.userID(),
				CategoryID:   category.ID,
				MonthlyLimit: limit,
			}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s budget set to %s per month",
				category.Name, model.FormatAmount(limit))))
			return nil
		},
	}

	cmd.AddCommand(set)
	return cmd
}
