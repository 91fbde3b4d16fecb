package main

import (
	"fmt"

	"github.com/Veraticus/spice-capture/internal/cli"
	"github.com/Veraticus/spice-capture/internal/model"
	"github.com/Veraticus/spice-capture/internal/service"
	"github.com/spf13/cobra"
)

func recordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect captured records",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the latest version of each record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetUint64("limit")

			filter := service.RecordFilter{Status: model.RecordStatus(status), Limit: limit}
			switch filter.Status {
			case "", model.RecordConfirmed, model.RecordUnconfirmed:
			default:
				return fmt.Errorf("invalid status %q: use confirmed or unconfirmed", status)
			}

			a, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			filter.UserID = a.userID()

			records, err := a.store.ListRecords(cmd.Context(), filter)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderRecords(records))
			return nil
		},
	}
	list.Flags().String("status", "", "filter by status (confirmed, unconfirmed)")
	list.Flags().Uint64("limit", 50, "maximum records to show")

	history := &cobra.Command{
		Use:   "history <id>",
		Short: "Show every version of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			versions, err := a.store.GetRecordVersions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderRecords(versions))
			return nil
		},
	}

	cmd.AddCommand(list, history)
	return cmd
}
