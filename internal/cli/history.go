package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mamadbah2/toolstock/internal/bootstrap"
	"github.com/mamadbah2/toolstock/internal/domain/models"
)

func newHistoryCommand(opts *RootOptions, open Opener) *cobra.Command {
	var limit int64

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the latest inventory changes from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			return withStack(cmd, opts, open, func(stack *bootstrap.Stack) error {
				if stack.Journal == nil {
					return errors.New("MONGODB_URI is not configured")
				}
				events, err := stack.Journal.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if opts.Format == "json" {
					if events == nil {
						events = []models.ChangeEvent{}
					}
					return writeJSON(cmd.OutOrStdout(), events)
				}
				printHistory(cmd, events)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&limit, "limit", 20, "number of events to show")
	return cmd
}

func printHistory(cmd *cobra.Command, events []models.ChangeEvent) {
	w := cmd.OutOrStdout()
	if len(events) == 0 {
		warnColor.Fprintln(w, "No changes recorded")
		return
	}
	for _, e := range events {
		synced := "pending"
		if e.Synced {
			synced = "synced"
		}
		detail := ""
		if e.Kind == models.ChangeQuantityUpdated {
			detail = fmt.Sprintf(" %s -> %s", models.FormatQuantity(e.OldQuantity), models.FormatQuantity(e.NewQuantity))
		}
		fmt.Fprintf(w, "%s  %-16s №%d %s%s [%s]\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.Kind, e.Number, e.Name, detail, synced)
	}
}
