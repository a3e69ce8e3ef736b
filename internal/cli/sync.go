package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mamadbah2/toolstock/internal/bootstrap"
	"github.com/mamadbah2/toolstock/internal/service/reporting"
)

var (
	errNoRemote    = errors.New("no remote backend is configured (REMOTE_BACKEND=none or unreachable)")
	errMirrorStale = errors.New("sheet mirror differs from the workbook")
)

func newPullCommand(opts *RootOptions, open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Overwrite the local workbook with the remote copy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd, opts, open, func(stack *bootstrap.Stack) error {
				if !stack.Store.RemoteEnabled() {
					return errNoRemote
				}
				if !stack.Store.PullRemote(cmd.Context()) {
					return fmt.Errorf("remote copy could not be pulled; %s is unchanged", stack.Store.Path())
				}
				successColor.Fprintf(cmd.OutOrStdout(), "Pulled remote copy into %s (%d instruments)\n",
					stack.Store.Path(), len(stack.Store.Table().Visible()))
				return nil
			})
		},
	}
}

func newPushCommand(opts *RootOptions, open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Upload the local workbook over the remote copy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd, opts, open, func(stack *bootstrap.Stack) error {
				if !stack.Store.RemoteEnabled() {
					return errNoRemote
				}
				if !stack.Store.ForceSync(cmd.Context()) {
					return errors.New("upload failed; see the log for details")
				}
				successColor.Fprintf(cmd.OutOrStdout(), "Pushed %s (%d instruments)\n",
					stack.Store.Path(), len(stack.Store.Table().Visible()))
				if link := stack.Store.Link(); link != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Remote copy: %s\n", link)
				}
				return nil
			})
		},
	}
}

func newMirrorCommand(opts *RootOptions, open Opener) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Write the local workbook to the Google Sheets mirror",
		Long:  "Write the local workbook to the Google Sheets mirror. With --check the mirror is only read back and compared with the workbook.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd, opts, open, func(stack *bootstrap.Stack) error {
				if stack.Sheets == nil {
					return errors.New("GOOGLE_SHEET_DATABASE_ID is not configured")
				}
				stack.Store.Load()

				if check {
					drift, err := reporting.NewService(stack.Store.Table(), stack.Sheets, nil).CheckMirror(cmd.Context())
					if err != nil {
						return err
					}
					if !drift.Clean() {
						warnColor.Fprintln(cmd.OutOrStdout(), drift.String())
						return errMirrorStale
					}
					successColor.Fprintln(cmd.OutOrStdout(), drift.String())
					return nil
				}

				if err := stack.Sheets.Mirror(cmd.Context(), stack.Store.Snapshot()); err != nil {
					return err
				}
				successColor.Fprintf(cmd.OutOrStdout(), "Mirrored %d rows to %s\n", stack.Store.Table().Len(), stack.Sheets.Link())
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "compare the mirror with the workbook instead of writing it")
	return cmd
}
