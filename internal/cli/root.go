// Package cli implements toolctl, the operator command line for the
// inventory workbook and its remote copy.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mamadbah2/toolstock/internal/bootstrap"
	"github.com/mamadbah2/toolstock/internal/config"
	"github.com/mamadbah2/toolstock/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile string
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Opener opens the storage stack for a command.
type Opener func(ctx context.Context, opts *RootOptions) (*bootstrap.Stack, error)

// OpenFromEnv reads the configuration from the environment and opens the
// stack it describes.
func OpenFromEnv(ctx context.Context, opts *RootOptions) (*bootstrap.Stack, error) {
	cfg, err := config.Read(opts.EnvFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateStorage(); err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return bootstrap.Open(ctx, cfg, log.Named("toolctl"), nil), nil
}

// NewRootCommand creates the root command for toolctl.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "toolctl",
		Short: "Inspect and synchronise the tool inventory",
		Long:  "Operator tooling for the inventory workbook: pull or push the remote copy, list and show instruments, read the change journal.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "optional .env file to load")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newPullCommand(opts, open))
	cmd.AddCommand(newPushCommand(opts, open))
	cmd.AddCommand(newListCommand(opts, open))
	cmd.AddCommand(newShowCommand(opts, open))
	cmd.AddCommand(newHistoryCommand(opts, open))
	cmd.AddCommand(newMirrorCommand(opts, open))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// withStack opens the stack, runs fn and closes the stack again.
func withStack(cmd *cobra.Command, opts *RootOptions, open Opener, fn func(*bootstrap.Stack) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stack, err := open(ctx, opts)
	if err != nil {
		return fmt.Errorf("open inventory: %w", err)
	}
	defer stack.Close(context.Background())
	return fn(stack)
}
