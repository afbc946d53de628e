// Package cli implements the splitledger command line.
package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/pkg/logging"
)

// RootOptions holds global flags for all commands, plus the configuration
// loaded before any subcommand runs.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "json" | "text"

	cfg    *config.Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the splitledger CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "splitledger",
		Short: "splitledger - shared expense balance ledger",
		Long: `Records shared expenses per group and keeps every pairwise balance
consistent under concurrent, partial and repeated operations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}

			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			if opts.Verbose {
				cfg.Log.Level = "debug"
			}
			opts.cfg = cfg
			opts.logger = logging.New(cmd.ErrOrStderr(), logging.Options{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
			})
			slog.SetDefault(opts.logger)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewBalancesCommand(opts))
	cmd.AddCommand(NewTxCommand(opts))
	cmd.AddCommand(NewDirectoryCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}
