package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/ddq-validator/internal/bootstrap"
	"github.com/bryanwahyu/ddq-validator/internal/config"
)

var (
	// Global flags
	configPath string
	verbose    bool
	noColor    bool

	cfg    *config.Config
	logger *zap.Logger
)

// newRootCmd builds the base command; flags are bound to the package globals.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ddqcheck",
		Short: "Validate filled due-diligence questionnaires",
		Long: `ddqcheck reads a filled DDQ workbook, checks every answer against the
deterministic rules (empty, placeholder, too short, cross reference) and
optionally asks an LLM assessor for a second opinion on flagged rows.

A report.csv and summary.json are written to the output directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			logger, err = bootstrap.NewLogger(cfg.Log.Level, verbose)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (defaults apply when empty)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "plain summary output")

	root.AddCommand(newValidateCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	var code exitCode
	switch {
	case err == nil:
	case errors.As(err, &code):
		os.Exit(int(code))
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
