package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	appval "github.com/bryanwahyu/ddq-validator/internal/application/validation"
	"github.com/bryanwahyu/ddq-validator/internal/bootstrap"
	"github.com/bryanwahyu/ddq-validator/internal/infra/report"
)

// exitCode ends the process with a status but prints nothing.
type exitCode int

func (c exitCode) Error() string { return fmt.Sprintf("exit status %d", int(c)) }

// flagged rows exit with this code when --fail-on-flagged is set
const exitFlagged exitCode = 2

type validateFlags struct {
	filled        string
	reference     string
	outDir        string
	useLLM        bool
	llmModel      string
	maxRows       int
	xlsx          bool
	failOnFlagged bool
}

func newValidateCmd() *cobra.Command {
	var f validateFlags
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate one filled workbook",
		Example: `  ddqcheck validate --filled answers.xlsx
  ddqcheck validate --filled answers.xlsx --reference model.xlsx --use-llm --out-dir out/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.filled, "filled", "", "filled DDQ workbook (.xlsx)")
	cmd.Flags().StringVar(&f.reference, "reference", "", "reference workbook with model answers, overrides config")
	cmd.Flags().StringVarP(&f.outDir, "out-dir", "o", "out", "directory for report.csv and summary.json")
	cmd.Flags().BoolVar(&f.useLLM, "use-llm", false, "escalate flagged rows to the LLM assessor")
	cmd.Flags().StringVar(&f.llmModel, "llm-model", "", "assessor model, overrides config")
	cmd.Flags().IntVar(&f.maxRows, "max-rows-per-sheet", 0, "ignore rows past this sheet row number, 0 = all")
	cmd.Flags().BoolVar(&f.xlsx, "xlsx", false, "also write report.xlsx")
	cmd.Flags().BoolVar(&f.failOnFlagged, "fail-on-flagged", false, "exit with status 2 when any row is flagged")
	_ = cmd.MarkFlagRequired("filled")
	return cmd
}

func runValidate(cmd *cobra.Command, f validateFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if f.maxRows < 0 {
		return errors.New("--max-rows-per-sheet must not be negative")
	}

	app, err := bootstrap.Build(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	filled, err := os.Open(f.filled)
	if err != nil {
		return err
	}
	defer filled.Close()

	var reference io.Reader
	if f.reference != "" {
		rf, err := os.Open(f.reference)
		if err != nil {
			return err
		}
		defer rf.Close()
		reference = rf
	}

	rep, runErr := app.Service.Validate(ctx, appval.ValidateCommand{
		Filled:          filled,
		Reference:       reference,
		UseLLM:          f.useLLM,
		LLMModel:        f.llmModel,
		MaxRowsPerSheet: f.maxRows,
	})
	if rep == nil {
		fmt.Fprintln(out, renderFailure(runErr, noColor))
		return exitCode(1)
	}

	paths, err := report.WriteDir(f.outDir, *rep, f.xlsx)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	logger.Debug("report written", zap.String("dir", f.outDir))
	fmt.Fprintln(out, renderSummary(rep, paths, runErr, noColor))

	if runErr != nil {
		return exitCode(130)
	}
	if f.failOnFlagged && rep.Summary.TotalFlagged > 0 {
		return exitFlagged
	}
	return nil
}
