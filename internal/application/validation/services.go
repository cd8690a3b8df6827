package validation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/ddq-validator/internal/application"
	"github.com/bryanwahyu/ddq-validator/internal/domain/ddq"
	domain "github.com/bryanwahyu/ddq-validator/internal/domain/validation"
)

// AssessorFactory builds an assessor for a model name. A nil result means
// no credential is configured and escalation stays off.
type AssessorFactory func(model string) ddq.Assessor

// ReferenceLoader reads an uploaded reference workbook.
type ReferenceLoader func(ctx context.Context, r io.Reader) (*ddq.ReferenceSet, error)

// RunRecorder receives one call per run (see middleware.Metrics).
type RunRecorder interface {
	RecordRun(sum ddq.Summary, d time.Duration, err error)
}

// Service implements the validation use case.
// Service is designed to be used concurrently and is thread-safe
type Service struct {
	Extractor ddq.Extractor
	Evaluator *domain.Evaluator

	// Reference is the configured model answer source, may be nil.
	Reference ddq.ReferenceSource
	// LoadReference parses a reference workbook passed with the command.
	LoadReference ReferenceLoader

	Assessor    ddq.Assessor
	NewAssessor AssessorFactory
	Gate        domain.GateConfig

	RedactNames bool
	Workers     int

	Clock   application.Clock
	Log     *zap.Logger
	Metrics RunRecorder
}

// Command untuk satu validation run
type ValidateCommand struct {
	Filled io.Reader
	// Reference overrides Service.Reference for this run.
	Reference io.Reader
	UseLLM    bool
	// LLMModel selects a different assessor model for this run.
	LLMModel        string
	MaxRowsPerSheet int
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *Service) clock() application.Clock {
	if s.Clock == nil {
		return application.SystemClock{}
	}
	return s.Clock
}

// Validate jalankan satu run: extract → evaluate → escalate → aggregate.
//
// Run-level failures return a nil report. When ctx is cancelled the report
// holds the rows finished so far, is marked Partial, and ctx's error is returned with it.
func (s *Service) Validate(ctx context.Context, cmd ValidateCommand) (*ddq.Report, error) {
	start := s.clock().Now()
	runID := uuid.New().String()
	log := s.log().With(zap.String("run_id", runID))

	rep, err := s.validate(ctx, log, cmd)
	if rep != nil {
		rep.RunID = runID
	}

	elapsed := s.clock().Now().Sub(start)
	if s.Metrics != nil {
		var sum ddq.Summary
		if rep != nil {
			sum = rep.Summary
		}
		s.Metrics.RecordRun(sum, elapsed, err)
	}
	switch {
	case rep == nil:
		log.Error("run failed", zap.Error(err), zap.Duration("duration", elapsed))
	case err != nil:
		log.Warn("run interrupted",
			zap.Int("total_rows", rep.Summary.TotalRows),
			zap.Error(err),
			zap.Duration("duration", elapsed))
	default:
		log.Info("run completed",
			zap.Int("total_rows", rep.Summary.TotalRows),
			zap.Int("total_flagged", rep.Summary.TotalFlagged),
			zap.Duration("duration", elapsed))
	}
	return rep, err
}

func (s *Service) validate(ctx context.Context, log *zap.Logger, cmd ValidateCommand) (*ddq.Report, error) {
	if cmd.Filled == nil {
		return nil, fmt.Errorf("%w: no filled workbook given", ddq.ErrWorkbookUnreadable)
	}

	ref, err := s.reference(ctx, cmd)
	if err != nil {
		return nil, err
	}

	rows, err := s.Extractor.Extract(ctx, cmd.Filled, ref)
	if err != nil {
		return nil, err
	}
	rows = limitRows(rows, cmd.MaxRowsPerSheet)
	if len(rows) == 0 {
		return nil, ddq.ErrNoRows
	}
	if s.RedactNames {
		for i := range rows {
			rows[i] = domain.RedactRow(rows[i])
		}
	}
	log.Debug("rows extracted", zap.Int("rows", len(rows)), zap.Int("reference_answers", ref.Len()))

	// stage 1: deterministic rules
	agg, err := s.evaluate(ctx, rows)
	if err != nil && ctx.Err() == nil {
		return nil, err
	}
	rep := agg.Finalize()
	if err != nil {
		rep.Partial = true
		return &rep, err
	}

	// stage 2: strictly additive pass over FLAGGED rows
	gate := s.gate(cmd, log)
	if gate.Active() {
		rep.Rows = gate.EscalateAll(ctx, rep.Rows)
		rep.Summary = domain.Summarize(rep.Rows)
		if err := ctx.Err(); err != nil {
			rep.Partial = true
			return &rep, err
		}
	}
	return &rep, nil
}

func (s *Service) reference(ctx context.Context, cmd ValidateCommand) (*ddq.ReferenceSet, error) {
	switch {
	case cmd.Reference != nil && s.LoadReference != nil:
		return s.LoadReference(ctx, cmd.Reference)
	case cmd.Reference != nil:
		return nil, fmt.Errorf("%w: reference upload is not supported", ddq.ErrReferenceSource)
	case s.Reference != nil:
		ref, err := s.Reference.LoadReference(ctx)
		if err != nil && !errors.Is(err, ddq.ErrReferenceSource) {
			err = fmt.Errorf("%w: %v", ddq.ErrReferenceSource, err)
		}
		return ref, err
	}
	return nil, nil
}

func (s *Service) gate(cmd ValidateCommand, log *zap.Logger) *domain.Gate {
	assessor := s.Assessor
	if cmd.LLMModel != "" && s.NewAssessor != nil {
		assessor = s.NewAssessor(cmd.LLMModel)
	}
	cfg := s.Gate
	// config enables the capability, the run decides whether to use it
	cfg.Enabled = cfg.Enabled && cmd.UseLLM
	cfg.Logger = log
	return domain.NewGate(assessor, cfg)
}

// evaluate fans rows out to a worker pool. Results come back in completion
// order and are reduced by this goroutine alone.
func (s *Service) evaluate(ctx context.Context, rows []ddq.QuestionRow) (*domain.Aggregator, error) {
	type done struct {
		index int
		res   ddq.RowResult
	}

	if err := ctx.Err(); err != nil {
		return domain.NewAggregator(), err
	}

	workers := s.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(rows) {
		workers = len(rows)
	}

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan int)
	out := make(chan done)

	g.Go(func() error {
		defer close(jobs)
		for i := range rows {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for i := range jobs {
				res, err := s.Evaluator.SafeEvaluate(rows[i])
				if err != nil {
					return err
				}
				select {
				case out <- done{index: i, res: res}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(out)
	}()

	agg := domain.NewAggregator()
	for d := range out {
		agg.Add(d.index, d.res)
	}
	return agg, g.Wait()
}

// limitRows keeps rows up to sheet row number max, 0 = unlimited.
func limitRows(rows []ddq.QuestionRow, max int) []ddq.QuestionRow {
	if max <= 0 {
		return rows
	}
	out := rows[:0:0]
	for _, r := range rows {
		if r.RowIndex <= max {
			out = append(out, r)
		}
	}
	return out
}
