package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/bryanwahyu/ddq-validator/internal/domain/ddq"
)

const (
	noteBudget    = "Escalation skipped: budget exhausted."
	noteCancelled = "Escalation cancelled."
)

// Waiter paces outgoing assessor calls (see ratelimit.TokenBucket).
type Waiter interface {
	Wait(ctx context.Context) error
}

// GateConfig controls the secondary assessment stage.
type GateConfig struct {
	Enabled        bool
	MaxConcurrency int
	Timeout        time.Duration
	// MaxEscalations caps assessor calls per run, 0 means unlimited.
	MaxEscalations int
	// ExcludeKinds keeps FLAGGED rows of these kinds away from the assessor,
	// except rows whose model answer forbids the answer outright.
	ExcludeKinds []ddq.FindingKind
	Limiter      Waiter
	Logger       *zap.Logger
}

// Gate sends FLAGGED rows to the assessor. With no assessor, or when
// disabled, it passes results through untouched.
type Gate struct {
	assessor ddq.Assessor
	cfg      GateConfig
	sem      *semaphore.Weighted
	log      *zap.Logger
}

func NewGate(assessor ddq.Assessor, cfg GateConfig) *Gate {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{
		assessor: assessor,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		log:      log,
	}
}

// Active reports whether escalation can happen at all in this run.
func (g *Gate) Active() bool {
	return g != nil && g.assessor != nil && g.cfg.Enabled
}

// Eligible reports whether r would be sent to the assessor.
func (g *Gate) Eligible(r ddq.RowResult) bool {
	if !g.Active() || r.Status != ddq.StatusFlagged {
		return false
	}
	if r.ForbiddenByModel {
		return true
	}
	for _, k := range g.cfg.ExcludeKinds {
		if r.Kind == k {
			return false
		}
	}
	return true
}

// MaybeEscalate asks the assessor about one row. Failures keep the
// deterministic result and leave a note on the row.
func (g *Gate) MaybeEscalate(ctx context.Context, r ddq.RowResult) ddq.RowResult {
	if !g.Eligible(r) {
		return r
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		r.Note = noteCancelled
		return r
	}
	defer g.sem.Release(1)

	if g.cfg.Limiter != nil {
		if err := g.cfg.Limiter.Wait(ctx); err != nil {
			r.Note = noteCancelled
			return r
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	start := time.Now()
	v, err := g.assessor.Assess(callCtx, r.Row, ddq.Finding{Kind: r.Kind, Detail: r.Reason, ForbiddenByModel: r.ForbiddenByModel})
	if err == nil && strings.TrimSpace(v.Reason) == "" {
		err = fmt.Errorf("%w: empty reason", ddq.ErrMalformedVerdict)
	}
	if err != nil {
		switch {
		case ctx.Err() != nil:
			r.Note = noteCancelled
		case errors.Is(callCtx.Err(), context.DeadlineExceeded):
			r.Note = fmt.Sprintf("Escalation timed out after %s; kept rule result.", g.cfg.Timeout)
		default:
			r.Note = fmt.Sprintf("Escalation failed: %v; kept rule result.", err)
		}
		g.log.Warn("escalation failed",
			zap.String("sheet", r.Row.Sheet),
			zap.Int("row", r.Row.RowIndex),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return r
	}

	out := r
	out.Status = ddq.StatusEscalated
	out.DeterministicReason = r.Reason
	out.Reason = strings.TrimSpace(v.Reason)
	out.Verdict = &v
	g.log.Debug("row escalated",
		zap.String("sheet", r.Row.Sheet),
		zap.Int("row", r.Row.RowIndex),
		zap.Duration("duration", time.Since(start)))
	return out
}

// EscalateAll runs the second pass over already classified rows. Rows keep
// their positions; only eligible rows within the budget reach the assessor,
// picked in input order. The returned slice is complete even if ctx is cancelled.
func (g *Gate) EscalateAll(ctx context.Context, rows []ddq.RowResult) []ddq.RowResult {
	out := make([]ddq.RowResult, len(rows))
	copy(out, rows)
	if !g.Active() {
		return out
	}

	var eg errgroup.Group
	sent := 0
	for i := range out {
		if !g.Eligible(out[i]) {
			continue
		}
		if g.cfg.MaxEscalations > 0 && sent >= g.cfg.MaxEscalations {
			out[i].Note = noteBudget
			continue
		}
		sent++
		i := i
		eg.Go(func() error {
			out[i] = g.MaybeEscalate(ctx, out[i])
			return nil
		})
	}
	_ = eg.Wait()
	return out
}
