package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthChecker is anything /ready can check: the MinIO bucket, the reference
// workbook, the model answer catalog.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts a plain function, e.g. storage.Store.Check.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// Readiness is the /ready body. ReferenceSource says where model answers come
// from in this deployment; "none" means rows are judged on the answer alone.
type Readiness struct {
	Ready           bool                   `json:"ready"`
	ReferenceSource string                 `json:"reference_source"`
	CheckedAt       time.Time              `json:"checked_at"`
	Checks          map[string]CheckResult `json:"checks,omitempty"`
}

type CheckResult struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// ReadinessHandler runs every checker concurrently; one failure answers 503.
func ReadinessHandler(source string, checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		out := Readiness{
			Ready:           true,
			ReferenceSource: source,
			CheckedAt:       time.Now().UTC(),
			Checks:          make(map[string]CheckResult, len(checkers)),
		}

		var (
			mu sync.Mutex
			g  errgroup.Group
		)
		for name, checker := range checkers {
			g.Go(func() error {
				start := time.Now()
				err := checker.Check(ctx)
				res := CheckResult{OK: err == nil, LatencyMS: time.Since(start).Milliseconds()}
				if err != nil {
					res.Error = err.Error()
				}
				mu.Lock()
				out.Checks[name] = res
				out.Ready = out.Ready && res.OK
				mu.Unlock()
				return nil
			})
		}
		g.Wait()

		code := http.StatusOK
		if !out.Ready {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(out)
	}
}

// LivenessHandler answers as long as the process serves HTTP.
func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
