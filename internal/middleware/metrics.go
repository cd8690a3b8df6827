package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/bryanwahyu/ddq-validator/internal/domain/ddq"
)

// Metrics stores request and validation run counters.
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64

	RunsTotal       uint64
	RunsFailed      uint64
	RunsInterrupted uint64
	RowsTotal       uint64
	RowsFlagged     uint64
	RowsEscalated   uint64
	// RunNanos is the summed wall time of all runs.
	RunNanos uint64

	StartTime time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

// RecordRun counts one finished validation run.
func (m *Metrics) RecordRun(sum ddq.Summary, d time.Duration, err error) {
	atomic.AddUint64(&m.RunsTotal, 1)
	if d > 0 {
		atomic.AddUint64(&m.RunNanos, uint64(d))
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		atomic.AddUint64(&m.RunsInterrupted, 1)
	case err != nil:
		atomic.AddUint64(&m.RunsFailed, 1)
		return
	}
	atomic.AddUint64(&m.RowsTotal, uint64(sum.TotalRows))
	atomic.AddUint64(&m.RowsFlagged, uint64(sum.TotalFlagged))
	atomic.AddUint64(&m.RowsEscalated, uint64(sum.ByStatus[string(ddq.StatusEscalated)]))
}

// Snapshot returns current metrics
func (m *Metrics) Snapshot() map[string]interface{} {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	runs := atomic.LoadUint64(&m.RunsTotal)
	avg := 0.0
	if runs > 0 {
		avg = time.Duration(atomic.LoadUint64(&m.RunNanos) / runs).Seconds()
	}

	return map[string]interface{}{
		"requests_total":       atomic.LoadUint64(&m.RequestsTotal),
		"requests_in_progress": atomic.LoadUint64(&m.RequestsInProgress),
		"requests_success":     atomic.LoadUint64(&m.RequestsSuccess),
		"requests_failed":      atomic.LoadUint64(&m.RequestsFailed),
		"runs_total":           runs,
		"runs_failed":          atomic.LoadUint64(&m.RunsFailed),
		"runs_interrupted":     atomic.LoadUint64(&m.RunsInterrupted),
		"rows_total":           atomic.LoadUint64(&m.RowsTotal),
		"rows_flagged":         atomic.LoadUint64(&m.RowsFlagged),
		"rows_escalated":       atomic.LoadUint64(&m.RowsEscalated),
		"run_avg_seconds":      avg,
		"uptime_seconds":       time.Since(m.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       ms.Alloc,
			"total_alloc_bytes": ms.TotalAlloc,
			"sys_bytes":         ms.Sys,
			"num_gc":            ms.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// Middleware tracks request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddUint64(&m.RequestsTotal, 1)
		atomic.AddUint64(&m.RequestsInProgress, 1)
		defer atomic.AddUint64(&m.RequestsInProgress, ^uint64(0))

		wrapped := wrapWriter(w)
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			atomic.AddUint64(&m.RequestsSuccess, 1)
		} else {
			atomic.AddUint64(&m.RequestsFailed, 1)
		}
	})
}

// Handler returns metrics as JSON
func (m *Metrics) Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m.Snapshot())
}
