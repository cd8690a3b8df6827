package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	appval "github.com/bryanwahyu/ddq-validator/internal/application/validation"
	"github.com/bryanwahyu/ddq-validator/internal/domain/ddq"
	"github.com/bryanwahyu/ddq-validator/internal/infra/report"
	"github.com/bryanwahyu/ddq-validator/internal/middleware"
	"github.com/bryanwahyu/ddq-validator/internal/ratelimit"
)

// Options for NewRouter. Zero values disable the matching feature.
type Options struct {
	MaxUploadBytes  int64
	AllowedOrigins  []string
	Limiter         *ratelimit.Limiter
	Metrics         *middleware.Metrics
	Checkers        map[string]middleware.HealthChecker
	// ReferenceSource is echoed by /ready.
	ReferenceSource string
	Logger          *zap.Logger
}

type Router struct {
	svc      *appval.Service
	maxBytes int64
	log      *zap.Logger
}

func NewRouter(svc *appval.Service, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = middleware.NewMetrics()
	}
	r := &Router{svc: svc, maxBytes: opts.MaxUploadBytes, log: opts.Logger}
	mux := chi.NewRouter()

	if len(opts.AllowedOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}
	mux.Use(middleware.Logging(opts.Logger))
	mux.Use(opts.Metrics.Middleware)
	if opts.Limiter != nil {
		mux.Use(middleware.RateLimit(opts.Limiter, "/health", "/ready", "/metrics"))
	}

	mux.Get("/health", middleware.LivenessHandler)
	mux.Get("/ready", middleware.ReadinessHandler(opts.ReferenceSource, opts.Checkers))
	mux.Get("/metrics", opts.Metrics.Handler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/validate", r.wrap(r.handleValidate))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		case errors.Is(err, middleware.ErrInvalidInput),
			errors.Is(err, ddq.ErrWorkbookUnreadable),
			errors.Is(err, ddq.ErrSheetNotFound),
			errors.Is(err, ddq.ErrInvalidColumns),
			errors.Is(err, ddq.ErrNoRows):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ddq.ErrReferenceSource):
			http.Error(w, err.Error(), http.StatusBadGateway)
		case errors.Is(err, ddq.ErrQuotaExceeded):
			http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			http.Error(w, "request cancelled", http.StatusServiceUnavailable)
		default:
			r.log.Error("validate handler", zap.Error(err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

type validateResponse struct {
	RunID       string          `json:"run_id"`
	Summary     ddq.Summary     `json:"summary"`
	Report      []ddq.RowResult `json:"report"`
	ReportCSV   string          `json:"report_csv"`
	SummaryJSON string          `json:"summary_json"`
	Partial     bool            `json:"partial,omitempty"`
}

// POST /v1/validate (multipart)
// Fields: file (required .xlsx), reference (optional .xlsx), use_llm, llm_model, max_rows_per_sheet.
// ?format=xlsx returns the report workbook instead of JSON.
func (r *Router) handleValidate(w http.ResponseWriter, req *http.Request) error {
	if r.maxBytes > 0 {
		// two workbooks plus form overhead
		req.Body = http.MaxBytesReader(w, req.Body, 2*r.maxBytes+1<<20)
	}
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: %v", middleware.ErrInvalidInput, err)
	}
	defer req.MultipartForm.RemoveAll()

	filled, fh, err := req.FormFile("file")
	if err != nil {
		return fmt.Errorf("%w: file is required", middleware.ErrInvalidInput)
	}
	defer filled.Close()
	if err := middleware.ValidateUpload(fh, r.maxBytes); err != nil {
		return err
	}

	var reference io.Reader
	if refFile, refHeader, err := req.FormFile("reference"); err == nil {
		defer refFile.Close()
		if err := middleware.ValidateUpload(refHeader, r.maxBytes); err != nil {
			return err
		}
		reference = refFile
	} else if !errors.Is(err, http.ErrMissingFile) {
		return fmt.Errorf("%w: reference: %v", middleware.ErrInvalidInput, err)
	}

	useLLM, err := middleware.ParseBool("use_llm", req.FormValue("use_llm"))
	if err != nil {
		return err
	}
	model := middleware.SanitizeString(req.FormValue("llm_model"))
	if err := middleware.ValidateModel(model); err != nil {
		return err
	}
	maxRows, err := middleware.ParseMaxRows(req.FormValue("max_rows_per_sheet"))
	if err != nil {
		return err
	}

	rep, err := r.svc.Validate(req.Context(), appval.ValidateCommand{
		Filled:          filled,
		Reference:       reference,
		UseLLM:          useLLM,
		LLMModel:        model,
		MaxRowsPerSheet: maxRows,
	})
	if err != nil {
		return err
	}

	if req.URL.Query().Get("format") == "xlsx" {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="report.xlsx"`)
		w.Header().Set("X-Run-ID", rep.RunID)
		return report.WriteXLSX(w, *rep)
	}

	rendered, err := report.Render(*rep)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(validateResponse{
		RunID:       rep.RunID,
		Summary:     rep.Summary,
		Report:      rep.Rows,
		ReportCSV:   string(rendered.CSV),
		SummaryJSON: string(rendered.SummaryJSON),
		Partial:     rep.Partial,
	})
}
