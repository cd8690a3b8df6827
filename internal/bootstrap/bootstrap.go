// Package bootstrap builds the validation service from a Config. Both the API
// server and the CLI go through it so they resolve sources the same way.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bryanwahyu/ddq-validator/internal/application"
	appval "github.com/bryanwahyu/ddq-validator/internal/application/validation"
	"github.com/bryanwahyu/ddq-validator/internal/config"
	"github.com/bryanwahyu/ddq-validator/internal/domain/ddq"
	"github.com/bryanwahyu/ddq-validator/internal/domain/validation"
	"github.com/bryanwahyu/ddq-validator/internal/infra/ai/openai"
	"github.com/bryanwahyu/ddq-validator/internal/infra/db/mysql"
	"github.com/bryanwahyu/ddq-validator/internal/infra/db/postgres"
	"github.com/bryanwahyu/ddq-validator/internal/infra/db/sqlite"
	"github.com/bryanwahyu/ddq-validator/internal/infra/extract/excel"
	"github.com/bryanwahyu/ddq-validator/internal/infra/storage"
	"github.com/bryanwahyu/ddq-validator/internal/middleware"
	"github.com/bryanwahyu/ddq-validator/internal/ratelimit"
)

// NewLogger builds a production zap logger at the configured level.
func NewLogger(level string, verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.Set(level); err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// App is a wired service plus the resources it holds.
type App struct {
	Service *appval.Service
	// ReferenceSource is the configured reference.source, reported by /ready.
	ReferenceSource string
	Checkers        map[string]middleware.HealthChecker

	closers []io.Closer
}

// Close releases database connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Build wires extractor, rules, reference source and assessor from cfg.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger, rec appval.RunRecorder) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	rules, err := cfg.Rules.Compile()
	if err != nil {
		return nil, err
	}

	opts := excel.Options{
		Columns: excel.Columns{
			QuestionID: cfg.Extraction.Columns.QuestionID,
			Question:   cfg.Extraction.Columns.Question,
			Answer:     cfg.Extraction.Columns.Answer,
			Expected:   cfg.Extraction.Columns.Expected,
		},
		Sheets:          cfg.Extraction.Sheets,
		StartRow:        cfg.Extraction.StartRow,
		MaxRowsPerSheet: cfg.Extraction.MaxRowsPerSheet,
	}
	ext, err := excel.NewExtractor(opts, log.Named("extract"))
	if err != nil {
		return nil, err
	}

	app := &App{ReferenceSource: cfg.Reference.Source, Checkers: map[string]middleware.HealthChecker{}}
	if app.ReferenceSource == "" {
		app.ReferenceSource = config.ReferenceNone
	}
	ref, err := app.reference(ctx, cfg, opts)
	if err != nil {
		app.Close()
		return nil, err
	}

	a := cfg.Assessor
	newAssessor := func(model string) ddq.Assessor {
		return openai.New(a.APIKey, a.BaseURL, model)
	}
	assessor := newAssessor(a.Model)
	if a.Enabled && assessor == nil {
		log.Info("no assessor API key configured, use_llm requests stay deterministic")
	}

	app.Service = &appval.Service{
		Extractor: ext,
		Evaluator: validation.NewEvaluator(rules),
		Reference: ref,
		LoadReference: func(ctx context.Context, r io.Reader) (*ddq.ReferenceSet, error) {
			return excel.LoadReference(ctx, r, opts, cfg.Reference.Strict)
		},
		Assessor:    assessor,
		NewAssessor: newAssessor,
		Gate: validation.GateConfig{
			Enabled:        a.Enabled,
			MaxConcurrency: a.MaxConcurrency,
			Timeout:        a.Timeout,
			MaxEscalations: a.MaxEscalations,
			ExcludeKinds:   cfg.GateKinds(),
			Limiter:        ratelimit.PerMinute(a.RequestsPerMinute),
		},
		RedactNames: cfg.Extraction.RedactNames,
		Clock:       application.SystemClock{},
		Log:         log,
		Metrics:     rec,
	}
	return app, nil
}

func (app *App) reference(ctx context.Context, cfg *config.Config, opts excel.Options) (ddq.ReferenceSource, error) {
	r := cfg.Reference
	switch r.Source {
	case "", config.ReferenceNone:
		return nil, nil

	case config.ReferenceWorkbook:
		ref := excel.WorkbookReference{
			Source:  storage.Dir{Root: filepath.Dir(r.Path)},
			Key:     filepath.Base(r.Path),
			Options: opts,
			Strict:  r.Strict,
		}
		app.Checkers["reference"] = ref
		return ref, nil

	case config.ReferenceMinio:
		store, err := storage.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			return nil, fmt.Errorf("minio init: %w", err)
		}
		ref := excel.WorkbookReference{Source: store, Key: r.ObjectKey, Options: opts, Strict: r.Strict}
		app.Checkers["minio"] = middleware.CheckFunc(store.Check)
		app.Checkers["reference"] = ref
		return ref, nil

	case config.ReferenceMySQL:
		conn, err := mysql.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		return app.catalog(conn, mysql.NewReferenceRepository(conn, r.Questionnaire, r.Strict)), nil

	case config.ReferencePostgres:
		conn, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		return app.catalog(conn, postgres.NewReferenceRepository(conn, r.Questionnaire, r.Strict)), nil

	case config.ReferenceSqlite:
		conn, err := sqlite.Open(ctx, r.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite open: %w", err)
		}
		return app.catalog(conn, sqlite.NewReferenceRepository(conn, r.Questionnaire, r.Strict)), nil
	}
	return nil, fmt.Errorf("reference.source %q is not supported", r.Source)
}

type catalogRepository interface {
	ddq.ReferenceSource
	middleware.HealthChecker
}

// catalog keeps conn for Close and lets the repository answer readiness.
func (app *App) catalog(conn *sql.DB, repo catalogRepository) ddq.ReferenceSource {
	app.closers = append(app.closers, conn)
	app.Checkers["catalog"] = repo
	return repo
}
