package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bryanwahyu/ddq-validator/internal/bootstrap"
	"github.com/bryanwahyu/ddq-validator/internal/config"
	"github.com/bryanwahyu/ddq-validator/internal/infra/httpserver"
	"github.com/bryanwahyu/ddq-validator/internal/middleware"
	"github.com/bryanwahyu/ddq-validator/internal/ratelimit"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ddq-validator: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// path config.yaml, optional
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("config load error: %w", err)
	}

	log, err := bootstrap.NewLogger(cfg.Log.Level, false)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := middleware.NewMetrics()
	app, err := bootstrap.Build(ctx, cfg, log, metrics)
	if err != nil {
		return err
	}
	defer app.Close()

	limiter := ratelimit.NewLimiter(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillRate)
	go middleware.SweepLimiter(ctx, limiter, 5*time.Minute, 10*time.Minute)

	// init router
	mux := chi.NewRouter()
	mux.Mount("/", httpserver.NewRouter(app.Service, httpserver.Options{
		MaxUploadBytes:  int64(cfg.Server.MaxUploadMB) << 20,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		Limiter:         limiter,
		Metrics:         metrics,
		Checkers:        app.Checkers,
		ReferenceSource: app.ReferenceSource,
		Logger:          log.Named("http"),
	}))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 60 * time.Second,
		// escalation can take a while on large workbooks
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	errc := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", addr),
			zap.String("reference_source", cfg.Reference.Source),
			zap.Bool("assessor_configured", app.Service.Assessor != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	// graceful shutdown
	select {
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}
	log.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
	return nil
}
