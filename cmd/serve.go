package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/countercurse/countercurse/internal/bootstrap"
	"github.com/countercurse/countercurse/internal/config"
	"github.com/countercurse/countercurse/internal/observe"
	"github.com/countercurse/countercurse/internal/server"
)

// shutdownTimeout bounds how long a stopping server waits for requests and
// background jobs.
const shutdownTimeout = 30 * time.Second

func newServeCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP job API",
		Long: `Serve accepts censoring jobs over HTTP (POST /jobs), reports their
progress (GET /jobs/{id}) and exposes Prometheus metrics on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			return Serve(cmd.Context(), cfg, logger)
		},
	}
}

// Serve runs the HTTP API until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting countercurse API",
		slog.String("version", version),
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("temp_dir", cfg.TempDir),
		slog.Int("max_concurrent_jobs", cfg.MaxConcurrentJobs),
		slog.String("transcriber", cfg.Transcriber),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
	)

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("initialize metrics: %w", err)
	}
	defer func() {
		if err := shutdownMetrics(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to shut down metrics", slog.String("error", err.Error()))
		}
	}()

	// Initialize dependencies using bootstrap
	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	// Initialize HTTP handlers and router
	handlers := server.NewHandlers(deps.CensorService, deps.Storage, logger,
		server.WithMaxConcurrentJobs(cfg.MaxConcurrentJobs),
		server.WithInputDir(cfg.InputDir),
	)
	router := server.NewRouter(handlers, logger, server.DefaultConfig())

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // Allow for large base64 uploads
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		return err
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	logger.Info("shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	if err := handlers.Wait(shutdownCtx); err != nil {
		logger.Warn("background jobs still running at shutdown", slog.String("error", err.Error()))
	}

	logger.Info("server stopped gracefully")
	return nil
}
