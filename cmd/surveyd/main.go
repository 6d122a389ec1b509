// Command surveyd serves the survey generation API.
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

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-draft/generate/httpapi"
	"github.com/goliatone/go-draft/internal/app"
	"github.com/goliatone/go-draft/internal/config"
	"github.com/goliatone/go-draft/pkg/zaplog"
)

func newRootCmd() *cobra.Command {
	var (
		configFile string
		verbose    bool
	)
	cmd := &cobra.Command{
		Use:           "surveyd",
		Short:         "Serve the survey generation API",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			return run(configFile, verbose)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "path to a YAML config file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "surveyd:", err)
		os.Exit(1)
	}
}

func run(configFile string, verbose bool) error {
	cfg, err := config.Load(config.Options{File: configFile})
	if err != nil {
		return err
	}
	logger, err := zaplog.New(verbose || cfg.Verbose)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, closeService, err := app.NewService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeService(context.Background()); err != nil {
			logger.Warn("close generation cache", zap.Error(err))
		}
	}()

	middlewares := []func(http.Handler) http.Handler{requestLogger(logger)}
	if timeout := cfg.Server.RequestTimeout.Std(); timeout > 0 {
		middlewares = append(middlewares, middleware.Timeout(timeout))
	}
	server := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: httpapi.NewRouter(httpapi.Config{
			Generator:      svc,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Middleware:     middlewares,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("surveyd listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("provider", svc.Provider().Name()),
			zap.String("cache", cfg.Cache.Driver),
		)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	logger = logger.Named("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
