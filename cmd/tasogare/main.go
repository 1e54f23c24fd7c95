package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/make-42/tasogare/internal/api"
	"github.com/make-42/tasogare/internal/config"
	"github.com/make-42/tasogare/internal/metrics"
	"github.com/make-42/tasogare/internal/sky"
	"github.com/make-42/tasogare/internal/stream"
	"github.com/make-42/tasogare/internal/tle"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ds, err := tle.LoadFile(cfg.TLEPath, logger)
	if err != nil {
		logger.Error("failed to load TLE data", "error", err)
		os.Exit(1)
	}
	entries, missing := ds.Select(cfg.Satellites)
	if len(missing) > 0 {
		logger.Warn("satellites not found in TLE data", "names", missing)
	}

	engine, err := sky.NewEngine(entries, cfg.Sky(), logger)
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(1)
	}

	streamHandler := stream.NewHandler(engine, cfg.Stream, logger)
	srv := api.NewServer(cfg.HTTPAddr, logger, cfg.Auth, api.Deps{
		Sky:        engine,
		Dataset:    ds,
		Stream:     streamHandler.HandleStream,
		TrustProxy: cfg.TrustProxy,
	})

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go engine.Run(ctx, cfg.TickInterval)

	// Background goroutine to update the oldest-epoch age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			metrics.SetTLEEpochAge(time.Since(ds.EpochRange.Min).Seconds())
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("starting server", "addr", cfg.HTTPAddr, "auth_enabled", cfg.Auth.Enabled, "tracked", engine.Tracked())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
