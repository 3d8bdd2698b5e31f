package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ktb-community/board/internal/app"
	"github.com/ktb-community/board/internal/config"
	"github.com/ktb-community/board/internal/logger"
	"github.com/ktb-community/board/internal/routes"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()

	logger.Init(cfg.IsDevelopment(), cfg.SentryDSN)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, cfg)
	stop()
	if err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// run owns the app for the process lifetime. It returns instead of exiting
// so the app is always closed.
func run(ctx context.Context, cfg *config.Config) error {
	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer func() {
		closeErr := a.Close()
		if closeErr != nil {
			slog.Error("failed to close app", "error", closeErr)
		}
	}()

	return serve(ctx, a)
}

// serve runs the HTTP server and the reaper until ctx is cancelled or
// either of them fails.
func serve(ctx context.Context, a *app.App) error {
	server := &http.Server{
		Addr:              ":" + a.Cfg.Port,
		Handler:           routes.SetupRoutes(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		slog.Info("server starting", "port", a.Cfg.Port, "env", a.Cfg.AppEnv, "url", "http://localhost:"+a.Cfg.Port)
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	group.Go(func() error {
		return a.Reaper.Run(ctx)
	})

	group.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		a.Reaper.Close()
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
