// Command reaper deletes orphaned images. By default it runs one sweep and
// exits so an external scheduler can own the cadence; --loop keeps it running
// on REAPER_INTERVAL instead.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ktb-community/board/internal/app"
	"github.com/ktb-community/board/internal/config"
	"github.com/ktb-community/board/internal/logger"
)

func main() {
	var loop bool

	rootCmd := &cobra.Command{
		Use:          "reaper",
		Short:        "Delete provisional and unreferenced images",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), loop)
		},
	}
	rootCmd.Flags().BoolVar(&loop, "loop", false, "keep sweeping on REAPER_INTERVAL until interrupted")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("reaper failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, loop bool) error {
	cfg := config.Load()
	logger.Init(cfg.IsDevelopment(), cfg.SentryDSN)

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if loop {
		return a.Reaper.Run(ctx)
	}

	stats := a.Reaper.RunOnce(ctx)
	slog.Info("sweep finished",
		"ttl_deleted", stats.TTL.Deleted,
		"ttl_failed", stats.TTL.Failed,
		"orphan_deleted", stats.Orphan.Deleted,
		"orphan_failed", stats.Orphan.Failed,
	)

	return errors.Join(stats.TTL.Err, stats.Orphan.Err)
}
