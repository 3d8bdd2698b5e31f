package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ktb-community/board/internal/app"
	"github.com/ktb-community/board/internal/config"
	"github.com/ktb-community/board/internal/logger"
)

func ReapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Run one orphan image sweep and print the counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger.Init(cfg.IsDevelopment(), cfg.SentryDSN)

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			stats := a.Reaper.RunOnce(cmd.Context())
			for _, phase := range []struct {
				name    string
				deleted int
				skipped int
				failed  int
				err     error
			}{
				{string(stats.TTL.Phase), stats.TTL.Deleted, stats.TTL.Skipped, stats.TTL.Failed, stats.TTL.Err},
				{string(stats.Orphan.Phase), stats.Orphan.Deleted, stats.Orphan.Skipped, stats.Orphan.Failed, stats.Orphan.Err},
			} {
				fmt.Printf("%-7s deleted=%d skipped=%d failed=%d\n", phase.name, phase.deleted, phase.skipped, phase.failed)
				if phase.err != nil {
					fmt.Printf("%-7s enumeration failed: %v\n", phase.name, phase.err)
				}
			}
			return nil
		},
	}
}
