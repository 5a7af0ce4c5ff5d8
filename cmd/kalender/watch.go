package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kulturkalender/kulturkalender/internal/archive"
)

func newWatchCmd(configPath *string) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Scrape on an interval and archive on the configured schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			p, err := a.pipeline()
			if err != nil {
				return err
			}

			archiver := archive.New(a.store, a.cfg.Archive, a.logger)
			scheduler, err := archive.NewScheduler(archiver, a.cfg.Archive.Schedule, a.logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			scheduler.Start()
			defer scheduler.Stop()

			fmt.Fprintf(cmd.OutOrStdout(), "watching %d sources every %s\n",
				len(a.cfg.Sources), interval)

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				if _, err := p.Run(ctx); err != nil {
					a.logger.Error("scrape run failed", "error", err)
				}
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 6*time.Hour, "time between scrape runs")
	return cmd
}
