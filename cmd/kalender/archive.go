package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kulturkalender/kulturkalender/internal/archive"
)

func newArchiveCmd(configPath *string) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Move expired published events into monthly archive buckets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}

			archiver := archive.New(a.store, a.cfg.Archive, a.logger)
			report, err := archiver.Run(dryRun)
			if err != nil {
				return err
			}

			verb := "archived"
			if report.DryRun {
				verb = "would archive"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d of %d events\n", verb, report.Archived, report.Examined)

			months := make([]string, 0, len(report.Buckets))
			for month := range report.Buckets {
				months = append(months, month)
			}
			sort.Strings(months)
			for _, month := range months {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d\n", month, report.Buckets[month])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute the partition without writing")
	return cmd
}
