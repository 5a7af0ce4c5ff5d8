package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newScrapeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Run one pass over all enabled sources",
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

			report, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}

			for _, sr := range report.Sources {
				if sr.Err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%-24s FAILED: %v\n", sr.Source, sr.Err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s fetched=%d new=%d duplicates=%d flagged=%d\n",
					sr.Source, sr.Fetched, sr.New, sr.Duplicates, sr.Flagged)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "staged %d new items", report.TotalNew())
			if failed := report.Failed(); len(failed) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), " (%d sources failed)", len(failed))
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}
