package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newPendingCmd(configPath *string) *cobra.Command {
	pending := &cobra.Command{
		Use:   "pending",
		Short: "Inspect and decide on queued items",
	}
	pending.AddCommand(
		newPendingListCmd(configPath),
		newPendingApproveCmd(configPath),
		newPendingRejectCmd(configPath),
	)
	return pending
}

func newPendingListCmd(configPath *string) *cobra.Command {
	var reviewOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			items, err := a.store.Pending()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tCONFIDENCE\tREVIEW\tTITLE\tSOURCES")
			listed := 0
			for _, item := range items {
				if reviewOnly && !item.NeedsReview {
					continue
				}
				review := ""
				if item.NeedsReview {
					review = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
					shortID(item.ID), item.Kind, item.Confidence.Level,
					review, item.Title(), len(item.Provenance))
				listed++
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d items\n", listed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reviewOnly, "review-only", false, "only show items flagged for review")
	return cmd
}

func newPendingApproveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a queued item",
		Long:  "Approve a queued item by id or unique id prefix. Events move to the published calendar, venue and organizer proposals become verified registry entries.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			item, err := a.store.FindPending(args[0])
			if err != nil {
				return err
			}
			approved, err := a.store.Approve(item.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "approved %s %q\n", approved.Kind, approved.Title())
			return nil
		},
	}
}

func newPendingRejectCmd(configPath *string) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a queued item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			item, err := a.store.FindPending(args[0])
			if err != nil {
				return err
			}
			rejected, err := a.store.Reject(item.ID, reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rejected %q: %s\n", rejected.Title(), reason)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the item is rejected")
	cmd.MarkFlagRequired("reason")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
