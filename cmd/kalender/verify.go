package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVerifyCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the invariants of all stored collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}

			faults, err := a.store.VerifyIntegrity()
			if err != nil {
				return err
			}
			if len(faults) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			}
			for _, fault := range faults {
				fmt.Fprintln(cmd.OutOrStdout(), fault)
			}
			return fmt.Errorf("%d integrity faults", len(faults))
		},
	}
}
