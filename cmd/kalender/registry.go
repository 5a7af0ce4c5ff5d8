package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRegistryCmd(configPath *string) *cobra.Command {
	registry := &cobra.Command{
		Use:   "registry",
		Short: "Maintain the venue and organizer registries",
	}
	registry.AddCommand(
		newRegistryMergeCmd(configPath),
		newRegistryDeleteCmd(configPath),
	)
	return registry
}

func newRegistryMergeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <old-id> <survivor-id>",
		Short: "Fold a duplicate registry entry into another",
		Long:  "Fold a duplicate entry into a survivor: the survivor absorbs name, aliases and missing fields, every event reference is repointed, then the duplicate is removed. Both ids must belong to the same registry.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			oldID, survivorID := args[0], args[1]
			resolver := a.resolver()

			kind, err := registryKind(a, oldID)
			if err != nil {
				return err
			}
			switch kind {
			case "location":
				err = resolver.MergeLocations(oldID, survivorID)
			case "organizer":
				err = resolver.MergeOrganizers(oldID, survivorID)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "merged %s %s into %s\n", kind, oldID, survivorID)
			return nil
		},
	}
}

func newRegistryDeleteCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an unreferenced registry entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			id := args[0]
			resolver := a.resolver()

			kind, err := registryKind(a, id)
			if err != nil {
				return err
			}
			switch kind {
			case "location":
				err = resolver.DeleteLocation(id)
			case "organizer":
				err = resolver.DeleteOrganizer(id)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s %s\n", kind, id)
			return nil
		},
	}
}

// registryKind finds which registry an id belongs to.
func registryKind(a *app, id string) (string, error) {
	locations, err := a.store.Locations()
	if err != nil {
		return "", err
	}
	for _, loc := range locations {
		if loc.ID == id {
			return "location", nil
		}
	}
	organizers, err := a.store.Organizers()
	if err != nil {
		return "", err
	}
	for _, org := range organizers {
		if org.ID == id {
			return "organizer", nil
		}
	}
	return "", fmt.Errorf("no registry entry with id %s", id)
}
