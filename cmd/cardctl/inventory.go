package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/grocery-field/card/internal/domain"
	"github.com/grocery-field/card/internal/inventory"
)

var inventoryLocation string

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "List the host inventory in display order",
	RunE:  runInventory,
}

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Print today's expiry report",
	RunE:  runDigest,
}

func init() {
	inventoryCmd.Flags().StringVar(&inventoryLocation, "location", "all", "Filter by location: all, fridge, freezer or pantry")
}

func runInventory(cmd *cobra.Command, _ []string) error {
	filter, ok := domain.ParseLocationFilter(inventoryLocation)
	if !ok {
		return fmt.Errorf("unknown location %q", inventoryLocation)
	}
	ctx := cmd.Context()
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	client, err := hostClient(cfg)
	if err != nil {
		return err
	}
	snap, err := client.Snapshot(ctx)
	if err != nil {
		return err
	}

	ranked := inventory.NewRanker(cfg.Scanner.Locale).Rank(snap.Items, filter, time.Now())
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tQTY\tLOCATION\tEXPIRY\tSTATUS")
	for _, r := range ranked {
		expiry := "-"
		if r.Item.ExpiryDate != nil {
			expiry = r.Item.ExpiryDate.Format(time.DateOnly)
		}
		fmt.Fprintf(tw, "%s\t%d %s\t%s\t%s\t%s\n", r.Item.Name, r.Item.Quantity, r.Item.Unit, r.Item.Location.Effective(), expiry, r.Urgency)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d items, badge %d\n", len(ranked), snap.Badge())
	return nil
}

func runDigest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	client, err := hostClient(cfg)
	if err != nil {
		return err
	}
	snap, err := client.Snapshot(ctx)
	if err != nil {
		return err
	}
	d := inventory.BuildDigest(snap.Items, time.Now())
	if !d.Due() {
		fmt.Fprintln(cmd.OutOrStdout(), "nothing expiring")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n%s\n", inventory.DigestTitle, d.Text())
	return nil
}
