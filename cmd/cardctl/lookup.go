package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/grocery-field/card/internal/product"
)

var lookupJSON bool

var lookupCmd = &cobra.Command{
	Use:   "lookup <barcode>",
	Short: "Look up a barcode in the product catalogue",
	Args:  cobra.ExactArgs(1),
	RunE:  runLookup,
}

func init() {
	lookupCmd.Flags().BoolVar(&lookupJSON, "json", false, "Print the product record as JSON")
}

func runLookup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	opts := []product.Option{product.WithUserAgent(cfg.Lookup.UserAgent), product.WithLocale(cfg.Scanner.Locale)}
	if cfg.Lookup.Timeout > 0 {
		opts = append(opts, product.WithHTTPClient(&http.Client{Timeout: cfg.Lookup.Timeout}))
	}
	client, err := product.NewClient(cfg.Lookup.BaseURL, opts...)
	if err != nil {
		return err
	}
	record, err := client.Lookup(ctx, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if record == nil {
		fmt.Fprintf(out, "%s: not found\n", args[0])
		return nil
	}
	if lookupJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	}
	fmt.Fprintf(out, "%s\n", record.Name)
	if record.Brand != "" {
		fmt.Fprintf(out, "  brand:    %s\n", record.Brand)
	}
	if record.Category != "" {
		fmt.Fprintf(out, "  category: %s\n", record.Category)
	}
	if record.ImageURL != "" {
		fmt.Fprintf(out, "  image:    %s\n", record.ImageURL)
	}
	return nil
}
