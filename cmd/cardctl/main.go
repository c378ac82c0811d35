package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/grocery-field/card/internal/host"
	"github.com/grocery-field/card/internal/platform/config"
)

const (
	appName    = "cardctl"
	appVersion = "0.3.0"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Operate the grocery scanner card from a terminal",
	Long: `cardctl talks to the same host and product catalogue as the card server:
  - look up a barcode in the catalogue
  - list the inventory in display order
  - print the daily expiry report
  - decode barcodes from image files`,
	Version:       appVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a NAME=value file merged under the environment")

	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(inventoryCmd)
	rootCmd.AddCommand(digestCmd)
	rootCmd.AddCommand(scanCmd)

	rootCmd.SetVersionTemplate(fmt.Sprintf("%s v%s\n", appName, appVersion))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(ctx context.Context) (config.Config, error) {
	return config.Load(ctx, config.WithEnvFile(envFile))
}

func hostClient(cfg config.Config) (*host.RESTClient, error) {
	return host.NewRESTClient(cfg.Host.BaseURL, cfg.Host.Token, cfg.Host.Domain, &http.Client{Timeout: cfg.Host.CommandTimeout})
}
