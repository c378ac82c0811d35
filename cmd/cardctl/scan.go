package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/grocery-field/card/internal/capability"
	"github.com/grocery-field/card/internal/decoder"
	"github.com/grocery-field/card/internal/domain"
	"github.com/grocery-field/card/internal/media"
	"github.com/grocery-field/card/internal/product"
	"github.com/grocery-field/card/internal/scan"
)

var (
	scanImages  []string
	scanTimeout time.Duration
	scanResolve bool
)

var scanCmd = &cobra.Command{
	Use:   "scan --image frame.png [--image next.png]",
	Short: "Run a scan session over image files and print the detected code",
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringSliceVar(&scanImages, "image", nil, "Image frames to replay as the camera, in order")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 10*time.Second, "Give up when no code is found in time")
	scanCmd.Flags().BoolVar(&scanResolve, "resolve", true, "Look the code up in the product catalogue")
	_ = scanCmd.MarkFlagRequired("image")
}

func runScan(cmd *cobra.Command, _ []string) error {
	frames, err := media.LoadImages(scanImages...)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), scanTimeout)
	defer cancel()

	var resolver scan.Resolver
	if scanResolve {
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		client, err := product.NewClient(cfg.Lookup.BaseURL, product.WithUserAgent(cfg.Lookup.UserAgent), product.WithLocale(cfg.Scanner.Locale))
		if err != nil {
			return err
		}
		resolver = product.NewResolver(client, nil)
	}

	devices := media.NewStillDevices(frames...)
	probe := capability.NewProbe(capability.Environment{Restricted: capability.Fixed(false), Devices: devices})
	if !probe.CameraAvailable(ctx) {
		return errors.New("no capture device available")
	}
	done := make(chan scan.Snapshot, 1)
	session, err := scan.NewSession(scan.Deps{
		Capabilities: probe,
		Devices:      devices,
		Selector:     decoder.Selector{Engines: decoder.DefaultEngineCache()},
		Resolver:     resolver,
		OnChange: func(s scan.Snapshot) {
			if s.State == domain.StateConfirm && !s.Resolving {
				select {
				case done <- s:
				default:
				}
			}
		},
	})
	if err != nil {
		return err
	}
	defer session.Cancel()

	if err := session.Start(ctx); err != nil {
		return err
	}
	if s := session.Snapshot(); s.State != domain.StateLiveScanning {
		return fmt.Errorf("scan did not start: %s %s", s.Notice.Kind, s.Notice.Message)
	}

	select {
	case s := <-done:
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, s.Code)
		if s.Product != nil {
			fmt.Fprintf(out, "%s\n", s.Product.Name)
		}
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("no barcode found within %s", scanTimeout)
		}
		return ctx.Err()
	}
}
