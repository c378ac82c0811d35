//go:build gocv

package main

import (
	"github.com/grocery-field/card/internal/media"
	"github.com/grocery-field/card/internal/platform/config"
)

func cameraDevices(cfg config.ScannerConfig) (media.MediaDevices, error) {
	return media.GocvDevices{DeviceID: cfg.CameraDevice}, nil
}
