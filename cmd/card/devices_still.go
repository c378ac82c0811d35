//go:build !gocv

package main

import (
	"image"
	"strings"

	"github.com/grocery-field/card/internal/media"
	"github.com/grocery-field/card/internal/platform/config"
)

// cameraDevices replays the images listed in CARD_CAMERA_DEVICE. Without
// any, a blank frame keeps the stream open for relayed detections.
func cameraDevices(cfg config.ScannerConfig) (media.MediaDevices, error) {
	var paths []string
	for _, p := range strings.Split(cfg.CameraDevice, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return media.NewStillDevices(image.NewGray(image.Rect(0, 0, 640, 480))), nil
	}
	frames, err := media.LoadImages(paths...)
	if err != nil {
		return nil, err
	}
	return media.NewStillDevices(frames...), nil
}
