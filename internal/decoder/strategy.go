// Package decoder selects how video frames are turned into barcode values.
package decoder

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/grocery-field/card/internal/media"
)

// ErrDecoderUnavailable is returned when the software engine cannot be loaded.
var ErrDecoderUnavailable = errors.New("decoder: decoder unavailable")

// Symbology names a barcode format.
type Symbology string

const (
	EAN8    Symbology = "ean_8"
	EAN13   Symbology = "ean_13"
	UPCA    Symbology = "upc_a"
	UPCE    Symbology = "upc_e"
	Code128 Symbology = "code_128"
	Code39  Symbology = "code_39"
	QRCode  Symbology = "qr_code"
)

// Symbologies is the format set every strategy is configured with.
var Symbologies = []Symbology{EAN8, EAN13, UPCA, UPCE, Code128, Code39}

// Strategy names.
const (
	StrategyHardware = "hardware"
	StrategySoftware = "software"
)

// Detection is one code found in a frame.
type Detection struct {
	RawValue string
	Format   Symbology
}

// Detector is a platform barcode detector.
type Detector interface {
	Detect(ctx context.Context, video media.Video) ([]Detection, error)
}

// DetectorFactory builds a Detector restricted to formats.
type DetectorFactory func(formats []Symbology) (Detector, error)

// FrameDecoder inspects the current frame of a video once per call.
type FrameDecoder interface {
	Strategy() string
	DecodeFrame(ctx context.Context, video media.Video) (string, bool)
}

// Selector picks the FrameDecoder for a scan session.
type Selector struct {
	Hardware DetectorFactory
	Engines  *EngineCache
}

// Select returns the hardware strategy when the platform has a detector and a
// factory is wired, otherwise the software strategy. Loading the software
// engine may fail with ErrDecoderUnavailable.
func (s Selector) Select(ctx context.Context, hasHardwareDetector bool) (FrameDecoder, error) {
	if hasHardwareDetector && s.Hardware != nil {
		det, err := s.Hardware(append([]Symbology(nil), Symbologies...))
		if err == nil && det != nil {
			return &HardwareStrategy{detector: det}, nil
		}
	}
	cache := s.Engines
	if cache == nil {
		cache = DefaultEngineCache()
	}
	engine, err := cache.Get(ctx)
	if err != nil {
		return nil, err
	}
	return &SoftwareStrategy{engine: engine}, nil
}

// HardwareStrategy asks a platform detector for codes in each frame.
type HardwareStrategy struct {
	detector Detector
}

func (h *HardwareStrategy) Strategy() string { return StrategyHardware }

// DecodeFrame returns the first detected value. Detector errors count as no code.
func (h *HardwareStrategy) DecodeFrame(ctx context.Context, video media.Video) (string, bool) {
	found, err := h.detector.Detect(ctx, video)
	if err != nil {
		return "", false
	}
	for _, d := range found {
		if d.RawValue != "" {
			return d.RawValue, true
		}
	}
	return "", false
}

// SoftwareStrategy copies each frame into an RGBA buffer and runs the engine on it.
type SoftwareStrategy struct {
	engine Engine
	buf    *image.RGBA
}

func (s *SoftwareStrategy) Strategy() string { return StrategySoftware }

// DecodeFrame decodes the current frame once. Frames are skipped until the
// video has enough data buffered.
func (s *SoftwareStrategy) DecodeFrame(_ context.Context, video media.Video) (string, bool) {
	if video.ReadyState() < media.HaveEnoughData {
		return "", false
	}
	bounds := video.Bounds()
	if bounds.Empty() {
		return "", false
	}
	if s.buf == nil || s.buf.Bounds().Size() != bounds.Size() {
		s.buf = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	}
	if err := video.CopyFrame(s.buf); err != nil {
		return "", false
	}
	return s.engine.Decode(s.buf)
}

func unavailable(cause error) error {
	return fmt.Errorf("%w: %v", ErrDecoderUnavailable, cause)
}
