package decoder

import (
	"context"
	"sync"

	"github.com/grocery-field/card/internal/media"
)

// RelayDetector is a Detector fed by a client that runs a native barcode
// detector next to the camera and forwards what it sees. Detect drains the
// codes pushed since the previous call.
type RelayDetector struct {
	mu      sync.Mutex
	formats map[Symbology]bool
	pending []Detection
}

// NewRelayDetector returns a detector accepting only formats. An empty list accepts everything.
func NewRelayDetector(formats []Symbology) *RelayDetector {
	r := &RelayDetector{formats: make(map[Symbology]bool, len(formats))}
	for _, f := range formats {
		r.formats[f] = true
	}
	return r
}

// Push queues detections reported by the client. Unsupported formats are dropped.
func (r *RelayDetector) Push(found ...Detection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range found {
		if d.RawValue == "" {
			continue
		}
		if len(r.formats) > 0 && d.Format != "" && !r.formats[d.Format] {
			continue
		}
		r.pending = append(r.pending, d)
	}
}

func (r *RelayDetector) Detect(ctx context.Context, _ media.Video) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.pending
	r.pending = nil
	return out, nil
}

// Relay is a DetectorFactory that hands out one shared RelayDetector,
// reconfigured with each request's formats and cleared of stale detections.
type Relay struct {
	mu       sync.Mutex
	detector *RelayDetector
}

// Factory returns the DetectorFactory for Selector.Hardware.
func (r *Relay) Factory() DetectorFactory {
	return func(formats []Symbology) (Detector, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.detector = NewRelayDetector(formats)
		return r.detector, nil
	}
}

// Push forwards detections to the current detector. Pushes before any scan are dropped.
func (r *Relay) Push(found ...Detection) {
	r.mu.Lock()
	det := r.detector
	r.mu.Unlock()
	if det != nil {
		det.Push(found...)
	}
}
