// Package capability answers what the scanning platform can do without
// opening a camera or prompting the user.
package capability

import (
	"context"
	"regexp"

	"github.com/grocery-field/card/internal/media"
)

// FeatureBarcodeDetector names the hardware barcode detection feature.
const FeatureBarcodeDetector = "BarcodeDetector"

// Predicate decides from a device signature whether the device belongs to the
// restricted mobile class that cannot open the camera inside the host's embedding.
type Predicate func(signature string) bool

var restrictedUA = regexp.MustCompile(`iPad|iPhone|iPod`)

// UserAgentPredicate matches iOS user agents.
func UserAgentPredicate(signature string) bool {
	return restrictedUA.MatchString(signature)
}

// Fixed returns a Predicate that ignores the signature.
func Fixed(restricted bool) Predicate {
	return func(string) bool { return restricted }
}

// FeatureSurface reports platform features.
type FeatureSurface interface {
	HasFeature(name string) bool
}

// FeatureSet is a static FeatureSurface.
type FeatureSet map[string]bool

func (s FeatureSet) HasFeature(name string) bool { return s[name] }

// Environment is what the probe inspects.
type Environment struct {
	Signature  string
	Restricted Predicate
	Features   FeatureSurface
	Devices    media.MediaDevices
}

// Probe holds the capability answers for one card instance. The two booleans
// are computed once at construction.
type Probe struct {
	restricted bool
	hardware   bool
	devices    media.MediaDevices
}

// NewProbe evaluates env. A nil predicate defaults to UserAgentPredicate.
func NewProbe(env Environment) *Probe {
	predicate := env.Restricted
	if predicate == nil {
		predicate = UserAgentPredicate
	}
	p := &Probe{
		restricted: predicate(env.Signature),
		devices:    env.Devices,
	}
	if env.Features != nil {
		p.hardware = env.Features.HasFeature(FeatureBarcodeDetector)
	}
	return p
}

// IsRestrictedMobileClass reports the device class decided at construction.
func (p *Probe) IsRestrictedMobileClass() bool { return p.restricted }

// HasHardwareDetector reports whether a hardware barcode detector exists.
func (p *Probe) HasHardwareDetector() bool { return p.hardware }

// CameraAvailable enumerates capture devices without requesting a stream and
// reports whether any video input exists. Errors count as unavailable.
func (p *Probe) CameraAvailable(ctx context.Context) bool {
	if p.devices == nil {
		return false
	}
	devices, err := p.devices.EnumerateDevices(ctx)
	if err != nil {
		return false
	}
	for _, d := range devices {
		if d.Kind == media.KindVideoInput {
			return true
		}
	}
	return false
}
