package capability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grocery-field/card/internal/media"
)

type fakeDevices struct {
	infos      []media.DeviceInfo
	err        error
	enumerated int
	opened     int
}

func (f *fakeDevices) EnumerateDevices(context.Context) ([]media.DeviceInfo, error) {
	f.enumerated++
	return f.infos, f.err
}

func (f *fakeDevices) GetUserMedia(context.Context, media.Constraints) (media.Stream, error) {
	f.opened++
	return nil, errors.New("unexpected stream request")
}

func TestUserAgentPredicate(t *testing.T) {
	t.Parallel()

	require.True(t, UserAgentPredicate("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)"))
	require.True(t, UserAgentPredicate("Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X)"))
	require.False(t, UserAgentPredicate("Mozilla/5.0 (Linux; Android 14; Pixel 8)"))
	require.False(t, UserAgentPredicate(""))
}

func TestProbeUsesInjectedPredicateAndFeatures(t *testing.T) {
	t.Parallel()

	p := NewProbe(Environment{
		Signature:  "iPhone",
		Restricted: Fixed(false),
		Features:   FeatureSet{FeatureBarcodeDetector: true},
	})
	require.False(t, p.IsRestrictedMobileClass())
	require.True(t, p.HasHardwareDetector())

	p = NewProbe(Environment{Signature: "Mozilla/5.0 (iPod touch)"})
	require.True(t, p.IsRestrictedMobileClass())
	require.False(t, p.HasHardwareDetector())
}

func TestCameraAvailableNeverOpensStream(t *testing.T) {
	t.Parallel()

	devices := &fakeDevices{infos: []media.DeviceInfo{{Kind: media.KindAudioInput}, {Kind: media.KindVideoInput}}}
	p := NewProbe(Environment{Devices: devices})
	require.True(t, p.CameraAvailable(context.Background()))
	require.Equal(t, 1, devices.enumerated)
	require.Zero(t, devices.opened)

	audioOnly := &fakeDevices{infos: []media.DeviceInfo{{Kind: media.KindAudioInput}}}
	require.False(t, NewProbe(Environment{Devices: audioOnly}).CameraAvailable(context.Background()))

	failing := &fakeDevices{err: errors.New("enumeration blocked")}
	require.False(t, NewProbe(Environment{Devices: failing}).CameraAvailable(context.Background()))

	require.False(t, NewProbe(Environment{}).CameraAvailable(context.Background()))
}
