package media

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func solid(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestStillDevicesReplaysFrames(t *testing.T) {
	t.Parallel()

	devices := NewStillDevices(solid(color.Black), solid(color.White))
	infos, err := devices.EnumerateDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, KindVideoInput, infos[0].Kind)

	stream, err := devices.GetUserMedia(context.Background(), Constraints{FacingMode: FacingEnvironment, IdealWidth: 1280})
	require.NoError(t, err)
	require.Equal(t, []Constraints{{FacingMode: FacingEnvironment, IdealWidth: 1280}}, devices.Opened())

	video := stream.Video()
	require.Equal(t, HaveEnoughData, video.ReadyState())
	buf := image.NewRGBA(video.Bounds())

	require.NoError(t, video.CopyFrame(buf))
	require.Equal(t, uint8(0), buf.Pix[0])
	require.NoError(t, video.CopyFrame(buf))
	require.Equal(t, uint8(255), buf.Pix[0])
	require.NoError(t, video.CopyFrame(buf))
	require.Equal(t, uint8(255), buf.Pix[0], "last frame is held")

	StopStream(stream)
	StopStream(stream)
	require.True(t, stream.Tracks()[0].Stopped())
	require.Equal(t, HaveNothing, video.ReadyState())
	require.ErrorIs(t, video.CopyFrame(buf), ErrNoFrame)
}

func TestStillDevicesDenyAndEmpty(t *testing.T) {
	t.Parallel()

	devices := NewStillDevices(solid(color.Black))
	devices.Deny(ErrPermissionDenied)
	_, err := devices.GetUserMedia(context.Background(), Constraints{})
	require.True(t, errors.Is(err, ErrPermissionDenied))

	empty := NewStillDevices()
	infos, err := empty.EnumerateDevices(context.Background())
	require.NoError(t, err)
	require.Empty(t, infos)
	_, err = empty.GetUserMedia(context.Background(), Constraints{})
	require.ErrorIs(t, err, ErrNoCamera)
}

func TestBasicTrackReleasesOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	track := NewTrack(KindVideoInput, func() { calls++ })
	track.Stop()
	track.Stop()
	require.Equal(t, 1, calls)
	require.True(t, track.Stopped())
	StopStream(nil)
}
