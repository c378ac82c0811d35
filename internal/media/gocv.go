//go:build gocv

package media

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

// GocvDevices captures from local V4L cameras through OpenCV.
// DeviceID selects a camera index or device path; empty means the first camera.
type GocvDevices struct {
	DeviceID string
	Nodes    VideoNodes
}

// EnumerateDevices lists /dev/video nodes without opening a capture.
func (d GocvDevices) EnumerateDevices(ctx context.Context) ([]DeviceInfo, error) {
	return d.Nodes.Devices(ctx)
}

func (d GocvDevices) GetUserMedia(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var device any = 0
	if d.DeviceID != "" {
		if idx, err := strconv.Atoi(d.DeviceID); err == nil {
			device = idx
		} else {
			device = d.DeviceID
		}
	}
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCamera, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, ErrNoCamera
	}
	if c.IdealWidth > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(c.IdealWidth))
	}
	s := &gocvStream{id: fmt.Sprintf("gocv-%v", device), vc: vc, mat: gocv.NewMat()}
	s.track = NewTrack(KindVideoInput, s.release)
	return s, nil
}

type gocvStream struct {
	id    string
	track *BasicTrack

	mu     sync.Mutex
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	closed bool
}

func (s *gocvStream) ID() string      { return s.id }
func (s *gocvStream) Tracks() []Track { return []Track{s.track} }
func (s *gocvStream) Video() Video    { return s }

func (s *gocvStream) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.mat.Close()
	s.vc.Close()
}

func (s *gocvStream) ReadyState() ReadyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.vc.IsOpened() {
		return HaveNothing
	}
	return HaveEnoughData
}

func (s *gocvStream) Bounds() image.Rectangle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return image.Rectangle{}
	}
	w := int(s.vc.Get(gocv.VideoCaptureFrameWidth))
	h := int(s.vc.Get(gocv.VideoCaptureFrameHeight))
	return image.Rect(0, 0, w, h)
}

func (s *gocvStream) CopyFrame(dst *image.RGBA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNoFrame
	}
	if ok := s.vc.Read(&s.mat); !ok || s.mat.Empty() {
		return ErrNoFrame
	}
	img, err := s.mat.ToImage()
	if err != nil {
		return fmt.Errorf("media: convert frame: %w", err)
	}
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	return nil
}
