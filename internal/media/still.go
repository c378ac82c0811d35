package media

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"sync"
	"sync/atomic"
)

// StillDevices is a capture platform that replays fixed images, one frame
// per CopyFrame call, holding on the last image. It backs the CLI scanner
// and tests.
type StillDevices struct {
	frames []image.Image

	mu      sync.Mutex
	denied  error
	opened  []Constraints
	streams []*StillStream
	seq     atomic.Int64
}

// NewStillDevices returns a platform whose camera shows frames in order.
func NewStillDevices(frames ...image.Image) *StillDevices {
	return &StillDevices{frames: frames}
}

// Deny makes subsequent GetUserMedia calls fail with err.
func (d *StillDevices) Deny(err error) {
	d.mu.Lock()
	d.denied = err
	d.mu.Unlock()
}

// Opened returns the constraints of every stream opened so far.
func (d *StillDevices) Opened() []Constraints {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Constraints(nil), d.opened...)
}

// Streams returns every stream opened so far.
func (d *StillDevices) Streams() []*StillStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*StillStream(nil), d.streams...)
}

func (d *StillDevices) EnumerateDevices(context.Context) ([]DeviceInfo, error) {
	if len(d.frames) == 0 {
		return nil, nil
	}
	return []DeviceInfo{{ID: "still-0", Kind: KindVideoInput}}, nil
}

func (d *StillDevices) GetUserMedia(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.denied != nil {
		return nil, d.denied
	}
	if len(d.frames) == 0 {
		return nil, ErrNoCamera
	}
	s := &StillStream{
		id:     fmt.Sprintf("still-%d", d.seq.Add(1)),
		frames: d.frames,
	}
	s.track = NewTrack(KindVideoInput, nil)
	d.opened = append(d.opened, c)
	d.streams = append(d.streams, s)
	return s, nil
}

// StillStream is a stream produced by StillDevices.
type StillStream struct {
	id     string
	track  *BasicTrack
	frames []image.Image

	mu   sync.Mutex
	next int
}

func (s *StillStream) ID() string      { return s.id }
func (s *StillStream) Tracks() []Track { return []Track{s.track} }
func (s *StillStream) Video() Video    { return s }

// Stopped reports whether the stream's track has been stopped.
func (s *StillStream) Stopped() bool { return s.track.Stopped() }

func (s *StillStream) ReadyState() ReadyState {
	if s.track.Stopped() {
		return HaveNothing
	}
	return HaveEnoughData
}

func (s *StillStream) Bounds() image.Rectangle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current().Bounds()
}

func (s *StillStream) CopyFrame(dst *image.RGBA) error {
	if s.track.Stopped() {
		return ErrNoFrame
	}
	s.mu.Lock()
	frame := s.current()
	if s.next < len(s.frames)-1 {
		s.next++
	}
	s.mu.Unlock()
	if dst.Bounds().Size() != frame.Bounds().Size() {
		return fmt.Errorf("media: frame size %v does not match buffer %v", frame.Bounds().Size(), dst.Bounds().Size())
	}
	draw.Draw(dst, dst.Bounds(), frame, frame.Bounds().Min, draw.Src)
	return nil
}

func (s *StillStream) current() image.Image {
	return s.frames[s.next]
}
