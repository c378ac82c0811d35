// Package media abstracts the camera platform the scanner reads frames from.
package media

import (
	"context"
	"errors"
	"image"
	"sync"
)

// Device kinds reported by EnumerateDevices.
const (
	KindVideoInput = "videoinput"
	KindAudioInput = "audioinput"
)

// FacingEnvironment requests the rear camera.
const FacingEnvironment = "environment"

var (
	// ErrPermissionDenied is returned when the user or platform refuses camera access.
	ErrPermissionDenied = errors.New("media: permission denied")
	// ErrNoCamera is returned when no capture device satisfies the constraints.
	ErrNoCamera = errors.New("media: no camera available")
	// ErrUnsupported is returned by platforms without capture support.
	ErrUnsupported = errors.New("media: capture not supported")
	// ErrNoFrame is returned when a video has no decodable frame yet.
	ErrNoFrame = errors.New("media: no frame available")
)

// DeviceInfo describes one capture device. Labels stay empty until permission is granted.
type DeviceInfo struct {
	ID    string
	Kind  string
	Label string
}

// Constraints describe the stream a caller wants.
type Constraints struct {
	FacingMode string
	IdealWidth int
}

// ReadyState mirrors how much frame data a video has buffered.
type ReadyState int

const (
	HaveNothing ReadyState = iota
	HaveMetadata
	HaveCurrentData
	HaveFutureData
	HaveEnoughData
)

// MediaDevices is the platform capture surface.
type MediaDevices interface {
	EnumerateDevices(ctx context.Context) ([]DeviceInfo, error)
	GetUserMedia(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is an open capture stream.
type Stream interface {
	ID() string
	Tracks() []Track
	Video() Video
}

// Track is one media track of a stream. Stop is idempotent.
type Track interface {
	Kind() string
	Stop()
	Stopped() bool
}

// Video exposes the frames of a stream.
type Video interface {
	ReadyState() ReadyState
	Bounds() image.Rectangle
	// CopyFrame draws the current frame into dst, which must match Bounds.
	CopyFrame(dst *image.RGBA) error
}

// StopStream stops every track of s. A nil stream is ignored.
func StopStream(s Stream) {
	if s == nil {
		return
	}
	for _, t := range s.Tracks() {
		t.Stop()
	}
}

// BasicTrack is a Track whose Stop runs an optional release hook once.
type BasicTrack struct {
	kind    string
	once    sync.Once
	mu      sync.Mutex
	stopped bool
	release func()
}

// NewTrack returns a track of kind that calls release when first stopped.
func NewTrack(kind string, release func()) *BasicTrack {
	return &BasicTrack{kind: kind, release: release}
}

func (t *BasicTrack) Kind() string { return t.kind }

func (t *BasicTrack) Stop() {
	t.once.Do(func() {
		t.mu.Lock()
		t.stopped = true
		t.mu.Unlock()
		if t.release != nil {
			t.release()
		}
	})
}

func (t *BasicTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}
