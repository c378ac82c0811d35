package media

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type nodeInfo struct {
	name string
	mode fs.FileMode
}

func (i nodeInfo) Name() string       { return i.name }
func (i nodeInfo) Size() int64        { return 0 }
func (i nodeInfo) Mode() fs.FileMode  { return i.mode }
func (i nodeInfo) ModTime() time.Time { return time.Time{} }
func (i nodeInfo) IsDir() bool        { return false }
func (i nodeInfo) Sys() any           { return nil }

func TestVideoNodesFiltersCaptureDevices(t *testing.T) {
	t.Parallel()

	char := fs.ModeDevice | fs.ModeCharDevice
	files := map[string]fs.FileInfo{
		"/dev/video2":         nodeInfo{name: "video2", mode: char},
		"/dev/video0":         nodeInfo{name: "video0", mode: char},
		"/dev/video-loopback": nodeInfo{name: "video-loopback", mode: char},
		"/dev/video1":         nodeInfo{name: "video1", mode: 0o644},
		"/dev/video3":         nil,
	}
	var pattern string
	nodes := VideoNodes{
		Glob: func(p string) ([]string, error) {
			pattern = p
			return []string{"/dev/video2", "/dev/video0", "/dev/video-loopback", "/dev/video1", "/dev/video3"}, nil
		},
		Stat: func(name string) (fs.FileInfo, error) {
			if info := files[name]; info != nil {
				return info, nil
			}
			return nil, fs.ErrNotExist
		},
	}

	got, err := nodes.Devices(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/dev/video*", pattern)
	require.Equal(t, []DeviceInfo{
		{ID: "/dev/video0", Kind: KindVideoInput, Label: "video0"},
		{ID: "/dev/video2", Kind: KindVideoInput, Label: "video2"},
	}, got)
}

func TestVideoNodesWithoutMatches(t *testing.T) {
	t.Parallel()

	nodes := VideoNodes{
		Glob: func(string) ([]string, error) { return nil, nil },
		Stat: func(string) (fs.FileInfo, error) {
			t.Fatal("stat must not run without matches")
			return nil, nil
		},
	}
	got, err := nodes.Devices(context.Background())
	require.NoError(t, err)
	require.Empty(t, got)

	broken := VideoNodes{Glob: func(string) ([]string, error) { return nil, errors.New("bad pattern") }}
	_, err = broken.Devices(context.Background())
	require.Error(t, err)
}
