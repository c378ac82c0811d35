package media

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

const videoNodePattern = "/dev/video*"

var videoNodeName = regexp.MustCompile(`^video[0-9]+$`)

// VideoNodes lists V4L capture nodes from the filesystem. Nothing is opened.
type VideoNodes struct {
	Glob func(pattern string) ([]string, error)
	Stat func(name string) (fs.FileInfo, error)
}

// Devices returns one video input per character device named videoN.
// No match yields an empty list.
func (n VideoNodes) Devices(ctx context.Context) ([]DeviceInfo, error) {
	glob := n.Glob
	if glob == nil {
		glob = filepath.Glob
	}
	stat := n.Stat
	if stat == nil {
		stat = os.Stat
	}
	paths, err := glob(videoNodePattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var out []DeviceInfo
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := filepath.Base(path)
		if !videoNodeName.MatchString(name) {
			continue
		}
		info, err := stat(path)
		if err != nil || info.Mode()&fs.ModeCharDevice == 0 {
			continue
		}
		out = append(out, DeviceInfo{ID: path, Kind: KindVideoInput, Label: name})
	}
	return out, nil
}
