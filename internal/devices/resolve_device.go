package devices

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Directories holding the persistent V4L2 symlinks maintained by udev.
var (
	v4lByID   = "/dev/v4l/by-id"
	v4lByPath = "/dev/v4l/by-path"
)

// ResolveDevicePath converts a camera ID to a device node usable by ffmpeg.
// IDs are either device nodes or names of udev's persistent symlinks.
func ResolveDevicePath(deviceID string) (string, error) {
	if strings.HasPrefix(deviceID, "/dev/") {
		return deviceID, nil
	}

	for _, dir := range []string{v4lByID, v4lByPath} {
		link := filepath.Join(dir, deviceID)
		if _, err := os.Stat(link); err == nil {
			return link, nil
		}
	}

	return "", fmt.Errorf("no stable symlink found for device ID: %s", deviceID)
}

// stableNames maps device nodes (/dev/videoN) to their persistent symlink
// name, preferring by-id over by-path.
func stableNames() map[string]string {
	names := make(map[string]string)
	for _, dir := range []string{v4lByPath, v4lByID} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			target, err := filepath.EvalSymlinks(filepath.Join(dir, e.Name()))
			if err != nil {
				continue
			}
			names[target] = e.Name()
		}
	}
	return names
}
