package devices

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// Fallback labels for devices that report no name.
const (
	UnknownCamera     = "Unknown Camera"
	UnknownMicrophone = "Unknown Microphone"
)

// SysfsEnumerator lists V4L2 capture nodes from sysfs and ALSA capture PCMs
// from procfs.
type SysfsEnumerator struct {
	VideoClass string // usually /sys/class/video4linux
	PCMList    string // usually /proc/asound/pcm
	// StableNames maps device nodes to persistent IDs; nil uses udev's symlinks.
	StableNames func() map[string]string
}

// NewSysfsEnumerator returns an enumerator reading the standard kernel paths.
func NewSysfsEnumerator() *SysfsEnumerator {
	return &SysfsEnumerator{
		VideoClass:  "/sys/class/video4linux",
		PCMList:     "/proc/asound/pcm",
		StableNames: stableNames,
	}
}

// ListCameras returns one entry per video capture node. Metadata nodes
// (index != 0) are skipped.
func (e *SysfsEnumerator) ListCameras(ctx context.Context) ([]DeviceInfo, error) {
	entries, err := os.ReadDir(e.VideoClass)
	if errors.Is(err, fs.ErrNotExist) {
		return []DeviceInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.VideoClass, err)
	}

	var stable map[string]string
	if e.StableNames != nil {
		stable = e.StableNames()
	}

	cameras := []DeviceInfo{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if !strings.HasPrefix(name, "video") {
			continue
		}
		dir := filepath.Join(e.VideoClass, name)
		if idx := readTrimmed(filepath.Join(dir, "index")); idx != "" && idx != "0" {
			continue
		}

		path := "/dev/" + name
		id := path
		if s, ok := stable[path]; ok {
			id = s
		}
		label := readTrimmed(filepath.Join(dir, "name"))
		if label == "" {
			label = UnknownCamera
		}
		cameras = append(cameras, DeviceInfo{ID: id, Label: label, Path: path})
	}

	slices.SortFunc(cameras, func(a, b DeviceInfo) int { return videoNumber(a.Path) - videoNumber(b.Path) })
	return cameras, nil
}

// ListMicrophones parses the ALSA PCM list, e.g.
//
//	00-00: ALC892 Analog : ALC892 Analog : playback 1 : capture 1
func (e *SysfsEnumerator) ListMicrophones(ctx context.Context) ([]DeviceInfo, error) {
	f, err := os.Open(e.PCMList)
	if errors.Is(err, fs.ErrNotExist) {
		return []DeviceInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", e.PCMList, err)
	}
	defer f.Close()

	mics := []DeviceInfo{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if mic, ok := parsePCMLine(scanner.Text()); ok {
			mics = append(mics, mic)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", e.PCMList, err)
	}
	return mics, nil
}

func parsePCMLine(line string) (DeviceInfo, bool) {
	fields := strings.Split(line, ":")
	if len(fields) < 3 {
		return DeviceInfo{}, false
	}
	capture := false
	for _, f := range fields[3:] {
		if strings.HasPrefix(strings.TrimSpace(f), "capture") {
			capture = true
		}
	}
	if !capture {
		return DeviceInfo{}, false
	}

	card, dev, ok := strings.Cut(strings.TrimSpace(fields[0]), "-")
	if !ok {
		return DeviceInfo{}, false
	}
	c, err1 := strconv.Atoi(card)
	d, err2 := strconv.Atoi(dev)
	if err1 != nil || err2 != nil {
		return DeviceInfo{}, false
	}

	label := strings.TrimSpace(fields[1])
	if label == "" {
		label = UnknownMicrophone
	}
	return DeviceInfo{ID: fmt.Sprintf("hw:%d,%d", c, d), Label: label}, true
}

func readTrimmed(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func videoNumber(path string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(path, "/dev/video"))
	if err != nil {
		return -1
	}
	return n
}
