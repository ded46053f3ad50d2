package pipeline

import (
	"fmt"
	"runtime"
	"strconv"

	"github.com/smazurov/scenecast/internal/scene"
)

// Platform is a host operating system as named by runtime.GOOS.
type Platform string

// Platforms with capture strategies.
const (
	PlatformLinux   Platform = "linux"
	PlatformDarwin  Platform = "darwin"
	PlatformWindows Platform = "windows"
)

// HostPlatform returns the platform the binary runs on.
func HostPlatform() Platform {
	return Platform(runtime.GOOS)
}

// UnsupportedCaptureError is returned when no capture strategy exists for a
// platform and source type pair.
type UnsupportedCaptureError struct {
	Platform Platform
	Kind     scene.Kind
	SourceID scene.SourceID
}

func (e *UnsupportedCaptureError) Error() string {
	return fmt.Sprintf("no %s capture strategy on %s (source %q)", e.Kind, e.Platform, e.SourceID)
}

type captureKey struct {
	platform Platform
	kind     scene.Kind
}

// anyPlatform keys strategies that do not depend on the host.
const anyPlatform Platform = "*"

type captureContext struct {
	src scene.Source
	fps int
}

type captureStrategy func(c captureContext) (format, locator string, opts []InputOption)

var liveQueue = InputOption{Name: "thread_queue_size", Value: "1024"}

func framerate(fps int) InputOption {
	return InputOption{Name: "framerate", Value: strconv.Itoa(fps)}
}

var captureTable = map[captureKey]captureStrategy{
	{PlatformLinux, scene.KindCamera}: func(c captureContext) (string, string, []InputOption) {
		return "v4l2", scene.DeviceID(c.src.Content), []InputOption{liveQueue}
	},
	{PlatformLinux, scene.KindScreenCapture}: func(c captureContext) (string, string, []InputOption) {
		display := c.src.Content.(scene.ScreenCapture).Display
		if display == "" {
			display = ":0.0"
		}
		return "x11grab", display, []InputOption{liveQueue, framerate(c.fps)}
	},
	{PlatformDarwin, scene.KindCamera}: func(c captureContext) (string, string, []InputOption) {
		return "avfoundation", scene.DeviceID(c.src.Content) + ":none", []InputOption{framerate(c.fps)}
	},
	{PlatformDarwin, scene.KindScreenCapture}: func(c captureContext) (string, string, []InputOption) {
		display := c.src.Content.(scene.ScreenCapture).Display
		if display == "" {
			display = "0"
		}
		return "avfoundation", "Capture screen " + display + ":none", []InputOption{
			{Name: "capture_cursor", Value: "1"},
			framerate(c.fps),
		}
	},
	{PlatformWindows, scene.KindCamera}: func(c captureContext) (string, string, []InputOption) {
		return "dshow", "video=" + scene.DeviceID(c.src.Content), []InputOption{liveQueue}
	},
	{PlatformWindows, scene.KindScreenCapture}: func(c captureContext) (string, string, []InputOption) {
		return "gdigrab", "desktop", []InputOption{framerate(c.fps)}
	},
	{PlatformWindows, scene.KindWindowCapture}: func(c captureContext) (string, string, []InputOption) {
		return "gdigrab", "title=" + c.src.Content.(scene.WindowCapture).Title, []InputOption{framerate(c.fps)}
	},
	{anyPlatform, scene.KindStaticColor}: func(c captureContext) (string, string, []InputOption) {
		col, _ := scene.ParseColor(c.src.Content.(scene.StaticColor).Color)
		b := c.src.Bounds
		locator := fmt.Sprintf("color=c=0x%02x%02x%02x@%.3f:s=%dx%d:r=%d",
			col.R, col.G, col.B, float64(col.A)/255, b.Width, b.Height, c.fps)
		return "lavfi", locator, nil
	},
	{anyPlatform, scene.KindStaticImage}: func(c captureContext) (string, string, []InputOption) {
		return "image2", c.src.Content.(scene.StaticImage).Path, []InputOption{
			{Name: "loop", Value: "1"},
			framerate(c.fps),
		}
	},
	{anyPlatform, scene.KindMediaFile}: func(c captureContext) (string, string, []InputOption) {
		media := c.src.Content.(scene.MediaFile)
		opts := []InputOption{{Name: "re"}}
		if media.Loop {
			opts = append(opts, InputOption{Name: "stream_loop", Value: "-1"})
		}
		return "", media.Path, opts
	},
}

// resolveCapture looks up the host-specific strategy first, then the
// platform-independent one.
func resolveCapture(platform Platform, src scene.Source, fps int) (Input, error) {
	strategy, ok := captureTable[captureKey{platform, src.Kind()}]
	if !ok {
		strategy, ok = captureTable[captureKey{anyPlatform, src.Kind()}]
	}
	if !ok {
		return Input{}, &UnsupportedCaptureError{Platform: platform, Kind: src.Kind(), SourceID: src.ID}
	}
	format, locator, opts := strategy(captureContext{src: src, fps: fps})
	return Input{
		SourceID: string(src.ID),
		Kind:     src.Kind(),
		Platform: platform,
		Format:   format,
		Locator:  locator,
		Options:  opts,
	}, nil
}

// Supported reports whether a source type can be captured on platform.
func Supported(platform Platform, kind scene.Kind) bool {
	if _, ok := captureTable[captureKey{platform, kind}]; ok {
		return true
	}
	_, ok := captureTable[captureKey{anyPlatform, kind}]
	return ok
}

// SourceInput resolves the capture input of a single source outside of a
// pipeline, as used by preview captures.
func SourceInput(platform Platform, src scene.Source, fps int) (Input, error) {
	in, err := resolveCapture(platform, src, fps)
	if err != nil {
		return Input{}, err
	}
	in.Ref = "in0"
	return in, nil
}

// CameraInput resolves the capture input for a bare device, as used by
// preview acquisition outside of any scene.
func CameraInput(platform Platform, deviceID string, fps int) (Input, error) {
	src := scene.Source{ID: scene.SourceID(deviceID), Content: scene.Camera{DeviceID: deviceID}}
	in, err := resolveCapture(platform, src, fps)
	if err != nil {
		return Input{}, err
	}
	in.Ref = "in0"
	in.SourceID = ""
	return in, nil
}
