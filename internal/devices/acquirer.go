package devices

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/scenecast/internal/ffmpeg"
	"github.com/smazurov/scenecast/internal/logging"
	"github.com/smazurov/scenecast/internal/pipeline"
	"github.com/smazurov/scenecast/internal/process"
)

// Preview frame geometry used when acquiring cameras for the compositor.
const (
	DefaultPreviewWidth  = 640
	DefaultPreviewHeight = 360
	DefaultPreviewFPS    = 15
)

// ErrNoFrame is returned when a capture starts but produces no frame in time.
var ErrNoFrame = errors.New("no frame received")

// FFmpegAcquirer captures devices with one ffmpeg process per device,
// reading raw RGBA frames from its stdout.
type FFmpegAcquirer struct {
	Binary       string
	Platform     pipeline.Platform
	Width        int
	Height       int
	FPS          int
	StartTimeout time.Duration

	logger *slog.Logger
	pool   *process.Pool

	mu      sync.Mutex
	handles map[string]*ffmpegHandle
}

// NewFFmpegAcquirer creates an acquirer running binary on the given platform.
func NewFFmpegAcquirer(binary string, platform pipeline.Platform, logger *slog.Logger) *FFmpegAcquirer {
	a := &FFmpegAcquirer{
		Binary:       binary,
		Platform:     platform,
		Width:        DefaultPreviewWidth,
		Height:       DefaultPreviewHeight,
		FPS:          DefaultPreviewFPS,
		StartTimeout: 5 * time.Second,
		logger:       logger,
		handles:      make(map[string]*ffmpegHandle),
	}
	a.pool = process.NewPool(process.WithExitHandler(a.exited), process.WithPoolLogger(logger))
	return a
}

func (a *FFmpegAcquirer) command(deviceID string) ([]string, error) {
	locator := deviceID
	if a.Platform == pipeline.PlatformLinux {
		path, err := ResolveDevicePath(deviceID)
		if err != nil {
			return nil, err
		}
		locator = path
	}
	in, err := pipeline.CameraInput(a.Platform, locator, a.FPS)
	if err != nil {
		return nil, err
	}
	return append([]string{a.Binary}, ffmpeg.PreviewArgs(in, a.Width, a.Height, a.FPS)...), nil
}

func (a *FFmpegAcquirer) newProcess(h *ffmpegHandle, args []string) *process.Process {
	deviceID := h.deviceID
	proc := process.NewProcess(deviceID, args, a.logger)
	proc.SetGracefulTimeout(2 * time.Second)
	proc.SetStdoutConsumer(h.readFrames)
	proc.SetOutputHandler(h)
	proc.SetLogParser(logging.GetLogger("ffmpeg").With("device_id", deviceID), ffmpeg.ParseLogLevel)
	return proc
}

func (a *FFmpegAcquirer) exited(deviceID string, err error) {
	a.mu.Lock()
	h := a.handles[deviceID]
	a.mu.Unlock()
	if h != nil {
		h.finish(err)
	}
}

// Acquire starts capturing deviceID and waits for the first frame.
func (a *FFmpegAcquirer) Acquire(ctx context.Context, deviceID string) (Handle, error) {
	h := newFFmpegHandle(deviceID, a.Width, a.Height)

	a.mu.Lock()
	if _, busy := a.handles[deviceID]; busy {
		a.mu.Unlock()
		return nil, fmt.Errorf("device %s already acquired", deviceID)
	}
	a.handles[deviceID] = h
	a.mu.Unlock()

	args, err := a.command(deviceID)
	if err != nil {
		a.forget(deviceID, h)
		return nil, err
	}
	if err := a.pool.Start(deviceID, a.newProcess(h, args)); err != nil {
		a.forget(deviceID, h)
		return nil, err
	}

	timer := time.NewTimer(a.StartTimeout)
	defer timer.Stop()

	select {
	case <-h.first:
		return h, nil
	case <-h.done:
		err := h.Err()
		a.Release(h)
		return nil, err
	case <-timer.C:
		a.Release(h)
		if reason := h.reason(); reason != "" {
			return nil, fmt.Errorf("%w: %s", ErrNoFrame, reason)
		}
		return nil, ErrNoFrame
	case <-ctx.Done():
		a.Release(h)
		return nil, ctx.Err()
	}
}

// Release stops the capture process behind h.
func (a *FFmpegAcquirer) Release(h Handle) {
	fh, ok := h.(*ffmpegHandle)
	if !ok {
		return
	}
	if err := a.pool.Stop(fh.deviceID); err != nil {
		a.logger.Warn("Failed to stop capture", "device_id", fh.deviceID, "error", err)
	}
	fh.finish(nil)
	a.forget(fh.deviceID, fh)
}

// Close stops every capture process.
func (a *FFmpegAcquirer) Close() {
	a.pool.Close()
}

func (a *FFmpegAcquirer) forget(deviceID string, h *ffmpegHandle) {
	a.mu.Lock()
	if a.handles[deviceID] == h {
		delete(a.handles, deviceID)
	}
	a.mu.Unlock()
}

type ffmpegHandle struct {
	deviceID      string
	width, height int

	first     chan struct{}
	firstOnce sync.Once
	done      chan struct{}
	doneOnce  sync.Once

	mu        sync.RWMutex
	frame     *image.RGBA
	err       error
	lastError string
}

func newFFmpegHandle(deviceID string, width, height int) *ffmpegHandle {
	return &ffmpegHandle{
		deviceID: deviceID,
		width:    width,
		height:   height,
		first:    make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// readFrames consumes fixed-size RGBA frames until the stream ends.
func (h *ffmpegHandle) readFrames(r io.Reader) {
	size := h.width * h.height * 4
	for {
		img := image.NewRGBA(image.Rect(0, 0, h.width, h.height))
		if _, err := io.ReadFull(r, img.Pix[:size]); err != nil {
			return
		}
		h.mu.Lock()
		h.frame = img
		h.mu.Unlock()
		h.firstOnce.Do(func() { close(h.first) })
	}
}

// HandleLine keeps the last error line as the failure reason.
func (h *ffmpegHandle) HandleLine(source, line string) {
	if source != "stderr" {
		return
	}
	if level, msg := ffmpeg.ParseLogLevel(line); ffmpeg.IsFailure(level) {
		h.mu.Lock()
		h.lastError = msg
		h.mu.Unlock()
	}
}

func (h *ffmpegHandle) reason() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastError
}

func (h *ffmpegHandle) finish(err error) {
	h.doneOnce.Do(func() {
		h.mu.Lock()
		switch {
		case h.lastError != "":
			h.err = errors.New(h.lastError)
		case err != nil:
			h.err = err
		default:
			h.err = errors.New("capture process exited")
		}
		h.mu.Unlock()
		close(h.done)
	})
}

func (h *ffmpegHandle) Frame() (image.Image, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.frame == nil {
		return nil, false
	}
	return h.frame, true
}

func (h *ffmpegHandle) Done() <-chan struct{} { return h.done }

func (h *ffmpegHandle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}
