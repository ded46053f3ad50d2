package devices

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/scenecast/internal/ffmpeg"
	"github.com/smazurov/scenecast/internal/logging"
	"github.com/smazurov/scenecast/internal/pipeline"
	"github.com/smazurov/scenecast/internal/process"
	"github.com/smazurov/scenecast/internal/scene"
)

// Screen capture lifecycle defaults.
const (
	DefaultScreenIdleTimeout = 5 * time.Second
	DefaultScreenRetryDelay  = 10 * time.Second
)

// ScreenGrabber previews screen and window sources. Each distinct display or
// window gets one ffmpeg capture, started by the first Grab and stopped once
// no Grab asked for it within IdleTimeout. Grab never blocks on ffmpeg.
type ScreenGrabber struct {
	Binary      string
	Platform    pipeline.Platform
	Width       int
	Height      int
	FPS         int
	IdleTimeout time.Duration
	RetryDelay  time.Duration

	logger *slog.Logger
	pool   *process.Pool
	now    func() time.Time

	mu       sync.Mutex
	captures map[string]*screenCapture
	handles  map[string]*ffmpegHandle
	nextID   uint64
}

type screenCapture struct {
	id       string
	handle   *ffmpegHandle
	lastUsed time.Time
	failedAt time.Time
}

// NewScreenGrabber creates a grabber running binary on the given platform.
func NewScreenGrabber(binary string, platform pipeline.Platform, logger *slog.Logger) *ScreenGrabber {
	g := &ScreenGrabber{
		Binary:      binary,
		Platform:    platform,
		Width:       DefaultPreviewWidth,
		Height:      DefaultPreviewHeight,
		FPS:         DefaultPreviewFPS,
		IdleTimeout: DefaultScreenIdleTimeout,
		RetryDelay:  DefaultScreenRetryDelay,
		logger:      logger,
		now:         time.Now,
		captures:    make(map[string]*screenCapture),
		handles:     make(map[string]*ffmpegHandle),
	}
	g.pool = process.NewPool(process.WithExitHandler(g.exited), process.WithPoolLogger(logger))
	return g
}

// Grab returns the latest frame of the display or window src refers to.
func (g *ScreenGrabber) Grab(src scene.Source) (image.Image, error) {
	in, err := pipeline.SourceInput(g.Platform, src, g.FPS)
	if err != nil {
		return nil, err
	}
	key := in.Format + " " + in.Locator

	g.mu.Lock()
	now := g.now()
	g.reapLocked(now, key)

	c := g.captures[key]
	if c == nil {
		c = &screenCapture{}
		g.captures[key] = c
		g.launchLocked(key, c, in)
	}
	c.lastUsed = now

	select {
	case <-c.handle.Done():
		if c.failedAt.IsZero() {
			c.failedAt = now
			g.logger.Warn("Screen capture ended", "capture", key, "error", c.handle.Err())
		}
		if now.Sub(c.failedAt) < g.RetryDelay {
			err := c.handle.Err()
			g.mu.Unlock()
			return nil, err
		}
		c.failedAt = time.Time{}
		g.launchLocked(key, c, in)
	default:
	}
	h := c.handle
	g.mu.Unlock()

	frame, ok := h.Frame()
	if !ok {
		return nil, ErrNoFrame
	}
	return frame, nil
}

// launchLocked starts a capture process for key. A failure to start leaves an
// already finished handle behind, so Grab reports it and retries later.
func (g *ScreenGrabber) launchLocked(key string, c *screenCapture, in pipeline.Input) {
	g.nextID++
	c.id = fmt.Sprintf("screen-%d", g.nextID)
	c.handle = newFFmpegHandle(key, g.Width, g.Height)
	g.handles[c.id] = c.handle

	args := append([]string{g.Binary}, ffmpeg.PreviewArgs(in, g.Width, g.Height, g.FPS)...)
	proc := process.NewProcess(c.id, args, g.logger)
	proc.SetGracefulTimeout(2 * time.Second)
	proc.SetStdoutConsumer(c.handle.readFrames)
	proc.SetOutputHandler(c.handle)
	proc.SetLogParser(logging.GetLogger("ffmpeg").With("capture", key), ffmpeg.ParseLogLevel)

	g.logger.Debug("Starting screen capture", "capture", key, "id", c.id)
	if err := g.pool.Start(c.id, proc); err != nil {
		delete(g.handles, c.id)
		c.handle.finish(err)
	}
}

// reapLocked stops captures nobody grabbed within IdleTimeout, except keep.
func (g *ScreenGrabber) reapLocked(now time.Time, keep string) {
	for key, c := range g.captures {
		if key == keep || now.Sub(c.lastUsed) < g.IdleTimeout {
			continue
		}
		delete(g.captures, key)
		g.logger.Debug("Stopping idle screen capture", "capture", key, "id", c.id)
		go g.stop(c.id)
	}
}

func (g *ScreenGrabber) stop(id string) {
	if err := g.pool.Stop(id); err != nil {
		g.logger.Warn("Failed to stop screen capture", "id", id, "error", err)
	}
	g.mu.Lock()
	h := g.handles[id]
	delete(g.handles, id)
	g.mu.Unlock()
	if h != nil {
		h.finish(nil)
	}
}

func (g *ScreenGrabber) exited(id string, err error) {
	g.mu.Lock()
	h := g.handles[id]
	delete(g.handles, id)
	g.mu.Unlock()
	if h != nil {
		h.finish(err)
	}
}

// Active returns the number of running screen captures.
func (g *ScreenGrabber) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.captures {
		select {
		case <-c.handle.Done():
		default:
			n++
		}
	}
	return n
}

// Close stops every screen capture.
func (g *ScreenGrabber) Close() {
	g.pool.Close()
	g.mu.Lock()
	for key := range g.captures {
		delete(g.captures, key)
	}
	g.mu.Unlock()
}
