// Package compositor composes the active scene into RGBA frames at a fixed
// cadence. A layer that cannot be painted becomes a placeholder; it never
// fails the frame.
package compositor

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"github.com/smazurov/scenecast/internal/metrics"
	"github.com/smazurov/scenecast/internal/scene"
)

// Background is the canvas color behind every layer.
const Background = "#09090b"

// SceneSource supplies the scene to compose. *scene.Model satisfies it.
type SceneSource interface {
	Active() scene.Scene
}

// FrameSource yields the latest frame of a bound capture device.
// *devices.Manager satisfies it.
type FrameSource interface {
	Frame(deviceID string) (image.Image, bool)
}

// ScreenGrabber captures a display or window for screen and window sources.
type ScreenGrabber interface {
	Grab(src scene.Source) (image.Image, error)
}

// MediaDecoder yields the current frame of a media file.
type MediaDecoder interface {
	Frame(path string, loop bool) (image.Image, error)
}

// Options configures a Compositor. Zero collaborators render placeholders.
type Options struct {
	Width   int
	Height  int
	FPS     int
	Devices FrameSource
	Screens ScreenGrabber
	Media   MediaDecoder
}

// Frame is a composed frame. Frames returned by Latest and RenderOnce are
// copies owned by the caller.
type Frame struct {
	Image      *image.RGBA
	Seq        uint64
	SceneID    scene.SceneID
	RenderedAt time.Time
	// Placeholders lists the sources painted as placeholders.
	Placeholders []scene.SourceID
}

// Compositor renders frames from the active scene.
type Compositor struct {
	scenes SceneSource
	logger *slog.Logger
	images *imageCache
	bg     *image.Uniform

	mu     sync.RWMutex
	opts   Options
	latest *Frame
	seq    uint64

	// renderMu serializes renders; back is the buffer the next render paints
	// into and is swapped with latest.Image on publish.
	renderMu sync.Mutex
	back     *image.RGBA

	failMu  sync.Mutex
	failing map[scene.SourceID]string
}

// New creates a compositor drawing the scene supplied by scenes.
func New(scenes SceneSource, opts Options, logger *slog.Logger) *Compositor {
	bg, _ := scene.ParseColor(Background)
	return &Compositor{
		scenes:  scenes,
		logger:  logger,
		images:  newImageCache(),
		bg:      image.NewUniform(bg),
		opts:    opts,
		failing: make(map[scene.SourceID]string),
	}
}

// SetCanvas changes the output size and cadence for subsequent frames.
func (c *Compositor) SetCanvas(width, height, fps int) {
	c.mu.Lock()
	c.opts.Width, c.opts.Height, c.opts.FPS = width, height, fps
	c.mu.Unlock()
}

// Canvas returns the current output size and cadence.
func (c *Compositor) Canvas() (width, height, fps int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.opts.Width, c.opts.Height, c.opts.FPS
}

// Run renders a frame every 1/fps until ctx is cancelled.
func (c *Compositor) Run(ctx context.Context) error {
	_, _, fps := c.Canvas()
	if fps <= 0 {
		return fmt.Errorf("compositor: invalid fps %d", fps)
	}
	interval := time.Second / time.Duration(fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Info("Compositor started", "fps", fps)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Compositor stopped")
			return nil
		case <-ticker.C:
			c.render()
			if _, _, now := c.Canvas(); now != fps && now > 0 {
				fps = now
				interval = time.Second / time.Duration(fps)
				ticker.Reset(interval)
			}
		}
	}
}

// RenderOnce composes the active scene, publishes it as the latest frame
// and returns a copy of it.
func (c *Compositor) RenderOnce() *Frame {
	c.render()
	frame, _ := c.Latest()
	return frame
}

// render paints into the back buffer and swaps it with the published one.
// Readers of the published buffer hold mu, so the swap waits for them and a
// buffer is never painted while it is being read.
func (c *Compositor) render() {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()

	start := time.Now()
	c.mu.RLock()
	opts := c.opts
	c.mu.RUnlock()

	sc := c.scenes.Active()
	bounds := image.Rect(0, 0, opts.Width, opts.Height)
	canvas := c.back
	if canvas == nil || canvas.Bounds() != bounds {
		canvas = image.NewRGBA(bounds)
	}
	c.back = nil
	draw.Draw(canvas, bounds, c.bg, image.Point{}, draw.Src)

	var placeholders []scene.SourceID
	failed := make(map[scene.SourceID]string)
	for _, src := range scene.PaintOrder(sc.Sources) {
		if err := c.paintLayer(canvas, src, opts); err != nil {
			failed[src.ID] = err.Error()
			placeholders = append(placeholders, src.ID)
			paintPlaceholder(canvas, src)
			metrics.IncLayerFailure(string(src.Kind()))
		}
	}
	c.noteFailures(sc, failed)

	c.mu.Lock()
	c.seq++
	if c.latest != nil {
		c.back = c.latest.Image
	}
	c.latest = &Frame{
		Image:        canvas,
		Seq:          c.seq,
		SceneID:      sc.ID,
		RenderedAt:   time.Now(),
		Placeholders: placeholders,
	}
	c.mu.Unlock()

	metrics.ObserveFrame(time.Since(start))
}

// paintLayer paints one source, converting a panic into an error so a single
// misbehaving collaborator cannot take the frame down.
func (c *Compositor) paintLayer(dst *image.RGBA, src scene.Source, opts Options) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	switch content := src.Content.(type) {
	case scene.StaticColor:
		col, err := scene.ParseColor(content.Color)
		if err != nil {
			return err
		}
		fill(dst, rect(src.Bounds), image.NewUniform(col))
		return nil
	case scene.StaticImage:
		img, err := c.images.load(content.Path)
		if err != nil {
			return err
		}
		blit(dst, src.Bounds, img)
		return nil
	case scene.Camera:
		if opts.Devices == nil {
			return errNoCollaborator
		}
		img, ok := opts.Devices.Frame(content.DeviceID)
		if !ok {
			return errNoFrame
		}
		blit(dst, src.Bounds, img)
		return nil
	case scene.ScreenCapture, scene.WindowCapture:
		if opts.Screens == nil {
			return errNoCollaborator
		}
		img, err := opts.Screens.Grab(src)
		if err != nil {
			return err
		}
		blit(dst, src.Bounds, img)
		return nil
	case scene.MediaFile:
		if opts.Media == nil {
			return errNoCollaborator
		}
		img, err := opts.Media.Frame(content.Path, content.Loop)
		if err != nil {
			return err
		}
		blit(dst, src.Bounds, img)
		return nil
	default:
		return fmt.Errorf("unknown source kind %q", src.Kind())
	}
}

// noteFailures logs layers entering or leaving the placeholder state, once
// per transition rather than once per frame.
func (c *Compositor) noteFailures(sc scene.Scene, failed map[scene.SourceID]string) {
	c.failMu.Lock()
	defer c.failMu.Unlock()

	for id, reason := range failed {
		if _, was := c.failing[id]; !was {
			c.logger.Warn("Rendering placeholder for source", "scene_id", sc.ID, "source_id", id, "reason", reason)
		}
	}
	for id := range c.failing {
		if _, still := failed[id]; still {
			continue
		}
		if _, present := sc.Source(id); present {
			c.logger.Info("Source recovered", "scene_id", sc.ID, "source_id", id)
		}
	}
	c.failing = failed
}

// Latest returns a copy of the most recent frame.
func (c *Compositor) Latest() (*Frame, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.latest == nil {
		return nil, false
	}
	frame := *c.latest
	frame.Image = &image.RGBA{
		Pix:    slices.Clone(c.latest.Image.Pix),
		Stride: c.latest.Image.Stride,
		Rect:   c.latest.Image.Rect,
	}
	frame.Placeholders = slices.Clone(c.latest.Placeholders)
	return &frame, true
}

// EncodePNG writes the latest frame, rendering one first if none exists.
// The published buffer is encoded in place.
func (c *Compositor) EncodePNG(w io.Writer) error {
	c.mu.RLock()
	ready := c.latest != nil
	c.mu.RUnlock()
	if !ready {
		c.render()
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	return enc.Encode(w, c.latest.Image)
}

// InvalidateImage drops a cached image so the next frame reloads it.
func (c *Compositor) InvalidateImage(path string) {
	c.images.invalidate(path)
}
