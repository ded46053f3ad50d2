package scene

import (
	"fmt"
	"strings"
)

// SceneID identifies a scene.
type SceneID string

// SourceID identifies a source. IDs are unique across all scenes.
type SourceID string

// Kind is the type of a source layer.
type Kind string

// Source kinds.
const (
	KindCamera        Kind = "camera"
	KindScreenCapture Kind = "screen-capture"
	KindWindowCapture Kind = "window-capture"
	KindStaticImage   Kind = "static-image"
	KindStaticColor   Kind = "static-color"
	KindMediaFile     Kind = "media-file"
)

// Kinds lists every source kind in declaration order.
var Kinds = []Kind{
	KindCamera,
	KindScreenCapture,
	KindWindowCapture,
	KindStaticImage,
	KindStaticColor,
	KindMediaFile,
}

// Content is the kind-specific payload of a source. Each kind has exactly one
// variant, carrying only the fields that kind uses.
type Content interface {
	Kind() Kind
	validate() error
}

// Camera captures from a physical device shared through the device binding manager.
type Camera struct {
	DeviceID string `json:"device_id" toml:"device_id"`
}

// ScreenCapture grabs a whole display. An empty Display selects the primary one.
type ScreenCapture struct {
	Display string `json:"display,omitempty" toml:"display,omitempty"`
}

// WindowCapture grabs a single window by title.
type WindowCapture struct {
	Title string `json:"title" toml:"title"`
}

// StaticImage fills its bounds with a decoded image file.
type StaticImage struct {
	Path string `json:"path" toml:"path"`
}

// StaticColor fills its bounds with a solid color such as "#1e1b4b".
type StaticColor struct {
	Color string `json:"color" toml:"color"`
}

// MediaFile plays back a video or audio file.
type MediaFile struct {
	Path string `json:"path" toml:"path"`
	Loop bool   `json:"loop,omitempty" toml:"loop,omitempty"`
}

func (Camera) Kind() Kind        { return KindCamera }
func (ScreenCapture) Kind() Kind { return KindScreenCapture }
func (WindowCapture) Kind() Kind { return KindWindowCapture }
func (StaticImage) Kind() Kind   { return KindStaticImage }
func (StaticColor) Kind() Kind   { return KindStaticColor }
func (MediaFile) Kind() Kind     { return KindMediaFile }

func (c Camera) validate() error {
	if strings.TrimSpace(c.DeviceID) == "" {
		return invalid("device_id", "camera sources require a device id")
	}
	return nil
}

func (ScreenCapture) validate() error { return nil }

func (c WindowCapture) validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return invalid("content_ref", "window capture requires a window title")
	}
	return nil
}

func (c StaticImage) validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return invalid("content_ref", "static image requires a path")
	}
	return nil
}

func (c StaticColor) validate() error {
	if _, err := ParseColor(c.Color); err != nil {
		return invalid("content_ref", "%v", err)
	}
	return nil
}

func (c MediaFile) validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return invalid("content_ref", "media file requires a path")
	}
	return nil
}

// DeviceID returns the bound device of a camera source, or "".
func DeviceID(c Content) string {
	if cam, ok := c.(Camera); ok {
		return cam.DeviceID
	}
	return ""
}

// NewContent builds the variant for kind from the flat field pair used by the
// API and the scene file. Exactly one of deviceID and contentRef may be set,
// depending on kind.
func NewContent(kind Kind, deviceID, contentRef string) (Content, error) {
	var c Content
	switch kind {
	case KindCamera:
		if contentRef != "" {
			return nil, invalid("content_ref", "camera sources take a device id, not a content ref")
		}
		c = Camera{DeviceID: deviceID}
	case KindScreenCapture:
		c = ScreenCapture{Display: contentRef}
	case KindWindowCapture:
		c = WindowCapture{Title: contentRef}
	case KindStaticImage:
		c = StaticImage{Path: contentRef}
	case KindStaticColor:
		c = StaticColor{Color: contentRef}
	case KindMediaFile:
		c = MediaFile{Path: contentRef}
	default:
		return nil, invalid("type", "unknown source type %q", kind)
	}
	if kind != KindCamera && deviceID != "" {
		return nil, invalid("device_id", "%s sources do not take a device id", kind)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Flatten is the inverse of NewContent.
func Flatten(c Content) (kind Kind, deviceID, contentRef string) {
	switch v := c.(type) {
	case Camera:
		return KindCamera, v.DeviceID, ""
	case ScreenCapture:
		return KindScreenCapture, "", v.Display
	case WindowCapture:
		return KindWindowCapture, "", v.Title
	case StaticImage:
		return KindStaticImage, "", v.Path
	case StaticColor:
		return KindStaticColor, "", v.Color
	case MediaFile:
		return KindMediaFile, "", v.Path
	}
	return "", "", ""
}

// Rect is a bounding box in output-canvas pixels.
type Rect struct {
	X      int `json:"x" toml:"x"`
	Y      int `json:"y" toml:"y"`
	Width  int `json:"width" toml:"width"`
	Height int `json:"height" toml:"height"`
}

func (r Rect) validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return invalid("bounds", "width and height must be positive, got %dx%d", r.Width, r.Height)
	}
	return nil
}

// String renders the rect as WxH+X+Y.
func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// Source is a single layer of a scene.
type Source struct {
	ID      SourceID
	Name    string
	Visible bool
	Locked  bool
	Bounds  Rect
	Volume  int
	Muted   bool
	ZIndex  int
	Content Content
}

// Kind returns the source type, derived from its content variant.
func (s Source) Kind() Kind {
	if s.Content == nil {
		return ""
	}
	return s.Content.Kind()
}

// Scene is a named collection of sources. Sources are kept in insertion order.
type Scene struct {
	ID      SceneID
	Name    string
	Sources []Source
}

// Source returns the source with the given id.
func (s Scene) Source(id SourceID) (Source, bool) {
	for _, src := range s.Sources {
		if src.ID == id {
			return src, true
		}
	}
	return Source{}, false
}

func (s Scene) clone() Scene {
	out := s
	out.Sources = append([]Source(nil), s.Sources...)
	return out
}

func clampVolume(v int) int {
	return min(max(v, 0), 100)
}
