// Package profile defines the encoder and stream profiles consumed by the
// pipeline builder and the session controller.
package profile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Resolution is an output size in pixels.
type Resolution struct {
	Width  int `toml:"width" json:"width"`
	Height int `toml:"height" json:"height"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// ParseResolution parses "WIDTHxHEIGHT".
func ParseResolution(s string) (Resolution, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Resolution{}, fmt.Errorf("resolution %q must be WIDTHxHEIGHT", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return Resolution{}, fmt.Errorf("resolution %q: bad width", s)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return Resolution{}, fmt.Errorf("resolution %q: bad height", s)
	}
	return Resolution{Width: width, Height: height}, nil
}

// RateControl is the bitrate strategy of the encoder.
type RateControl string

// Rate control modes.
const (
	RateControlCBR RateControl = "cbr"
	RateControlVBR RateControl = "vbr"
)

// Container is the muxer format of a recording or push output.
type Container string

// Supported containers.
const (
	ContainerMP4 Container = "mp4"
	ContainerMKV Container = "mkv"
	ContainerFLV Container = "flv"
)

// Encoders lists the encoder identifiers a profile may name.
var Encoders = []string{
	"x264",
	"h264_nvenc",
	"h264_qsv",
	"h264_amf",
	"h264_vaapi",
	"h264_videotoolbox",
}

// Platform targets. Custom requires an explicit ingest URL.
const (
	PlatformYouTube  = "youtube"
	PlatformTwitch   = "twitch"
	PlatformFacebook = "facebook"
	PlatformCustom   = "custom"
)

var platformIngest = map[string]string{
	PlatformYouTube:  "rtmp://a.rtmp.youtube.com/live2",
	PlatformTwitch:   "rtmp://live.twitch.tv/app",
	PlatformFacebook: "rtmps://live-api-s.facebook.com:443/rtmp",
}

// DefaultIngestURL returns the well-known ingest endpoint of a platform, or "".
func DefaultIngestURL(platform string) string {
	return platformIngest[platform]
}

// EncoderProfile describes how composed frames are encoded.
type EncoderProfile struct {
	// Encoder is a codec or hardware encoder identifier from Encoders
	Encoder string `toml:"encoder" json:"encoder"`

	BitrateKbps int        `toml:"bitrate_kbps" json:"bitrate_kbps"`
	FPS         int        `toml:"fps" json:"fps"`
	Resolution  Resolution `toml:"resolution" json:"resolution"`

	// Preset is the encoder speed/quality token, e.g. "veryfast"
	Preset string `toml:"preset" json:"preset"`

	KeyframeIntervalSeconds int `toml:"keyframe_interval_seconds" json:"keyframe_interval_seconds"`

	// RateControl defaults to CBR when empty
	RateControl RateControl `toml:"rate_control,omitempty" json:"rate_control,omitempty"`
}

// Secret holds a value that must never be written verbatim to logs or API
// responses. Use Reveal where the real value is required.
type Secret string

// Reveal returns the underlying value.
func (s Secret) Reveal() string { return string(s) }

// String masks the value.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "****"
}

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value { return slog.StringValue(s.String()) }

// MarshalJSON masks the value.
func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

// StreamProfile is everything needed to push or record one output.
type StreamProfile struct {
	// PlatformTarget is youtube, twitch, facebook or custom
	PlatformTarget string `toml:"platform" json:"platform"`

	// IngestURL is the push endpoint without the stream key
	IngestURL string `toml:"ingest_url" json:"ingest_url"`

	// StreamKey selects a push sink when non-empty
	StreamKey Secret `toml:"stream_key" json:"stream_key"`

	Encoder EncoderProfile `toml:"encoder" json:"encoder"`

	// RecordPath is the directory recordings are written into
	RecordPath string `toml:"record_path" json:"record_path"`

	RecordContainer Container `toml:"record_container" json:"record_container"`
}

// LogValue implements slog.LogValuer so profiles can be logged whole.
func (p StreamProfile) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("platform", p.PlatformTarget),
		slog.String("ingest_url", p.IngestURL),
		slog.String("stream_key", p.StreamKey.String()),
		slog.String("encoder", p.Encoder.Encoder),
		slog.Int("bitrate_kbps", p.Encoder.BitrateKbps),
		slog.String("resolution", p.Encoder.Resolution.String()),
		slog.Int("fps", p.Encoder.FPS),
		slog.String("record_path", p.RecordPath),
		slog.String("record_container", string(p.RecordContainer)),
	)
}

// HasStreamKey reports whether a push sink will be selected.
func (p StreamProfile) HasStreamKey() bool {
	return strings.TrimSpace(p.StreamKey.Reveal()) != ""
}

// Defaults returns the profile used when nothing is configured.
func Defaults() StreamProfile {
	return StreamProfile{
		PlatformTarget: PlatformYouTube,
		IngestURL:      platformIngest[PlatformYouTube],
		Encoder: EncoderProfile{
			Encoder:                 "x264",
			BitrateKbps:             4500,
			FPS:                     60,
			Resolution:              Resolution{Width: 1920, Height: 1080},
			Preset:                  "veryfast",
			KeyframeIntervalSeconds: 2,
			RateControl:             RateControlCBR,
		},
		RecordPath:      "./recordings",
		RecordContainer: ContainerMP4,
	}
}

// ValidationError reports a profile field outside its constraints.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid profile %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks the encoder constraints.
func (e EncoderProfile) Validate() error {
	switch {
	case !slices.Contains(Encoders, e.Encoder):
		return invalid("encoder", "unknown encoder %q", e.Encoder)
	case e.BitrateKbps <= 0:
		return invalid("bitrate_kbps", "must be positive")
	case e.FPS <= 0:
		return invalid("fps", "must be positive")
	case e.Resolution.Width <= 0 || e.Resolution.Height <= 0:
		return invalid("resolution", "%s must have positive dimensions", e.Resolution)
	case !isToken(e.Preset):
		return invalid("preset", "%q is not a preset token", e.Preset)
	case e.KeyframeIntervalSeconds <= 0:
		return invalid("keyframe_interval_seconds", "must be positive")
	}
	switch e.RateControl {
	case "", RateControlCBR, RateControlVBR:
	default:
		return invalid("rate_control", "unknown mode %q", e.RateControl)
	}
	return nil
}

// Validate checks every field constraint. Profiles are validated once when
// loaded, never per use.
func (p StreamProfile) Validate() error {
	if err := p.Encoder.Validate(); err != nil {
		return err
	}
	switch p.PlatformTarget {
	case PlatformYouTube, PlatformTwitch, PlatformFacebook, PlatformCustom:
	default:
		return invalid("platform", "unknown platform %q", p.PlatformTarget)
	}
	switch p.RecordContainer {
	case ContainerMP4, ContainerMKV, ContainerFLV:
	default:
		return invalid("record_container", "must be mp4, mkv or flv, got %q", p.RecordContainer)
	}
	if strings.TrimSpace(p.RecordPath) == "" {
		return invalid("record_path", "must not be empty")
	}
	if p.HasStreamKey() {
		if strings.ContainsAny(p.StreamKey.Reveal(), " /?#") {
			return invalid("stream_key", "contains reserved characters")
		}
		u, err := url.Parse(p.IngestURL)
		if err != nil || u.Host == "" {
			return invalid("ingest_url", "%q is not a valid URL", p.IngestURL)
		}
		switch u.Scheme {
		case "rtmp", "rtmps", "srt", "rtsp":
		default:
			return invalid("ingest_url", "unsupported scheme %q", u.Scheme)
		}
	}
	return nil
}

func isToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' || r == '-') {
			return false
		}
	}
	return true
}
