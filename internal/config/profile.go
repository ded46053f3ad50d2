package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/scenecast/internal/profile"
)

// StreamKeyEnv overrides the stream key so it can be kept out of the file.
const StreamKeyEnv = EnvPrefix + "STREAM_KEY"

type encoderSection struct {
	Encoder                 string `toml:"encoder"`
	BitrateKbps             int    `toml:"bitrate_kbps"`
	FPS                     int    `toml:"fps"`
	Resolution              string `toml:"resolution"`
	Preset                  string `toml:"preset"`
	KeyframeIntervalSeconds int    `toml:"keyframe_interval_seconds"`
	RateControl             string `toml:"rate_control"`
}

type profileSection struct {
	Platform        string         `toml:"platform"`
	IngestURL       string         `toml:"ingest_url"`
	StreamKey       string         `toml:"stream_key"`
	RecordPath      string         `toml:"record_path"`
	RecordContainer string         `toml:"record_container"`
	Encoder         encoderSection `toml:"encoder"`
}

// LoadProfile reads the [profile] table over the built-in defaults, applies
// the SCENECAST_STREAM_KEY override and validates the result. A missing file
// yields the validated defaults.
func LoadProfile(path string) (profile.StreamProfile, error) {
	p := profile.Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return profile.StreamProfile{}, fmt.Errorf("failed to read profile: %w", err)
		default:
			var raw struct {
				Profile profileSection `toml:"profile"`
			}
			if err := toml.Unmarshal(data, &raw); err != nil {
				return profile.StreamProfile{}, fmt.Errorf("failed to parse profile: %w", err)
			}
			if err := raw.Profile.apply(&p); err != nil {
				return profile.StreamProfile{}, err
			}
		}
	}

	if key := os.Getenv(StreamKeyEnv); key != "" {
		p.StreamKey = profile.Secret(key)
	}

	if err := p.Validate(); err != nil {
		return profile.StreamProfile{}, err
	}
	return p, nil
}

// apply overlays the non-empty fields of s onto p.
func (s profileSection) apply(p *profile.StreamProfile) error {
	if s.Platform != "" {
		p.PlatformTarget = s.Platform
		if s.IngestURL == "" {
			p.IngestURL = profile.DefaultIngestURL(s.Platform)
		}
	}
	if s.IngestURL != "" {
		p.IngestURL = s.IngestURL
	}
	if s.StreamKey != "" {
		p.StreamKey = profile.Secret(s.StreamKey)
	}
	if s.RecordPath != "" {
		p.RecordPath = s.RecordPath
	}
	if s.RecordContainer != "" {
		p.RecordContainer = profile.Container(s.RecordContainer)
	}

	e := s.Encoder
	if e.Encoder != "" {
		p.Encoder.Encoder = e.Encoder
	}
	if e.BitrateKbps != 0 {
		p.Encoder.BitrateKbps = e.BitrateKbps
	}
	if e.FPS != 0 {
		p.Encoder.FPS = e.FPS
	}
	if e.Resolution != "" {
		res, err := profile.ParseResolution(e.Resolution)
		if err != nil {
			return err
		}
		p.Encoder.Resolution = res
	}
	if e.Preset != "" {
		p.Encoder.Preset = e.Preset
	}
	if e.KeyframeIntervalSeconds != 0 {
		p.Encoder.KeyframeIntervalSeconds = e.KeyframeIntervalSeconds
	}
	if e.RateControl != "" {
		p.Encoder.RateControl = profile.RateControl(e.RateControl)
	}
	return nil
}
