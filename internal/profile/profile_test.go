package profile

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestDefaultsAreValid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("Defaults().Validate() = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*StreamProfile)
		field  string
	}{
		{"unknown encoder", func(p *StreamProfile) { p.Encoder.Encoder = "divx" }, "encoder"},
		{"zero bitrate", func(p *StreamProfile) { p.Encoder.BitrateKbps = 0 }, "bitrate_kbps"},
		{"negative fps", func(p *StreamProfile) { p.Encoder.FPS = -1 }, "fps"},
		{"zero height", func(p *StreamProfile) { p.Encoder.Resolution.Height = 0 }, "resolution"},
		{"preset with spaces", func(p *StreamProfile) { p.Encoder.Preset = "very fast" }, "preset"},
		{"zero keyframe", func(p *StreamProfile) { p.Encoder.KeyframeIntervalSeconds = 0 }, "keyframe_interval_seconds"},
		{"bad rate control", func(p *StreamProfile) { p.Encoder.RateControl = "abr" }, "rate_control"},
		{"bad container", func(p *StreamProfile) { p.RecordContainer = "avi" }, "record_container"},
		{"empty record path", func(p *StreamProfile) { p.RecordPath = " " }, "record_path"},
		{"unknown platform", func(p *StreamProfile) { p.PlatformTarget = "myspace" }, "platform"},
		{"http ingest with key", func(p *StreamProfile) {
			p.StreamKey = "abc"
			p.IngestURL = "http://example.com/live"
		}, "ingest_url"},
		{"key with slash", func(p *StreamProfile) { p.StreamKey = "a/b" }, "stream_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Defaults()
			tt.mutate(&p)
			var verr *ValidationError
			if err := p.Validate(); !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			} else if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestIngestURLIgnoredWithoutKey(t *testing.T) {
	p := Defaults()
	p.IngestURL = ""
	if err := p.Validate(); err != nil {
		t.Errorf("record-only profile rejected: %v", err)
	}
}

func TestParseResolution(t *testing.T) {
	r, err := ParseResolution("1280x720")
	if err != nil || r != (Resolution{Width: 1280, Height: 720}) {
		t.Fatalf("ParseResolution = %v, %v", r, err)
	}
	for _, bad := range []string{"1280", "ax720", "1280xb", ""} {
		if _, err := ParseResolution(bad); err == nil {
			t.Errorf("ParseResolution(%q) succeeded", bad)
		}
	}
}

func TestStreamKeyNeverSerialized(t *testing.T) {
	p := Defaults()
	p.StreamKey = "live_abc123"

	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("profile", "profile", p)
	if strings.Contains(buf.String(), "live_abc123") {
		t.Errorf("stream key leaked into log: %s", buf.String())
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "live_abc123") {
		t.Errorf("stream key leaked into JSON: %s", data)
	}
	if p.StreamKey.Reveal() != "live_abc123" {
		t.Error("Reveal must return the real key")
	}
}
