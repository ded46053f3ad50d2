package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smazurov/scenecast/internal/profile"
	"github.com/smazurov/scenecast/internal/scene"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadProfileMissingFileYieldsDefaults(t *testing.T) {
	t.Setenv(StreamKeyEnv, "")
	p, err := LoadProfile(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadProfile() error = %v", err)
	}
	d := profile.Defaults()
	if p.Encoder != d.Encoder || p.IngestURL != d.IngestURL || p.RecordContainer != d.RecordContainer {
		t.Errorf("profile = %+v, want defaults", p)
	}
}

func TestLoadProfileOverlay(t *testing.T) {
	t.Setenv(StreamKeyEnv, "")
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[profile]
platform = "twitch"
record_container = "mkv"

[profile.encoder]
encoder = "h264_nvenc"
resolution = "1280x720"
fps = 30
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile() error = %v", err)
	}
	tests := []struct {
		name string
		got  any
		want any
	}{
		{"platform", p.PlatformTarget, "twitch"},
		{"ingest", p.IngestURL, profile.DefaultIngestURL("twitch")},
		{"container", p.RecordContainer, profile.Container("mkv")},
		{"encoder", p.Encoder.Encoder, "h264_nvenc"},
		{"resolution", p.Encoder.Resolution, profile.Resolution{Width: 1280, Height: 720}},
		{"fps", p.Encoder.FPS, 30},
		{"bitrate default", p.Encoder.BitrateKbps, 4500},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoadProfileStreamKeyFromEnv(t *testing.T) {
	t.Setenv(StreamKeyEnv, "env-key-123")
	p, err := LoadProfile("")
	if err != nil {
		t.Fatal(err)
	}
	if p.StreamKey.Reveal() != "env-key-123" {
		t.Errorf("stream key not taken from %s", StreamKeyEnv)
	}
}

func TestLoadProfileRejectsInvalid(t *testing.T) {
	t.Setenv(StreamKeyEnv, "")
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"bad encoder", "[profile.encoder]\nencoder = \"mpeg1\"\n", "encoder"},
		{"bad container", "[profile]\nrecord_container = \"avi\"\n", "record_container"},
		{"bad ingest", "[profile]\nstream_key = \"k\"\ningest_url = \"http://x\"\n", "ingest_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadProfile(path)
			var verr *profile.ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Errorf("LoadProfile() error = %v, want validation error on %s", err, tt.field)
			}
		})
	}

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[profile.encoder]\nresolution = \"wide\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadProfile(path); err == nil {
		t.Error("LoadProfile() accepted a malformed resolution")
	}
}

func TestDefaultScenes(t *testing.T) {
	m, err := BuildModel(nil, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	scenes := m.Scenes()
	if len(scenes) != len(DefaultSceneNames) {
		t.Fatalf("scenes = %d, want %d", len(scenes), len(DefaultSceneNames))
	}
	for i, sc := range scenes {
		if sc.Name != DefaultSceneNames[i] {
			t.Errorf("scene %d = %q, want %q", i, sc.Name, DefaultSceneNames[i])
		}
	}

	main := m.Active()
	if main.Name != MainSceneName || len(main.Sources) != 1 {
		t.Fatalf("active scene = %+v", main)
	}
	bg := main.Sources[0]
	if !bg.Locked || bg.ZIndex != 0 || bg.Bounds != (scene.Rect{Width: 1920, Height: 1080}) {
		t.Errorf("background = %+v", bg)
	}
	if c, ok := bg.Content.(scene.StaticColor); !ok || c.Color != MainBackground {
		t.Errorf("background content = %#v", bg.Content)
	}
}

func TestScenesRoundTrip(t *testing.T) {
	m, err := BuildModel(nil, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	second := m.Scenes()[1].ID
	visible := false
	if _, err := m.AddSource(second, scene.NewSource{
		ID:      "cam-1",
		Name:    "Facecam",
		Content: scene.Camera{DeviceID: "/dev/video0"},
		Visible: &visible,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddSource(second, scene.NewSource{
		Name:    "Intro",
		Content: scene.MediaFile{Path: "/media/intro.mp4", Loop: true},
	}); err != nil {
		t.Fatal(err)
	}
	if err := m.SetActiveScene(second); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "nested", "scenes.toml")
	if err := SaveScenes(path, m); err != nil {
		t.Fatalf("SaveScenes() error = %v", err)
	}
	doc, err := LoadScenes(path)
	if err != nil {
		t.Fatalf("LoadScenes() error = %v", err)
	}
	restored, err := BuildModel(doc, discardLogger())
	if err != nil {
		t.Fatalf("BuildModel() error = %v", err)
	}

	active := restored.Active()
	if active.Name != "Just Chatting" {
		t.Errorf("active scene = %q, want Just Chatting", active.Name)
	}
	if len(active.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(active.Sources))
	}
	cam, ok := active.Source("cam-1")
	if !ok {
		t.Fatal("camera source id not preserved")
	}
	if cam.Visible || cam.Name != "Facecam" {
		t.Errorf("camera = %+v", cam)
	}
	if c, ok := cam.Content.(scene.Camera); !ok || c.DeviceID != "/dev/video0" {
		t.Errorf("camera content = %#v", cam.Content)
	}
	media := active.Sources[1]
	if mf, ok := media.Content.(scene.MediaFile); !ok || !mf.Loop || mf.Path != "/media/intro.mp4" {
		t.Errorf("media content = %#v", media.Content)
	}
	if media.ZIndex != 1 {
		t.Errorf("media zIndex = %d, want 1", media.ZIndex)
	}
}

func TestLoadScenesMissingFile(t *testing.T) {
	doc, err := LoadScenes(filepath.Join(t.TempDir(), "scenes.toml"))
	if err != nil || doc != nil {
		t.Errorf("LoadScenes() = %v, %v; want nil, nil", doc, err)
	}
}

func TestLoadScenesRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty", "version = 1\n", "no scenes"},
		{"future version", "version = 9\n[[scenes]]\nname = \"A\"\n", "unsupported"},
		{"syntax", "[[scenes]\n", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "scenes.toml")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadScenes(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadScenes() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestBuildModelRejectsInvalidSource(t *testing.T) {
	doc := &ScenesFile{Version: ScenesVersion, Scenes: []SceneEntry{{
		ID:   "a",
		Name: "A",
		Sources: []SourceEntry{{
			ID: "s1", Type: "hologram", Width: 10, Height: 10, Visible: true,
		}},
	}}}
	var verr *scene.ValidationError
	if _, err := BuildModel(doc, discardLogger()); !errors.As(err, &verr) {
		t.Errorf("BuildModel() error = %v, want *scene.ValidationError", err)
	}
}
