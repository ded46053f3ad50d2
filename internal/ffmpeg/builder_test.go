package ffmpeg

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/scenecast/internal/pipeline"
	"github.com/smazurov/scenecast/internal/profile"
	"github.com/smazurov/scenecast/internal/scene"
)

func buildDesc(t *testing.T, sources []scene.Source, mutate func(*profile.StreamProfile), target pipeline.Target) *pipeline.Description {
	t.Helper()
	p := profile.Defaults()
	if mutate != nil {
		mutate(&p)
	}
	desc, err := pipeline.Build(scene.Scene{ID: "s", Name: "Test", Sources: sources}, p, pipeline.Options{
		Platform:  pipeline.PlatformLinux,
		Target:    target,
		SessionID: "1234abcd-0000",
		StartedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("pipeline.Build: %v", err)
	}
	return desc
}

// argValue returns the argument following flag, or "".
func argValue(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

func twoLayerSources() []scene.Source {
	return []scene.Source{
		{ID: "bg", Visible: true, Volume: 100, Bounds: scene.Rect{Width: 1920, Height: 1080}, Content: scene.StaticColor{Color: "#1e1b4b"}},
		{ID: "cam", Visible: true, Volume: 100, ZIndex: 1, Bounds: scene.Rect{X: 100, Y: 100, Width: 400, Height: 300}, Content: scene.Camera{DeviceID: "/dev/video0"}},
	}
}

func TestBuildArgsRecording(t *testing.T) {
	desc := buildDesc(t, twoLayerSources(), func(p *profile.StreamProfile) { p.RecordPath = "/tmp/rec" }, pipeline.TargetRecord)

	args, err := BuildArgs(desc)
	if err != nil {
		t.Fatalf("BuildArgs: %v", err)
	}
	line := strings.Join(args, " ")

	for _, want := range []string{
		"-f lavfi -i color=c=0x1e1b4b@1.000:s=1920x1080:r=60",
		"-thread_queue_size 1024 -f v4l2 -i /dev/video0",
		"-f lavfi -i anullsrc=channel_layout=stereo:sample_rate=48000",
		"-map [vout] -map 2:a",
		"-c:v libx264 -profile:v high -x264-params nal-hrd=cbr -b:v 4500k -maxrate 4500k -bufsize 9000k",
		"-preset veryfast",
		"-r 60 -g 120 -keyint_min 120 -sc_threshold 0",
		"-progress pipe:1",
		"-f mp4 /tmp/rec/recording_20260101-000000_1234abcd.mp4",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("args missing %q\n%s", want, line)
		}
	}
	if strings.Contains(line, "zerolatency") {
		t.Error("recordings should not use zerolatency tuning")
	}

	graph := argValue(args, "-filter_complex")
	wantGraph := strings.Join([]string{
		"color=c=0x09090b:s=1920x1080:r=60[canvas]",
		"[0:v]scale=1920:1080,setsar=1[in0]",
		"[canvas][in0]overlay=0:0:eof_action=pass[base]",
		"[1:v]scale=400:300,setsar=1[in1]",
		"[base][in1]overlay=100:100:eof_action=pass[ov1]",
		"[ov1]format=yuv420p[vout]",
	}, ";")
	if graph != wantGraph {
		t.Errorf("filter graph:\n got %s\nwant %s", graph, wantGraph)
	}
}

func TestBuildArgsPushNvenc(t *testing.T) {
	desc := buildDesc(t, twoLayerSources(), func(p *profile.StreamProfile) {
		p.StreamKey = "live_abc123"
		p.Encoder.Encoder = "h264_nvenc"
		p.Encoder.RateControl = profile.RateControlVBR
		p.Encoder.Preset = "p4"
	}, pipeline.TargetAuto)

	args, err := BuildArgs(desc)
	if err != nil {
		t.Fatal(err)
	}
	line := strings.Join(args, " ")
	for _, want := range []string{
		"-c:v h264_nvenc",
		"-rc vbr -b:v 4500k -maxrate 6750k",
		"-preset p4",
		"-f flv rtmp://a.rtmp.youtube.com/live2/live_abc123",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("args missing %q\n%s", want, line)
		}
	}
	if strings.Contains(line, "-sc_threshold") {
		t.Error("hardware encoders should not get software GOP flags")
	}
}

func TestBuildArgsVAAPI(t *testing.T) {
	desc := buildDesc(t, twoLayerSources(), func(p *profile.StreamProfile) {
		p.Encoder.Encoder = "h264_vaapi"
	}, pipeline.TargetRecord)

	args, err := BuildArgs(desc)
	if err != nil {
		t.Fatal(err)
	}
	if argValue(args, "-vaapi_device") != VAAPIDevice {
		t.Error("missing -vaapi_device")
	}
	if !strings.HasSuffix(argValue(args, "-filter_complex"), "format=nv12,hwupload[vout]") {
		t.Errorf("vaapi graph should upload frames: %s", argValue(args, "-filter_complex"))
	}
	if slices.Contains(args, "-preset") {
		t.Error("vaapi does not take -preset")
	}
}

func TestBuildArgsEmptySceneUsesCanvas(t *testing.T) {
	desc := buildDesc(t, nil, nil, pipeline.TargetRecord)
	args, err := BuildArgs(desc)
	if err != nil {
		t.Fatal(err)
	}
	graph := argValue(args, "-filter_complex")
	if graph != "color=c=0x09090b:s=1920x1080:r=60[canvas];[canvas]format=yuv420p[vout]" {
		t.Errorf("graph = %s", graph)
	}
	if argValue(args, "-map") != "[vout]" || !strings.Contains(strings.Join(args, " "), "-map 0:a") {
		t.Errorf("unexpected maps: %v", args)
	}
}

func TestBuildArgsAudioMix(t *testing.T) {
	sources := []scene.Source{
		{ID: "a", Visible: true, Volume: 50, Bounds: scene.Rect{Width: 10, Height: 10}, Content: scene.MediaFile{Path: "a.mp4", Loop: true}},
		{ID: "b", Visible: true, Volume: 100, ZIndex: 1, Bounds: scene.Rect{Width: 10, Height: 10}, Content: scene.MediaFile{Path: "b.mp4"}},
	}
	desc := buildDesc(t, sources, func(p *profile.StreamProfile) { p.RecordContainer = profile.ContainerMKV }, pipeline.TargetRecord)

	args, err := BuildArgs(desc)
	if err != nil {
		t.Fatal(err)
	}
	line := strings.Join(args, " ")
	if !strings.Contains(line, "-re -stream_loop -1 -i a.mp4 -re -i b.mp4") {
		t.Errorf("media inputs rendered wrong: %s", line)
	}
	graph := argValue(args, "-filter_complex")
	if !strings.Contains(graph, "[0:a]volume=0.5[a0];[1:a]volume=1[a1];[a0][a1]amix=inputs=2:duration=longest:normalize=0[aout]") {
		t.Errorf("audio mix missing: %s", graph)
	}
	if strings.Contains(line, "anullsrc") {
		t.Error("silent source added although audio inputs exist")
	}
	if !strings.Contains(line, "-f matroska") {
		t.Error("mkv container not honoured")
	}
}

func TestBuildArgsUnknownEncoder(t *testing.T) {
	desc := buildDesc(t, nil, nil, pipeline.TargetRecord)
	desc.Sink.Encoder = "divx"
	if _, err := BuildArgs(desc); err == nil {
		t.Fatal("expected error for unknown encoder")
	}
}

func TestBuildArgsDanglingReference(t *testing.T) {
	desc := buildDesc(t, twoLayerSources(), nil, pipeline.TargetRecord)
	desc.Graph.Steps[0].InputRef = "in9"
	if _, err := BuildArgs(desc); err == nil {
		t.Fatal("expected error for an unknown input reference")
	}
}

func TestOutputArgsByContainer(t *testing.T) {
	tests := []struct {
		container string
		want      string
	}{
		{"flv", "-f flv out"},
		{"mpegts", "-f mpegts out"},
		{"rtsp", "-rtsp_transport tcp -f rtsp out"},
		{"mkv", "-f matroska out"},
		{"mp4", "-movflags +frag_keyframe+empty_moov+default_base_moof -f mp4 out"},
	}
	for _, tt := range tests {
		got := strings.Join(outputArgs(pipeline.Sink{Container: tt.container, Target: "out"}), " ")
		if !strings.HasSuffix(got, tt.want) {
			t.Errorf("%s: got %q, want suffix %q", tt.container, got, tt.want)
		}
	}
}

func TestPreviewArgs(t *testing.T) {
	in, err := pipeline.CameraInput(pipeline.PlatformLinux, "/dev/video0", 15)
	if err != nil {
		t.Fatalf("CameraInput: %v", err)
	}
	args := PreviewArgs(in, 320, 180, 15)

	if got := argValue(args, "-f"); got != "v4l2" {
		t.Errorf("input format = %q, want v4l2", got)
	}
	if got := argValue(args, "-i"); got != "/dev/video0" {
		t.Errorf("input = %q", got)
	}
	if got := argValue(args, "-vf"); got != "scale=320:180,fps=15" {
		t.Errorf("-vf = %q", got)
	}
	if got := argValue(args, "-pix_fmt"); got != "rgba" {
		t.Errorf("-pix_fmt = %q", got)
	}
	if args[len(args)-1] != "pipe:1" {
		t.Errorf("last arg = %q, want pipe:1", args[len(args)-1])
	}
}
