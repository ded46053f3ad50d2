// Package pipeline translates a scene and a stream profile into a structured
// capture, layering and encode description. Building performs no I/O and
// always yields the same description for the same inputs.
package pipeline

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/smazurov/scenecast/internal/profile"
	"github.com/smazurov/scenecast/internal/scene"
)

// Target chooses the sink.
type Target string

// Targets. TargetAuto pushes when a stream key is present and records otherwise.
const (
	TargetAuto   Target = "auto"
	TargetStream Target = "stream"
	TargetRecord Target = "record"
)

// CanvasBackground is the color under every layer.
const CanvasBackground = "#09090b"

// ErrNoStreamKey is returned for TargetStream when the profile has no key.
var ErrNoStreamKey = errors.New("stream target requires a stream key")

// Options carries every non-scene input of a build. SessionID and StartedAt
// seed the recording filename so the builder itself stays deterministic.
type Options struct {
	Platform  Platform
	Target    Target
	SessionID string
	StartedAt time.Time
}

// Build produces the pipeline description for sc. The profile must already
// be validated.
func Build(sc scene.Scene, p profile.StreamProfile, opts Options) (*Description, error) {
	if opts.Platform == "" {
		opts.Platform = HostPlatform()
	}
	enc := p.Encoder

	desc := &Description{
		Version: DescriptionVersion,
		SceneID: string(sc.ID),
		Scene:   sc.Name,
		Canvas: Canvas{
			Width:      enc.Resolution.Width,
			Height:     enc.Resolution.Height,
			Background: CanvasBackground,
			FPS:        enc.FPS,
		},
		Inputs: []Input{},
		Graph:  Graph{Steps: []OverlayStep{}},
	}

	layers := scene.PaintOrder(sc.Sources)
	for i, src := range layers {
		in, err := resolveCapture(opts.Platform, src, enc.FPS)
		if err != nil {
			return nil, err
		}
		in.Ref = fmt.Sprintf("in%d", i)
		desc.Inputs = append(desc.Inputs, in)

		if src.Kind() == scene.KindMediaFile && !src.Muted && src.Volume > 0 {
			desc.Graph.Audio = append(desc.Graph.Audio, AudioInput{
				InputRef: in.Ref,
				Gain:     float64(src.Volume) / 100,
			})
		}
	}
	desc.Graph = buildGraph(desc.Inputs, layers, desc.Graph.Audio)

	sink, err := resolveSink(p, opts)
	if err != nil {
		return nil, err
	}
	desc.Sink = sink
	return desc, nil
}

// buildGraph chains one overlay per layer above the base. Each input is
// referenced exactly once and the last produced node feeds the sink.
func buildGraph(inputs []Input, layers []scene.Source, audio []AudioInput) Graph {
	g := Graph{Steps: []OverlayStep{}, Output: CanvasNode, Audio: audio}
	if len(layers) == 0 {
		return g
	}
	base := layerFor(inputs[0].Ref, layers[0])
	g.Base = &base
	g.Output = base.InputRef

	for i := 1; i < len(layers); i++ {
		step := OverlayStep{
			Layer: layerFor(inputs[i].Ref, layers[i]),
			Label: fmt.Sprintf("ov%d", i),
		}
		g.Steps = append(g.Steps, step)
		g.Output = step.Label
	}
	return g
}

func layerFor(ref string, src scene.Source) Layer {
	return Layer{
		InputRef: ref,
		X:        src.Bounds.X,
		Y:        src.Bounds.Y,
		Width:    src.Bounds.Width,
		Height:   src.Bounds.Height,
	}
}

func resolveSink(p profile.StreamProfile, opts Options) (Sink, error) {
	enc := p.Encoder
	sink := Sink{
		Encoder:                 enc.Encoder,
		BitrateKbps:             enc.BitrateKbps,
		FPS:                     enc.FPS,
		Resolution:              enc.Resolution,
		Preset:                  enc.Preset,
		KeyframeIntervalSeconds: enc.KeyframeIntervalSeconds,
		RateControl:             enc.RateControl,
	}
	if sink.RateControl == "" {
		sink.RateControl = profile.RateControlCBR
	}

	push := false
	switch opts.Target {
	case TargetStream:
		if !p.HasStreamKey() {
			return Sink{}, ErrNoStreamKey
		}
		push = true
	case TargetRecord:
	case TargetAuto, "":
		push = p.HasStreamKey()
	default:
		return Sink{}, fmt.Errorf("unknown pipeline target %q", opts.Target)
	}

	if push {
		key := strings.TrimSpace(p.StreamKey.Reveal())
		sink.Kind = SinkPush
		sink.ingest = strings.TrimRight(p.IngestURL, "/")
		sink.Target = sink.ingest + "/" + key
		sink.Container = pushContainer(p.IngestURL)
		sink.keyed = true
		return sink, nil
	}

	sink.Kind = SinkFile
	sink.Container = string(p.RecordContainer)
	sink.Target = strings.TrimRight(p.RecordPath, "/") + "/" + RecordingFilename(opts.StartedAt, opts.SessionID, p.RecordContainer)
	return sink, nil
}

// pushContainer maps the ingest scheme to its muxer.
func pushContainer(ingest string) string {
	u, err := url.Parse(ingest)
	if err != nil {
		return "flv"
	}
	switch u.Scheme {
	case "srt":
		return "mpegts"
	case "rtsp":
		return "rtsp"
	default:
		return "flv"
	}
}

// RecordingFilename returns recording_<YYYYMMDD-HHMMSS>[_<8 hex>].<ext>.
// The suffix comes from the session id, which keeps two sessions started in
// the same second apart.
func RecordingFilename(startedAt time.Time, sessionID string, container profile.Container) string {
	name := "recording_" + startedAt.UTC().Format("20060102-150405")
	short := strings.ReplaceAll(sessionID, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	if short != "" {
		name += "_" + short
	}
	return name + "." + string(container)
}
