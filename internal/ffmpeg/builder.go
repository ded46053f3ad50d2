// Package ffmpeg renders pipeline descriptions into ffmpeg command lines and
// parses what ffmpeg reports back.
package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/smazurov/scenecast/internal/pipeline"
	"github.com/smazurov/scenecast/internal/profile"
)

// VAAPIDevice is the render node used for h264_vaapi.
const VAAPIDevice = "/dev/dri/renderD128"

const audioBitrate = "160k"

// BaseArgs returns the global flags every invocation starts with.
func BaseArgs() []string {
	return []string{"-hide_banner", "-nostdin", "-nostats", "-loglevel", "level+info", "-y"}
}

// BuildArgs renders a pipeline description into an ffmpeg argument list
// (without the binary). Progress blocks are written to stdout.
func BuildArgs(desc *pipeline.Description) ([]string, error) {
	encoder, err := EncoderName(desc.Sink.Encoder)
	if err != nil {
		return nil, err
	}

	args := BaseArgs()
	if strings.HasSuffix(encoder, "_vaapi") {
		args = append(args, "-vaapi_device", VAAPIDevice)
	}

	index := make(map[string]int, len(desc.Inputs))
	for i, in := range desc.Inputs {
		index[in.Ref] = i
		args = append(args, inputArgs(in)...)
	}

	silent := len(desc.Graph.Audio) == 0
	if silent {
		args = append(args, "-f", "lavfi", "-i", "anullsrc=channel_layout=stereo:sample_rate=48000")
	}

	graph, err := filterGraph(desc, index, encoder)
	if err != nil {
		return nil, err
	}
	args = append(args, "-filter_complex", graph, "-map", "[vout]")
	if silent {
		args = append(args, "-map", strconv.Itoa(len(desc.Inputs))+":a")
	} else {
		args = append(args, "-map", "[aout]")
	}

	args = append(args, encoderArgs(encoder, desc.Sink)...)
	args = append(args, "-c:a", "aac", "-b:a", audioBitrate, "-ar", "48000")
	args = append(args, "-progress", "pipe:1")
	args = append(args, outputArgs(desc.Sink)...)
	return args, nil
}

// filterGraph builds the -filter_complex string: a background canvas, each
// layer scaled to its bounds and overlaid in paint order, then the audio mix.
func inputArgs(in pipeline.Input) []string {
	var args []string
	for _, opt := range in.Options {
		args = append(args, "-"+opt.Name)
		if opt.Value != "" {
			args = append(args, opt.Value)
		}
	}
	if in.Format != "" {
		args = append(args, "-f", in.Format)
	}
	return append(args, "-i", in.Locator)
}

// PreviewArgs renders a single capture input into raw RGBA frames of the
// given size on stdout, for in-process compositing.
func PreviewArgs(in pipeline.Input, width, height, fps int) []string {
	args := BaseArgs()
	args = append(args, inputArgs(in)...)
	return append(args,
		"-an",
		"-vf", fmt.Sprintf("scale=%d:%d,fps=%d", width, height, fps),
		"-pix_fmt", "rgba",
		"-f", "rawvideo",
		"pipe:1",
	)
}

func filterGraph(desc *pipeline.Description, index map[string]int, encoder string) (string, error) {
	c := desc.Canvas
	var chains []string
	chains = append(chains, fmt.Sprintf("color=c=%s:s=%dx%d:r=%d[canvas]",
		ffmpegColor(c.Background), c.Width, c.Height, c.FPS))

	layer := func(l pipeline.Layer, under, label string) error {
		i, ok := index[l.InputRef]
		if !ok {
			return fmt.Errorf("graph references unknown input %q", l.InputRef)
		}
		chains = append(chains,
			fmt.Sprintf("[%d:v]scale=%d:%d,setsar=1[%s]", i, l.Width, l.Height, l.InputRef),
			fmt.Sprintf("[%s][%s]overlay=%d:%d:eof_action=pass[%s]", under, l.InputRef, l.X, l.Y, label),
		)
		return nil
	}

	last := "canvas"
	if g := desc.Graph; g.Base != nil {
		if err := layer(*g.Base, last, "base"); err != nil {
			return "", err
		}
		last = "base"
		for _, step := range g.Steps {
			if err := layer(step.Layer, last, step.Label); err != nil {
				return "", err
			}
			last = step.Label
		}
	}

	format := "format=yuv420p"
	if strings.HasSuffix(encoder, "_vaapi") {
		format = "format=nv12,hwupload"
	}
	chains = append(chains, fmt.Sprintf("[%s]%s[vout]", last, format))

	audio := desc.Graph.Audio
	if len(audio) > 0 {
		var mixIn strings.Builder
		for n, a := range audio {
			i, ok := index[a.InputRef]
			if !ok {
				return "", fmt.Errorf("audio mix references unknown input %q", a.InputRef)
			}
			chains = append(chains, fmt.Sprintf("[%d:a]volume=%s[a%d]", i, strconv.FormatFloat(a.Gain, 'f', -1, 64), n))
			fmt.Fprintf(&mixIn, "[a%d]", n)
		}
		if len(audio) == 1 {
			chains = append(chains, "[a0]anull[aout]")
		} else {
			chains = append(chains, fmt.Sprintf("%samix=inputs=%d:duration=longest:normalize=0[aout]", mixIn.String(), len(audio)))
		}
	}
	return strings.Join(chains, ";"), nil
}

func encoderArgs(encoder string, sink pipeline.Sink) []string {
	args := []string{"-c:v", encoder}

	if strings.HasPrefix(encoder, "h264") || encoder == "libx264" {
		args = append(args, "-profile:v", "high")
	}

	bitrate := sink.BitrateKbps
	maxrate := bitrate
	if sink.RateControl == profile.RateControlVBR {
		maxrate = bitrate * 3 / 2
	}
	if mode := rateControlFlag(encoder, sink.RateControl); mode != nil {
		args = append(args, mode...)
	}
	args = append(args,
		"-b:v", kbps(bitrate),
		"-maxrate", kbps(maxrate),
		"-bufsize", kbps(bitrate*2),
	)

	if supportsPreset(encoder) {
		args = append(args, "-preset", sink.Preset)
	}

	gop := sink.FPS * sink.KeyframeIntervalSeconds
	args = append(args, "-r", strconv.Itoa(sink.FPS), "-g", strconv.Itoa(gop))

	// Software encoders need fixed GOPs for ingest servers.
	if !isHardwareEncoder(encoder) {
		args = append(args, "-keyint_min", strconv.Itoa(gop), "-sc_threshold", "0")
		if sink.Kind == pipeline.SinkPush {
			args = append(args, "-tune", "zerolatency")
		}
	}
	return args
}

func outputArgs(sink pipeline.Sink) []string {
	switch sink.Container {
	case "flv":
		return []string{"-f", "flv", sink.Target}
	case "mpegts":
		return []string{"-muxdelay", "0", "-muxpreload", "0", "-flush_packets", "1", "-f", "mpegts", sink.Target}
	case "rtsp":
		return []string{"-rtsp_transport", "tcp", "-f", "rtsp", sink.Target}
	case "mkv":
		return []string{"-f", "matroska", sink.Target}
	default:
		// Fragmented so a recording stays playable if ffmpeg dies.
		return []string{"-movflags", "+frag_keyframe+empty_moov+default_base_moof", "-f", "mp4", sink.Target}
	}
}

func kbps(v int) string {
	return strconv.Itoa(v) + "k"
}

// ffmpegColor turns #RRGGBB into 0xRRGGBB.
func ffmpegColor(hex string) string {
	return "0x" + strings.TrimPrefix(hex, "#")
}
