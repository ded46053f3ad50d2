package ffmpeg

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"slices"
	"strings"

	"github.com/smazurov/scenecast/internal/profile"
)

var encoderNames = map[string]string{
	"x264":              "libx264",
	"h264_nvenc":        "h264_nvenc",
	"h264_qsv":          "h264_qsv",
	"h264_amf":          "h264_amf",
	"h264_vaapi":        "h264_vaapi",
	"h264_videotoolbox": "h264_videotoolbox",
}

// EncoderName maps a profile encoder identifier to the ffmpeg encoder.
func EncoderName(id string) (string, error) {
	if name, ok := encoderNames[id]; ok {
		return name, nil
	}
	return "", fmt.Errorf("no ffmpeg encoder for %q", id)
}

// isHardwareEncoder checks if the given codec name represents a hardware encoder
func isHardwareEncoder(codec string) bool {
	hardwareCodecs := []string{
		"nvenc", "amf", "vaapi", "qsv", "videotoolbox",
	}
	for _, hw := range hardwareCodecs {
		if strings.Contains(codec, hw) {
			return true
		}
	}
	return false
}

func supportsPreset(encoder string) bool {
	return slices.Contains([]string{"libx264", "h264_nvenc", "h264_qsv"}, encoder)
}

// rateControlFlag returns the encoder-specific rate control selector, if any.
func rateControlFlag(encoder string, rc profile.RateControl) []string {
	vbr := rc == profile.RateControlVBR
	switch encoder {
	case "h264_nvenc":
		if vbr {
			return []string{"-rc", "vbr"}
		}
		return []string{"-rc", "cbr"}
	case "h264_vaapi":
		if vbr {
			return []string{"-rc_mode", "VBR"}
		}
		return []string{"-rc_mode", "CBR"}
	case "h264_amf":
		if vbr {
			return []string{"-rc", "vbr_peak"}
		}
		return []string{"-rc", "cbr"}
	case "libx264":
		if !vbr {
			return []string{"-x264-params", "nal-hrd=cbr"}
		}
	}
	return nil
}

// FindBinary locates ffmpeg. A configured path wins; otherwise PATH and the
// usual install locations of the host OS are searched.
func FindBinary(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("configured ffmpeg %q: %w", configured, err)
		}
		return configured, nil
	}
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		return path, nil
	}

	var paths []string
	switch runtime.GOOS {
	case "darwin":
		paths = []string{"/opt/homebrew/bin/ffmpeg", "/usr/local/bin/ffmpeg"}
	case "linux":
		paths = []string{"/usr/bin/ffmpeg", "/usr/local/bin/ffmpeg"}
	case "windows":
		paths = []string{`C:\ffmpeg\bin\ffmpeg.exe`, `C:\Program Files\ffmpeg\bin\ffmpeg.exe`}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("ffmpeg not found in PATH or common locations")
}
