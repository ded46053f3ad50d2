package ffmpeg

import "strings"

// ffmpeg -loglevel names, most severe first.
var logLevels = []string{"quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace"}

// ParseLogLevel splits a stderr line written with -loglevel level+info.
// Lines look like "[error] msg" or "[flv @ 0x55d0c] [warning] msg". The
// [level] tag is removed and component tags are kept; untagged lines are
// info.
func ParseLogLevel(line string) (level, msg string) {
	rest := line
	var prefix strings.Builder
	for strings.HasPrefix(rest, "[") {
		tag, after, ok := strings.Cut(rest[1:], "] ")
		if !ok {
			break
		}
		if isLogLevel(tag) {
			return tag, prefix.String() + after
		}
		prefix.WriteString(rest[:len(tag)+3])
		rest = after
	}
	return "info", line
}

func isLogLevel(s string) bool {
	for _, l := range logLevels {
		if s == l {
			return true
		}
	}
	return false
}

// IsFailure reports whether an ffmpeg level is severe enough to keep as the
// reason a capture or session failed.
func IsFailure(level string) bool {
	return level == "panic" || level == "fatal" || level == "error"
}
