package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces secret attribute values in every log output.
const RedactedValue = "****"

var secretKeys = map[string]struct{}{
	"stream_key": {},
	"streamkey":  {},
	"secret":     {},
	"password":   {},
}

// IsSecretKey reports whether values logged under key must never be written verbatim.
func IsSecretKey(key string) bool {
	_, ok := secretKeys[strings.ToLower(key)]
	return ok
}

// replaceSecrets is a slog ReplaceAttr hook masking secret keys.
func replaceSecrets(_ []string, a slog.Attr) slog.Attr {
	if IsSecretKey(a.Key) {
		return slog.String(a.Key, RedactedValue)
	}
	return a
}
