package logging

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// attrState is the WithAttrs/WithGroup state shared by the buffer and
// journal handlers.
type attrState struct {
	attrs  []slog.Attr
	groups []string
}

func (s attrState) withAttrs(attrs []slog.Attr) attrState {
	return attrState{attrs: slices.Concat(s.attrs, attrs), groups: s.groups}
}

func (s attrState) withGroup(name string) attrState {
	if name == "" {
		return s
	}
	return attrState{attrs: s.attrs, groups: append(slices.Clone(s.groups), name)}
}

// walk calls fn for every leaf attribute of the handler and the record,
// expanding groups and LogValuers. Secret keys arrive already masked.
func (s attrState) walk(r slog.Record, fn func(path []string, a slog.Attr)) {
	for _, a := range s.attrs {
		walkAttr(s.groups, a, fn)
	}
	r.Attrs(func(a slog.Attr) bool {
		walkAttr(s.groups, a, fn)
		return true
	})
}

func walkAttr(path []string, a slog.Attr, fn func(path []string, a slog.Attr)) {
	if a.Equal(slog.Attr{}) {
		return
	}
	if IsSecretKey(a.Key) {
		fn(path, slog.String(a.Key, RedactedValue))
		return
	}
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		inner := append(slices.Clone(path), a.Key)
		for _, ga := range a.Value.Group() {
			walkAttr(inner, ga, fn)
		}
		return
	}
	fn(path, a)
}

func joinKey(path []string, key, sep string) string {
	if len(path) == 0 {
		return key
	}
	return strings.Join(path, sep) + sep + key
}

// plainValue converts a resolved leaf value for JSON output.
func plainValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	default:
		return v.Any()
	}
}

// textValue converts a resolved leaf value for the journal.
func textValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(plainValue(v))
	}
}
