package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/coreos/go-systemd/v22/journal"
)

const historySize = 1000

// Logger is the subset of *slog.Logger accepted by packages that take an
// injected logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config is the [logging] table.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

type module struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

type registry struct {
	mu       sync.RWMutex
	config   Config
	ready    bool
	global   slog.LevelVar
	modules  map[string]*module
	history  *RingBuffer
	callback LogCallback
}

var std = newRegistry()

func newRegistry() *registry {
	return &registry{modules: make(map[string]*module)}
}

// levelFor resolves a module level: its override, then the global level,
// then info. Before Initialize every module logs at info.
func (r *registry) levelFor(name string) slog.Level {
	if !r.ready {
		return slog.LevelInfo
	}
	if lvl, ok := parseLevel(r.config.Modules[name]); ok {
		return lvl
	}
	if lvl, ok := parseLevel(r.config.Level); ok {
		return lvl
	}
	return slog.LevelInfo
}

func (r *registry) format() string {
	if r.ready {
		return r.config.Format
	}
	return "text"
}

func (r *registry) module(name string) *module {
	r.mu.RLock()
	m, ok := r.modules[name]
	r.mu.RUnlock()
	if ok {
		return m
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.modules[name]; ok {
		return m
	}
	level := &slog.LevelVar{}
	level.Set(r.levelFor(name))
	m = &module{
		logger: slog.New(newHandler(r.format(), level)).With("module", name),
		level:  level,
	}
	r.modules[name] = m
	return m
}

// Initialize applies config to every module logger, including loggers
// handed out before it ran, and installs the default slog logger.
func Initialize(config Config) {
	std.mu.Lock()
	defer std.mu.Unlock()

	std.config = config
	std.ready = true
	std.history = NewRingBuffer(historySize)
	std.global.Set(std.levelFor(""))

	// Cached pointers stay valid; only their level and outputs change.
	for name, m := range std.modules {
		m.level.Set(std.levelFor(name))
		*m.logger = *slog.New(newHandler(config.Format, m.level)).With("module", name)
	}

	slog.SetDefault(slog.New(newHandler(config.Format, &std.global)))
}

// GetLogger returns the logger for module, creating it on first use.
func GetLogger(name string) *slog.Logger {
	return std.module(name).logger
}

// SetModuleLevel changes the level of a single module at runtime.
func SetModuleLevel(name, level string) bool {
	lvl, ok := parseLevel(level)
	if !ok {
		return false
	}
	std.module(name).level.Set(lvl)
	return true
}

// SetLogCallback registers a function receiving every buffered entry.
func SetLogCallback(callback LogCallback) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.callback = callback
}

// Query selects buffered entries.
type Query struct {
	Module string // empty matches every module
	After  uint64 // only entries with a larger Seq
	Limit  int    // newest Limit matches, 0 for all
}

// Entries returns buffered entries matching q, oldest first.
func Entries(q Query) []LogEntry {
	std.mu.RLock()
	history := std.history
	std.mu.RUnlock()
	if history == nil {
		return nil
	}

	entries := history.Since(q.After)
	if q.Module != "" {
		matched := entries[:0]
		for _, e := range entries {
			if e.Module == q.Module {
				matched = append(matched, e)
			}
		}
		entries = matched
	}
	if q.Limit > 0 && len(entries) > q.Limit {
		entries = entries[len(entries)-q.Limit:]
	}
	return entries
}

// Recent returns up to limit of the newest buffered entries, oldest first.
func Recent(limit int) []LogEntry {
	return Entries(Query{Limit: limit})
}

// newHandler builds the output chain: stdout when it goes somewhere, the
// journal when journald is reachable, and always the history buffer.
func newHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceSecrets}

	var outputs fanout
	if stdoutAvailable() {
		if format == "json" {
			outputs = append(outputs, slog.NewJSONHandler(os.Stdout, opts))
		} else {
			outputs = append(outputs, slog.NewTextHandler(os.Stdout, opts))
		}
	}
	if journal.Enabled() {
		outputs = append(outputs, NewJournalHandler(level))
	}
	outputs = append(outputs, NewBufferHandler(level))

	if len(outputs) == 1 {
		return outputs[0]
	}
	return outputs
}

// stdoutAvailable is false when stdout is closed or redirected to /dev/null.
func stdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0 || mode.IsRegular()
}

func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}
