// Package logging provides structured logging with per-module log level configuration.
//
// Every component obtains its logger once:
//
//	logger := logging.GetLogger("session")
//	logger.Info("Track state changed", "track", "stream", "from", "starting", "to", "live")
//
// Records are routed to stdout (text or json), to the systemd journal when
// journald is reachable, and to an in-memory ring buffer served by the HTTP
// API. A callback registered with SetLogCallback receives every buffered entry;
// the server uses it to republish records on the event bus. Buffered entries
// carry a monotonic Seq, so Entries can page with Query.After and stream
// consumers can drop records they already replayed.
//
// Attributes named stream_key (and a few other secret keys) are masked in all
// three outputs. Types carrying secrets should also implement slog.LogValuer.
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	devices = "debug"
//	ffmpeg = "warn"
//
// When running under systemd:
//
//	journalctl -t scenecast -f
//	journalctl -t scenecast MODULE=session
package logging
