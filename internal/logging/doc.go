// Package logging provides structured logging with per-module log levels.
//
// Loggers come from GetLogger and carry a "module" attribute. A logger
// obtained before Initialize keeps working afterwards: Initialize swaps the
// shared output chain and updates each module's level in place.
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"capture": "debug",
//			"ffmpeg":  "warn",
//		},
//	})
//
//	logger := logging.GetLogger("capture").With("direction", "record")
//	logger.Info("Stream started", "session", id)
//
// Records fan out to stdout (when connected), the systemd journal (when
// journald is reachable) and an in-memory ring buffer served by the HTTP
// API. Journal entries use the identifier "ffpipe":
//
//	journalctl -t ffpipe MODULE=capture -f
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//	buffer_size = 1000
//
//	[logging.modules]
//	ffmpeg = "warn"
package logging
