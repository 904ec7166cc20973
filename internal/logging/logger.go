package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

const defaultBufferSize = 1000

// Logger is a duck-typed interface satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config represents logging configuration.
type Config struct {
	Level      string            `toml:"level"`
	Format     string            `toml:"format"`
	Modules    map[string]string `toml:"modules"`
	BufferSize int               `toml:"buffer_size"`
}

// sink is the shared output chain. Its generation changes on every
// Initialize so module handlers know to rebuild their attribute chains.
type sink struct {
	handler    slog.Handler
	generation uint64
}

var (
	mutex        sync.Mutex
	globalConfig Config
	modules      = make(map[string]*moduleEntry)
	currentSink  atomic.Pointer[sink]
	logBuffer    atomic.Pointer[RingBuffer]
	generation   atomic.Uint64
)

type moduleEntry struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

func init() {
	currentSink.Store(&sink{handler: createHandler("text", os.Stdout, nil)})
}

// Initialize sets up the logging system. Loggers created earlier pick up
// the new outputs and levels.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig = config

	size := config.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	buffer := NewRingBuffer(size)
	logBuffer.Store(buffer)

	currentSink.Store(&sink{
		handler:    createHandler(config.Format, os.Stdout, buffer),
		generation: generation.Add(1),
	})

	for module, entry := range modules {
		entry.level.Set(moduleLevel(config, module))
	}

	slog.SetDefault(getLoggerLocked("app"))
}

// GetBuffer returns the log ring buffer, or nil before Initialize.
func GetBuffer() *RingBuffer {
	return logBuffer.Load()
}

// GetLogger returns a logger for the specified module, creating it if needed.
func GetLogger(module string) *slog.Logger {
	mutex.Lock()
	defer mutex.Unlock()
	return getLoggerLocked(module)
}

// getLoggerLocked requires mutex to be held.
func getLoggerLocked(module string) *slog.Logger {
	if entry, ok := modules[module]; ok {
		return entry.logger
	}

	level := &slog.LevelVar{}
	level.Set(moduleLevel(globalConfig, module))

	logger := slog.New(&moduleHandler{level: level}).With("module", module)
	modules[module] = &moduleEntry{logger: logger, level: level}
	return logger
}

// SetLevel changes a module's level at runtime.
func SetLevel(module, level string) bool {
	parsed := parseLevel(level)
	if parsed == nil {
		return false
	}

	mutex.Lock()
	defer mutex.Unlock()

	getLoggerLocked(module)
	modules[module].level.Set(*parsed)
	if globalConfig.Modules == nil {
		globalConfig.Modules = make(map[string]string)
	}
	globalConfig.Modules[module] = level
	return true
}

// Levels returns the effective level of every known module.
func Levels() map[string]string {
	mutex.Lock()
	defer mutex.Unlock()

	out := make(map[string]string, len(modules))
	for module, entry := range modules {
		out[module] = levelToString(entry.level.Level())
	}
	return out
}

func moduleLevel(config Config, module string) slog.Level {
	level := slog.LevelInfo
	if parsed := parseLevel(config.Level); parsed != nil {
		level = *parsed
	}
	if override, ok := config.Modules[module]; ok {
		if parsed := parseLevel(override); parsed != nil {
			level = *parsed
		}
	}
	return level
}

// moduleHandler filters by the module's level and forwards to the current
// sink, replaying WithAttrs/WithGroup onto it.
type moduleHandler struct {
	level *slog.LevelVar
	ops   []func(slog.Handler) slog.Handler

	cache atomic.Pointer[sink]
}

func (h *moduleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *moduleHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.resolve().Handle(ctx, r)
}

func (h *moduleHandler) resolve() slog.Handler {
	current := currentSink.Load()
	if cached := h.cache.Load(); cached != nil && cached.generation == current.generation {
		return cached.handler
	}

	handler := current.handler
	for _, op := range h.ops {
		handler = op(handler)
	}
	h.cache.Store(&sink{handler: handler, generation: current.generation})
	return handler
}

func (h *moduleHandler) with(op func(slog.Handler) slog.Handler) *moduleHandler {
	ops := make([]func(slog.Handler) slog.Handler, len(h.ops)+1)
	copy(ops, h.ops)
	ops[len(h.ops)] = op
	return &moduleHandler{level: h.level, ops: ops}
}

func (h *moduleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.with(func(next slog.Handler) slog.Handler { return next.WithAttrs(attrs) })
}

func (h *moduleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.with(func(next slog.Handler) slog.Handler { return next.WithGroup(name) })
}

// createHandler builds the output chain: stdout when connected, the journal
// when available, and the ring buffer when one is given. Levels are
// enforced by the module handlers, so the chain accepts everything.
func createHandler(format string, stdout io.Writer, buffer *RingBuffer) slog.Handler {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}

	var stdoutHandler slog.Handler
	if format == "json" {
		stdoutHandler = slog.NewJSONHandler(stdout, opts)
	} else {
		stdoutHandler = slog.NewTextHandler(stdout, opts)
	}

	var handlers []slog.Handler
	if f, ok := stdout.(*os.File); !ok || isFileAvailable(f) {
		handlers = append(handlers, stdoutHandler)
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(slog.LevelDebug))
	}
	if buffer != nil {
		handlers = append(handlers, NewBufferHandler(buffer, slog.LevelDebug))
	}

	switch len(handlers) {
	case 0:
		return stdoutHandler
	case 1:
		return handlers[0]
	default:
		return NewMultiHandler(handlers...)
	}
}

// isFileAvailable checks if a file is a terminal, pipe, socket, or regular file.
func isFileAvailable(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return (mode&os.ModeCharDevice) != 0 || (mode&os.ModeNamedPipe) != 0 || (mode&os.ModeSocket) != 0 || mode.IsRegular()
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) *slog.Level {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil
	}
	return &l
}
