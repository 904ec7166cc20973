package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// resetState clears module loggers and configuration between tests.
func resetState(t *testing.T) {
	t.Helper()
	mutex.Lock()
	modules = make(map[string]*moduleEntry)
	globalConfig = Config{}
	mutex.Unlock()
	logBuffer.Store(nil)
}

func TestModuleLevelOverride(t *testing.T) {
	resetState(t)

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"capture": "debug",
			"api":     "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"capture", true, true, true},
		{"api", false, false, true},
		{"other", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()
			ctx := context.Background()

			if got := handler.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("Debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := handler.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("Info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := handler.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("Warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetState(t)

	before := GetLogger("ffmpeg")
	if before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger created before Initialize should default to info")
	}

	Initialize(Config{Level: "info", Modules: map[string]string{"ffmpeg": "debug"}})

	if after := GetLogger("ffmpeg"); after != before {
		t.Error("logger should be cached across Initialize")
	}
	if !before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("cached logger should pick up the new level")
	}
}

func TestLoggerWritesToBuffer(t *testing.T) {
	resetState(t)

	early := GetLogger("capture").With("direction", "record")
	Initialize(Config{Level: "debug", BufferSize: 10})

	early.Info("Stream started", "session", "abc")
	GetLogger("process").Debug("Process exited", "exit_code", 0)

	entries := GetBuffer().ReadAll()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(entries), entries)
	}

	first := entries[0]
	if first.Module != "capture" || first.Message != "Stream started" || first.Level != "info" {
		t.Errorf("unexpected entry %+v", first)
	}
	if first.Direction != "record" || first.Session != "abc" || len(first.Attributes) != 0 {
		t.Errorf("stream fields = %q %q, attributes = %v", first.Direction, first.Session, first.Attributes)
	}
	if got := GetBuffer().Read(Filter{Direction: "record"}); len(got) != 1 {
		t.Errorf("direction filter matched %d entries", len(got))
	}
	if entries[1].Attributes["exit_code"] != int64(0) {
		t.Errorf("exit_code = %#v", entries[1].Attributes["exit_code"])
	}
	if entries[1].Level != "debug" || entries[1].Module != "process" {
		t.Errorf("unexpected entry %+v", entries[1])
	}
}

func TestSetLevel(t *testing.T) {
	resetState(t)
	Initialize(Config{Level: "info"})

	logger := GetLogger("cadence")
	if logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected info level")
	}
	if !SetLevel("cadence", "debug") {
		t.Fatal("SetLevel rejected a valid level")
	}
	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug level after SetLevel")
	}
	if SetLevel("cadence", "loud") {
		t.Error("SetLevel accepted an invalid level")
	}
	if got := Levels()["cadence"]; got != "debug" {
		t.Errorf("Levels()[cadence] = %q", got)
	}
}

func TestMultiHandlerDebugOutput(t *testing.T) {
	var buf bytes.Buffer

	debugHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	infoHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewMultiHandler(debugHandler, infoHandler)).With("module", "test")
	logger.Debug("debug only message")

	if count := strings.Count(buf.String(), "debug only message"); count != 1 {
		t.Errorf("expected 1 debug message, got %d. Output: %s", count, buf.String())
	}

	logger.Info("info message")
	if count := strings.Count(buf.String(), "info message"); count != 2 {
		t.Errorf("expected info message from both handlers, got %d", count)
	}
}

func TestRingBufferWrapAndFilter(t *testing.T) {
	rb := NewRingBuffer(3)
	for i, lvl := range []string{"debug", "info", "warn", "error"} {
		rb.Write(LogEntry{Level: lvl, Module: []string{"a", "b"}[i%2], Message: lvl})
	}

	all := rb.ReadAll()
	if len(all) != 3 || all[0].Message != "info" || all[2].Message != "error" {
		t.Fatalf("unexpected order after wrap: %+v", all)
	}

	if got := rb.Read(Filter{Module: "b"}); len(got) != 2 {
		t.Errorf("module filter returned %d entries", len(got))
	}
	if got := rb.Read(Filter{MinLevel: "warn"}); len(got) != 2 {
		t.Errorf("level filter returned %d entries", len(got))
	}
	if got := rb.Read(Filter{Limit: 1}); len(got) != 1 || got[0].Message != "error" {
		t.Errorf("limit returned %+v", got)
	}
}

func TestBufferHandlerGroups(t *testing.T) {
	rb := NewRingBuffer(4)
	logger := slog.New(NewBufferHandler(rb, slog.LevelInfo)).With("module", "api").WithGroup("req")

	logger.Debug("hidden")
	logger.Info("served", "path", "/health", "took", 5*time.Millisecond)

	entries := rb.ReadAll()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Module != "api" {
		t.Errorf("module = %q", e.Module)
	}
	if e.Attributes["req.path"] != "/health" || e.Attributes["req.took"] != "5ms" {
		t.Errorf("attributes = %v", e.Attributes)
	}
	if line := FormatLogLine(e); !strings.Contains(line, "[INFO] [api] served req.path=/health") {
		t.Errorf("FormatLogLine = %q", line)
	}
}

func TestBufferHandlerAttrsInsideGroup(t *testing.T) {
	rb := NewRingBuffer(4)
	logger := slog.New(NewBufferHandler(rb, slog.LevelInfo)).
		With("direction", "capture").
		WithGroup("frame").
		With("width", 640)

	logger.Info("converted", "format", "nv12", "err", errors.New("short"))

	e := rb.ReadAll()[0]
	if e.Direction != "capture" {
		t.Errorf("direction = %q", e.Direction)
	}
	want := map[string]any{"frame.width": int64(640), "frame.format": "nv12", "frame.err": "short"}
	for k, v := range want {
		if e.Attributes[k] != v {
			t.Errorf("%s = %#v, want %#v", k, e.Attributes[k], v)
		}
	}
	if line := FormatLogLine(e); !strings.Contains(line, "[app/capture] converted") {
		t.Errorf("FormatLogLine = %q", line)
	}
}

func TestJournalFieldName(t *testing.T) {
	tests := map[string]string{
		"module":    "MODULE",
		"exit_code": "EXIT_CODE",
		"req.path":  "REQ_PATH",
		"_private":  "PRIVATE",
	}
	for in, want := range tests {
		if got := journalFieldName(in); got != want {
			t.Errorf("journalFieldName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseLevelValues(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		isNil bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input)
			switch {
			case tt.isNil && got != nil:
				t.Errorf("parseLevel(%q) = %v, want nil", tt.input, *got)
			case !tt.isNil && got == nil:
				t.Errorf("parseLevel(%q) = nil, want %v", tt.input, tt.want)
			case !tt.isNil && *got != tt.want:
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, *got, tt.want)
			}
		})
	}
}

func TestJournalHandlerFields(t *testing.T) {
	h := NewJournalHandler(slog.LevelInfo).
		WithAttrs([]slog.Attr{slog.String("direction", "playout")}).
		WithGroup("pipe").(*JournalHandler)
	h = h.WithAttrs([]slog.Attr{slog.Int("pid", 42)}).(*JournalHandler)

	want := map[string]string{"DIRECTION": "playout", "PIPE_PID": "42"}
	for k, v := range want {
		if h.fields[k] != v {
			t.Errorf("%s = %q, want %q", k, h.fields[k], v)
		}
	}
	if got := journalValue(slog.Float64Value(1.5)); got != "1.5" {
		t.Errorf("float value = %q", got)
	}
	if got := journalValue(slog.DurationValue(10 * time.Millisecond)); got != "10ms" {
		t.Errorf("duration value = %q", got)
	}
}
