package logging

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// BufferHandler is a slog.Handler that writes records to a ring buffer.
// Top-level module, direction and session attributes become entry fields;
// everything else is flattened into Attributes with dotted group keys.
type BufferHandler struct {
	buffer *RingBuffer
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewBufferHandler creates a handler that writes to the given ring buffer.
func NewBufferHandler(buffer *RingBuffer, level slog.Leveler) *BufferHandler {
	return &BufferHandler{buffer: buffer, level: level}
}

// Enabled implements slog.Handler.
func (h *BufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *BufferHandler) Handle(_ context.Context, r slog.Record) error {
	entry := LogEntry{
		Timestamp: r.Time,
		Level:     levelToString(r.Level),
		Module:    "app",
		Message:   r.Message,
	}

	add := func(path []string, key string, v slog.Value) {
		if len(path) == 0 {
			switch key {
			case moduleKey:
				entry.Module = v.String()
				return
			case directionKey:
				entry.Direction = v.String()
				return
			case sessionKey:
				entry.Session = v.String()
				return
			}
		}
		if entry.Attributes == nil {
			entry.Attributes = make(map[string]any)
		}
		if len(path) > 0 {
			key = strings.Join(path, ".") + "." + key
		}
		entry.Attributes[key] = plainValue(v)
	}

	// Handler attrs were added before any group opened after them; record
	// attrs sit under every open group.
	for _, a := range h.attrs {
		walkAttr(nil, a, add)
	}
	r.Attrs(func(a slog.Attr) bool {
		walkAttr(h.groups, a, add)
		return true
	})

	h.buffer.Write(entry)
	return nil
}

// WithAttrs implements slog.Handler.
func (h *BufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	if len(h.groups) > 0 {
		// Keep the open groups on attrs added inside them.
		grouped := make([]any, len(attrs))
		for i, a := range attrs {
			grouped[i] = a
		}
		attrs = []slog.Attr{nestAttrs(h.groups, grouped)}
	}
	next.attrs = append(slices.Clip(h.attrs), attrs...)
	return &next
}

// WithGroup implements slog.Handler.
func (h *BufferHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(slices.Clip(h.groups), name)
	return &next
}

// nestAttrs wraps args in one group per name, outermost first.
func nestAttrs(groups []string, args []any) slog.Attr {
	attr := slog.Group(groups[len(groups)-1], args...)
	for i := len(groups) - 2; i >= 0; i-- {
		attr = slog.Group(groups[i], attr)
	}
	return attr
}

// levelToString converts slog.Level to a lowercase string.
func levelToString(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

// FormatLogLine formats a LogEntry as a single display line:
//
//	<time> [LEVEL] [module/direction] message key=value ...
func FormatLogLine(entry LogEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s] [%s", entry.Timestamp.Format(time.RFC3339Nano), strings.ToUpper(entry.Level), entry.Module)
	if entry.Direction != "" {
		sb.WriteString("/" + entry.Direction)
	}
	sb.WriteString("] " + entry.Message)

	keys := make([]string, 0, len(entry.Attributes))
	for k := range entry.Attributes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, entry.Attributes[k])
	}
	if entry.Session != "" {
		sb.WriteString(" session=" + entry.Session)
	}
	return sb.String()
}
