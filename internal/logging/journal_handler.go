package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// journalIdentifier tags every entry for journalctl -t.
const journalIdentifier = "ffpipe"

// JournalHandler is a slog.Handler that sends records to the systemd
// journal. Attributes become upper-case journal fields, so a stream can be
// followed with journalctl -t ffpipe DIRECTION=record.
type JournalHandler struct {
	level  slog.Leveler
	fields map[string]string // from WithAttrs
	groups []string
}

// NewJournalHandler creates a new journal handler.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level}
}

// Enabled reports whether the handler handles records at the given level.
func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle sends the record to the journal. Failures are echoed to stderr
// since the journal is the only place they could otherwise go.
func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make(map[string]string, len(h.fields)+r.NumAttrs()+1)
	for k, v := range h.fields {
		fields[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		walkAttr(h.groups, a, func(path []string, key string, v slog.Value) {
			fields[journalKey(path, key)] = journalValue(v)
		})
		return true
	})
	fields["SYSLOG_IDENTIFIER"] = journalIdentifier

	if err := journal.Send(r.Message, journalPriority(r.Level), fields); err != nil {
		fmt.Fprintf(os.Stderr, "journal: %v\n", err)
		return err
	}
	return nil
}

// WithAttrs returns a handler that adds attrs, under the open groups, to
// every record.
func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &JournalHandler{level: h.level, groups: h.groups, fields: make(map[string]string, len(h.fields)+len(attrs))}
	for k, v := range h.fields {
		next.fields[k] = v
	}
	for _, a := range attrs {
		walkAttr(h.groups, a, func(path []string, key string, v slog.Value) {
			next.fields[journalKey(path, key)] = journalValue(v)
		})
	}
	return next
}

// WithGroup returns a handler that prefixes record attributes with name.
func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &JournalHandler{level: h.level, fields: h.fields, groups: append(slices.Clip(h.groups), name)}
}

// journalPriority maps slog levels to journal priorities.
func journalPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// journalKey joins groups and key with underscores into a field name.
func journalKey(path []string, key string) string {
	if len(path) > 0 {
		key = strings.Join(path, "_") + "_" + key
	}
	return journalFieldName(key)
}

func journalValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(plainValue(v))
	}
}

// IsJournalAvailable checks if systemd journal is available.
func IsJournalAvailable() bool {
	return journal.Enabled()
}

// journalFieldName maps an attribute key to a valid journal field name:
// upper-case letters, digits and underscores, not starting with one.
func journalFieldName(key string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
	return strings.TrimLeft(name, "_")
}
