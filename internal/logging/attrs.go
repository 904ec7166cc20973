package logging

import (
	"log/slog"
	"slices"
	"time"
)

// Keys lifted out of the attributes into LogEntry fields.
const (
	moduleKey    = "module"
	directionKey = "direction"
	sessionKey   = "session"
)

// walkAttr calls leaf for every non-group value under a. path holds the
// enclosing group names.
func walkAttr(path []string, a slog.Attr, leaf func(path []string, key string, v slog.Value)) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() != slog.KindGroup {
		leaf(path, a.Key, a.Value)
		return
	}
	inner := path
	if a.Key != "" {
		inner = append(slices.Clone(path), a.Key)
	}
	for _, ga := range a.Value.Group() {
		walkAttr(inner, ga, leaf)
	}
}

// plainValue converts v to a JSON-friendly value. Times, durations and
// errors become strings.
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
	}
	return v.Any()
}
