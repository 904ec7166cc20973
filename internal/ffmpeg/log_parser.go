package ffmpeg

import "strings"

// ParseLogLevel extracts the log level from ffmpeg output.
// With -loglevel level+info ffmpeg prints "[info] message", or
// "[component @ 0x...] [level] message" for component logs. The level is
// stripped; the component prefix is kept. Lines without a level are info.
func ParseLogLevel(line string) (level, msg string) {
	head, rest, ok := cutBracket(line)
	if !ok {
		return "info", line
	}
	if isLogLevel(head) {
		return head, rest
	}

	// [component @ 0x...] [level] message
	if next, tail, ok := cutBracket(rest); ok && isLogLevel(next) {
		return next, line[:len(line)-len(rest)] + tail
	}
	return "info", line
}

// cutBracket splits "[x] rest" into x and rest.
func cutBracket(s string) (inner, rest string, ok bool) {
	if len(s) < 3 || s[0] != '[' {
		return "", s, false
	}
	end := strings.Index(s, "] ")
	if end == -1 {
		return "", s, false
	}
	return s[1:end], s[end+2:], true
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}
