package logging

import (
	"sync"
	"time"
)

// LogEntry represents a single log line stored in the ring buffer.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Direction  string         `json:"direction,omitempty"`
	Session    string         `json:"session,omitempty"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Filter selects entries from the ring buffer. Zero fields match everything.
type Filter struct {
	Module    string
	Direction string
	Session   string
	MinLevel  string
	Limit     int // newest entries only
}

func (f Filter) match(e LogEntry) bool {
	if f.Module != "" && e.Module != f.Module {
		return false
	}
	if f.Direction != "" && e.Direction != f.Direction {
		return false
	}
	if f.Session != "" && e.Session != f.Session {
		return false
	}
	if f.MinLevel != "" {
		floor := parseLevel(f.MinLevel)
		lvl := parseLevel(e.Level)
		if floor != nil && lvl != nil && *lvl < *floor {
			return false
		}
	}
	return true
}

// RingBuffer is a thread-safe circular buffer for log entries.
type RingBuffer struct {
	entries []LogEntry
	size    int
	head    int
	count   int
	mu      sync.RWMutex
}

// NewRingBuffer creates a new ring buffer with the specified capacity.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &RingBuffer{
		entries: make([]LogEntry, size),
		size:    size,
	}
}

// Write adds a log entry to the buffer, overwriting the oldest entry if full.
func (rb *RingBuffer) Write(entry LogEntry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.entries[rb.head] = entry
	rb.head = (rb.head + 1) % rb.size

	if rb.count < rb.size {
		rb.count++
	}
}

// ReadAll returns all entries in chronological order.
func (rb *RingBuffer) ReadAll() []LogEntry {
	return rb.Read(Filter{})
}

// Read returns matching entries in chronological order.
func (rb *RingBuffer) Read(f Filter) []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if rb.count == 0 {
		return nil
	}

	// Oldest entry is at head once the buffer has wrapped.
	start := 0
	if rb.count == rb.size {
		start = rb.head
	}

	var result []LogEntry
	for i := 0; i < rb.count; i++ {
		e := rb.entries[(start+i)%rb.size]
		if f.match(e) {
			result = append(result, e)
		}
	}

	if f.Limit > 0 && len(result) > f.Limit {
		result = result[len(result)-f.Limit:]
	}
	return result
}

// Count returns the number of entries in the buffer.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}
