package capture

// arena owns the single I/O buffer of a running stream. It is allocated at
// Start, reused by every cycle and released at Stop.
type arena struct {
	buf []byte
}

// alloc replaces the buffer with a zeroed one of exactly n bytes.
func (a *arena) alloc(n int) []byte {
	a.buf = make([]byte, n)
	return a.buf
}

func (a *arena) free() {
	a.buf = nil
}

// Cap returns the buffer size, or 0 when no stream is running.
func (a *arena) Cap() int {
	return len(a.buf)
}
