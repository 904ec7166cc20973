package host

import (
	"sync"
	"sync/atomic"
)

// DefaultLoopbackDepth holds 100 ms of 10 ms quanta.
const DefaultLoopbackDepth = 10

type quantum struct {
	data    []byte
	samples int
}

// Loopback plays recorded audio back out. It implements
// capture.AudioTransport for both directions of one AudioDevice.
type Loopback struct {
	mu    sync.Mutex
	queue []quantum // ring of depth slots
	head  int
	count int

	delivered atomic.Uint64
	played    atomic.Uint64
	dropped   atomic.Uint64
	underruns atomic.Uint64
}

// LoopbackStats is a snapshot of loopback counters.
type LoopbackStats struct {
	Queued    int    `json:"queued"`
	Delivered uint64 `json:"delivered"`
	Played    uint64 `json:"played"`
	Dropped   uint64 `json:"dropped"`
	Underruns uint64 `json:"underruns"`
}

// NewLoopback creates a loopback holding up to depth quanta.
func NewLoopback(depth int) *Loopback {
	if depth <= 0 {
		depth = DefaultLoopbackDepth
	}
	return &Loopback{queue: make([]quantum, depth)}
}

// DeliverRecordedData queues a copy of buf, replacing the oldest quantum
// when the queue is full.
func (l *Loopback) DeliverRecordedData(buf []byte, samplesPerChannel int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	depth := len(l.queue)
	if l.count == depth {
		l.head = (l.head + 1) % depth
		l.count--
		l.dropped.Add(1)
	}

	slot := &l.queue[(l.head+l.count)%depth]
	slot.data = append(slot.data[:0], buf...)
	slot.samples = samplesPerChannel
	l.count++
	l.delivered.Add(1)
}

// RequestPlayoutData copies the oldest queued quantum into dst. It returns
// 0 on underrun, leaving the caller to play silence.
func (l *Loopback) RequestPlayoutData(samplesPerChannel int, dst []byte) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count == 0 {
		l.underruns.Add(1)
		return 0
	}

	q := l.queue[l.head]
	l.head = (l.head + 1) % len(l.queue)
	l.count--
	l.played.Add(1)

	n := copy(dst, q.data)
	samples := min(q.samples, samplesPerChannel)
	// Never report more samples than were copied.
	if frameBytes := len(q.data) / max(q.samples, 1); frameBytes > 0 {
		samples = min(samples, n/frameBytes)
	}
	return samples
}

// Stats returns the current counters.
func (l *Loopback) Stats() LoopbackStats {
	l.mu.Lock()
	queued := l.count
	l.mu.Unlock()
	return LoopbackStats{
		Queued:    queued,
		Delivered: l.delivered.Load(),
		Played:    l.played.Load(),
		Dropped:   l.dropped.Load(),
		Underruns: l.underruns.Load(),
	}
}
