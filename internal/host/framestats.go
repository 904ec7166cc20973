package host

import (
	"sync"
	"time"

	"github.com/smazurov/ffpipe/internal/media"
)

// FrameStats is a video sink that records what it receives: frame count,
// sequence gaps, measured rate and the mean luma of the last frame.
type FrameStats struct {
	mu       sync.Mutex
	frames   uint64
	gaps     uint64
	lastSeq  uint64
	first    time.Time
	last     time.Time
	width    int
	height   int
	meanLuma float64
}

// FrameSnapshot is a point-in-time view of a FrameStats.
type FrameSnapshot struct {
	Frames       uint64    `json:"frames"`
	Gaps         uint64    `json:"gaps"`
	LastSequence uint64    `json:"last_sequence"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	FPS          float64   `json:"fps"`
	MeanLuma     float64   `json:"mean_luma"`
	LastFrame    time.Time `json:"last_frame,omitzero"`
}

// NewFrameStats creates an empty sink.
func NewFrameStats() *FrameStats {
	return &FrameStats{}
}

// OnFrame records one frame.
func (s *FrameStats) OnFrame(f *media.Frame) {
	var sum uint64
	for _, y := range f.Y {
		sum += uint64(y)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frames > 0 && f.Sequence > s.lastSeq+1 {
		s.gaps += f.Sequence - s.lastSeq - 1
	}
	if s.frames == 0 {
		s.first = f.Timestamp
	}
	s.frames++
	s.lastSeq = f.Sequence
	s.last = f.Timestamp
	s.width, s.height = f.Width, f.Height
	if len(f.Y) > 0 {
		s.meanLuma = float64(sum) / float64(len(f.Y))
	}
}

// Snapshot returns the current statistics. FPS is averaged over every
// frame seen so far.
func (s *FrameStats) Snapshot() FrameSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := FrameSnapshot{
		Frames:       s.frames,
		Gaps:         s.gaps,
		LastSequence: s.lastSeq,
		Width:        s.width,
		Height:       s.height,
		MeanLuma:     s.meanLuma,
		LastFrame:    s.last,
	}
	if span := s.last.Sub(s.first); s.frames > 1 && span > 0 {
		snap.FPS = float64(s.frames-1) / span.Seconds()
	}
	return snap
}

// Reset clears all statistics, for a new capture session.
func (s *FrameStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames, s.gaps, s.lastSeq = 0, 0, 0
	s.first, s.last = time.Time{}, time.Time{}
	s.width, s.height = 0, 0
	s.meanLuma = 0
}
