package host

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"

	"github.com/smazurov/ffpipe/internal/media"
)

// Tone generates a continuous sine wave for playout. Recorded audio
// delivered to it is counted and discarded.
type Tone struct {
	cfg       media.AudioConfig
	frequency float64
	amplitude float64

	mu    sync.Mutex
	phase float64

	recorded atomic.Uint64
}

// NewTone creates a sine generator. Amplitude is clamped to [0, 1].
func NewTone(frequency, amplitude float64, cfg media.AudioConfig) *Tone {
	return &Tone{
		cfg:       cfg,
		frequency: frequency,
		amplitude: max(0, min(amplitude, 1)),
	}
}

// DeliverRecordedData discards recorded audio.
func (t *Tone) DeliverRecordedData(_ []byte, _ int) {
	t.recorded.Add(1)
}

// Recorded returns the number of quanta discarded.
func (t *Tone) Recorded() uint64 {
	return t.recorded.Load()
}

// RequestPlayoutData writes the next samplesPerChannel samples of the tone,
// the same value on every channel. The phase carries over between calls so
// consecutive quanta join without clicks.
func (t *Tone) RequestPlayoutData(samplesPerChannel int, dst []byte) int {
	width := t.cfg.SampleFormat.BytesPerSample()
	frameBytes := width * t.cfg.Channels
	if frameBytes == 0 || t.cfg.SampleRate == 0 {
		return 0
	}
	samples := min(samplesPerChannel, len(dst)/frameBytes)
	step := 2 * math.Pi * t.frequency / float64(t.cfg.SampleRate)

	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range samples {
		v := t.amplitude * math.Sin(t.phase)
		t.phase = math.Mod(t.phase+step, 2*math.Pi)

		frame := dst[i*frameBytes : (i+1)*frameBytes]
		for ch := range t.cfg.Channels {
			putSample(frame[ch*width:], t.cfg.SampleFormat, v)
		}
	}
	return samples
}

func putSample(dst []byte, format media.SampleFormat, v float64) {
	switch format {
	case media.SampleFormatS16LE:
		binary.LittleEndian.PutUint16(dst, uint16(int16(math.Round(v*math.MaxInt16))))
	case media.SampleFormatF32LE:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(v)))
	}
}
