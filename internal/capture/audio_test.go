package capture

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/ffpipe/internal/catalog"
	"github.com/smazurov/ffpipe/internal/events"
	"github.com/smazurov/ffpipe/internal/media"
)

// 48 kHz stereo s16le: 480 samples, 1920 bytes per quantum.
const quantumBytes = 1920

// recordingTransport keeps copies of recorded quanta and answers playout
// requests with a fixed byte value.
type recordingTransport struct {
	mu       sync.Mutex
	recorded [][]byte
	samples  []int

	fill        byte
	provide     int // samples returned per request, -1 for all
	panicRecord bool
}

func (r *recordingTransport) DeliverRecordedData(buf []byte, samples int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded = append(r.recorded, bytes.Clone(buf))
	r.samples = append(r.samples, samples)
	if r.panicRecord && len(r.recorded) == 1 {
		panic("transport failure")
	}
}

func (r *recordingTransport) RequestPlayoutData(samples int, dst []byte) int {
	n := samples
	if r.provide >= 0 {
		n = r.provide
	}
	for i := range dst[:n*4] {
		dst[i] = r.fill
	}
	return n
}

func (r *recordingTransport) quanta() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recorded
}

func newTestAudio(t *testing.T, bus *events.Bus) *AudioDevice {
	t.Helper()
	d := NewAudioDevice(testOptions(bus))
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(d.Terminate)
	return d
}

func TestAudioStartRequiresInit(t *testing.T) {
	d := NewAudioDevice(testOptions(nil))
	if d.Initialized() {
		t.Fatal("new device should not be initialized")
	}
	if err := d.StartRecording("sleep 5"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("StartRecording before Init = %v", err)
	}
	if err := d.StartPlayout("sleep 5"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("StartPlayout before Init = %v", err)
	}

	d.Init()
	if !d.Initialized() {
		t.Error("Init did not initialize")
	}
	d.Terminate()
	if d.Initialized() {
		t.Error("Terminate did not uninitialize")
	}
}

func TestAudioDeviceInfo(t *testing.T) {
	d := newTestAudio(t, nil)

	if d.RecordingDevices() != 1 || d.PlayoutDevices() != 1 {
		t.Errorf("devices: record %d playout %d", d.RecordingDevices(), d.PlayoutDevices())
	}
	name, guid, err := d.RecordingDeviceName(0)
	if err != nil || name != catalog.DefaultRecordingDevice || guid == "" {
		t.Errorf("RecordingDeviceName(0) = %q, %q, %v", name, guid, err)
	}
	name, _, err = d.PlayoutDeviceName(0)
	if err != nil || name != catalog.DefaultPlayoutDevice {
		t.Errorf("PlayoutDeviceName(0) = %q, %v", name, err)
	}
	if _, _, err := d.PlayoutDeviceName(1); !errors.Is(err, catalog.ErrDeviceNotFound) {
		t.Errorf("PlayoutDeviceName(1) = %v", err)
	}
	if d.RecordingConfig() != media.DefaultAudioConfig || d.PlayoutConfig() != media.DefaultAudioConfig {
		t.Error("default configs not taken from the catalog")
	}
}

func TestAudioUnsupportedControls(t *testing.T) {
	d := newTestAudio(t, nil)

	if _, err := d.SpeakerVolume(); !errors.Is(err, ErrNotSupported) {
		t.Error("SpeakerVolume should be unsupported")
	}
	if err := d.SetMicrophoneVolume(10); !errors.Is(err, ErrNotSupported) {
		t.Error("SetMicrophoneVolume should be unsupported")
	}
	if _, err := d.MicrophoneMute(); !errors.Is(err, ErrNotSupported) {
		t.Error("MicrophoneMute should be unsupported")
	}
	if err := d.SetSpeakerMute(true); !errors.Is(err, ErrNotSupported) {
		t.Error("SetSpeakerMute should be unsupported")
	}
	if !d.StereoPlayoutAvailable() || !d.StereoRecordingAvailable() {
		t.Error("stereo should always be available")
	}
	if d.PlayoutDelay() != 0 {
		t.Errorf("PlayoutDelay = %v", d.PlayoutDelay())
	}
}

func TestInitRecordingRejectedWhileRunning(t *testing.T) {
	d := newTestAudio(t, nil)
	mono := media.AudioConfig{SampleRate: 16000, Channels: 1, SampleFormat: media.SampleFormatS16LE}

	if err := d.InitRecording(mono); err != nil {
		t.Fatalf("InitRecording while idle: %v", err)
	}
	if d.RecordingConfig() != mono {
		t.Errorf("RecordingConfig = %v", d.RecordingConfig())
	}

	if err := d.StartRecording("sleep 5"); err != nil {
		t.Fatal(err)
	}
	if got := d.RecordingBufferSize(); got != 320 {
		t.Errorf("RecordingBufferSize = %d, want 320", got)
	}
	err := d.InitRecording(media.DefaultAudioConfig)
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("InitRecording while running = %v", err)
	}
	if d.RecordingConfig() != mono {
		t.Error("config changed while running")
	}

	if err := d.InitPlayout(media.AudioConfig{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("InitPlayout(invalid) = %v", err)
	}
}

func TestRecordStartIdempotent(t *testing.T) {
	d := newTestAudio(t, nil)
	if err := d.StartRecording("sleep 5"); err != nil {
		t.Fatal(err)
	}
	pid := d.RecordingStatus().PID
	if err := d.StartRecording("sleep 5"); err != nil {
		t.Fatal(err)
	}
	if d.RecordingStatus().PID != pid {
		t.Error("second StartRecording spawned a new process")
	}
	if !d.Recording() || d.Playing() {
		t.Errorf("Recording %v Playing %v", d.Recording(), d.Playing())
	}
	if d.RecordingBufferSize() != quantumBytes {
		t.Errorf("RecordingBufferSize = %d", d.RecordingBufferSize())
	}

	d.StopRecording()
	if d.Recording() || d.RecordingBufferSize() != 0 {
		t.Error("recording still active after StopRecording")
	}
}

func TestRecordStartAfterRequestStop(t *testing.T) {
	d := newTestAudio(t, nil)
	if err := d.StartRecording("sleep 5"); err != nil {
		t.Fatal(err)
	}
	first := d.RecordingStatus().Session

	d.RequestStopRecording()
	if err := d.StartRecording("sleep 5"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	st := d.RecordingStatus()
	if st.Session == first {
		t.Error("StartRecording after RequestStopRecording kept the stopping session")
	}
	if !d.Recording() {
		t.Errorf("state = %s, want running", st.State)
	}
}

func TestRecordDeliversQuanta(t *testing.T) {
	bus := events.New()
	ended := waitEnded(t, bus)
	d := newTestAudio(t, bus)
	tr := &recordingTransport{}
	d.AttachTransport(tr)

	if err := d.StartRecording("head -c 3840 /dev/zero"); err != nil {
		t.Fatal(err)
	}
	e := ended()

	q := tr.quanta()
	if len(q) != 2 {
		t.Fatalf("expected 2 quanta, got %d", len(q))
	}
	for i, buf := range q {
		if len(buf) != quantumBytes || tr.samples[i] != 480 {
			t.Errorf("quantum %d: %d bytes, %d samples", i, len(buf), tr.samples[i])
		}
	}
	if e.Direction != "record" || e.Delivered != 2 {
		t.Errorf("unexpected ended event: %+v", e)
	}
}

func TestRecordPartialQuantumPadded(t *testing.T) {
	bus := events.New()
	ended := waitEnded(t, bus)
	d := newTestAudio(t, bus)
	tr := &recordingTransport{}
	d.AttachTransport(tr)

	if err := d.StartRecording(`printf abcd`); err != nil {
		t.Fatal(err)
	}
	ended()

	q := tr.quanta()
	if len(q) != 1 {
		t.Fatalf("expected 1 padded quantum, got %d", len(q))
	}
	want := make([]byte, quantumBytes)
	copy(want, "abcd")
	if !bytes.Equal(q[0], want) {
		t.Errorf("partial quantum not zero padded: % x", q[0][:8])
	}
}

func TestRecordZeroReadDeliversNothing(t *testing.T) {
	bus := events.New()
	ended := waitEnded(t, bus)
	d := newTestAudio(t, bus)
	tr := &recordingTransport{}
	d.AttachTransport(tr)

	if err := d.StartRecording("true"); err != nil {
		t.Fatal(err)
	}
	e := ended()
	if len(tr.quanta()) != 0 || e.Delivered != 0 {
		t.Errorf("expected no deliveries, got %d", len(tr.quanta()))
	}
	if d.RecordingStatus().Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", d.RecordingStatus().Dropped)
	}
}

func TestRecordTransportPanicRecovered(t *testing.T) {
	bus := events.New()
	ended := waitEnded(t, bus)
	d := newTestAudio(t, bus)
	tr := &recordingTransport{panicRecord: true}
	d.AttachTransport(tr)

	if err := d.StartRecording("head -c 5760 /dev/zero"); err != nil {
		t.Fatal(err)
	}
	e := ended()
	if len(tr.quanta()) != 3 {
		t.Errorf("transport saw %d quanta, want 3", len(tr.quanta()))
	}
	if e.Delivered != 2 {
		t.Errorf("Delivered = %d, want 2", e.Delivered)
	}
}

func TestPlayoutWritesQuanta(t *testing.T) {
	d := newTestAudio(t, nil)
	d.AttachTransport(&recordingTransport{fill: 0x01, provide: -1})

	out := filepath.Join(t.TempDir(), "playout.raw")
	if err := d.StartPlayout(`sh -c "cat > ` + out + `"`); err != nil {
		t.Fatal(err)
	}
	eventually(t, 3*time.Second, func() bool { return d.PlayoutStatus().Delivered >= 3 })
	if d.PlayoutBufferSize() != quantumBytes {
		t.Errorf("PlayoutBufferSize = %d", d.PlayoutBufferSize())
	}
	d.StopPlayout()

	delivered := d.PlayoutStatus().Delivered
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if uint64(len(data)) != delivered*quantumBytes {
		t.Errorf("wrote %d bytes for %d quanta", len(data), delivered)
	}
	if bytes.Count(data, []byte{0x01}) != len(data) {
		t.Error("playout data does not match the transport")
	}
}

func TestPlayoutProcessExitEndsStream(t *testing.T) {
	bus := events.New()
	ended := waitEnded(t, bus)
	d := newTestAudio(t, bus)

	if err := d.StartPlayout("true"); err != nil {
		t.Fatal(err)
	}
	e := ended()
	if e.Direction != "playout" {
		t.Errorf("Direction = %q", e.Direction)
	}
	if !d.Playing() {
		t.Error("playout should stay running until stopped")
	}
	d.StopPlayout()
	if d.Playing() {
		t.Error("playout still running after StopPlayout")
	}
}

func TestFillPlayout(t *testing.T) {
	tests := []struct {
		name      string
		transport AudioTransport
		wantFill  int // leading bytes equal to 0x01
		wantDrops uint64
	}{
		{"full", &recordingTransport{fill: 0x01, provide: -1}, quantumBytes, 0},
		{"underrun", &recordingTransport{fill: 0x01, provide: 240}, 960, 1},
		{"no transport", nil, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewAudioDevice(testOptions(nil))
			if tt.transport != nil {
				d.AttachTransport(tt.transport)
			}
			buf := bytes.Repeat([]byte{0xff}, quantumBytes)
			d.fillPlayout(buf, 480, 4)

			for i, b := range buf {
				want := byte(0)
				if i < tt.wantFill {
					want = 0x01
				}
				if b != want {
					t.Fatalf("byte %d = %#x, want %#x", i, b, want)
				}
			}
			if got := d.PlayoutStatus().Dropped; got != tt.wantDrops {
				t.Errorf("Dropped = %d, want %d", got, tt.wantDrops)
			}
		})
	}
}

func TestTerminateStopsBothDirections(t *testing.T) {
	d := newTestAudio(t, nil)
	if err := d.StartRecording("sleep 5"); err != nil {
		t.Fatal(err)
	}
	if err := d.StartPlayout("sleep 5"); err != nil {
		t.Fatal(err)
	}
	if d.RecordingStatus().PID == d.PlayoutStatus().PID {
		t.Error("directions must use distinct processes")
	}
	d.Terminate()
	if d.Recording() || d.Playing() {
		t.Error("Terminate left a direction running")
	}
}
