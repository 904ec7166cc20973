package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ffmpegFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "fps",
		Help:      "Current ffmpeg processing FPS",
	}, []string{"direction"})

	ffmpegDroppedFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "dropped_frames_total",
		Help:      "Frames dropped by ffmpeg rate conversion",
	}, []string{"direction"})

	ffmpegDuplicateFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "duplicate_frames_total",
		Help:      "Frames duplicated by ffmpeg rate conversion",
	}, []string{"direction"})

	ffmpegSpeed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "processing_speed",
		Help:      "ffmpeg processing speed multiplier",
	}, []string{"direction"})

	// Latest values, for the status API.
	ffmpegCache   = make(map[string]FFmpegProgress)
	ffmpegCacheMu sync.RWMutex
)

// FFmpegProgress is one ffmpeg -progress report. Fields ffmpeg did not
// report are left at their previous value.
type FFmpegProgress struct {
	FPS             float64 `json:"fps"`
	DroppedFrames   float64 `json:"dropped_frames"`
	DuplicateFrames float64 `json:"duplicate_frames"`
	Speed           float64 `json:"speed"`
}

// SetFFmpegProgress publishes a progress report for a direction.
func SetFFmpegProgress(direction string, p FFmpegProgress) {
	ffmpegFPS.WithLabelValues(direction).Set(p.FPS)
	ffmpegDroppedFrames.WithLabelValues(direction).Set(p.DroppedFrames)
	ffmpegDuplicateFrames.WithLabelValues(direction).Set(p.DuplicateFrames)
	ffmpegSpeed.WithLabelValues(direction).Set(p.Speed)

	ffmpegCacheMu.Lock()
	ffmpegCache[direction] = p
	ffmpegCacheMu.Unlock()
}

// DeleteFFmpegProgress removes all progress metrics for a direction.
func DeleteFFmpegProgress(direction string) {
	ffmpegFPS.DeleteLabelValues(direction)
	ffmpegDroppedFrames.DeleteLabelValues(direction)
	ffmpegDuplicateFrames.DeleteLabelValues(direction)
	ffmpegSpeed.DeleteLabelValues(direction)

	ffmpegCacheMu.Lock()
	delete(ffmpegCache, direction)
	ffmpegCacheMu.Unlock()
}

// GetFFmpegProgress returns the latest report for a direction.
func GetFFmpegProgress(direction string) (FFmpegProgress, bool) {
	ffmpegCacheMu.RLock()
	defer ffmpegCacheMu.RUnlock()
	p, ok := ffmpegCache[direction]
	return p, ok
}
