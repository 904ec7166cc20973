// Package metrics provides Prometheus metrics for stream directions and
// the ffmpeg processes feeding them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ffpipe"

// Drop reasons used as the reason label of FramesDropped.
const (
	DropSizeMismatch = "size_mismatch"
	DropNoCallback   = "no_callback"
	DropNoData       = "no_data"
	DropUnderrun     = "underrun"
)

var (
	buffersDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "buffers_total",
		Help:      "Buffers delivered downstream (capture, record) or written to the process (playout)",
	}, []string{"direction"})

	bytesTransferred = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "bytes_total",
		Help:      "Bytes read from or written to the process pipe",
	}, []string{"direction"})

	framesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "dropped_total",
		Help:      "Buffers read but not delivered, by reason",
	}, []string{"direction", "reason"})

	cadenceOverruns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cadence",
		Name:      "overruns_total",
		Help:      "Cycles whose work took longer than the period",
	}, []string{"direction"})

	cycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "cadence",
		Name:      "cycle_seconds",
		Help:      "Time spent in the read, convert and deliver step",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .02, .04, .08, .16},
	}, []string{"direction"})

	callbackPanics = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "callback_panics_total",
		Help:      "Downstream callbacks that panicked and were recovered",
	}, []string{"direction"})

	spawnFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "process",
		Name:      "spawn_failures_total",
		Help:      "Process spawn failures",
	}, []string{"direction"})

	streamsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "ended_total",
		Help:      "Worker loops that ended on their own",
	}, []string{"direction"})

	streamState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "state",
		Help:      "1 for the current state of each direction, 0 otherwise",
	}, []string{"direction", "state"})
)

// States lists the state label values exported by SetStreamState.
var States = []string{"idle", "starting", "running", "stopping"}

// RecordDelivered counts one buffer of n bytes moved on a direction.
func RecordDelivered(direction string, n int) {
	buffersDelivered.WithLabelValues(direction).Inc()
	bytesTransferred.WithLabelValues(direction).Add(float64(n))
}

// RecordBytes counts bytes moved without a delivery.
func RecordBytes(direction string, n int) {
	bytesTransferred.WithLabelValues(direction).Add(float64(n))
}

// RecordDropped counts a buffer that was not delivered.
func RecordDropped(direction, reason string) {
	framesDropped.WithLabelValues(direction, reason).Inc()
}

// RecordOverrun counts a cadence cycle that exceeded its period.
func RecordOverrun(direction string) {
	cadenceOverruns.WithLabelValues(direction).Inc()
}

// ObserveCycle records how long one step took.
func ObserveCycle(direction string, d time.Duration) {
	cycleDuration.WithLabelValues(direction).Observe(d.Seconds())
}

// RecordCallbackPanic counts a recovered callback panic.
func RecordCallbackPanic(direction string) {
	callbackPanics.WithLabelValues(direction).Inc()
}

// RecordSpawnFailure counts a process that could not be started.
func RecordSpawnFailure(direction string) {
	spawnFailures.WithLabelValues(direction).Inc()
}

// RecordStreamEnded counts a loop that reached end-of-stream.
func RecordStreamEnded(direction string) {
	streamsEnded.WithLabelValues(direction).Inc()
}

// SetStreamState marks state as current for a direction.
func SetStreamState(direction, state string) {
	for _, s := range States {
		v := 0.0
		if s == state {
			v = 1
		}
		streamState.WithLabelValues(direction, s).Set(v)
	}
}
