// Package cadence drives fixed-period work loops.
//
// A Loop runs one step per period and sleeps for whatever is left of the
// period after the step. A step that overruns its period shortens the next
// sleep to zero; it is never followed by a burst of catch-up steps.
//
// Each sleep is measured from the start of its own cycle, so intervals stay
// within [Period, Period+ε] where ε is the scheduler's wake-up lateness.
// That lateness is not paid back: over N cycles the schedule trails the
// ideal one by up to N·ε. Consumers that need a long-run rate pace
// themselves on the pipe.
//
//	loop := cadence.New(media.Quantum)
//	loop.Run(running.Load, func() bool {
//	    return readAndDeliver()
//	})
package cadence

import (
	"time"

	"github.com/smazurov/ffpipe/internal/media"
)

// AudioQuantum is the audio period regardless of sample rate.
const AudioQuantum = media.Quantum

// Loop paces a step function at a fixed period.
type Loop struct {
	// Period is the target time between steps.
	Period time.Duration

	// Now and Sleep default to time.Now and time.Sleep.
	Now   func() time.Time
	Sleep func(time.Duration)

	// OnOverrun is called when a cycle takes longer than Period (optional).
	OnOverrun func(elapsed time.Duration)
}

// Stats summarizes one Run.
type Stats struct {
	Iterations uint64 // loop cycles, including cycles that skipped the step
	Steps      uint64 // step invocations
	Overruns   uint64 // cycles that took at least one Period
}

// New creates a Loop using the wall clock.
func New(period time.Duration) *Loop {
	return &Loop{
		Period: period,
		Now:    time.Now,
		Sleep:  time.Sleep,
	}
}

// FramePeriod returns the period for a frame rate. Non-positive rates
// yield zero, which makes Run step back to back.
func FramePeriod(fps int) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Second / time.Duration(fps)
}

// Run calls step once per period until running reports false or step
// returns false. A step only runs if at least one Period has passed since
// the previous step started, or if it is the first step.
func (l *Loop) Run(running func() bool, step func() bool) Stats {
	now := l.Now
	if now == nil {
		now = time.Now
	}
	sleep := l.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var stats Stats
	var last time.Time
	first := true

	for running() {
		stats.Iterations++
		start := now()

		if first || start.Sub(last) >= l.Period {
			first = false
			last = start
			stats.Steps++
			if !step() {
				return stats
			}
		}

		elapsed := now().Sub(start)
		if elapsed < l.Period {
			sleep(l.Period - elapsed)
			continue
		}

		if l.Period > 0 {
			stats.Overruns++
			if l.OnOverrun != nil {
				l.OnOverrun(elapsed)
			}
		}
	}

	return stats
}
