package events

import "time"

// Event type constants for kelindar/event.
const (
	TypeStreamStateChanged uint32 = iota + 1
	TypeStreamEnded
	TypeFrameDropped
	TypeSpawnFailed
	TypeCallbackPanicked
	TypeConfigReloaded
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// StreamStateChangedEvent is published on every controller state transition.
type StreamStateChangedEvent struct {
	Direction string    `json:"direction" example:"capture" doc:"Stream direction"`
	Session   string    `json:"session" doc:"Session id of the start that owns the transition"`
	OldState  string    `json:"old_state" example:"starting" doc:"Previous state"`
	NewState  string    `json:"new_state" example:"running" doc:"New state"`
	Timestamp time.Time `json:"timestamp" doc:"Transition time"`
}

// Type returns the event type identifier for StreamStateChangedEvent.
func (e StreamStateChangedEvent) Type() uint32 { return TypeStreamStateChanged }

// StreamEndedEvent is published when a worker loop exits on its own,
// because the process reached end-of-stream or stopped accepting input.
// The controller stays Running until stopped explicitly.
type StreamEndedEvent struct {
	Direction string    `json:"direction" example:"record" doc:"Stream direction"`
	Session   string    `json:"session" doc:"Session id"`
	Reason    string    `json:"reason" example:"end of stream" doc:"Why the loop ended"`
	Delivered uint64    `json:"delivered" doc:"Buffers moved before the end"`
	Timestamp time.Time `json:"timestamp" doc:"Time the loop ended"`
}

// Type returns the event type identifier for StreamEndedEvent.
func (e StreamEndedEvent) Type() uint32 { return TypeStreamEnded }

// FrameDroppedEvent is published when a buffer is read but not delivered.
type FrameDroppedEvent struct {
	Direction string    `json:"direction" example:"capture" doc:"Stream direction"`
	Session   string    `json:"session" doc:"Session id"`
	Reason    string    `json:"reason" example:"size_mismatch" doc:"Drop reason"`
	Error     string    `json:"error,omitempty" doc:"Underlying error"`
	Timestamp time.Time `json:"timestamp" doc:"Drop time"`
}

// Type returns the event type identifier for FrameDroppedEvent.
func (e FrameDroppedEvent) Type() uint32 { return TypeFrameDropped }

// SpawnFailedEvent is published when a start fails to create its process.
type SpawnFailedEvent struct {
	Direction string    `json:"direction" example:"playout" doc:"Stream direction"`
	Command   string    `json:"command" doc:"Command that failed"`
	Error     string    `json:"error" doc:"Spawn error"`
	Timestamp time.Time `json:"timestamp" doc:"Failure time"`
}

// Type returns the event type identifier for SpawnFailedEvent.
func (e SpawnFailedEvent) Type() uint32 { return TypeSpawnFailed }

// CallbackPanickedEvent is published when a downstream callback panics.
// The loop recovers and keeps running.
type CallbackPanickedEvent struct {
	Direction string    `json:"direction" example:"capture" doc:"Stream direction"`
	Session   string    `json:"session" doc:"Session id"`
	Panic     string    `json:"panic" doc:"Recovered value"`
	Timestamp time.Time `json:"timestamp" doc:"Panic time"`
}

// Type returns the event type identifier for CallbackPanickedEvent.
func (e CallbackPanickedEvent) Type() uint32 { return TypeCallbackPanicked }

// ConfigReloadedEvent is published after the config file changes on disk.
type ConfigReloadedEvent struct {
	Path      string    `json:"path" doc:"Config file path"`
	Changed   []string  `json:"changed" example:"[\"video\"]" doc:"Sections that changed"`
	Timestamp time.Time `json:"timestamp" doc:"Reload time"`
}

// Type returns the event type identifier for ConfigReloadedEvent.
func (e ConfigReloadedEvent) Type() uint32 { return TypeConfigReloaded }
