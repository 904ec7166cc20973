package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is logged when Start finds the direction running.
	// It is never returned from Start.
	ErrAlreadyRunning = errors.New("stream already running")

	// ErrNotSupported is returned by device controls the engine cannot offer.
	ErrNotSupported = errors.New("not supported")

	// ErrInvalidConfig is returned for configs that cannot be streamed.
	ErrInvalidConfig = errors.New("invalid stream config")

	// ErrNotInitialized is returned by audio operations before Init.
	ErrNotInitialized = errors.New("audio device not initialized")
)

// Error codes carried by StreamError.
const (
	ErrCodeSpawn          = "SPAWN_FAILED"
	ErrCodeInvalidConfig  = "INVALID_CONFIG"
	ErrCodeRunning        = "STREAM_RUNNING"
	ErrCodeNotInitialized = "NOT_INITIALIZED"
	ErrCodeDeviceNotFound = "DEVICE_NOT_FOUND"
)

// StreamError reports a failed operation on one stream direction.
type StreamError struct {
	Code      string
	Direction string
	Message   string
	Cause     error
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Direction, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s: %s", e.Direction, e.Code, e.Message)
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}

func newStreamError(code, direction, message string, cause error) *StreamError {
	return &StreamError{
		Code:      code,
		Direction: direction,
		Message:   message,
		Cause:     cause,
	}
}
