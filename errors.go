package twheel

import "errors"

var (
	// ErrInvalidTick is returned when the tick span is not positive.
	ErrInvalidTick = errors.New("twheel: tick must be greater than 0")
	// ErrInvalidWheelSize is returned when the slot count is not positive.
	ErrInvalidWheelSize = errors.New("twheel: wheel size must be greater than 0")
	// ErrNilHandler is returned when no expiry handler is supplied.
	ErrNilHandler = errors.New("twheel: handler must not be nil")
	// ErrNilTask is returned when a nil task is scheduled.
	ErrNilTask = errors.New("twheel: task must not be nil")
	// ErrTaskQueued is returned when a task that is already queued is added again.
	ErrTaskQueued = errors.New("twheel: task is already queued")
	// ErrDriverStopped is returned by a Driver after Stop.
	ErrDriverStopped = errors.New("twheel: driver is stopped")
)
