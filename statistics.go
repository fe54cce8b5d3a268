package twheel

import "sync/atomic"

// Statistics is a snapshot of a Driver's counters.
type Statistics struct {
	added   int64
	removed int64
	fired   int64
	pending int64
}

// Added returns how many tasks were accepted by Add.
func (s Statistics) Added() int64 {
	return s.added
}

// Removed returns how many tasks were cancelled by Remove.
func (s Statistics) Removed() int64 {
	return s.removed
}

// Fired returns how many tasks were handed to the handler.
func (s Statistics) Fired() int64 {
	return s.fired
}

// Pending returns how many tasks were queued when the snapshot was taken.
func (s Statistics) Pending() int64 {
	return s.pending
}

// counters are updated with atomic operations.
type counters struct {
	added   int64
	removed int64
	fired   int64
}

func (c *counters) snapshot(pending int64) Statistics {
	return Statistics{
		added:   atomic.LoadInt64(&c.added),
		removed: atomic.LoadInt64(&c.removed),
		fired:   atomic.LoadInt64(&c.fired),
		pending: pending,
	}
}
