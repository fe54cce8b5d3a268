package twheel

import (
	"time"
)

// default is a 64 ms root level with 64 slots and a 1 ms tick.
const (
	defaultTickMs    = 1
	defaultWheelSize = 64
)

// Options configures a Driver.
type Options struct {
	Handler Handler
	Logger  Logger
	// Clock returns the current time in milliseconds.
	Clock     func() int64
	TickMs    int64
	WheelSize int64
	// MaxTicksPerAdvance bounds the ticks crossed by one advance, 0 means unbounded.
	MaxTicksPerAdvance int
	// PoolSize > 0 dispatches expired tasks on an ants worker pool.
	PoolSize int
	// Async dispatches each expired task on its own goroutine.
	Async bool
}

// NewOptions creates options with defaults.
func NewOptions(opts ...Option) Options {
	var options = Options{
		Handler:   defaultHandler,
		Logger:    defaultLogger,
		Clock:     monotonicClock(),
		TickMs:    defaultTickMs,
		WheelSize: defaultWheelSize,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return options
}

// Option is for setting options.
type Option func(*Options)

// WithHandler sets handler.
func WithHandler(handler Handler) Option {
	return func(o *Options) {
		if handler != nil {
			o.Handler = handler
		}
	}
}

// WithLogger sets logger.
func WithLogger(logger Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithClock sets the millisecond clock that drives the wheel.
func WithClock(clock func() int64) Option {
	return func(o *Options) {
		if clock != nil {
			o.Clock = clock
		}
	}
}

// WithTick sets the tick span, must be at least one millisecond.
// If not, it will be ignored.
func WithTick(d time.Duration) Option {
	return func(o *Options) {
		if ms := d.Milliseconds(); ms > 0 {
			o.TickMs = ms
		}
	}
}

// WithWheelSize sets slots per level, must be greater than 0.
// If not, it will be ignored.
func WithWheelSize(size int64) Option {
	return func(o *Options) {
		if size > 0 {
			o.WheelSize = size
		}
	}
}

// WithMaxTicksPerAdvance caps how many ticks a single advance may cross.
// Time beyond the cap is caught up on later ticks.
func WithMaxTicksPerAdvance(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxTicksPerAdvance = n
		}
	}
}

// WithWorkerPool runs the handler on a goroutine pool of the given size.
func WithWorkerPool(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.PoolSize = size
		}
	}
}

// WithAsyncHandler runs every handler call on a new goroutine.
// Stop waits for those goroutines. Ignored when a worker pool is set.
func WithAsyncHandler() Option {
	return func(o *Options) {
		o.Async = true
	}
}

var defaultHandler = HandlerFunc(func(Task) {})

// monotonicClock reads wall milliseconds once and then follows the
// monotonic clock, so it never steps backwards.
func monotonicClock() func() int64 {
	start := time.Now()
	base := start.UnixMilli()
	return func() int64 {
		return base + time.Since(start).Milliseconds()
	}
}
