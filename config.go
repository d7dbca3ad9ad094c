package coropool

import (
	"fmt"
	"os"
	"time"
)

// Config is the immutable configuration of a Pool, supplied once to New.
//
// The pool never reads configuration from a file or environment; wiring a
// Config from whatever configuration source the surrounding service uses is
// the caller's responsibility.
type Config struct {
	// StackSize is the usable size, in bytes, of every coroutine's stack. It
	// is rounded up to the OS page size during New; the rounded value is
	// what Pool.StackSize reports.
	StackSize int

	// InitialSize is the number of coroutines pre-created at startup and
	// placed in the pristine queue. Must be <= MaxSize.
	InitialSize int

	// MaxSize is the hard ceiling on how many idle coroutines the reservoir
	// retains; it also bounds the warm queue's capacity. It does not bound
	// the number of coroutines concurrently on loan.
	MaxSize int

	// MonitorPeriod is the stack usage monitor's sampling interval. Zero
	// disables the monitor.
	MonitorPeriod time.Duration

	// Executor is the pool-wide function every coroutine invokes with the
	// task value injected on Resume. It is set once and baked into every
	// coroutine body; it must not be nil.
	Executor Executor

	// Logger receives the pool's structured log output. A nil Logger means
	// discard (see NewNopLogger). The pool never configures where logs are
	// sent; supplying and wiring the sink is an external concern.
	Logger Logger
}

// normalized is a validated, page-rounded copy of a Config, safe to read
// without synchronization for the lifetime of the Pool that owns it.
type normalized struct {
	stackSize     int
	initialSize   int
	maxSize       int
	monitorPeriod time.Duration
	executor      Executor
	logger        Logger
}

func (c Config) normalize() (normalized, error) {
	if c.Executor == nil {
		return normalized{}, fmt.Errorf("coropool: Config.Executor must not be nil")
	}
	if c.MaxSize < 1 {
		return normalized{}, fmt.Errorf("coropool: Config.MaxSize must be >= 1, got %d", c.MaxSize)
	}
	if c.InitialSize < 0 {
		return normalized{}, fmt.Errorf("coropool: Config.InitialSize must be >= 0, got %d", c.InitialSize)
	}
	if c.InitialSize > c.MaxSize {
		return normalized{}, fmt.Errorf("coropool: Config.InitialSize (%d) must be <= Config.MaxSize (%d)", c.InitialSize, c.MaxSize)
	}
	if c.MonitorPeriod < 0 {
		return normalized{}, fmt.Errorf("coropool: Config.MonitorPeriod must be >= 0, got %v", c.MonitorPeriod)
	}

	pageSize := os.Getpagesize()
	stackSize := roundUpToPage(c.StackSize, pageSize)
	if stackSize < pageSize {
		stackSize = pageSize
	}

	logger := c.Logger
	if logger == nil {
		logger = NewNopLogger()
	}

	return normalized{
		stackSize:     stackSize,
		initialSize:   c.InitialSize,
		maxSize:       c.MaxSize,
		monitorPeriod: c.MonitorPeriod,
		executor:      c.Executor,
		logger:        logger,
	}, nil
}

func roundUpToPage(size, pageSize int) int {
	if size <= 0 {
		return pageSize
	}
	rem := size % pageSize
	if rem == 0 {
		return size
	}
	return size + (pageSize - rem)
}
