// Package coropool implements a fixed-executor coroutine pool: a bounded
// reservoir of resumable, guard-paged-stack coroutines that a scheduler
// leases, drives one task at a time, and returns for reuse. It amortizes
// stack allocation across many short-lived tasks with a two-queue
// (pristine/warm) design intended to keep demand-faulted stack pages
// resident for as long as possible under high-churn reuse.
package coropool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ErrPoolClosed is returned by Acquire once Close has been called.
var ErrPoolClosed = errors.New("coropool: pool is closed")

// Pool is a fixed-executor coroutine pool. It is safe for concurrent use by
// any number of goroutines.
type Pool struct {
	cfg       normalized
	alloc     *StackAllocator
	reservoir *reservoir
	monitor   *StackUsageMonitor

	ordinal atomic.Uint64
	closed  atomic.Bool

	registryMu sync.Mutex
	registry   map[*CoroutineHandle]struct{}
}

// New constructs a Pool per cfg, eagerly allocating cfg.InitialSize
// coroutines into the pristine queue before returning. Population happens
// concurrently via golang.org/x/sync/errgroup; the first allocation failure
// aborts the whole construction and every coroutine allocated so far is torn
// down, so New never returns a partially populated pool.
func New(cfg Config) (*Pool, error) {
	n, err := cfg.normalize()
	if err != nil {
		return nil, err
	}

	p := &Pool{
		cfg:       n,
		alloc:     NewStackAllocator(n.stackSize, n.logger),
		reservoir: newReservoir(n.maxSize),
		registry:  make(map[*CoroutineHandle]struct{}, n.initialSize),
	}
	p.monitor = newStackUsageMonitor(n.monitorPeriod, n.logger, p.liveRegions)

	if err := p.populate(n.initialSize); err != nil {
		p.teardownAll()
		return nil, &InitialPopulationError{Err: err}
	}

	p.monitor.start()
	n.logger.Info("coropool: pool started", "initial_size", n.initialSize, "max_size", n.maxSize, "stack_size", n.stackSize)
	return p, nil
}

func (p *Pool) populate(count int) error {
	if count == 0 {
		return nil
	}
	g, _ := errgroup.WithContext(context.Background())
	for i := 0; i < count; i++ {
		g.Go(func() error {
			h, err := p.allocate()
			if err != nil {
				return err
			}
			if !p.reservoir.seed(h) {
				p.forget(h)
				h.destroy()
				return errors.New("coropool: pristine queue rejected seed during population")
			}
			return nil
		})
	}
	return g.Wait()
}

func (p *Pool) allocate() (*CoroutineHandle, error) {
	ordinal := p.ordinal.Add(1)
	h, err := newCoroutineHandle(ordinal, p.alloc, p.cfg.executor)
	if err != nil {
		return nil, err
	}
	p.registryMu.Lock()
	p.registry[h] = struct{}{}
	p.registryMu.Unlock()
	return h, nil
}

func (p *Pool) forget(h *CoroutineHandle) {
	p.registryMu.Lock()
	delete(p.registry, h)
	p.registryMu.Unlock()
}

func (p *Pool) liveRegions() []*stackRegion {
	p.registryMu.Lock()
	defer p.registryMu.Unlock()
	regions := make([]*stackRegion, 0, len(p.registry))
	for h := range p.registry {
		regions = append(regions, h.state.region)
	}
	return regions
}

func (p *Pool) teardownAll() {
	p.registryMu.Lock()
	handles := make([]*CoroutineHandle, 0, len(p.registry))
	for h := range p.registry {
		handles = append(handles, h)
	}
	p.registry = make(map[*CoroutineHandle]struct{})
	p.registryMu.Unlock()

	for _, h := range handles {
		h.destroy()
	}
}

// Lease is a transfer token representing exclusive custody of one suspended
// coroutine, borrowed from a Pool. Every Lease returned by Acquire must
// eventually be handed back via ReturnToPool; forgetting to do so leaks the
// coroutine's stack until the process exits — Go has no destructors, so
// return is always explicit.
type Lease struct {
	pool     *Pool
	handle   *CoroutineHandle
	returned atomic.Bool
}

// Acquire borrows one coroutine from the pool: warm queue first, then
// pristine, then a fresh allocation if both are empty. Fresh allocation is
// never blocked by max_size — only the idle reservoir is capped.
func (p *Pool) Acquire() (*Lease, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}
	if h, ok := p.reservoir.acquire(); ok {
		return &Lease{pool: p, handle: h}, nil
	}
	h, err := p.allocate()
	if err != nil {
		return nil, err
	}
	p.reservoir.totalLive.Add(1)
	p.cfg.logger.Debug("coropool: allocated new coroutine", "ordinal", h.ordinal, "max_size", p.cfg.maxSize)
	return &Lease{pool: p, handle: h}, nil
}

// Resume drives the borrowed coroutine with task, blocking until it yields
// back. Calling Resume after ReturnToPool is a programming error and panics,
// since the Lease no longer has exclusive custody of anything.
func (l *Lease) Resume(task Task) {
	if l.returned.Load() {
		panic("coropool: Resume called on a Lease already returned to the pool")
	}
	l.handle.resume(task)
}

// ReturnToPool hands the coroutine back to the pool: to the warm queue if
// there is room, or destroyed if the idle reservoir is already at capacity.
// Idempotent; a second call is a no-op.
func (l *Lease) ReturnToPool() {
	if !l.returned.CompareAndSwap(false, true) {
		return
	}
	l.pool.release(l.handle)
}

func (p *Pool) release(h *CoroutineHandle) {
	_, idleApprox, _, _ := p.reservoir.stats()
	if idleApprox < int64(p.cfg.maxSize) && p.reservoir.release(h) {
		return
	}
	p.forget(h)
	p.reservoir.discard(h)
}

// RegisterThread has no state to install itself: it exists so a worker
// goroutine can announce itself to the pool before its first Acquire, in
// case future accounting needs a place to attach thread-local state without
// changing every call's signature. Present operation is a no-op, kept as a
// distinct call (rather than folding it away) so a scheduler can register
// all its worker goroutines up front.
func (p *Pool) RegisterThread() {
	// Deliberately empty: per-goroutine state (the coroState lookup used by
	// AccountUsage) is installed by the coroutine body itself via gls.go,
	// not by the calling worker. RegisterThread is retained as a stable,
	// documented entry point for schedulers that want to reserve the
	// option without a breaking API change later.
}

// AccountUsage lets task code self-report how deep its own call stack has
// grown, from anywhere inside the Executor's call chain. Go provides no
// portable way to sample another live goroutine's stack pointer, so genuine
// mid-execution depth data can only come from the coroutine itself opting
// in; calling it from outside a running coroutine's goroutine is a silent
// no-op.
func (p *Pool) AccountUsage() {
	state, ok := currentCoroState()
	if !ok {
		return
	}
	state.accountUsage()
}

// StackSize returns the page-rounded per-coroutine stack size the pool was
// configured with.
func (p *Pool) StackSize() int {
	return p.cfg.stackSize
}

// Stats returns a snapshot of the pool's current counters and the monitor's
// most recent sampling pass.
func (p *Pool) Stats() PoolStats {
	return snapshot(p.reservoir, p.monitor)
}

// Close stops accepting new Acquire calls, stops the background monitor,
// and destroys every coroutine sitting idle in either queue. Coroutines
// still on loan are not destroyed; their stacks stay mapped. It blocks
// until the monitor has stopped or ctx is done, then unmaps the stack of
// every idle coroutine.
func (p *Pool) Close(ctx context.Context) error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	err := p.monitor.stop(ctx)

	for _, h := range p.reservoir.drain() {
		p.forget(h)
		h.destroy()
	}

	p.cfg.logger.Info("coropool: pool closed")
	return err
}
