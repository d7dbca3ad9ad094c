package coropool

// Task is the value a Lease injects into a coroutine on Resume, and that the
// coroutine's body loop hands unchanged to the pool's Executor: the body
// treats the executor as opaque and passes through whatever value it
// receives across the yield boundary. A nil Task is a well-formed
// wake-with-nothing-to-do signal; the body does not invoke the executor for
// it.
type Task any

// Executor is the pool-wide function every coroutine invokes with the Task
// injected on Resume. It is supplied once at pool construction (Config.
// Executor) and baked into every coroutine body as a bare function value
// rather than a per-coroutine closure, so it carries no per-coroutine
// storage.
type Executor func(Task)

// CoroutineHandle is a single, exclusively-owned suspended coroutine: it
// owns a guard-paged stack region and a goroutine perpetually running
// coroutineBody against it. It is moveable (passed by pointer) and must
// never be copied while live.
type CoroutineHandle struct {
	ordinal uint64
	state   *coroState
}

// newCoroutineHandle allocates a stack via alloc, and starts the coroutine's
// body goroutine parked at its initial yield point, awaiting the first
// Resume: a goroutine is spawned, registers itself in goroutine-local
// storage, blocks on the rendezvous channel, then loops running the
// executor until stopped.
func newCoroutineHandle(ordinal uint64, alloc *StackAllocator, executor Executor) (*CoroutineHandle, error) {
	region, err := alloc.Allocate()
	if err != nil {
		return nil, err
	}

	h := &CoroutineHandle{
		ordinal: ordinal,
		state:   newCoroState(region),
	}

	go coroutineBody(h.state, executor)

	return h, nil
}

// coroutineBody is the fixed body every coroutine runs: it perpetually pulls
// a task, invokes executor if non-nil, and yields back. It never returns
// during normal operation; it exits only when the coroState is stopped, via
// a plain return once coroState.yield reports the stop flag.
func coroutineBody(state *coroState, executor Executor) {
	g := getg()
	glsStore(g, state)
	defer func() {
		state.done.Store(true)
		close(state.next)
		glsClear(g)
	}()

	// Block until the first Resume.
	<-state.next
	if state.stop.Load() {
		return
	}

	for {
		if state.task != nil {
			state.beginTask()
			executor(state.task)
			state.accountUsage()
		}
		task, ok := state.yield()
		if !ok {
			return
		}
		state.task = task
	}
}

// resume drives the coroutine with task, blocking until it yields again.
func (h *CoroutineHandle) resume(task Task) bool {
	return h.state.resume(task)
}

// stop marks the coroutine to unwind at its next yield point and wakes it.
// Idempotent.
func (h *CoroutineHandle) stop() {
	h.state.requestStop()
	// Wake a coroutine parked at yield so it observes the stop flag and
	// unwinds instead of waiting for a task that will never come.
	if !h.state.done.Load() {
		h.state.resume(nil)
	}
}

// destroy stops the coroutine (if still live) and unmaps its stack. Safe to
// call on an already-destroyed handle.
func (h *CoroutineHandle) destroy() {
	h.stop()
	h.state.region.release()
}

// idle returns the coroutine to a resting state ahead of being placed back
// in the reservoir's warm queue.
func (h *CoroutineHandle) idle() {
	h.state.idle()
}

// currentCoroState looks up the coroState bound to the calling goroutine, if
// any. Used by Pool.AccountUsage to let task code self-report its stack
// depth without threading a handle through every call.
func currentCoroState() (*coroState, bool) {
	v := glsLoad(getg())
	if v == nil {
		return nil, false
	}
	state, ok := v.(*coroState)
	return state, ok
}
