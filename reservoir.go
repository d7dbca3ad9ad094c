package coropool

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/lfq"
)

// reservoir is the pool's two-queue coroutine store. The pristine queue is
// filled once, at construction, and only ever drained; the warm queue is the
// steady-state MPMC exchange that Acquire and Release actually bounce off
// during normal operation. Acquire always tries warm first, falling to
// pristine only once warm is empty, so a coroutine that has already paid
// its first-touch cost is preferred over one that hasn't.
//
// Built on code.hybscloud.com/lfq's bounded lock-free queues and
// code.hybscloud.com/atomix's counters; the warm queue is sized to maxSize
// up front and never exceeds the configured ceiling.
type reservoir struct {
	pristine *lfq.MPMC[*CoroutineHandle]
	warm     *lfq.MPMC[*CoroutineHandle]

	totalLive  atomix.Int64
	idleApprox atomix.Int64
}

func newReservoir(maxSize int) *reservoir {
	return &reservoir{
		pristine: lfq.NewMPMC[*CoroutineHandle](maxSize),
		warm:     lfq.NewMPMC[*CoroutineHandle](maxSize),
	}
}

// seed places a freshly allocated, never-yet-acquired handle into the
// pristine queue. Only called during New's initial population.
func (r *reservoir) seed(h *CoroutineHandle) bool {
	if !r.pristine.TryPush(h) {
		return false
	}
	r.totalLive.Add(1)
	r.idleApprox.Add(1)
	return true
}

// acquire removes one handle from the reservoir, preferring warm over
// pristine, and reports whether the reservoir currently held any.
func (r *reservoir) acquire() (*CoroutineHandle, bool) {
	if h, ok := r.warm.TryPop(); ok {
		r.idleApprox.Add(-1)
		return h, true
	}
	if h, ok := r.pristine.TryPop(); ok {
		r.idleApprox.Add(-1)
		return h, true
	}
	return nil, false
}

// release returns a handle to the warm queue, reporting whether it fit.
// Callers are expected to check idle_approx against max_size before calling
// (Pool.release does); a false return means the caller must discard the
// handle itself instead, so registry bookkeeping stays owned by Pool.
func (r *reservoir) release(h *CoroutineHandle) bool {
	h.idle()
	if !r.warm.TryPush(h) {
		return false
	}
	r.idleApprox.Add(1)
	return true
}

// discard removes a handle from circulation entirely (used when a released
// coroutine does not fit back into the idle reservoir).
func (r *reservoir) discard(h *CoroutineHandle) {
	h.destroy()
	r.totalLive.Add(-1)
}

func (r *reservoir) stats() (totalLive, idleApprox, warmLen, pristineLen int64) {
	return r.totalLive.Load(), r.idleApprox.Load(), int64(r.warm.Len()), int64(r.pristine.Len())
}

// drain pops every handle currently sitting in either queue, for Close.
func (r *reservoir) drain() []*CoroutineHandle {
	var handles []*CoroutineHandle
	for {
		h, ok := r.warm.TryPop()
		if !ok {
			break
		}
		handles = append(handles, h)
	}
	for {
		h, ok := r.pristine.TryPop()
		if !ok {
			break
		}
		handles = append(handles, h)
	}
	return handles
}
