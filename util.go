package coropool

import (
	"sync/atomic"
	"unsafe"
)

// sliceAddr returns the address of a byte slice's backing array. Used only
// to convert an mmap'd region into the integer address arithmetic the guard
// page and depth-probing logic need.
func sliceAddr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

// atomic32 is a minimal CAS-only flag, used where we need exactly one
// transition (e.g. stackRegion.release) and nothing from sync/atomic's
// richer Bool/Int32 wrappers beyond that.
type atomic32 struct {
	v int32
}

func (a *atomic32) compareAndSwap(old, new int32) bool {
	return atomic.CompareAndSwapInt32(&a.v, old, new)
}

// stackProbe returns the address of a goroutine-stack-local variable. It is
// captured once before every non-nil task runs (coroState.beginTask,
// accounting.go) and again,
// relative to it, whenever accountUsage samples depth — the delta between
// the two is used as a real, if approximate, measure of how much of the
// goroutine's stack the current task has used.
//
//go:noinline
func stackProbe() uintptr {
	var local byte
	return uintptr(unsafe.Pointer(&local))
}
