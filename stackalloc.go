package coropool

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// StackAllocator produces fixed-size, guard-protected coroutine stacks via
// mmap, and reclaims them via munmap on release.
type StackAllocator struct {
	pageSize  int
	stackSize int // usable size, already page-rounded by Config.normalize

	logger Logger

	mu      sync.Mutex
	regions map[*stackRegion]struct{} // live regions, for accounting/tests only
}

// NewStackAllocator constructs an allocator for stacks of exactly stackSize
// usable bytes (already rounded to a page multiple by the caller).
func NewStackAllocator(stackSize int, logger Logger) *StackAllocator {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &StackAllocator{
		pageSize:  os.Getpagesize(),
		stackSize: stackSize,
		logger:    logger,
		regions:   make(map[*stackRegion]struct{}),
	}
}

// stackRegion is one mmap'd, guard-paged stack. The guard page occupies the
// lowest page of the mapping; usable bytes occupy every page above it. Stacks
// grow toward lower addresses on every architecture this pool supports, so
// the guard page — placed immediately below the usable region — catches
// overflow synchronously.
type stackRegion struct {
	alloc *StackAllocator

	mapping []byte // the full mapping: guard page + usable region
	base    uintptr
	usable  uintptr // address of the lowest usable byte (base + pageSize)
	top     uintptr // address one past the highest usable byte
	size    int     // usable size in bytes

	released atomic32
}

// Allocate produces one guard-paged stack region of the allocator's
// configured size.
func (a *StackAllocator) Allocate() (*stackRegion, error) {
	total := a.pageSize + a.stackSize

	mapping, err := unix.Mmap(-1, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, a.classify(err)
	}

	base := sliceAddr(mapping)
	usable := base + uintptr(a.pageSize)

	// Guard page: no access permitted at all, so both reads and writes past
	// the usable stack fault synchronously.
	if err := unix.Mprotect(mapping[:a.pageSize], unix.PROT_NONE); err != nil {
		_ = unix.Munmap(mapping)
		return nil, a.classify(err)
	}

	r := &stackRegion{
		alloc:   a,
		mapping: mapping,
		base:    base,
		usable:  usable,
		top:     usable + uintptr(a.stackSize),
		size:    a.stackSize,
	}

	a.mu.Lock()
	a.regions[r] = struct{}{}
	a.mu.Unlock()

	return r, nil
}

// classify distinguishes generic OOM from per-process mapping-count
// exhaustion. Both are ENOMEM from mmap's perspective; we disambiguate by
// checking whether the kernel-reported map count limit
// (/proc/sys/vm/max_map_count on Linux) is the more likely culprit. This is
// a best-effort diagnostic classification, not a correctness gate — callers
// only need the two kinds logged distinctly, and otherwise identical.
func (a *StackAllocator) classify(err error) *AllocError {
	kind := AllocOutOfMemory
	if errors.Is(err, syscall.ENOMEM) && mappingLimitLikely() {
		kind = AllocMappingLimit
	}

	ae := &AllocError{Kind: kind, Err: err}
	if kind == AllocMappingLimit {
		a.logger.Error("coropool: stack allocation failed: per-process mapping limit likely exhausted", "err", err)
	} else {
		a.logger.Error("coropool: stack allocation failed: out of memory", "err", err)
	}
	return ae
}

// release unmaps the region. Safe to call more than once.
func (r *stackRegion) release() {
	if !r.released.compareAndSwap(0, 1) {
		return
	}
	r.alloc.mu.Lock()
	delete(r.alloc.regions, r)
	r.alloc.mu.Unlock()

	_ = unix.Munmap(r.mapping)
}

// touchPages writes one byte into each of the first n usable pages,
// guaranteeing the kernel has backed them with real RAM. Go exposes no way
// to observe another goroutine's actual stack depth short of a world-stopping
// runtime.Stack(..., true) dump keyed by goroutine ID, which is far too
// heavyweight to call on every task; accounting.go instead has the
// coroutine's own goroutine measure its stack depth with stackProbe and
// touches that many pages, so that mincore-based residency sampling
// (monitor.go) reflects genuine, kernel-backed page residency rather than a
// fabricated number (documented as an approximation in DESIGN.md).
func (r *stackRegion) touchPages(n int) {
	maxPages := r.size / r.alloc.pageSize
	if n > maxPages {
		n = maxPages
	}
	for i := 0; i < n; i++ {
		off := i * r.alloc.pageSize
		r.mapping[r.alloc.pageSize+off] = 0xC0
	}
}

// madviseIdle advises the kernel that the usable region's pages are not
// needed right now, letting it reclaim their backing RAM immediately. Called
// when a coroutine returns to the reservoir, so an idle pool's RSS actually
// shrinks instead of merely being reported as idle.
func (r *stackRegion) madviseIdle() {
	_ = unix.Madvise(r.mapping[r.alloc.pageSize:], unix.MADV_DONTNEED)
}

func mappingLimitLikely() bool {
	b, err := os.ReadFile("/proc/sys/vm/max_map_count")
	if err != nil {
		return false
	}
	// A cheap heuristic: if the configured per-process ceiling is below
	// 1<<20 (typical distro defaults are ~65530), this process is far more
	// likely to be hitting it than genuinely exhausting host memory.
	var maxMapCount int
	if _, err := fmt.Sscanf(string(b), "%d", &maxMapCount); err != nil {
		return false
	}
	return maxMapCount > 0 && maxMapCount < 1<<20
}
