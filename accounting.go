package coropool

// beginTask records a stack-probe baseline on the coroutine's own goroutine,
// immediately before executor runs a task. accountUsage later measures
// depth relative to this baseline.
func (c *coroState) beginTask() {
	c.probeBase = stackProbe()
}

// accountUsage measures how far the coroutine's goroutine stack has grown
// since beginTask and touches the corresponding number of pages in its real
// stack region, so StackUsageMonitor's mincore sampling reflects genuine,
// kernel-backed residency.
//
// Go gives no portable way to inspect another live goroutine's stack
// pointer from outside that goroutine, so this can only measure what the
// currently-running goroutine reports about itself. coroutineBody calls it
// once automatically right after executor returns (a shallow, post-return
// sample); Pool.AccountUsage lets task code opt in to calling it from
// wherever in its own call chain it wants a deeper, mid-execution sample.
// Both are no-ops if called from a goroutine that isn't a coroutine body
// (probeBase would be its zero value, giving a non-positive depth).
func (c *coroState) accountUsage() {
	region := c.region
	if region == nil || c.probeBase == 0 {
		return
	}
	current := stackProbe()
	if current > c.probeBase {
		// Grew in the "wrong" direction from this probe's perspective
		// (can happen across a stack copy by the Go runtime); ignore.
		return
	}
	depth := int(c.probeBase - current)
	pages := depth/region.alloc.pageSize + 1
	region.touchPages(pages)
}

// idle advises the kernel that the region's pages are no longer needed. It
// runs every time a coroutine returns to the reservoir, so an idle pool's
// RSS actually shrinks; the next task's accountUsage call faults pages back
// in as needed.
func (c *coroState) idle() {
	if c.region != nil {
		c.region.madviseIdle()
	}
}
