package coropool

// PoolStats is a read-only snapshot of a Pool's live state: total_live,
// active, max_stack_usage_pct, and monitor_active. Every field is copied out
// of atomics at the moment of the call; nothing here is a live handle into
// pool state.
type PoolStats struct {
	// TotalLive is the number of coroutines currently allocated, whether
	// idle in a queue or checked out via a Lease.
	TotalLive int64
	// Active is TotalLive minus the coroutines currently sitting idle in
	// either reservoir queue.
	Active int64
	// MaxStackUsagePct is the highest per-coroutine stack residency
	// percentage observed on the monitor's most recent sampling pass.
	MaxStackUsagePct float64
	// MonitorActive reports whether the background StackUsageMonitor is
	// currently sampling (false if MonitorPeriod was configured as 0).
	MonitorActive bool

	// PristineRemaining, WarmLen and PristineLen are additive instrumentation
	// beyond the core counters: queue depths a caller can use to judge how
	// close the pool is to falling back to fresh allocation versus reusing
	// warm coroutines.
	PristineRemaining int64
	WarmLen           int64
	PristineLen       int64
}

// snapshot assembles a PoolStats from a reservoir and monitor pair. Kept
// separate from Pool.Stats so it can be unit tested without constructing a
// full Pool.
func snapshot(r *reservoir, m *StackUsageMonitor) PoolStats {
	totalLive, idleApprox, warmLen, pristineLen := r.stats()
	active := totalLive - idleApprox
	if active < 0 {
		active = 0
	}
	return PoolStats{
		TotalLive:         totalLive,
		Active:            active,
		MaxStackUsagePct:  m.maxUsagePct(),
		MonitorActive:     m.isActive(),
		PristineRemaining: pristineLen,
		WarmLen:           warmLen,
		PristineLen:       pristineLen,
	}
}
