package coropool

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// StackUsageMonitor periodically samples the residency of every live
// coroutine's guard-paged stack region via mincore and publishes the
// highest percentage observed across all of them. It never touches a
// region itself; it only asks the kernel which pages of an already-real
// mapping are resident, which accounting.go's page-touching and
// madviseIdle keep meaningful.
//
// Built as a single dedicated background goroutine gated by a stop channel
// rather than a ticker callback API; monitor_period == 0 disables sampling
// entirely, since monitoring is best-effort and may be turned off.
type StackUsageMonitor struct {
	period  time.Duration
	logger  Logger
	regions func() []*stackRegion

	maxUsageBits atomic.Uint64
	active       atomic.Bool

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newStackUsageMonitor(period time.Duration, logger Logger, regions func() []*stackRegion) *StackUsageMonitor {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &StackUsageMonitor{
		period:  period,
		logger:  logger,
		regions: regions,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// start launches the sampling loop. A zero period leaves the monitor
// permanently inactive.
func (m *StackUsageMonitor) start() {
	if m.period <= 0 {
		close(m.doneCh)
		return
	}
	m.active.Store(true)
	go m.run()
}

func (m *StackUsageMonitor) run() {
	defer close(m.doneCh)
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			m.active.Store(false)
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *StackUsageMonitor) sample() {
	regions := m.regions()
	var maxPct float64
	vec := make([]byte, 0, 64)

	for _, r := range regions {
		usable := r.mapping[r.alloc.pageSize:]
		npages := len(usable) / r.alloc.pageSize
		if npages == 0 {
			continue
		}
		if cap(vec) < npages {
			vec = make([]byte, npages)
		} else {
			vec = vec[:npages]
		}
		if err := unix.Mincore(usable, vec); err != nil {
			m.logger.Warn("coropool: mincore sampling failed", "err", err)
			continue
		}
		resident := 0
		for _, b := range vec {
			if b&1 != 0 {
				resident++
			}
		}
		pct := float64(resident) / float64(npages) * 100
		if pct > maxPct {
			maxPct = pct
		}
	}

	m.maxUsageBits.Store(math.Float64bits(maxPct))
}

// maxUsagePct returns the highest per-region residency percentage observed
// on the most recently completed sampling pass, or 0 before the first pass
// or while disabled.
func (m *StackUsageMonitor) maxUsagePct() float64 {
	return math.Float64frombits(m.maxUsageBits.Load())
}

func (m *StackUsageMonitor) isActive() bool {
	return m.active.Load()
}

// stop asks the sampling loop to exit and waits for it to do so, bounded by
// ctx, so teardown is cancellable within one sleep period.
func (m *StackUsageMonitor) stop(ctx context.Context) error {
	select {
	case <-m.doneCh:
		return nil
	default:
	}
	m.stopOnce.Do(func() { close(m.stopCh) })
	select {
	case <-m.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
