package coropool

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestStackUsageMonitorDisabledWhenPeriodZero(t *testing.T) {
	m := newStackUsageMonitor(0, nil, func() []*stackRegion { return nil })
	m.start()

	if m.isActive() {
		t.Error("monitor should never become active with a zero period")
	}
	if err := m.stop(context.Background()); err != nil {
		t.Errorf("stop on a never-started monitor: %v", err)
	}
}

func TestStackUsageMonitorSamplesResidency(t *testing.T) {
	page := os.Getpagesize()
	alloc := NewStackAllocator(page*4, nil)
	region, err := alloc.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	defer region.release()

	region.touchPages(1) // touch 1 of 4 pages: ~25% resident

	m := newStackUsageMonitor(10*time.Millisecond, nil, func() []*stackRegion {
		return []*stackRegion{region}
	})
	m.start()
	defer m.stop(context.Background())

	deadline := time.After(time.Second)
	for {
		if pct := m.maxUsagePct(); pct > 0 {
			if pct < 20 || pct > 30 {
				t.Errorf("maxUsagePct = %.1f, want roughly 25", pct)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("monitor never reported a non-zero residency sample")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStackUsageMonitorStopIsIdempotent(t *testing.T) {
	m := newStackUsageMonitor(5*time.Millisecond, nil, func() []*stackRegion { return nil })
	m.start()

	ctx := context.Background()
	if err := m.stop(ctx); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := m.stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestStackUsageMonitorStopReturnsBeforeDeadline(t *testing.T) {
	// Happy path only: with a running monitor, stop returns nil well before
	// the context's deadline. The ctx-expiry branch of stop is not exercised.
	m := newStackUsageMonitor(time.Millisecond, nil, func() []*stackRegion { return nil })
	m.start()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := m.stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
