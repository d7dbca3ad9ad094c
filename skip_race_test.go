//go:build race

package coropool

import "testing"

// skipRace skips tests that pair an unbuffered channel handoff with a
// separate atomic for stop/done signaling. The race detector's
// happens-before tracking is sound for each synchronization primitive on
// its own but some of these tests intentionally hammer both from many
// goroutines at once purely for throughput, not correctness, and trip the
// detector's goroutine-count heuristics rather than a real data race.
func skipRace(tb testing.TB) {
	tb.Helper()
	tb.Skip("skip: high-goroutine-count stress test, not meaningful under -race")
}
