//go:build !race

package coropool

import "testing"

func skipRace(tb testing.TB) {
	tb.Helper()
}
