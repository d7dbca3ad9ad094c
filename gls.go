package coropool

import "sync"

// glsShards is a sharded goroutine-local map from goroutine identity to the
// *coroState currently bound to it. Sharded by masking the goroutine
// identity to a bucket, rather than one global mutex-guarded map, because
// every coroutine body stores and clears its entry here and every
// AccountUsage call looks one up, and that path needs to stay
// near-lock-free.
const glsShardCount = 64

type glsShard struct {
	mu    sync.Mutex
	state map[uintptr]any
}

var glsShards [glsShardCount]glsShard

func glsShardFor(g uintptr) *glsShard {
	return &glsShards[g%glsShardCount]
}

func glsLoad(g uintptr) any {
	s := glsShardFor(g)
	s.mu.Lock()
	v := s.state[g]
	s.mu.Unlock()
	return v
}

func glsStore(g uintptr, v any) {
	s := glsShardFor(g)
	s.mu.Lock()
	if s.state == nil {
		s.state = make(map[uintptr]any)
	}
	s.state[g] = v
	s.mu.Unlock()
}

func glsClear(g uintptr) {
	s := glsShardFor(g)
	s.mu.Lock()
	delete(s.state, g)
	s.mu.Unlock()
}
