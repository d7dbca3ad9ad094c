package coropool

// This file, together with getg_amd64.s and getg_arm64.s, implements a
// goroutine-local lookup: getg returns the identity of the calling goroutine
// by reading the runtime's pointer to the current g (the runtime-reserved
// TLS slot on amd64, the dedicated g register on arm64), the same approach
// github.com/timandy/routine and the Go runtime's own assembly use.
//
// It is deliberately narrow: we only need a stable, comparable identity for
// the calling goroutine, never the g struct's fields, so no part of
// runtime.g's layout is mirrored here.

// getg returns an opaque, stable identity for the calling goroutine, valid
// for the goroutine's lifetime.
func getg() uintptr
