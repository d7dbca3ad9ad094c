package coropool

import (
	"os"
	"testing"
	"time"
)

func newTestHandle(t *testing.T, executor Executor) (*CoroutineHandle, *StackAllocator) {
	t.Helper()
	alloc := NewStackAllocator(os.Getpagesize(), nil)
	h, err := newCoroutineHandle(1, alloc, executor)
	if err != nil {
		t.Fatalf("newCoroutineHandle: %v", err)
	}
	return h, alloc
}

func TestCoroutineHandleResumePassesTask(t *testing.T) {
	seen := make(chan Task, 1)
	h, _ := newTestHandle(t, func(task Task) { seen <- task })
	defer h.destroy()

	if ok := h.resume("hello"); !ok {
		t.Fatal("resume returned false on a live coroutine")
	}

	select {
	case got := <-seen:
		if got != "hello" {
			t.Errorf("executor saw %v, want %q", got, "hello")
		}
	case <-time.After(time.Second):
		t.Fatal("executor was never invoked")
	}
}

func TestCoroutineHandleResumeMultipleTimes(t *testing.T) {
	var got []int
	done := make(chan struct{})
	h, _ := newTestHandle(t, func(task Task) {
		got = append(got, task.(int))
		if len(got) == 3 {
			close(done)
		}
	})
	defer h.destroy()

	for i := 1; i <= 3; i++ {
		if !h.resume(i) {
			t.Fatalf("resume(%d) returned false", i)
		}
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("executor did not observe all three tasks")
	}
	for i, v := range got {
		if v != i+1 {
			t.Errorf("got[%d] = %d, want %d", i, v, i+1)
		}
	}
}

func TestCoroutineHandleNilTaskSkipsExecutor(t *testing.T) {
	invoked := false
	h, _ := newTestHandle(t, func(Task) { invoked = true })
	defer h.destroy()

	if !h.resume(nil) {
		t.Fatal("resume(nil) returned false")
	}
	if invoked {
		t.Error("executor was invoked for a nil task")
	}
}

func TestCoroutineHandleStopIsIdempotent(t *testing.T) {
	h, _ := newTestHandle(t, func(Task) {})
	h.stop()
	h.stop() // must not panic or deadlock

	if h.resume("ignored") {
		t.Error("resume on a stopped coroutine should report false")
	}
}

func TestCoroutineHandleDestroyBeforeFirstResume(t *testing.T) {
	h, _ := newTestHandle(t, func(Task) {})
	h.destroy() // must not panic or deadlock even though it never ran
}

func TestCoroutineHandleDestroyAfterResume(t *testing.T) {
	h, _ := newTestHandle(t, func(Task) {})
	h.resume(1)
	h.destroy()
}
