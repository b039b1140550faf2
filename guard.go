package rmg

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// guard wraps a submission fence shared by everyone who needs to know when
// that submission finished: the execution bookkeeping on its queue's track,
// and every resource whose newest use the submission was. The fence is
// destroyed when the last holder releases its reference, never while
// someone might still poll it.
type guard struct {
	fence Fence
	refs  atomic.Int32
}

// newGuard wraps a fence with a single reference held by the caller.
func newGuard(f Fence) *guard {
	g := &guard{fence: f}
	g.refs.Store(1)
	return g
}

// retain adds a reference and returns the guard for chaining.
func (g *guard) retain() *guard {
	g.refs.Add(1)
	return g
}

// release drops a reference, destroying the fence when the count hits
// zero. Destruction failure is logged; there is no way to retry it.
func (g *guard) release(dev Device, log *slog.Logger) {
	if g.refs.Add(-1) != 0 {
		return
	}
	if err := dev.DestroyFence(g.fence); err != nil {
		log.Warn("rmg: destroy fence failed", slog.Any("error", err))
	}
}

// poll reports without blocking whether the submission has finished.
func (g *guard) poll(dev Device) (bool, error) {
	return dev.FencePoll(g.fence)
}

// wait blocks until the submission finishes or the timeout elapses.
func (g *guard) wait(dev Device, timeout time.Duration) (bool, error) {
	return dev.FenceWait(g.fence, timeout)
}
