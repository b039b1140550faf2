package rmg

import (
	"fmt"
	"log/slog"
	"time"
)

// execution is one submitted command buffer still potentially running on
// the GPU, together with everything that can be destroyed once its fence
// signals. The semaphores here are the incoming ones; an incoming wait
// having been satisfied proves the signaling side is finished with it too.
type execution struct {
	label string
	guard *guard
	cmd   CommandBuffer
	sems  []Semaphore
}

// track is the in-flight window of one queue kind. Submissions on a queue
// complete in submission order, so the window is reaped front to back and
// the first pending fence ends the sweep.
type track struct {
	queue    QueueKind
	inflight []execution
}

// push appends a freshly submitted execution.
func (t *track) push(ex execution) {
	t.inflight = append(t.inflight, ex)
}

// reap destroys the bookkeeping of every execution whose fence has
// signaled. Destruction failures are logged and the objects dropped.
func (t *track) reap(dev Device, log *slog.Logger) {
	n := 0
	for _, ex := range t.inflight {
		done, err := ex.guard.poll(dev)
		if err != nil {
			log.Warn("rmg: fence poll failed",
				slog.String("submission", ex.label),
				slog.Any("error", err))
			break
		}
		if !done {
			break
		}
		ex.destroy(dev, log)
		n++
	}
	if n > 0 {
		t.inflight = append(t.inflight[:0], t.inflight[n:]...)
	}
}

// drain blocks until every in-flight execution completes, then destroys
// their bookkeeping. Returns the first wait error; later executions are
// still attempted.
func (t *track) drain(dev Device, log *slog.Logger, timeout time.Duration) error {
	var firstErr error
	for _, ex := range t.inflight {
		done, err := ex.guard.wait(dev, timeout)
		switch {
		case err != nil:
			if firstErr == nil {
				firstErr = fmt.Errorf("rmg: wait for %s: %w", ex.label, err)
			}
			continue
		case !done:
			if firstErr == nil {
				firstErr = fmt.Errorf("rmg: wait for %s: timed out after %s", ex.label, timeout)
			}
			continue
		}
		ex.destroy(dev, log)
	}
	t.inflight = t.inflight[:0]
	return firstErr
}

// destroy frees the execution's device objects, logging failures rather
// than propagating them.
func (ex *execution) destroy(dev Device, log *slog.Logger) {
	if err := dev.FreeCommandBuffer(ex.cmd); err != nil {
		log.Warn("rmg: free command buffer failed",
			slog.String("submission", ex.label),
			slog.Any("error", err))
	}
	for _, s := range ex.sems {
		if err := dev.DestroySemaphore(s); err != nil {
			log.Warn("rmg: destroy semaphore failed",
				slog.String("submission", ex.label),
				slog.Any("error", err))
		}
	}
	ex.guard.release(dev, log)
}
