package rmg

import (
	"fmt"
	"log/slog"
	"time"
)

// drainTimeout bounds a single fence wait while draining. Anything slower
// than this is a hung device, not a busy one.
const drainTimeout = 10 * time.Second

// edge identifies one cross-queue dependency between two submissions of a
// plan. Each edge gets its own semaphore: signaled once, waited once.
type edge struct {
	from, to int
}

// executor turns a compiled Plan into device submissions. Submissions are
// handed to the device in plan order; cross-queue ordering rides on the
// semaphores the plan's wait edges call for.
type executor struct {
	dev    Device
	reg    *registry
	tracks map[QueueKind]*track
	log    func() *slog.Logger
}

func newExecutor(dev Device, reg *registry, log func() *slog.Logger) *executor {
	return &executor{
		dev:    dev,
		reg:    reg,
		tracks: make(map[QueueKind]*track),
		log:    log,
	}
}

// run records and submits every submission in the plan. Any failure aborts
// the frame and is returned as is; nothing is retried, and submissions
// already handed to the device stay submitted.
func (e *executor) run(plan *Plan) error {
	e.reapTracks()

	// Outgoing edges per submission, so each one knows which semaphores to
	// signal at submit time.
	out := make([][]int, len(plan.Submissions))
	for j := range plan.Submissions {
		for _, i := range plan.Submissions[j].WaitOn {
			out[i] = append(out[i], j)
		}
	}
	sems := make(map[edge]Semaphore)

	for i := range plan.Submissions {
		sub := &plan.Submissions[i]
		label := fmt.Sprintf("rmg/%s/%d", sub.Queue, i)
		if err := e.submit(sub, i, label, out[i], sems); err != nil {
			return err
		}
	}
	return nil
}

func (e *executor) submit(sub *Submission, index int, label string, outgoing []int, sems map[edge]Semaphore) error {
	rec, err := e.dev.BeginRecorder(sub.Queue, label)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceSubmission, err)
	}

	for j := range sub.Entries {
		entry := &sub.Entries[j]
		if !entry.Barriers.Empty() {
			if err := rec.Barrier(&entry.Barriers); err != nil {
				rec.Discard()
				return fmt.Errorf("%w: %w", ErrDeviceSubmission, err)
			}
		}
		if err := entry.Task.Record(rec); err != nil {
			rec.Discard()
			return fmt.Errorf("rmg: task %q: %w", taskName(entry.Task), err)
		}
	}
	if !sub.Releases.Empty() {
		if err := rec.Barrier(&sub.Releases); err != nil {
			rec.Discard()
			return fmt.Errorf("%w: %w", ErrDeviceSubmission, err)
		}
	}

	cmd, err := rec.End()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceSubmission, err)
	}

	fence, err := e.dev.CreateFence()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceSubmission, err)
	}

	// Semaphores for edges out of this submission are created here, at the
	// signaling end; waiting submissions pick them up later in the walk.
	signals := make([]Semaphore, 0, len(outgoing))
	for _, to := range outgoing {
		s, err := e.dev.CreateSemaphore()
		if err != nil {
			e.dev.DestroyFence(fence)
			return fmt.Errorf("%w: %w", ErrDeviceSubmission, err)
		}
		sems[edge{from: index, to: to}] = s
		signals = append(signals, s)
	}

	waits := make([]Semaphore, 0, len(sub.WaitOn))
	incoming := make([]Semaphore, 0, len(sub.WaitOn))
	for _, from := range sub.WaitOn {
		s := sems[edge{from: from, to: index}]
		waits = append(waits, s)
		incoming = append(incoming, s)
	}

	err = e.dev.Submit(sub.Queue, &Submit{
		Commands: []CommandBuffer{cmd},
		Waits:    waits,
		Signals:  signals,
		Fence:    fence,
	})
	if err != nil {
		e.dev.DestroyFence(fence)
		return fmt.Errorf("%w: %w", ErrDeviceSubmission, err)
	}

	g := newGuard(fence)
	for _, old := range e.reg.markGuard(sub.Handles, g) {
		old.release(e.dev, e.log())
	}

	t := e.tracks[sub.Queue]
	if t == nil {
		t = &track{queue: sub.Queue}
		e.tracks[sub.Queue] = t
	}
	t.push(execution{label: label, guard: g, cmd: cmd, sems: incoming})

	e.log().Debug("rmg: submitted",
		slog.String("submission", label),
		slog.Int("tasks", len(sub.Entries)),
		slog.Int("waits", len(waits)),
		slog.Int("signals", len(signals)))
	return nil
}

// reapTracks frees the bookkeeping of completed submissions on every
// queue.
func (e *executor) reapTracks() {
	for _, t := range e.tracks {
		t.reap(e.dev, e.log())
	}
}

// drain blocks until all in-flight submissions complete.
func (e *executor) drain() error {
	var firstErr error
	for _, t := range e.tracks {
		if err := t.drain(e.dev, e.log(), drainTimeout); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
