package rmg

import (
	"fmt"
	"log/slog"
	"slices"
)

// buildSub accumulates one submission while the schedule is assembled.
// Wait edges hold pointers rather than indices because release-only
// submissions are moved to the plan front after the walk, which shifts
// every index.
type buildSub struct {
	queue    QueueKind
	entries  []Entry
	releases BarrierBatch

	waits map[*buildSub]struct{}

	handleSet  map[Handle]struct{}
	handleList []Handle
}

func newBuildSub(q QueueKind) *buildSub {
	return &buildSub{
		queue:     q,
		waits:     make(map[*buildSub]struct{}),
		handleSet: make(map[Handle]struct{}),
	}
}

// touch records the resource for post-submit fence bookkeeping.
func (b *buildSub) touch(h Handle) {
	if _, ok := b.handleSet[h]; ok {
		return
	}
	b.handleSet[h] = struct{}{}
	b.handleList = append(b.handleList, h)
}

// scheduler compiles a frame's task list into a Plan. It works against a
// shadow copy of the registry's states, so an aborted frame leaves the
// registry untouched.
type scheduler struct {
	reg    *registry
	queues queueSet
	log    func() *slog.Logger
}

func (s *scheduler) compile(tasks []Task) (*Plan, error) {
	shadow := make(map[Handle]State)
	owned := make(map[Handle]bool)
	payload := make(map[Handle]resource)

	var subs []*buildSub
	var headers []*buildSub

	// lastOnQueue tracks the newest submission per queue kind; release
	// halves of ownership transfers are appended to its tail.
	lastOnQueue := make(map[QueueKind]*buildSub)
	var cur *buildSub

	for _, t := range tasks {
		name := taskName(t)
		q, err := s.queues.resolve(t.Queue())
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", name, err)
		}
		usages := t.Usages()
		if len(usages) == 0 {
			return nil, fmt.Errorf("%w: task %q", ErrNoUsage, name)
		}

		if cur == nil || cur.queue != q {
			cur = newBuildSub(q)
			subs = append(subs, cur)
			lastOnQueue[q] = cur
		}

		// Collapse duplicate declarations; two different states for the
		// same handle within one task cannot both hold.
		targets := make(map[Handle]State, len(usages))
		order := make([]Handle, 0, len(usages))
		for _, u := range usages {
			target := u.State
			target.Queue = q
			if prev, ok := targets[u.Handle]; ok {
				if prev != target {
					return nil, fmt.Errorf("%w: task %q declares %s as [%s] and [%s]",
						ErrDeclarationConflict, name, u.Handle, prev, target)
				}
				continue
			}
			targets[u.Handle] = target
			order = append(order, u.Handle)
		}

		var batch BarrierBatch
		for _, h := range order {
			target := targets[h]

			current, seen := shadow[h]
			isOwned := owned[h]
			if !seen {
				res, err := s.reg.resolve(h)
				if err != nil {
					return nil, fmt.Errorf("task %q: %w", name, err)
				}
				payload[h] = res
				current, isOwned = res.state, res.owned
			}
			cur.touch(h)

			// Samplers carry no memory state, so a valid handle is all a
			// declaration needs.
			if h.Type() == ResourceSampler {
				continue
			}

			src := current
			if !isOwned {
				// First use: the resource has no owner and undefined
				// contents. No queue transfer, and image contents are
				// discarded by the transition.
				src = State{Layout: LayoutUndefined, Queue: q}
			} else if src.Queue != q {
				// Ownership transfer. The release half goes to the tail
				// of the owning queue's newest submission; if that queue
				// has none this frame, a release-only submission is
				// synthesized at the plan front.
				srcSub := lastOnQueue[src.Queue]
				if srcSub == nil {
					srcSub = newBuildSub(src.Queue)
					headers = append(headers, srcSub)
					lastOnQueue[src.Queue] = srcSub
				}
				appendBarrier(&srcSub.releases, h, payload[h], src, target)
				srcSub.touch(h)
				cur.waits[srcSub] = struct{}{}
				s.log().Debug("rmg: queue ownership transfer",
					slog.String("resource", h.String()),
					slog.String("from", src.Queue.String()),
					slog.String("to", q.String()),
					slog.String("task", name))
			}

			if src != target || src.Access.HasWrite() || target.Access.HasWrite() {
				appendBarrier(&batch, h, payload[h], src, target)
			}

			shadow[h] = target
			owned[h] = true
		}

		cur.entries = append(cur.entries, Entry{Task: t, Barriers: batch})
	}

	// Release-only submissions go first: their semaphore edges always
	// point forward, and the ownership they hand over predates the frame.
	final := make([]*buildSub, 0, len(headers)+len(subs))
	final = append(final, headers...)
	final = append(final, subs...)

	index := make(map[*buildSub]int, len(final))
	for i, b := range final {
		index[b] = i
	}

	plan := &Plan{
		Submissions: make([]Submission, len(final)),
		states:      shadow,
	}
	for i, b := range final {
		waits := make([]int, 0, len(b.waits))
		for w := range b.waits {
			waits = append(waits, index[w])
		}
		slices.Sort(waits)
		plan.Submissions[i] = Submission{
			Queue:    b.queue,
			Entries:  b.entries,
			Releases: b.releases,
			WaitOn:   waits,
			Handles:  b.handleList,
		}
	}

	s.log().Debug("rmg: frame compiled",
		slog.Int("tasks", len(tasks)),
		slog.Int("submissions", len(plan.Submissions)),
		slog.Int("barriers", plan.barrierCount()))
	return plan, nil
}

// appendBarrier adds the right barrier flavor for the handle's type. Both
// halves of an ownership transfer carry identical Src and Dst.
func appendBarrier(batch *BarrierBatch, h Handle, res resource, src, dst State) {
	switch h.Type() {
	case ResourceStorageImage, ResourceSampledImage:
		batch.Images = append(batch.Images, ImageBarrier{
			Handle: h, Image: res.image, Src: src, Dst: dst,
		})
	default:
		batch.Buffers = append(batch.Buffers, BufferBarrier{
			Handle: h, Buffer: res.buffer, Src: src, Dst: dst,
		})
	}
}
