package rmg

// BufferBarrier synchronizes one buffer between its tracked state and the
// state a task declared. Src.Queue differing from Dst.Queue makes it half
// of a queue ownership transfer; which half follows from the submission
// that records it.
type BufferBarrier struct {
	Handle Handle
	Buffer Buffer
	Src    State
	Dst    State
}

// IsTransfer reports whether the barrier moves queue ownership.
func (b BufferBarrier) IsTransfer() bool {
	return b.Src.Queue != b.Dst.Queue
}

// ImageBarrier synchronizes one image, including its layout transition.
type ImageBarrier struct {
	Handle Handle
	Image  Image
	Src    State
	Dst    State
}

// IsTransfer reports whether the barrier moves queue ownership.
func (b ImageBarrier) IsTransfer() bool {
	return b.Src.Queue != b.Dst.Queue
}

// BarrierBatch collects every barrier recorded as one synchronization
// command. The scheduler batches all of a task's barriers together rather
// than emitting them one by one.
type BarrierBatch struct {
	Buffers []BufferBarrier
	Images  []ImageBarrier
}

// Empty reports whether the batch contains no barriers.
func (b *BarrierBatch) Empty() bool {
	return len(b.Buffers) == 0 && len(b.Images) == 0
}

// Entry is one task within a submission, preceded by the barrier batch
// that puts its declared resources into the states it asked for.
type Entry struct {
	Task     Task
	Barriers BarrierBatch
}

// Submission is a contiguous run of tasks bound for one queue kind,
// submitted as a single unit with one fence.
type Submission struct {
	Queue   QueueKind
	Entries []Entry

	// Releases holds the source half of queue ownership transfers whose
	// destination lies in a later submission. Recorded after the last
	// entry. A submission may consist of releases alone when the owning
	// queue has no task this frame.
	Releases BarrierBatch

	// WaitOn lists indices of earlier submissions in the plan that must
	// complete on the device timeline before this one starts. The
	// executor turns each edge into a semaphore.
	WaitOn []int

	// Handles lists every resource the submission touches, for fence
	// bookkeeping after submit.
	Handles []Handle
}

// Plan is a frame's compiled schedule: the submissions to make, in order,
// with all synchronization decided.
type Plan struct {
	Submissions []Submission

	// states holds the post-frame resource states, committed to the
	// registry only once every submission has been handed to the device.
	states map[Handle]State
}

// barrierCount sums the barriers across the whole plan. Used by logs.
func (p *Plan) barrierCount() int {
	n := 0
	for i := range p.Submissions {
		s := &p.Submissions[i]
		for j := range s.Entries {
			n += len(s.Entries[j].Barriers.Buffers)
			n += len(s.Entries[j].Barriers.Images)
		}
		n += len(s.Releases.Buffers)
		n += len(s.Releases.Images)
	}
	return n
}
