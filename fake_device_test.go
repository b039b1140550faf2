package rmg

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// Test Doubles
// =============================================================================

// fakeDevice is a scripted Device. By default every operation succeeds and
// fences signal as soon as their submission is made; tests override the
// func fields to inject failures and set manualFences to control fence
// completion themselves.
type fakeDevice struct {
	mu sync.Mutex

	createBufferFunc   func(*BufferDesc) (Buffer, error)
	createImageFunc    func(*ImageDesc) (Image, error)
	createSamplerFunc  func(*SamplerDesc) (Sampler, error)
	destroyBufferFunc  func(Buffer) error
	destroyImageFunc   func(Image) error
	destroySamplerFunc func(Sampler) error
	submitFunc         func(QueueKind, *Submit) error

	// manualFences keeps fences unsignaled until the test calls signal
	// on them; the default signals each fence at submit.
	manualFences bool

	// discardSubmissions skips the submission and fence records, for
	// benchmarks that run frames by the million.
	discardSubmissions bool

	// Track calls for verification
	buffersCreated     int32
	buffersDestroyed   int32
	imagesCreated      int32
	imagesDestroyed    int32
	samplersCreated    int32
	samplersDestroyed  int32
	fencesCreated      int32
	fencesDestroyed    int32
	semsCreated        int32
	semsDestroyed      int32
	commandsFreed      int32

	subs   []fakeSubmission
	fences []*fakeFence
}

// fakeSubmission is the record of one Submit call.
type fakeSubmission struct {
	queue   QueueKind
	label   string
	batches []BarrierBatch
	copies  []fakeCopy
	waits   []Semaphore
	signals []Semaphore
	fence   *fakeFence
}

type fakeCopy struct {
	kind     string
	src, dst any
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{}
}

// submissions returns a snapshot of everything submitted so far.
func (d *fakeDevice) submissions() []fakeSubmission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]fakeSubmission(nil), d.subs...)
}

func (d *fakeDevice) CreateBuffer(desc *BufferDesc) (Buffer, error) {
	atomic.AddInt32(&d.buffersCreated, 1)
	if d.createBufferFunc != nil {
		return d.createBufferFunc(desc)
	}
	return &fakeBuffer{label: desc.Label, data: make([]byte, desc.Size)}, nil
}

func (d *fakeDevice) CreateImage(desc *ImageDesc) (Image, error) {
	atomic.AddInt32(&d.imagesCreated, 1)
	if d.createImageFunc != nil {
		return d.createImageFunc(desc)
	}
	return &fakeImage{label: desc.Label, size: desc.Size}, nil
}

func (d *fakeDevice) CreateSampler(desc *SamplerDesc) (Sampler, error) {
	atomic.AddInt32(&d.samplersCreated, 1)
	if d.createSamplerFunc != nil {
		return d.createSamplerFunc(desc)
	}
	return &fakeSampler{label: desc.Label}, nil
}

func (d *fakeDevice) DestroyBuffer(b Buffer) error {
	atomic.AddInt32(&d.buffersDestroyed, 1)
	if d.destroyBufferFunc != nil {
		return d.destroyBufferFunc(b)
	}
	b.(*fakeBuffer).destroyed.Store(true)
	return nil
}

func (d *fakeDevice) DestroyImage(i Image) error {
	atomic.AddInt32(&d.imagesDestroyed, 1)
	if d.destroyImageFunc != nil {
		return d.destroyImageFunc(i)
	}
	i.(*fakeImage).destroyed.Store(true)
	return nil
}

func (d *fakeDevice) DestroySampler(s Sampler) error {
	atomic.AddInt32(&d.samplersDestroyed, 1)
	if d.destroySamplerFunc != nil {
		return d.destroySamplerFunc(s)
	}
	s.(*fakeSampler).destroyed.Store(true)
	return nil
}

func (d *fakeDevice) CreateFence() (Fence, error) {
	atomic.AddInt32(&d.fencesCreated, 1)
	f := &fakeFence{}
	if !d.discardSubmissions {
		d.mu.Lock()
		d.fences = append(d.fences, f)
		d.mu.Unlock()
	}
	return f, nil
}

func (d *fakeDevice) DestroyFence(f Fence) error {
	atomic.AddInt32(&d.fencesDestroyed, 1)
	f.(*fakeFence).destroyed.Store(true)
	return nil
}

func (d *fakeDevice) FencePoll(f Fence) (bool, error) {
	ff := f.(*fakeFence)
	if ff.destroyed.Load() {
		return false, errors.New("fake: poll of destroyed fence")
	}
	return ff.signaled.Load(), nil
}

func (d *fakeDevice) FenceWait(f Fence, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		done, err := d.FencePoll(f)
		if done || err != nil {
			return done, err
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		time.Sleep(time.Millisecond)
	}
}

func (d *fakeDevice) CreateSemaphore() (Semaphore, error) {
	atomic.AddInt32(&d.semsCreated, 1)
	return &fakeSemaphore{}, nil
}

func (d *fakeDevice) DestroySemaphore(s Semaphore) error {
	atomic.AddInt32(&d.semsDestroyed, 1)
	s.(*fakeSemaphore).destroyed.Store(true)
	return nil
}

func (d *fakeDevice) BeginRecorder(queue QueueKind, label string) (Recorder, error) {
	return &fakeRecorder{queue: queue, label: label}, nil
}

func (d *fakeDevice) FreeCommandBuffer(cb CommandBuffer) error {
	atomic.AddInt32(&d.commandsFreed, 1)
	return nil
}

func (d *fakeDevice) Submit(queue QueueKind, sub *Submit) error {
	if d.submitFunc != nil {
		if err := d.submitFunc(queue, sub); err != nil {
			return err
		}
	}
	if len(sub.Commands) != 1 {
		return fmt.Errorf("fake: expected 1 command buffer, got %d", len(sub.Commands))
	}
	cmd := sub.Commands[0].(*fakeCommandBuffer)
	fence := sub.Fence.(*fakeFence)
	if !d.discardSubmissions {
		d.mu.Lock()
		d.subs = append(d.subs, fakeSubmission{
			queue:   queue,
			label:   cmd.label,
			batches: cmd.batches,
			copies:  cmd.copies,
			waits:   append([]Semaphore(nil), sub.Waits...),
			signals: append([]Semaphore(nil), sub.Signals...),
			fence:   fence,
		})
		d.mu.Unlock()
	}
	if !d.manualFences {
		fence.signal()
	}
	return nil
}

func (d *fakeDevice) WriteBuffer(b Buffer, offset uint64, data []byte) error {
	fb := b.(*fakeBuffer)
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if need := offset + uint64(len(data)); uint64(len(fb.data)) < need {
		fb.data = append(fb.data, make([]byte, need-uint64(len(fb.data)))...)
	}
	copy(fb.data[offset:], data)
	return nil
}

func (d *fakeDevice) ReadBuffer(b Buffer, offset uint64, size uint64) ([]byte, error) {
	fb := b.(*fakeBuffer)
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if offset+size > uint64(len(fb.data)) {
		return nil, fmt.Errorf("fake: read past end of buffer %q", fb.label)
	}
	out := make([]byte, size)
	copy(out, fb.data[offset:offset+size])
	return out, nil
}

// WaitIdle signals every fence: an idle device has no unfinished work.
func (d *fakeDevice) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, f := range d.fences {
		f.signaled.Store(true)
	}
	return nil
}

type fakeBuffer struct {
	label     string
	mu        sync.Mutex
	data      []byte
	destroyed atomic.Bool
}

func (b *fakeBuffer) Native() any { return b }

type fakeImage struct {
	label     string
	size      Extent3D
	destroyed atomic.Bool
}

func (i *fakeImage) Native() any { return i }

type fakeSampler struct {
	label     string
	destroyed atomic.Bool
}

func (s *fakeSampler) Native() any { return s }

type fakeFence struct {
	signaled  atomic.Bool
	destroyed atomic.Bool
}

func (f *fakeFence) Native() any { return f }

func (f *fakeFence) signal() { f.signaled.Store(true) }

type fakeSemaphore struct {
	destroyed atomic.Bool
}

func (s *fakeSemaphore) Native() any { return s }

// fakeRecorder records barrier batches and copies for later inspection.
type fakeRecorder struct {
	queue   QueueKind
	label   string
	batches []BarrierBatch
	copies  []fakeCopy
}

func (r *fakeRecorder) Barrier(b *BarrierBatch) error {
	r.batches = append(r.batches, BarrierBatch{
		Buffers: append([]BufferBarrier(nil), b.Buffers...),
		Images:  append([]ImageBarrier(nil), b.Images...),
	})
	return nil
}

func (r *fakeRecorder) CopyBufferToBuffer(src, dst Buffer, regions []BufferCopy) error {
	r.copies = append(r.copies, fakeCopy{kind: "b2b", src: src, dst: dst})
	return nil
}

func (r *fakeRecorder) CopyBufferToImage(src Buffer, dst Image, regions []BufferImageCopy) error {
	r.copies = append(r.copies, fakeCopy{kind: "b2i", src: src, dst: dst})
	return nil
}

func (r *fakeRecorder) CopyImageToBuffer(src Image, dst Buffer, regions []BufferImageCopy) error {
	r.copies = append(r.copies, fakeCopy{kind: "i2b", src: src, dst: dst})
	return nil
}

func (r *fakeRecorder) End() (CommandBuffer, error) {
	return &fakeCommandBuffer{label: r.label, batches: r.batches, copies: r.copies}, nil
}

func (r *fakeRecorder) Discard() {}

func (r *fakeRecorder) Native() any { return r }

type fakeCommandBuffer struct {
	label   string
	batches []BarrierBatch
	copies  []fakeCopy
}

func (c *fakeCommandBuffer) Native() any { return c }

// testTask is a minimal task assembled from literals.
type testTask struct {
	name   string
	queue  QueueKind
	usages []Usage
	record func(Recorder) error
}

func (t *testTask) Usages() []Usage { return t.usages }

func (t *testTask) Queue() QueueKind { return t.queue }

func (t *testTask) Record(r Recorder) error {
	if t.record != nil {
		return t.record(r)
	}
	return nil
}

func (t *testTask) Name() string { return t.name }

// waitFor polls cond until it holds or the deadline passes. The collector
// runs on its own goroutine, so observable effects arrive asynchronously.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// newTestGraph builds a Graph over a fresh fakeDevice and registers
// cleanup.
func newTestGraph(t testing.TB, opts ...Option) (*Graph, *fakeDevice) {
	t.Helper()
	dev := newFakeDevice()
	g, err := New(dev, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { g.Close() })
	return g, dev
}
