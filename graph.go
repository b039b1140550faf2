package rmg

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gputypes"
)

// Graph owns a set of GPU resources and runs tasks against them. It
// computes the execution order, inserts the barriers, layout transitions
// and queue ownership transfers the tasks' declarations require, and
// reclaims retired resources once the GPU is done with them.
//
// A Graph is driven from one goroutine; its collector runs on another. The
// registry between them is the only shared state.
type Graph struct {
	mu     sync.Mutex
	dev    Device
	reg    *registry
	sched  *scheduler
	exec   *executor
	gc     *collector
	opts   graphOptions
	closed bool
}

// New creates a Graph over the device.
//
// Example:
//
//	g, err := rmg.New(dev, rmg.WithQueues(rmg.QueueGraphics, rmg.QueueCompute))
//	if err != nil {
//	    return err
//	}
//	defer g.Close()
func New(dev Device, opts ...Option) (*Graph, error) {
	if dev == nil {
		return nil, errors.New("rmg: device must not be nil")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if len(o.queues) == 0 {
		return nil, fmt.Errorf("%w: empty queue set", ErrNoQueue)
	}

	g := &Graph{dev: dev, opts: o}
	g.reg = newRegistry()
	g.sched = &scheduler{reg: g.reg, queues: o.queues, log: g.logger}
	g.exec = newExecutor(dev, g.reg, g.logger)
	g.gc = newCollector(dev, g.reg, &o, g.logger)

	kinds := make([]string, 0, len(o.queues))
	for q := range o.queues {
		kinds = append(kinds, q.String())
	}
	g.logger().Info("rmg: graph created", slog.Any("queues", kinds))
	return g, nil
}

// logger returns the graph's logger: the WithLogger override when set,
// otherwise the package logger. Resolved per call so SetLogger takes
// effect on running graphs.
func (g *Graph) logger() *slog.Logger {
	if g.opts.logger != nil {
		return g.opts.logger
	}
	return Logger()
}

// Device returns the underlying device, for work the graph has no verbs
// for.
func (g *Graph) Device() Device {
	return g.dev
}

// NewBuffer creates a buffer and registers it under a fresh handle. The
// buffer starts unowned; its first use needs no synchronization against
// anything earlier.
func (g *Graph) NewBuffer(desc *BufferDesc) (Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return InvalidHandle, ErrClosed
	}
	if desc.Usage == 0 {
		return InvalidHandle, fmt.Errorf("%w: buffer %q has no usage flags", ErrNoUsage, desc.Label)
	}
	b, err := g.dev.CreateBuffer(desc)
	if err != nil {
		return InvalidHandle, fmt.Errorf("%w: buffer %q: %w", ErrAllocation, desc.Label, err)
	}
	h, err := g.reg.insert(resource{name: desc.Label, kind: ResourceStorageBuffer, buffer: b})
	if err != nil {
		g.dev.DestroyBuffer(b)
		return InvalidHandle, err
	}
	return h, nil
}

// NewImage creates an image and registers it. The handle's type tag
// follows the usage flags: storage binding makes a storage image handle,
// anything else a sampled image handle.
func (g *Graph) NewImage(desc *ImageDesc) (Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return InvalidHandle, ErrClosed
	}
	if desc.Usage == 0 {
		return InvalidHandle, fmt.Errorf("%w: image %q has no usage flags", ErrNoUsage, desc.Label)
	}
	img, err := g.dev.CreateImage(desc)
	if err != nil {
		return InvalidHandle, fmt.Errorf("%w: image %q: %w", ErrAllocation, desc.Label, err)
	}
	kind := ResourceSampledImage
	if desc.Usage&gputypes.TextureUsageStorageBinding != 0 {
		kind = ResourceStorageImage
	}
	h, err := g.reg.insert(resource{name: desc.Label, kind: kind, image: img})
	if err != nil {
		g.dev.DestroyImage(img)
		return InvalidHandle, err
	}
	return h, nil
}

// NewSampler creates a sampler and registers it. Samplers carry no memory
// state; the graph only tracks their lifetime.
func (g *Graph) NewSampler(desc *SamplerDesc) (Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return InvalidHandle, ErrClosed
	}
	s, err := g.dev.CreateSampler(desc)
	if err != nil {
		return InvalidHandle, fmt.Errorf("%w: sampler %q: %w", ErrAllocation, desc.Label, err)
	}
	h, err := g.reg.insert(resource{name: desc.Label, kind: ResourceSampler, sampler: s})
	if err != nil {
		g.dev.DestroySampler(s)
		return InvalidHandle, err
	}
	return h, nil
}

// ImportBuffer registers a caller-owned buffer. The graph synchronizes and
// tracks it like its own, but retiring it only drops the slot; the buffer
// is never destroyed. initial is the state the buffer was left in; the
// zero value declares it uninitialized.
func (g *Graph) ImportBuffer(name string, b Buffer, initial State) (Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return InvalidHandle, ErrClosed
	}
	if b == nil {
		return InvalidHandle, errors.New("rmg: imported buffer must not be nil")
	}
	return g.reg.insert(resource{
		name:     name,
		kind:     ResourceStorageBuffer,
		buffer:   b,
		state:    initial,
		owned:    initial != (State{}),
		imported: true,
	})
}

// ImportImage registers a caller-owned image, typically a swapchain image.
// kind must be ResourceStorageImage or ResourceSampledImage. initial is
// the state the image was left in; the zero value declares it
// uninitialized, so its first use discards contents.
func (g *Graph) ImportImage(name string, img Image, kind ResourceType, initial State) (Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return InvalidHandle, ErrClosed
	}
	if img == nil {
		return InvalidHandle, errors.New("rmg: imported image must not be nil")
	}
	if kind != ResourceStorageImage && kind != ResourceSampledImage {
		return InvalidHandle, fmt.Errorf("rmg: cannot import image as %s", kind)
	}
	return g.reg.insert(resource{
		name:     name,
		kind:     kind,
		image:    img,
		state:    initial,
		owned:    initial != (State{}),
		imported: true,
	})
}

// Buffer resolves a handle to its device buffer, for recording commands
// against it.
func (g *Graph) Buffer(h Handle) (Buffer, error) {
	res, err := g.reg.resolve(h)
	if err != nil {
		return nil, err
	}
	if res.kind != ResourceStorageBuffer {
		return nil, fmt.Errorf("%w: %s is not a buffer", ErrInvalidHandle, h)
	}
	return res.buffer, nil
}

// Image resolves a handle to its device image.
func (g *Graph) Image(h Handle) (Image, error) {
	res, err := g.reg.resolve(h)
	if err != nil {
		return nil, err
	}
	if res.kind != ResourceStorageImage && res.kind != ResourceSampledImage {
		return nil, fmt.Errorf("%w: %s is not an image", ErrInvalidHandle, h)
	}
	return res.image, nil
}

// Sampler resolves a handle to its device sampler.
func (g *Graph) Sampler(h Handle) (Sampler, error) {
	res, err := g.reg.resolve(h)
	if err != nil {
		return nil, err
	}
	if res.kind != ResourceSampler {
		return nil, fmt.Errorf("%w: %s is not a sampler", ErrInvalidHandle, h)
	}
	return res.sampler, nil
}

// Retire hands a resource to the collector. The handle dies immediately;
// the device object is destroyed once the most recent submission using it
// has signaled its fence. Retire blocks only when the collector's queue is
// full.
func (g *Graph) Retire(h Handle) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	item, err := g.reg.retire(h)
	if err != nil {
		return err
	}
	g.gc.enqueue(item)
	return nil
}

// Record starts assembling a frame.
//
// Example:
//
//	err := g.Record().
//	    Add(upload).
//	    Add(simulate).
//	    Add(draw).
//	    Execute()
func (g *Graph) Record() *Recording {
	return &Recording{g: g}
}

// Recording accumulates the tasks of one frame in execution order.
type Recording struct {
	g     *Graph
	tasks []Task
}

// Add appends a task. Tasks run in the order they were added.
func (r *Recording) Add(t Task) *Recording {
	r.tasks = append(r.tasks, t)
	return r
}

// Execute compiles the frame and submits it. On success the registry
// reflects every resource's new state. On failure nothing is committed;
// scheduling errors leave the device untouched, while a submission error
// leaves earlier submissions of the frame running.
func (r *Recording) Execute() error {
	g := r.g
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	if len(r.tasks) == 0 {
		return nil
	}
	plan, err := g.sched.compile(r.tasks)
	if err != nil {
		return err
	}
	if err := g.exec.run(plan); err != nil {
		return err
	}
	g.reg.commit(plan.states)
	return nil
}

// WaitIdle blocks until the device has finished all submitted work, then
// frees the bookkeeping of completed submissions.
func (g *Graph) WaitIdle() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	if err := g.dev.WaitIdle(); err != nil {
		return fmt.Errorf("rmg: wait idle: %w", err)
	}
	return g.exec.drain()
}

// Close waits for outstanding work, hands every remaining resource to the
// collector, and stops it. The device itself stays open; it belongs to the
// caller. Close is idempotent.
func (g *Graph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true

	var firstErr error
	if err := g.dev.WaitIdle(); err != nil {
		firstErr = fmt.Errorf("rmg: wait idle: %w", err)
	}
	if err := g.exec.drain(); err != nil && firstErr == nil {
		firstErr = err
	}
	for _, item := range g.reg.drain() {
		g.gc.enqueue(item)
	}
	g.gc.close()
	g.logger().Info("rmg: graph closed")
	return firstErr
}
