// Package halgpu adapts a gogpu/wgpu HAL device to the rmg.Device
// interface, so a graph can schedule against any backend the HAL layer
// supports (Vulkan, Metal, DX12, GLES, software, noop).
//
// One hal queue backs every queue kind. HAL queues execute submissions in
// the order they are handed over, which already provides the cross-queue
// ordering the graph expresses through semaphores; semaphores are therefore
// inert markers here. Queue ownership transfers scheduled by the graph
// remain correct, they just cost nothing extra on this backend.
package halgpu

import (
	"fmt"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/rmg"
	"github.com/gogpu/wgpu/hal"
)

// submitValue is the timeline value every submission signals its fence to.
// Fences are fresh per submission and never reused, so one value suffices.
const submitValue = 1

// idleTimeout bounds WaitIdle and ReadBuffer synchronization.
const idleTimeout = 5 * time.Second

// Device implements rmg.Device over a wgpu HAL device and queue.
type Device struct {
	dev   hal.Device
	queue hal.Queue
}

// New wraps a hal device and queue as an rmg.Device.
func New(device hal.Device, queue hal.Queue) *Device {
	return &Device{dev: device, queue: queue}
}

// NewFromProvider builds a Device from a gpucontext device provider, such
// as a gogpu window context, enabling the graph to share the application's
// GPU device. The provider must expose HalDevice() any and HalQueue() any
// returning hal types.
func NewFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("halgpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("halgpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("halgpu: provider HalQueue is not hal.Queue")
	}
	return New(device, queue), nil
}

// HalDevice returns the underlying hal device. The signature follows the
// provider idiom gogpu modules use for device sharing.
func (d *Device) HalDevice() any { return d.dev }

// HalQueue returns the underlying hal queue.
func (d *Device) HalQueue() any { return d.queue }

// === Resource wrappers ===

type halBuffer struct{ b hal.Buffer }

func (w halBuffer) Native() any { return w.b }

type halImage struct{ t hal.Texture }

func (w halImage) Native() any { return w.t }

type halSampler struct{ s hal.Sampler }

func (w halSampler) Native() any { return w.s }

type halFence struct{ f hal.Fence }

func (w halFence) Native() any { return w.f }

// halSemaphore is inert; see the package comment.
type halSemaphore struct{}

func (halSemaphore) Native() any { return nil }

type halCommandBuffer struct{ cb hal.CommandBuffer }

func (w halCommandBuffer) Native() any { return w.cb }

// === Resource creation and destruction ===

// CreateBuffer creates a GPU buffer.
func (d *Device) CreateBuffer(desc *rmg.BufferDesc) (rmg.Buffer, error) {
	b, err := d.dev.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("halgpu: create buffer %q: %w", desc.Label, err)
	}
	return halBuffer{b}, nil
}

// CreateImage creates a 2D GPU texture.
func (d *Device) CreateImage(desc *rmg.ImageDesc) (rmg.Image, error) {
	mips := desc.MipLevels
	if mips == 0 {
		mips = 1
	}
	samples := desc.Samples
	if samples == 0 {
		samples = 1
	}
	depth := desc.Size.Depth
	if depth == 0 {
		depth = 1
	}
	t, err := d.dev.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              desc.Size.Width,
			Height:             desc.Size.Height,
			DepthOrArrayLayers: depth,
		},
		MipLevelCount: mips,
		SampleCount:   samples,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("halgpu: create image %q: %w", desc.Label, err)
	}
	return halImage{t}, nil
}

// CreateSampler creates a sampler.
func (d *Device) CreateSampler(desc *rmg.SamplerDesc) (rmg.Sampler, error) {
	s, err := d.dev.CreateSampler(&hal.SamplerDescriptor{
		Label:        desc.Label,
		AddressModeU: desc.AddressModeU,
		AddressModeV: desc.AddressModeV,
		AddressModeW: desc.AddressModeW,
		MagFilter:    desc.MagFilter,
		MinFilter:    desc.MinFilter,
		MipmapFilter: desc.MipmapFilter,
	})
	if err != nil {
		return nil, fmt.Errorf("halgpu: create sampler %q: %w", desc.Label, err)
	}
	return halSampler{s}, nil
}

// DestroyBuffer releases a buffer created by this device.
func (d *Device) DestroyBuffer(b rmg.Buffer) error {
	hb, ok := b.(halBuffer)
	if !ok {
		return fmt.Errorf("halgpu: foreign buffer %T", b)
	}
	d.dev.DestroyBuffer(hb.b)
	return nil
}

// DestroyImage releases an image created by this device.
func (d *Device) DestroyImage(i rmg.Image) error {
	hi, ok := i.(halImage)
	if !ok {
		return fmt.Errorf("halgpu: foreign image %T", i)
	}
	d.dev.DestroyTexture(hi.t)
	return nil
}

// DestroySampler releases a sampler created by this device.
func (d *Device) DestroySampler(s rmg.Sampler) error {
	hs, ok := s.(halSampler)
	if !ok {
		return fmt.Errorf("halgpu: foreign sampler %T", s)
	}
	d.dev.DestroySampler(hs.s)
	return nil
}

// === Fences and semaphores ===

// CreateFence creates a fence in the unsignaled state.
func (d *Device) CreateFence() (rmg.Fence, error) {
	f, err := d.dev.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("halgpu: create fence: %w", err)
	}
	return halFence{f}, nil
}

// DestroyFence releases a fence.
func (d *Device) DestroyFence(f rmg.Fence) error {
	hf, ok := f.(halFence)
	if !ok {
		return fmt.Errorf("halgpu: foreign fence %T", f)
	}
	d.dev.DestroyFence(hf.f)
	return nil
}

// FencePoll reports without blocking whether the fence has signaled.
func (d *Device) FencePoll(f rmg.Fence) (bool, error) {
	hf, ok := f.(halFence)
	if !ok {
		return false, fmt.Errorf("halgpu: foreign fence %T", f)
	}
	return d.dev.Wait(hf.f, submitValue, 0)
}

// FenceWait blocks until the fence signals or the timeout elapses.
func (d *Device) FenceWait(f rmg.Fence, timeout time.Duration) (bool, error) {
	hf, ok := f.(halFence)
	if !ok {
		return false, fmt.Errorf("halgpu: foreign fence %T", f)
	}
	return d.dev.Wait(hf.f, submitValue, timeout)
}

// CreateSemaphore returns an inert marker. The shared hal queue executes
// submissions in the order they arrive, which is exactly the order the
// graph encodes through its semaphore edges.
func (d *Device) CreateSemaphore() (rmg.Semaphore, error) {
	return halSemaphore{}, nil
}

// DestroySemaphore releases a semaphore.
func (d *Device) DestroySemaphore(s rmg.Semaphore) error {
	if _, ok := s.(halSemaphore); !ok {
		return fmt.Errorf("halgpu: foreign semaphore %T", s)
	}
	return nil
}

// === Recording and submission ===

// BeginRecorder starts a command encoder. The queue kind does not matter
// here since one hal queue serves all kinds.
func (d *Device) BeginRecorder(_ rmg.QueueKind, label string) (rmg.Recorder, error) {
	enc, err := d.dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: label,
	})
	if err != nil {
		return nil, fmt.Errorf("halgpu: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("halgpu: begin encoding: %w", err)
	}
	return &recorder{enc: enc}, nil
}

// FreeCommandBuffer releases a command buffer whose submission completed.
func (d *Device) FreeCommandBuffer(cb rmg.CommandBuffer) error {
	hcb, ok := cb.(halCommandBuffer)
	if !ok {
		return fmt.Errorf("halgpu: foreign command buffer %T", cb)
	}
	d.dev.FreeCommandBuffer(hcb.cb)
	return nil
}

// Submit hands the submission's command buffers to the hal queue. Wait and
// signal semaphores are accepted and ignored; queue order stands in for
// them.
func (d *Device) Submit(_ rmg.QueueKind, sub *rmg.Submit) error {
	cbs := make([]hal.CommandBuffer, len(sub.Commands))
	for i, cb := range sub.Commands {
		hcb, ok := cb.(halCommandBuffer)
		if !ok {
			return fmt.Errorf("halgpu: foreign command buffer %T", cb)
		}
		cbs[i] = hcb.cb
	}
	var fence hal.Fence
	if sub.Fence != nil {
		hf, ok := sub.Fence.(halFence)
		if !ok {
			return fmt.Errorf("halgpu: foreign fence %T", sub.Fence)
		}
		fence = hf.f
	}
	if err := d.queue.Submit(cbs, fence, submitValue); err != nil {
		return fmt.Errorf("halgpu: submit: %w", err)
	}
	return nil
}

// === Host access ===

// WriteBuffer copies host data into a buffer via the queue's staging path.
func (d *Device) WriteBuffer(b rmg.Buffer, offset uint64, data []byte) error {
	hb, ok := b.(halBuffer)
	if !ok {
		return fmt.Errorf("halgpu: foreign buffer %T", b)
	}
	d.queue.WriteBuffer(hb.b, offset, data)
	return nil
}

// ReadBuffer drains the queue, then copies buffer contents back to the
// host. The buffer must have been created with map-read usage.
func (d *Device) ReadBuffer(b rmg.Buffer, offset uint64, size uint64) ([]byte, error) {
	hb, ok := b.(halBuffer)
	if !ok {
		return nil, fmt.Errorf("halgpu: foreign buffer %T", b)
	}
	if err := d.WaitIdle(); err != nil {
		return nil, err
	}
	out := make([]byte, size)
	if err := d.queue.ReadBuffer(hb.b, offset, out); err != nil {
		return nil, fmt.Errorf("halgpu: read buffer: %w", err)
	}
	return out, nil
}

// WaitIdle submits a fence behind all outstanding work and waits for it.
func (d *Device) WaitIdle() error {
	fence, err := d.dev.CreateFence()
	if err != nil {
		return fmt.Errorf("halgpu: create fence: %w", err)
	}
	defer d.dev.DestroyFence(fence)

	if err := d.queue.Submit(nil, fence, submitValue); err != nil {
		return fmt.Errorf("halgpu: submit idle fence: %w", err)
	}
	ok, err := d.dev.Wait(fence, submitValue, idleTimeout)
	if err != nil {
		return fmt.Errorf("halgpu: wait idle: %w", err)
	}
	if !ok {
		return fmt.Errorf("halgpu: wait idle: timeout after %v", idleTimeout)
	}
	return nil
}
