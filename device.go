package rmg

import (
	"time"

	"github.com/gogpu/gputypes"
)

// Buffer is an opaque device buffer. Native returns the backend object for
// callers that need to reach past the abstraction, for example to bind the
// buffer in a pipeline the graph does not manage.
type Buffer interface {
	Native() any
}

// Image is an opaque device image.
type Image interface {
	Native() any
}

// Sampler is an opaque device sampler.
type Sampler interface {
	Native() any
}

// Fence is a host-visible completion marker. The executor attaches a fresh
// fence to every submission; the collector polls it to learn when the GPU
// has finished with the submission's resources.
type Fence interface {
	Native() any
}

// Semaphore orders submissions across queues on the device timeline. The
// host never waits on one directly.
type Semaphore interface {
	Native() any
}

// Extent3D is the size of an image in texels.
type Extent3D struct {
	Width  uint32
	Height uint32
	Depth  uint32
}

// BufferDesc describes a buffer to create. Usage flags follow the gputypes
// vocabulary shared with the backend.
type BufferDesc struct {
	Label string
	Size  uint64
	Usage gputypes.BufferUsage
}

// ImageDesc describes an image to create.
type ImageDesc struct {
	Label     string
	Size      Extent3D
	MipLevels uint32
	Samples   uint32
	Format    gputypes.TextureFormat
	Usage     gputypes.TextureUsage
}

// SamplerDesc describes a sampler to create.
type SamplerDesc struct {
	Label        string
	AddressModeU gputypes.AddressMode
	AddressModeV gputypes.AddressMode
	AddressModeW gputypes.AddressMode
	MagFilter    gputypes.FilterMode
	MinFilter    gputypes.FilterMode
	MipmapFilter gputypes.FilterMode
}

// BufferCopy is one region of a buffer-to-buffer copy.
type BufferCopy struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

// DataLayout describes how texel rows are laid out in a buffer taking part
// in a buffer/image copy.
type DataLayout struct {
	Offset       uint64
	BytesPerRow  uint32
	RowsPerImage uint32
}

// BufferImageCopy is one region of a copy between a buffer and an image.
type BufferImageCopy struct {
	Layout   DataLayout
	MipLevel uint32
	Size     Extent3D
}

// CommandBuffer is a recorded, submittable command sequence.
type CommandBuffer interface {
	Native() any
}

// Submit is one queue submission: recorded command buffers plus the
// semaphores ordering it against other queues and the fence that reports
// its completion to the host.
type Submit struct {
	Commands []CommandBuffer

	// Waits are semaphores the queue must wait on before executing.
	Waits []Semaphore

	// Signals are semaphores the queue signals once execution finishes.
	Signals []Semaphore

	// Fence is signaled on the host timeline when execution finishes.
	// Required; every submission gets its own.
	Fence Fence
}

// Recorder records commands for one queue kind. Obtained from
// Device.BeginRecorder, finished with End or abandoned with Discard.
type Recorder interface {
	// Barrier records the batch's layout transitions, memory barriers and
	// queue ownership operations as a single synchronization command.
	Barrier(b *BarrierBatch) error

	// CopyBufferToBuffer copies regions between two buffers.
	CopyBufferToBuffer(src, dst Buffer, regions []BufferCopy) error

	// CopyBufferToImage copies buffer contents into an image.
	CopyBufferToImage(src Buffer, dst Image, regions []BufferImageCopy) error

	// CopyImageToBuffer copies image contents into a buffer.
	CopyImageToBuffer(src Image, dst Buffer, regions []BufferImageCopy) error

	// End finishes recording and returns the command buffer.
	End() (CommandBuffer, error)

	// Discard abandons the recording without producing a command buffer.
	Discard()

	// Native returns the backend encoder so tasks can record commands the
	// graph has no verbs for (draws, dispatches).
	Native() any
}

// Device is the GPU abstraction the graph schedules against. The backend/
// packages provide implementations; tests substitute fakes.
//
// All methods may be called from the goroutine driving the graph; FencePoll
// and destruction methods are additionally called from the collector
// goroutine, so implementations must be safe for that overlap.
type Device interface {
	CreateBuffer(desc *BufferDesc) (Buffer, error)
	CreateImage(desc *ImageDesc) (Image, error)
	CreateSampler(desc *SamplerDesc) (Sampler, error)

	DestroyBuffer(b Buffer) error
	DestroyImage(i Image) error
	DestroySampler(s Sampler) error

	CreateFence() (Fence, error)
	DestroyFence(f Fence) error

	// FencePoll reports without blocking whether the fence has signaled.
	FencePoll(f Fence) (bool, error)

	// FenceWait blocks until the fence signals or the timeout elapses and
	// reports whether it signaled.
	FenceWait(f Fence, timeout time.Duration) (bool, error)

	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(s Semaphore) error

	// BeginRecorder starts recording commands for the given queue kind.
	BeginRecorder(queue QueueKind, label string) (Recorder, error)

	// FreeCommandBuffer releases a command buffer once its submission has
	// completed.
	FreeCommandBuffer(cb CommandBuffer) error

	// Submit hands a submission to the queue of the given kind.
	Submit(queue QueueKind, sub *Submit) error

	// WriteBuffer copies host data into a buffer before the next
	// submission to the queue that uses it.
	WriteBuffer(b Buffer, offset uint64, data []byte) error

	// ReadBuffer copies buffer contents back to the host. Blocks until
	// prior submissions touching the buffer are complete.
	ReadBuffer(b Buffer, offset uint64, size uint64) ([]byte, error)

	// WaitIdle blocks until every queue has drained.
	WaitIdle() error
}
