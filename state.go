package rmg

import "strings"

// QueueKind selects which hardware queue family a task or submission runs
// on.
type QueueKind uint8

const (
	// QueueGraphics is the general graphics+compute+transfer queue.
	QueueGraphics QueueKind = iota

	// QueueCompute is an async compute queue.
	QueueCompute

	// QueueTransfer is a dedicated transfer/DMA queue.
	QueueTransfer

	numQueueKinds = 3
)

// String returns a short name for the queue kind.
func (q QueueKind) String() string {
	switch q {
	case QueueGraphics:
		return "graphics"
	case QueueCompute:
		return "compute"
	case QueueTransfer:
		return "transfer"
	default:
		return "unknown"
	}
}

// Access is a bitmask of the memory access kinds a task performs on a
// resource.
type Access uint32

const (
	AccessShaderRead Access = 1 << iota
	AccessShaderWrite
	AccessColorAttachmentRead
	AccessColorAttachmentWrite
	AccessDepthStencilRead
	AccessDepthStencilWrite
	AccessTransferRead
	AccessTransferWrite
	AccessHostRead
	AccessHostWrite
)

// AccessNone declares no memory access. Useful only as a zero value; tasks
// must declare real access for every handle they touch.
const AccessNone Access = 0

const accessWrites = AccessShaderWrite | AccessColorAttachmentWrite |
	AccessDepthStencilWrite | AccessTransferWrite | AccessHostWrite

// HasWrite reports whether the mask includes any write access. Two uses of
// a resource need a barrier between them whenever either side writes.
func (a Access) HasWrite() bool {
	return a&accessWrites != 0
}

// String renders the mask for logs, e.g. "shader-read|shader-write".
func (a Access) String() string {
	if a == 0 {
		return "none"
	}
	names := []struct {
		bit  Access
		name string
	}{
		{AccessShaderRead, "shader-read"},
		{AccessShaderWrite, "shader-write"},
		{AccessColorAttachmentRead, "color-read"},
		{AccessColorAttachmentWrite, "color-write"},
		{AccessDepthStencilRead, "depth-read"},
		{AccessDepthStencilWrite, "depth-write"},
		{AccessTransferRead, "transfer-read"},
		{AccessTransferWrite, "transfer-write"},
		{AccessHostRead, "host-read"},
		{AccessHostWrite, "host-write"},
	}
	var parts []string
	for _, n := range names {
		if a&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Stage is a bitmask of pipeline stages an access happens in.
type Stage uint32

const (
	StageTransfer Stage = 1 << iota
	StageComputeShader
	StageVertexShader
	StageFragmentShader
	StageColorAttachment
	StageDepthStencil
	StageHost
)

// StageNone declares no pipeline stage.
const StageNone Stage = 0

// StageAllCommands covers every stage. Barriers against it are maximally
// conservative.
const StageAllCommands Stage = StageTransfer | StageComputeShader |
	StageVertexShader | StageFragmentShader | StageColorAttachment |
	StageDepthStencil | StageHost

// String renders the mask for logs.
func (s Stage) String() string {
	if s == 0 {
		return "none"
	}
	if s == StageAllCommands {
		return "all-commands"
	}
	names := []struct {
		bit  Stage
		name string
	}{
		{StageTransfer, "transfer"},
		{StageComputeShader, "compute"},
		{StageVertexShader, "vertex"},
		{StageFragmentShader, "fragment"},
		{StageColorAttachment, "color-attachment"},
		{StageDepthStencil, "depth-stencil"},
		{StageHost, "host"},
	}
	var parts []string
	for _, n := range names {
		if s&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Layout is an image memory layout. Buffers and samplers always use
// LayoutUndefined; only images transition between layouts.
type Layout uint8

const (
	// LayoutUndefined is the layout of a freshly created image, and the
	// fixed layout of non-image resources. Transitioning away from it
	// discards contents.
	LayoutUndefined Layout = iota

	// LayoutGeneral permits any access. Storage images use it.
	LayoutGeneral

	// LayoutShaderRead is optimal for sampled reads.
	LayoutShaderRead

	// LayoutColorAttachment is optimal for color attachment writes.
	LayoutColorAttachment

	// LayoutDepthStencilAttachment is optimal for depth/stencil writes.
	LayoutDepthStencilAttachment

	// LayoutTransferSrc is optimal as a transfer source.
	LayoutTransferSrc

	// LayoutTransferDst is optimal as a transfer destination.
	LayoutTransferDst

	// LayoutPresent is required for presentation to a surface.
	LayoutPresent
)

// String returns a short name for the layout.
func (l Layout) String() string {
	switch l {
	case LayoutUndefined:
		return "undefined"
	case LayoutGeneral:
		return "general"
	case LayoutShaderRead:
		return "shader-read"
	case LayoutColorAttachment:
		return "color-attachment"
	case LayoutDepthStencilAttachment:
		return "depth-stencil"
	case LayoutTransferSrc:
		return "transfer-src"
	case LayoutTransferDst:
		return "transfer-dst"
	case LayoutPresent:
		return "present"
	default:
		return "unknown"
	}
}

// State is the complete synchronization state of a resource at one point in
// a frame: its image layout, the access mask touching it, the pipeline
// stages doing so, and the queue kind that owns it.
//
// The scheduler diffs a task's declared State against the resource's
// tracked State to decide whether a barrier, layout transition, or queue
// ownership transfer is needed.
type State struct {
	Layout Layout
	Access Access
	Stage  Stage
	Queue  QueueKind
}

// Equal reports whether two states match exactly.
func (s State) Equal(o State) bool {
	return s == o
}

// String renders the state for logs.
func (s State) String() string {
	return "layout=" + s.Layout.String() +
		" access=" + s.Access.String() +
		" stage=" + s.Stage.String() +
		" queue=" + s.Queue.String()
}
