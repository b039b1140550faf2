package rmg

// Usage declares one resource a task touches and the state the task needs
// it in while its commands execute.
//
// Declarations leave State.Queue zero; the scheduler assigns the task's own
// queue, since a task can only use a resource on the queue it runs on.
type Usage struct {
	Handle Handle
	State  State
}

// Task is one unit of GPU work scheduled by a Graph. The graph orders
// tasks, inserts the synchronization their declarations require, and calls
// Record once the recorder is positioned after those barriers.
//
// A task must declare every resource it touches in Usages. Using an
// undeclared resource in Record is not detected and leaves the frame
// unsynchronized.
type Task interface {
	// Usages lists the resources the task touches and the states it
	// needs them in. Declaring the same handle twice with different
	// states aborts the frame.
	Usages() []Usage

	// Queue names the queue kind the task wants to run on. Kinds the
	// device does not provide fall back to a capable one; see WithQueues.
	Queue() QueueKind

	// Record records the task's commands. The recorder already carries
	// the barriers that put every declared resource into its requested
	// state.
	Record(r Recorder) error
}

// Namer is implemented by tasks that want a recognizable name in logs and
// command labels.
type Namer interface {
	Name() string
}

// taskName returns the task's name, or a placeholder if it has none.
func taskName(t Task) string {
	if n, ok := t.(Namer); ok {
		return n.Name()
	}
	return "unnamed task"
}

// readLayout returns the layout a read of the handle's resource type wants.
func readLayout(h Handle) Layout {
	switch h.Type() {
	case ResourceSampledImage:
		return LayoutShaderRead
	case ResourceStorageImage:
		return LayoutGeneral
	default:
		return LayoutUndefined
	}
}

// ShaderRead declares read-only shader access on the given stages, with the
// layout appropriate for the handle's resource type.
func ShaderRead(h Handle, stages Stage) Usage {
	return Usage{Handle: h, State: State{
		Layout: readLayout(h),
		Access: AccessShaderRead,
		Stage:  stages,
	}}
}

// ShaderWrite declares write shader access on the given stages. Images use
// the general layout, the only one that permits storage writes.
func ShaderWrite(h Handle, stages Stage) Usage {
	return Usage{Handle: h, State: State{
		Layout: writeLayout(h),
		Access: AccessShaderWrite,
		Stage:  stages,
	}}
}

// ShaderReadWrite declares combined read/write shader access on the given
// stages.
func ShaderReadWrite(h Handle, stages Stage) Usage {
	return Usage{Handle: h, State: State{
		Layout: writeLayout(h),
		Access: AccessShaderRead | AccessShaderWrite,
		Stage:  stages,
	}}
}

func writeLayout(h Handle) Layout {
	if h.Type() == ResourceStorageImage || h.Type() == ResourceSampledImage {
		return LayoutGeneral
	}
	return LayoutUndefined
}

// TransferSrc declares the resource as the source of a transfer command.
func TransferSrc(h Handle) Usage {
	layout := LayoutUndefined
	if h.Type() == ResourceStorageImage || h.Type() == ResourceSampledImage {
		layout = LayoutTransferSrc
	}
	return Usage{Handle: h, State: State{
		Layout: layout,
		Access: AccessTransferRead,
		Stage:  StageTransfer,
	}}
}

// TransferDst declares the resource as the destination of a transfer
// command.
func TransferDst(h Handle) Usage {
	layout := LayoutUndefined
	if h.Type() == ResourceStorageImage || h.Type() == ResourceSampledImage {
		layout = LayoutTransferDst
	}
	return Usage{Handle: h, State: State{
		Layout: layout,
		Access: AccessTransferWrite,
		Stage:  StageTransfer,
	}}
}

// ColorTarget declares the image as a color attachment being rendered to.
func ColorTarget(h Handle) Usage {
	return Usage{Handle: h, State: State{
		Layout: LayoutColorAttachment,
		Access: AccessColorAttachmentWrite,
		Stage:  StageColorAttachment,
	}}
}

// DepthTarget declares the image as a depth/stencil attachment.
func DepthTarget(h Handle) Usage {
	return Usage{Handle: h, State: State{
		Layout: LayoutDepthStencilAttachment,
		Access: AccessDepthStencilRead | AccessDepthStencilWrite,
		Stage:  StageDepthStencil,
	}}
}
