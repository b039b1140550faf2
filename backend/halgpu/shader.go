package halgpu

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/rmg"
	"github.com/gogpu/wgpu/hal"
)

// CompileWGSL compiles WGSL source to SPIR-V words using the naga
// compiler. SPIR-V is little-endian 32-bit words.
func CompileWGSL(source string) ([]uint32, error) {
	spirv, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("halgpu: compile shader: %w", err)
	}
	words := make([]uint32, len(spirv)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirv[i*4:])
	}
	return words, nil
}

// ComputeBinding binds one graph buffer to a storage binding of a compute
// kernel. Write selects read-write storage; otherwise the binding is
// read-only.
type ComputeBinding struct {
	Handle rmg.Handle
	Write  bool
}

// ComputeDesc describes a compute task: a WGSL kernel dispatched over
// graph-managed storage buffers bound at @group(0) in declaration order.
type ComputeDesc struct {
	Name string

	// WGSL is the kernel source, compiled at task creation.
	WGSL string

	// EntryPoint is the kernel entry function. Defaults to "main".
	EntryPoint string

	// Bindings lists the buffers bound at @group(0); Bindings[i] becomes
	// @binding(i).
	Bindings []ComputeBinding

	// Groups are the workgroup counts for the dispatch. Zero components
	// count as one.
	Groups [3]uint32
}

// ComputeTask is a premade rmg.Task dispatching one compute kernel. The
// pipeline and bind group are built once at creation, so the buffers it
// binds must stay alive as long as the task is scheduled; rebuild the task
// after retiring any of them.
type ComputeTask struct {
	dev    *Device
	name   string
	groups [3]uint32
	usages []rmg.Usage

	module     hal.ShaderModule
	bgLayout   hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
	bindGroup  hal.BindGroup
}

// NewComputeTask compiles the kernel and builds its pipeline and bind
// group against the graph's device, which must be a halgpu Device.
func NewComputeTask(g *rmg.Graph, desc *ComputeDesc) (*ComputeTask, error) {
	dev, ok := g.Device().(*Device)
	if !ok {
		return nil, fmt.Errorf("halgpu: graph device is %T, not a halgpu device", g.Device())
	}
	if desc.Name == "" {
		return nil, fmt.Errorf("halgpu: compute task needs a name")
	}
	if len(desc.Bindings) == 0 {
		return nil, fmt.Errorf("halgpu: compute task %q has no bindings", desc.Name)
	}

	words, err := CompileWGSL(desc.WGSL)
	if err != nil {
		return nil, fmt.Errorf("halgpu: compute task %q: %w", desc.Name, err)
	}

	t := &ComputeTask{dev: dev, name: desc.Name, groups: desc.Groups}
	for i := range t.groups {
		if t.groups[i] == 0 {
			t.groups[i] = 1
		}
	}

	t.module, err = dev.dev.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  desc.Name,
		Source: hal.ShaderSource{SPIRV: words},
	})
	if err != nil {
		return nil, fmt.Errorf("halgpu: compute task %q: create shader module: %w", desc.Name, err)
	}

	layoutEntries := make([]gputypes.BindGroupLayoutEntry, len(desc.Bindings))
	bindEntries := make([]gputypes.BindGroupEntry, len(desc.Bindings))
	for i, b := range desc.Bindings {
		bufType := gputypes.BufferBindingTypeReadOnlyStorage
		if b.Write {
			bufType = gputypes.BufferBindingTypeStorage
		}
		layoutEntries[i] = gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: bufType},
		}

		buf, err := g.Buffer(b.Handle)
		if err != nil {
			t.destroyPartial()
			return nil, fmt.Errorf("halgpu: compute task %q: binding %d: %w", desc.Name, i, err)
		}
		hb, ok := buf.Native().(hal.Buffer)
		if !ok {
			t.destroyPartial()
			return nil, fmt.Errorf("halgpu: compute task %q: binding %d is not a hal buffer", desc.Name, i)
		}
		bindEntries[i] = gputypes.BindGroupEntry{
			Binding: uint32(i),
			Resource: gputypes.BufferBinding{
				Buffer: hb.NativeHandle(),
				Offset: 0,
				Size:   0, // 0 = entire buffer
			},
		}

		if b.Write {
			t.usages = append(t.usages, rmg.ShaderReadWrite(b.Handle, rmg.StageComputeShader))
		} else {
			t.usages = append(t.usages, rmg.ShaderRead(b.Handle, rmg.StageComputeShader))
		}
	}

	t.bgLayout, err = dev.dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Name + "_bgl",
		Entries: layoutEntries,
	})
	if err != nil {
		t.destroyPartial()
		return nil, fmt.Errorf("halgpu: compute task %q: create bind group layout: %w", desc.Name, err)
	}

	t.pipeLayout, err = dev.dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Name + "_pl",
		BindGroupLayouts: []hal.BindGroupLayout{t.bgLayout},
	})
	if err != nil {
		t.destroyPartial()
		return nil, fmt.Errorf("halgpu: compute task %q: create pipeline layout: %w", desc.Name, err)
	}

	entry := desc.EntryPoint
	if entry == "" {
		entry = "main"
	}
	t.pipeline, err = dev.dev.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  desc.Name,
		Layout: t.pipeLayout,
		Compute: hal.ComputeState{
			Module:     t.module,
			EntryPoint: entry,
		},
	})
	if err != nil {
		t.destroyPartial()
		return nil, fmt.Errorf("halgpu: compute task %q: create pipeline: %w", desc.Name, err)
	}

	t.bindGroup, err = dev.dev.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   desc.Name + "_bg",
		Layout:  t.bgLayout,
		Entries: bindEntries,
	})
	if err != nil {
		t.destroyPartial()
		return nil, fmt.Errorf("halgpu: compute task %q: create bind group: %w", desc.Name, err)
	}

	return t, nil
}

// destroyPartial releases whatever the constructor managed to create.
func (t *ComputeTask) destroyPartial() {
	if t.bindGroup != nil {
		t.dev.dev.DestroyBindGroup(t.bindGroup)
		t.bindGroup = nil
	}
	if t.pipeline != nil {
		t.dev.dev.DestroyComputePipeline(t.pipeline)
		t.pipeline = nil
	}
	if t.pipeLayout != nil {
		t.dev.dev.DestroyPipelineLayout(t.pipeLayout)
		t.pipeLayout = nil
	}
	if t.bgLayout != nil {
		t.dev.dev.DestroyBindGroupLayout(t.bgLayout)
		t.bgLayout = nil
	}
	if t.module != nil {
		t.dev.dev.DestroyShaderModule(t.module)
		t.module = nil
	}
}

// Name implements rmg.Namer.
func (t *ComputeTask) Name() string { return t.name }

// Queue asks for the compute queue. Graphs without one fall back per their
// queue configuration.
func (t *ComputeTask) Queue() rmg.QueueKind { return rmg.QueueCompute }

// Usages declares the bound buffers with shader access.
func (t *ComputeTask) Usages() []rmg.Usage { return t.usages }

// Record encodes the dispatch.
func (t *ComputeTask) Record(r rmg.Recorder) error {
	enc, ok := r.Native().(hal.CommandEncoder)
	if !ok {
		return fmt.Errorf("halgpu: recorder is %T, not a hal encoder", r.Native())
	}
	pass := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: t.name})
	pass.SetPipeline(t.pipeline)
	pass.SetBindGroup(0, t.bindGroup, nil)
	pass.Dispatch(t.groups[0], t.groups[1], t.groups[2])
	pass.End()
	return nil
}

// Close releases the pipeline objects. Call after the last frame using the
// task has drained.
func (t *ComputeTask) Close() {
	t.destroyPartial()
}
