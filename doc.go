// Package rmg provides a resource-managing render graph for Go.
//
// # Overview
//
// rmg sits between application code and a GPU device. Applications describe
// work as tasks that declare which resources they read and write; rmg
// computes a legal execution order, inserts the memory barriers, image
// layout transitions, queue ownership transfers and semaphores the
// declarations require, and reclaims retired resources asynchronously once
// the GPU has finished with them.
//
// # Quick Start
//
//	import "github.com/gogpu/rmg"
//
//	// Create a graph over a device (see backend/halgpu)
//	g, err := rmg.New(dev)
//	if err != nil {
//	    return err
//	}
//	defer g.Close()
//
//	// Create resources; handles are small values shared with shaders
//	buf, err := g.NewBuffer(&rmg.BufferDesc{
//	    Label: "particles",
//	    Size:  1 << 20,
//	    Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
//	})
//
//	// Run tasks; synchronization is derived from their declarations
//	err = g.Record().
//	    Add(simulate). // compute queue, writes buf
//	    Add(draw).     // graphics queue, reads buf
//	    Execute()
//
//	// Drop resources without waiting; the collector destroys them
//	// once their last submission's fence signals
//	g.Retire(buf)
//
// # Architecture
//
// The library is organized into:
//   - Public API: Graph, Task, Handle, State, Device
//   - Scheduling: per-frame plan compilation from declared usages
//   - Execution: per-queue submissions with fences and semaphores
//   - Collection: background destruction gated on fence completion
//   - Backends: backend/halgpu (gogpu/wgpu hal), plus premade tasks/
//
// # Handles
//
// Resources are addressed by 64-bit handles whose low 32 bits form a
// bindless word shared bit-for-bit with GPU shader code: a type tag in the
// low byte and a registry index above it. The upper 32 bits hold a
// host-side generation that catches use of retired handles.
//
// # Concurrency
//
// A Graph is driven from one goroutine. The collector runs on its own
// goroutine and shares only the resource registry, behind a single mutex,
// with the frame path.
package rmg

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
