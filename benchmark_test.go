package rmg

import (
	"fmt"
	"testing"

	"github.com/gogpu/gputypes"
)

// benchBuffers creates n storage buffers on the graph.
func benchBuffers(b *testing.B, g *Graph, n int) []Handle {
	b.Helper()
	handles := make([]Handle, n)
	for i := range handles {
		h, err := g.NewBuffer(&BufferDesc{
			Label: fmt.Sprintf("buf%d", i),
			Size:  4096,
			Usage: gputypes.BufferUsageStorage,
		})
		if err != nil {
			b.Fatalf("NewBuffer: %v", err)
		}
		handles[i] = h
	}
	return handles
}

// BenchmarkCompile measures frame compilation alone at various frame
// shapes. Nothing is submitted; this is the pure scheduling cost.
func BenchmarkCompile(b *testing.B) {
	shapes := []struct {
		name      string
		tasks     int
		resources int // per task
	}{
		{"2tasks_1res", 2, 1},
		{"8tasks_4res", 8, 4},
		{"32tasks_4res", 32, 4},
		{"32tasks_16res", 32, 16},
	}

	for _, shape := range shapes {
		b.Run(shape.name, func(b *testing.B) {
			g, _ := newTestGraph(b)
			handles := benchBuffers(b, g, shape.tasks*shape.resources)

			tasks := make([]Task, shape.tasks)
			for i := range tasks {
				usages := make([]Usage, shape.resources)
				for j := range usages {
					usages[j] = ShaderReadWrite(handles[i*shape.resources+j], StageComputeShader)
				}
				tasks[i] = &testTask{name: "work", queue: QueueCompute, usages: usages}
			}

			b.ResetTimer()
			b.ReportAllocs()
			for b.Loop() {
				if _, err := g.sched.compile(tasks); err != nil {
					b.Fatalf("compile: %v", err)
				}
			}
		})
	}
}

// BenchmarkCompileCrossQueue measures compilation of a frame whose tasks
// bounce one resource between queues, forcing an ownership transfer and a
// semaphore edge per hop.
func BenchmarkCompileCrossQueue(b *testing.B) {
	for _, hops := range []int{2, 8, 32} {
		b.Run(fmt.Sprintf("%dhops", hops), func(b *testing.B) {
			g, _ := newTestGraph(b)
			handles := benchBuffers(b, g, 1)

			tasks := make([]Task, hops)
			for i := range tasks {
				queue := QueueCompute
				if i%2 == 1 {
					queue = QueueGraphics
				}
				tasks[i] = &testTask{
					name:   "hop",
					queue:  queue,
					usages: []Usage{ShaderReadWrite(handles[0], StageComputeShader)},
				}
			}

			b.ResetTimer()
			b.ReportAllocs()
			for b.Loop() {
				if _, err := g.sched.compile(tasks); err != nil {
					b.Fatalf("compile: %v", err)
				}
			}
		})
	}
}

// BenchmarkExecuteFrame measures a full frame round trip over the fake
// device: compile, record, submit, commit. Every task rewrites its buffer,
// so each frame carries the write barriers a simulation step would.
func BenchmarkExecuteFrame(b *testing.B) {
	for _, count := range []int{1, 4, 16} {
		b.Run(fmt.Sprintf("%dtasks", count), func(b *testing.B) {
			g, dev := newTestGraph(b)
			dev.discardSubmissions = true
			handles := benchBuffers(b, g, count)

			tasks := make([]Task, count)
			for i := range tasks {
				tasks[i] = &testTask{
					name:   "step",
					queue:  QueueCompute,
					usages: []Usage{ShaderReadWrite(handles[i], StageComputeShader)},
				}
			}

			frame := func() error {
				rec := g.Record()
				for _, t := range tasks {
					rec.Add(t)
				}
				return rec.Execute()
			}
			// Warm up past the first-use transitions.
			if err := frame(); err != nil {
				b.Fatalf("Execute: %v", err)
			}

			b.ResetTimer()
			b.ReportAllocs()
			for b.Loop() {
				if err := frame(); err != nil {
					b.Fatalf("Execute: %v", err)
				}
			}
		})
	}
}

// BenchmarkExecuteFrameCrossQueue measures the compute-then-draw frame
// shape: ownership of the shared buffer moves between the two queues every
// frame.
func BenchmarkExecuteFrameCrossQueue(b *testing.B) {
	g, dev := newTestGraph(b)
	dev.discardSubmissions = true
	handles := benchBuffers(b, g, 1)

	simulate := &testTask{
		name:   "simulate",
		queue:  QueueCompute,
		usages: []Usage{ShaderReadWrite(handles[0], StageComputeShader)},
	}
	draw := &testTask{
		name:   "draw",
		queue:  QueueGraphics,
		usages: []Usage{ShaderRead(handles[0], StageVertexShader)},
	}

	frame := func() error {
		return g.Record().Add(simulate).Add(draw).Execute()
	}
	if err := frame(); err != nil {
		b.Fatalf("Execute: %v", err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for b.Loop() {
		if err := frame(); err != nil {
			b.Fatalf("Execute: %v", err)
		}
	}
}

// BenchmarkHandleRoundTrip measures packing a handle to its bindless word
// and rebuilding it, the path taken when filling GPU binding tables.
func BenchmarkHandleRoundTrip(b *testing.B) {
	h := newHandle(ResourceStorageImage, 1234, 7)
	b.ReportAllocs()
	for b.Loop() {
		word := h.Pack()
		if FromPacked(word).Index() != 1234 {
			b.Fatal("bad round trip")
		}
	}
}

// BenchmarkRegistryResolve measures handle-to-resource lookup, the hot
// path of every declaration a frame carries.
func BenchmarkRegistryResolve(b *testing.B) {
	g, _ := newTestGraph(b)
	handles := benchBuffers(b, g, 1)

	b.ResetTimer()
	b.ReportAllocs()
	for b.Loop() {
		if _, err := g.Buffer(handles[0]); err != nil {
			b.Fatalf("Buffer: %v", err)
		}
	}
}
