package rmg

import "fmt"

// ResourceType tags what kind of resource a Handle refers to. The numeric
// values are part of the GPU-shared handle encoding and must never be
// reordered: shader code decodes the same tag to pick the bindless array a
// handle indexes into.
type ResourceType uint8

const (
	// ResourceStorageBuffer is a buffer bound for shader read/write access.
	ResourceStorageBuffer ResourceType = 0

	// ResourceStorageImage is an image bound for shader read/write access.
	ResourceStorageImage ResourceType = 1

	// ResourceSampledImage is an image bound for sampled (filtered) reads.
	ResourceSampledImage ResourceType = 2

	// ResourceSampler is a standalone sampler object.
	ResourceSampler ResourceType = 3

	// ResourceAccelerationStructure is a ray-tracing acceleration structure.
	ResourceAccelerationStructure ResourceType = 4

	// ResourceInvalid marks a handle that does not refer to any resource.
	ResourceInvalid ResourceType = 0xFF
)

// String returns a short name for the resource type.
func (t ResourceType) String() string {
	switch t {
	case ResourceStorageBuffer:
		return "storage-buffer"
	case ResourceStorageImage:
		return "storage-image"
	case ResourceSampledImage:
		return "sampled-image"
	case ResourceSampler:
		return "sampler"
	case ResourceAccelerationStructure:
		return "acceleration-structure"
	case ResourceInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

const (
	handleTypeBits  = 8
	handleIndexBits = 24

	// MaxRegistryIndex is the largest registry slot index a Handle can
	// carry. Allocation fails once the registry grows past it.
	MaxRegistryIndex = 1<<handleIndexBits - 1
)

// Handle identifies a resource owned by a Graph's registry.
//
// The low 32 bits form the bindless word shared with GPU shader code: bits
// 0-7 hold the ResourceType tag and bits 8-31 the registry index. Shaders
// decode exactly this layout, so it is preserved bit for bit. The upper 32
// bits carry the registry slot generation; it never reaches the GPU and lets
// the registry reject handles whose slot has since been reused.
//
// A Handle is a plain value. Holding one does not keep the resource alive;
// see Graph.Retire.
type Handle uint64

// InvalidHandle is the canonical handle that refers to nothing. Its packed
// word is the value shaders treat as "no resource".
const InvalidHandle = Handle(uint64(ResourceInvalid))

// newHandle assembles a handle from its three fields. The index must already
// be range-checked by the caller.
func newHandle(t ResourceType, index, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index)<<handleTypeBits | uint64(t))
}

// Type returns the resource type tag.
func (h Handle) Type() ResourceType {
	return ResourceType(h)
}

// Index returns the registry slot index.
func (h Handle) Index() uint32 {
	return uint32(h) >> handleTypeBits
}

// Generation returns the registry slot generation this handle was minted
// for. Zero for handles rebuilt from a packed GPU word.
func (h Handle) Generation() uint32 {
	return uint32(h >> 32)
}

// Valid reports whether the type tag names a defined resource type. Any tag
// past ResourceAccelerationStructure counts as invalid, not just
// ResourceInvalid.
func (h Handle) Valid() bool {
	return h.Type() <= ResourceAccelerationStructure
}

// Pack returns the 32-bit bindless word for GPU consumption: type tag in the
// low byte, registry index in the remaining bits.
func (h Handle) Pack() uint32 {
	return uint32(h)
}

// FromPacked rebuilds a Handle from a GPU-side bindless word. The packed
// word carries no generation, so the result passes registry lookups only
// while the slot has never been reused.
func FromPacked(word uint32) Handle {
	return Handle(word)
}

// String renders the handle for logs, e.g. "storage-image[12]".
func (h Handle) String() string {
	if !h.Valid() {
		return "handle(invalid)"
	}
	return fmt.Sprintf("%s[%d]", h.Type(), h.Index())
}
