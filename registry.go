package rmg

import (
	"fmt"
	"sync"
)

// resource is the registry's record of one live GPU object. Exactly one of
// buffer, image, sampler is set, matching the handle's type tag.
type resource struct {
	name    string
	kind    ResourceType
	buffer  Buffer
	image   Image
	sampler Sampler

	// state is the synchronization state of the resource after the last
	// committed frame.
	state State

	// owned reports whether some queue has taken ownership yet. False for
	// fresh resources; their first use installs an owner without a
	// transfer.
	owned bool

	// lastGuard covers the most recent submission that used the resource.
	// Ownership transfers serialize uses, so once it signals every earlier
	// use is complete too. Nil while the resource is untouched.
	lastGuard *guard

	// imported resources belong to the caller. Retiring one frees the
	// slot but never destroys the device object.
	imported bool
}

// slot is one entry of the registry's generational arena. A slot whose
// resource was retired stays dead, and out of the free list, until the
// collector confirms the GPU is done with it.
type slot struct {
	generation uint32
	live       bool
	res        resource
}

// retired is a dead resource on its way to the collector: the payload to
// destroy, and the guard that must signal first. The guard reference moves
// with the item; the collector releases it after the sweep.
type retired struct {
	index    uint32
	name     string
	kind     ResourceType
	buffer   Buffer
	image    Image
	sampler  Sampler
	guard    *guard
	imported bool
}

// registry tracks every resource a Graph owns. All access goes through its
// mutex; the frame path and the collector goroutine contend on it.
type registry struct {
	mu    sync.Mutex
	slots []slot
	free  []uint32
}

func newRegistry() *registry {
	return &registry{}
}

// insert stores a resource and mints its handle. Slot indices are reused
// only after the collector confirms the previous occupant is destroyed, so
// a fresh handle never collides with a stale one of the same index.
func (r *registry) insert(res resource) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var index uint32
	if n := len(r.free); n > 0 {
		index = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		if len(r.slots) > MaxRegistryIndex {
			return InvalidHandle, fmt.Errorf("%w: registry full", ErrAllocation)
		}
		r.slots = append(r.slots, slot{generation: 1})
		index = uint32(len(r.slots) - 1)
	}

	s := &r.slots[index]
	s.live = true
	s.res = res
	return newHandle(res.kind, index, s.generation), nil
}

// lookup returns the slot for a handle, or nil if the handle is stale or
// malformed. Callers hold r.mu.
func (r *registry) lookup(h Handle) *slot {
	if !h.Valid() {
		return nil
	}
	index := h.Index()
	if index >= uint32(len(r.slots)) {
		return nil
	}
	s := &r.slots[index]
	if !s.live || s.generation != h.Generation() || s.res.kind != h.Type() {
		return nil
	}
	return s
}

// resolve returns a copy of the resource a handle refers to.
func (r *registry) resolve(h Handle) (resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.lookup(h)
	if s == nil {
		return resource{}, fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}
	return s.res, nil
}

// commit installs post-frame states for the given handles. Called once per
// frame after scheduling succeeds; a frame that aborts commits nothing.
func (r *registry) commit(states map[Handle]State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for h, st := range states {
		if s := r.lookup(h); s != nil {
			s.res.state = st
			s.res.owned = true
		}
	}
}

// markGuard records g as the newest submission guard for each handle,
// taking a reference per resource. Guards the handles displaced are
// returned for the caller to release; the registry holds no device access.
func (r *registry) markGuard(handles []Handle, g *guard) []*guard {
	r.mu.Lock()
	defer r.mu.Unlock()
	var replaced []*guard
	for _, h := range handles {
		s := r.lookup(h)
		if s == nil {
			continue
		}
		if s.res.lastGuard != nil {
			replaced = append(replaced, s.res.lastGuard)
		}
		s.res.lastGuard = g.retain()
	}
	return replaced
}

// retire kills the slot and extracts the payload for the collector. Lookups
// fail from this point on, but the slot index is not reusable until the
// collector calls release.
func (r *registry) retire(h Handle) (retired, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.lookup(h)
	if s == nil {
		return retired{}, fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}
	s.live = false
	item := retired{
		index:    h.Index(),
		name:     s.res.name,
		kind:     s.res.kind,
		buffer:   s.res.buffer,
		image:    s.res.image,
		sampler:  s.res.sampler,
		guard:    s.res.lastGuard,
		imported: s.res.imported,
	}
	s.res = resource{}
	return item, nil
}

// release returns a slot to the free list after the collector has confirmed
// destruction. The generation bump invalidates any handle still pointing at
// the old occupant.
func (r *registry) release(index uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index >= uint32(len(r.slots)) {
		return
	}
	s := &r.slots[index]
	s.generation++
	r.free = append(r.free, index)
}

// drain kills every live slot and returns the payloads, newest first. Used
// by Close to hand all remaining resources to the collector.
func (r *registry) drain() []retired {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []retired
	for i := range r.slots {
		s := &r.slots[i]
		if !s.live {
			continue
		}
		s.live = false
		items = append(items, retired{
			index:    uint32(i),
			name:     s.res.name,
			kind:     s.res.kind,
			buffer:   s.res.buffer,
			image:    s.res.image,
			sampler:  s.res.sampler,
			guard:    s.res.lastGuard,
			imported: s.res.imported,
		})
		s.res = resource{}
	}
	return items
}
