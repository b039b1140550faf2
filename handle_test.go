package rmg

import "testing"

func TestHandleRoundTrip(t *testing.T) {
	h := newHandle(ResourceSampledImage, 7, 3)

	if got := h.Type(); got != ResourceSampledImage {
		t.Errorf("expected type %v, got %v", ResourceSampledImage, got)
	}
	if got := h.Index(); got != 7 {
		t.Errorf("expected index 7, got %d", got)
	}
	if got := h.Generation(); got != 3 {
		t.Errorf("expected generation 3, got %d", got)
	}
	if !h.Valid() {
		t.Error("expected handle to be valid")
	}
}

func TestHandlePackedWord(t *testing.T) {
	h := newHandle(ResourceSampledImage, 7, 9)

	word := h.Pack()
	if word != 0x702 {
		t.Errorf("expected packed word 0x702, got %#x", word)
	}

	back := FromPacked(word)
	if back.Type() != ResourceSampledImage {
		t.Errorf("expected type %v after unpack, got %v", ResourceSampledImage, back.Type())
	}
	if back.Index() != 7 {
		t.Errorf("expected index 7 after unpack, got %d", back.Index())
	}
	if back.Generation() != 0 {
		t.Errorf("expected generation 0 after unpack, got %d", back.Generation())
	}
}

func TestHandleGenerationDistinguishesReuse(t *testing.T) {
	a := newHandle(ResourceStorageBuffer, 42, 1)
	b := newHandle(ResourceStorageBuffer, 42, 2)

	if a == b {
		t.Error("expected handles with different generations to differ")
	}
	if a.Pack() != b.Pack() {
		t.Errorf("expected identical packed words, got %#x and %#x", a.Pack(), b.Pack())
	}
}

func TestInvalidHandle(t *testing.T) {
	if InvalidHandle.Valid() {
		t.Error("expected InvalidHandle to be invalid")
	}
	if got := InvalidHandle.Type(); got != ResourceInvalid {
		t.Errorf("expected type %v, got %v", ResourceInvalid, got)
	}

	// Tags past the last defined type are invalid too, not just 0xFF.
	h := Handle(uint64(5))
	if h.Valid() {
		t.Error("expected unknown tag 5 to be invalid")
	}
}

func TestHandleMaxIndex(t *testing.T) {
	h := newHandle(ResourceSampler, MaxRegistryIndex, 1)
	if got := h.Index(); got != MaxRegistryIndex {
		t.Errorf("expected index %d, got %d", uint32(MaxRegistryIndex), got)
	}
	if got := h.Type(); got != ResourceSampler {
		t.Errorf("expected type %v, got %v", ResourceSampler, got)
	}
}

func TestHandleString(t *testing.T) {
	h := newHandle(ResourceStorageImage, 12, 1)
	if got := h.String(); got != "storage-image[12]" {
		t.Errorf("expected %q, got %q", "storage-image[12]", got)
	}
	if got := InvalidHandle.String(); got != "handle(invalid)" {
		t.Errorf("expected %q, got %q", "handle(invalid)", got)
	}
}
