package rmg

import "testing"

func TestAccessHasWrite(t *testing.T) {
	cases := []struct {
		access Access
		want   bool
	}{
		{AccessNone, false},
		{AccessShaderRead, false},
		{AccessShaderWrite, true},
		{AccessShaderRead | AccessShaderWrite, true},
		{AccessTransferRead, false},
		{AccessTransferWrite, true},
		{AccessColorAttachmentWrite, true},
		{AccessDepthStencilRead, false},
		{AccessHostWrite, true},
	}
	for _, c := range cases {
		if got := c.access.HasWrite(); got != c.want {
			t.Errorf("HasWrite(%s): expected %v, got %v", c.access, c.want, got)
		}
	}
}

func TestAccessString(t *testing.T) {
	if got := AccessNone.String(); got != "none" {
		t.Errorf("expected %q, got %q", "none", got)
	}
	a := AccessShaderRead | AccessShaderWrite
	if got := a.String(); got != "shader-read|shader-write" {
		t.Errorf("expected %q, got %q", "shader-read|shader-write", got)
	}
}

func TestStageString(t *testing.T) {
	if got := StageAllCommands.String(); got != "all-commands" {
		t.Errorf("expected %q, got %q", "all-commands", got)
	}
	s := StageTransfer | StageComputeShader
	if got := s.String(); got != "transfer|compute" {
		t.Errorf("expected %q, got %q", "transfer|compute", got)
	}
}

func TestStateEqual(t *testing.T) {
	a := State{Layout: LayoutGeneral, Access: AccessShaderWrite, Stage: StageComputeShader, Queue: QueueCompute}
	b := a
	if !a.Equal(b) {
		t.Error("identical states must compare equal")
	}
	b.Queue = QueueGraphics
	if a.Equal(b) {
		t.Error("states with different queues must differ")
	}
}

func TestUsageHelpers(t *testing.T) {
	buf := newHandle(ResourceStorageBuffer, 1, 1)
	storage := newHandle(ResourceStorageImage, 2, 1)
	sampled := newHandle(ResourceSampledImage, 3, 1)

	if u := ShaderRead(buf, StageComputeShader); u.State.Layout != LayoutUndefined {
		t.Errorf("buffer reads have no layout, got %v", u.State.Layout)
	}
	if u := ShaderRead(storage, StageComputeShader); u.State.Layout != LayoutGeneral {
		t.Errorf("storage image reads use the general layout, got %v", u.State.Layout)
	}
	if u := ShaderRead(sampled, StageFragmentShader); u.State.Layout != LayoutShaderRead {
		t.Errorf("sampled image reads use the shader-read layout, got %v", u.State.Layout)
	}
	if u := TransferDst(storage); u.State.Layout != LayoutTransferDst || !u.State.Access.HasWrite() {
		t.Errorf("unexpected transfer-dst state: %+v", u.State)
	}
	if u := ColorTarget(sampled); u.State.Layout != LayoutColorAttachment {
		t.Errorf("unexpected color-target state: %+v", u.State)
	}
}
