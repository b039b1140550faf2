package halgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rmg"
	"github.com/gogpu/wgpu/hal"
)

// recorder implements rmg.Recorder over a hal command encoder.
type recorder struct {
	enc hal.CommandEncoder
}

// Barrier records the batch's image layout transitions. Buffer barriers
// have no hal-level equivalent: hal backends track buffer hazards at pass
// boundaries themselves, and the shared queue orders ownership transfers.
func (r *recorder) Barrier(b *rmg.BarrierBatch) error {
	if len(b.Images) == 0 {
		return nil
	}
	barriers := make([]hal.TextureBarrier, 0, len(b.Images))
	for _, ib := range b.Images {
		hi, ok := ib.Image.(halImage)
		if !ok {
			return fmt.Errorf("halgpu: foreign image %T", ib.Image)
		}
		barriers = append(barriers, hal.TextureBarrier{
			Texture: hi.t,
			Usage: hal.TextureUsageTransition{
				OldUsage: layoutUsage(ib.Src.Layout),
				NewUsage: layoutUsage(ib.Dst.Layout),
			},
		})
	}
	r.enc.TransitionTextures(barriers)
	return nil
}

// layoutUsage maps a graph layout to the hal usage state that implies it.
func layoutUsage(l rmg.Layout) gputypes.TextureUsage {
	switch l {
	case rmg.LayoutGeneral:
		return gputypes.TextureUsageStorageBinding
	case rmg.LayoutShaderRead:
		return gputypes.TextureUsageTextureBinding
	case rmg.LayoutColorAttachment, rmg.LayoutDepthStencilAttachment:
		return gputypes.TextureUsageRenderAttachment
	case rmg.LayoutTransferSrc, rmg.LayoutPresent:
		return gputypes.TextureUsageCopySrc
	case rmg.LayoutTransferDst:
		return gputypes.TextureUsageCopyDst
	default:
		return 0
	}
}

// CopyBufferToBuffer copies regions between two buffers.
func (r *recorder) CopyBufferToBuffer(src, dst rmg.Buffer, regions []rmg.BufferCopy) error {
	hs, ok := src.(halBuffer)
	if !ok {
		return fmt.Errorf("halgpu: foreign buffer %T", src)
	}
	hd, ok := dst.(halBuffer)
	if !ok {
		return fmt.Errorf("halgpu: foreign buffer %T", dst)
	}
	copies := make([]hal.BufferCopy, len(regions))
	for i, c := range regions {
		copies[i] = hal.BufferCopy{
			SrcOffset: c.SrcOffset,
			DstOffset: c.DstOffset,
			Size:      c.Size,
		}
	}
	r.enc.CopyBufferToBuffer(hs.b, hd.b, copies)
	return nil
}

// CopyBufferToImage copies buffer contents into an image.
func (r *recorder) CopyBufferToImage(src rmg.Buffer, dst rmg.Image, regions []rmg.BufferImageCopy) error {
	hs, ok := src.(halBuffer)
	if !ok {
		return fmt.Errorf("halgpu: foreign buffer %T", src)
	}
	hd, ok := dst.(halImage)
	if !ok {
		return fmt.Errorf("halgpu: foreign image %T", dst)
	}
	r.enc.CopyBufferToTexture(hs.b, hd.t, bufferTextureCopies(hd.t, regions))
	return nil
}

// CopyImageToBuffer copies image contents into a buffer.
func (r *recorder) CopyImageToBuffer(src rmg.Image, dst rmg.Buffer, regions []rmg.BufferImageCopy) error {
	hs, ok := src.(halImage)
	if !ok {
		return fmt.Errorf("halgpu: foreign image %T", src)
	}
	hd, ok := dst.(halBuffer)
	if !ok {
		return fmt.Errorf("halgpu: foreign buffer %T", dst)
	}
	r.enc.CopyTextureToBuffer(hs.t, hd.b, bufferTextureCopies(hs.t, regions))
	return nil
}

func bufferTextureCopies(t hal.Texture, regions []rmg.BufferImageCopy) []hal.BufferTextureCopy {
	copies := make([]hal.BufferTextureCopy, len(regions))
	for i, c := range regions {
		depth := c.Size.Depth
		if depth == 0 {
			depth = 1
		}
		copies[i] = hal.BufferTextureCopy{
			BufferLayout: hal.ImageDataLayout{
				Offset:       c.Layout.Offset,
				BytesPerRow:  c.Layout.BytesPerRow,
				RowsPerImage: c.Layout.RowsPerImage,
			},
			TextureBase: hal.ImageCopyTexture{Texture: t, MipLevel: c.MipLevel},
			Size: hal.Extent3D{
				Width:              c.Size.Width,
				Height:             c.Size.Height,
				DepthOrArrayLayers: depth,
			},
		}
	}
	return copies
}

// End finishes recording and returns the command buffer.
func (r *recorder) End() (rmg.CommandBuffer, error) {
	cb, err := r.enc.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("halgpu: end encoding: %w", err)
	}
	return halCommandBuffer{cb}, nil
}

// Discard abandons the recording.
func (r *recorder) Discard() {
	r.enc.DiscardEncoding()
}

// Native returns the hal command encoder for tasks recording passes the
// graph has no verbs for.
func (r *recorder) Native() any {
	return r.enc
}
