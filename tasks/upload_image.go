package tasks

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rmg"
)

// Buffer-to-image copies require BytesPerRow aligned to 256 bytes (WebGPU
// and DX12); DX12 additionally wants each mip level's start offset aligned
// to 512 bytes.
const (
	copyPitchAlignment  = 256
	copyOffsetAlignment = 512
)

// UploadImageDesc describes an image upload.
type UploadImageDesc struct {
	// Label names the destination image.
	Label string

	// Source holds the pixels. Any image.Image works; it is converted to
	// RGBA before upload.
	Source image.Image

	// Usage describes the destination image. Zero defaults to
	// TextureBinding|CopyDst, and CopyDst is added when missing since the
	// upload itself needs it.
	Usage gputypes.TextureUsage

	// Mips uploads a full mip chain down to 1x1, downscaled on the CPU
	// with Catmull-Rom filtering.
	Mips bool
}

// UploadImage copies host pixels into a freshly created GPU image through a
// staging buffer on the transfer queue. All mip levels travel in a single
// copy from one staging buffer.
type UploadImage struct {
	g       *rmg.Graph
	label   string
	img     rmg.Handle
	staging rmg.Handle
	levels  uint32
	regions []rmg.BufferImageCopy

	imgObj     rmg.Image
	stagingBuf rmg.Buffer
}

// NewUploadImage converts the source pixels, derives the mip chain if
// requested, and creates the destination image and staging buffer. The
// image holds undefined contents until the frame containing the task has
// executed.
func NewUploadImage(g *rmg.Graph, desc *UploadImageDesc) (*UploadImage, error) {
	if desc.Source == nil {
		return nil, ErrNilSource
	}
	bounds := desc.Source.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: image %q has empty bounds", ErrEmptyUpload, desc.Label)
	}

	usage := desc.Usage
	if usage == 0 {
		usage = gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst
	}
	if usage&gputypes.TextureUsageCopyDst == 0 {
		rmg.Logger().Warn("tasks: upload destination missing copy-dst usage, adding it",
			"image", desc.Label)
		usage |= gputypes.TextureUsageCopyDst
	}

	levels := uint32(1)
	if desc.Mips {
		maxDim := max(w, h)
		levels = uint32(1 + int(math.Floor(math.Log2(float64(maxDim)))))
	}

	// Level 0 keeps the source pixels; each further level halves the
	// previous one.
	chain := make([]*image.RGBA, levels)
	chain[0] = toRGBA(desc.Source)
	for i := 1; i < int(levels); i++ {
		prev := chain[i-1].Bounds()
		lw := max(1, prev.Dx()/2)
		lh := max(1, prev.Dy()/2)
		lvl := image.NewRGBA(image.Rect(0, 0, lw, lh))
		xdraw.CatmullRom.Scale(lvl, lvl.Bounds(), chain[i-1], prev, xdraw.Src, nil)
		chain[i] = lvl
	}

	// Lay the levels out back to back in one staging buffer, padding rows
	// and level offsets to the copy alignments.
	var offset uint64
	regions := make([]rmg.BufferImageCopy, levels)
	for i, lvl := range chain {
		lb := lvl.Bounds()
		lw, lh := uint32(lb.Dx()), uint32(lb.Dy())
		pitch := (lw*4 + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
		offset = (offset + copyOffsetAlignment - 1) &^ (copyOffsetAlignment - 1)
		regions[i] = rmg.BufferImageCopy{
			Layout:   rmg.DataLayout{Offset: offset, BytesPerRow: pitch, RowsPerImage: lh},
			MipLevel: uint32(i),
			Size:     rmg.Extent3D{Width: lw, Height: lh, Depth: 1},
		}
		offset += uint64(pitch) * uint64(lh)
	}

	staging := make([]byte, offset)
	for i, lvl := range chain {
		reg := regions[i]
		rowBytes := int(reg.Size.Width) * 4
		for y := range int(reg.Size.Height) {
			src := lvl.Pix[y*lvl.Stride : y*lvl.Stride+rowBytes]
			dst := int(reg.Layout.Offset) + y*int(reg.Layout.BytesPerRow)
			copy(staging[dst:dst+rowBytes], src)
		}
	}

	u := &UploadImage{g: g, label: desc.Label, levels: levels, regions: regions}
	var err error
	u.img, err = g.NewImage(&rmg.ImageDesc{
		Label:     desc.Label,
		Size:      rmg.Extent3D{Width: uint32(w), Height: uint32(h), Depth: 1},
		MipLevels: levels,
		Samples:   1,
		Format:    gputypes.TextureFormatRGBA8Unorm,
		Usage:     usage,
	})
	if err != nil {
		return nil, fmt.Errorf("tasks: image %q: %w", desc.Label, err)
	}
	u.staging, err = g.NewBuffer(&rmg.BufferDesc{
		Label: desc.Label + "_staging",
		Size:  uint64(len(staging)),
		Usage: gputypes.BufferUsageMapWrite | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		g.Retire(u.img)
		return nil, fmt.Errorf("tasks: image %q: %w", desc.Label, err)
	}

	if u.imgObj, err = g.Image(u.img); err == nil {
		u.stagingBuf, err = g.Buffer(u.staging)
	}
	if err == nil {
		err = g.Device().WriteBuffer(u.stagingBuf, 0, staging)
	}
	if err != nil {
		g.Retire(u.img)
		g.Retire(u.staging)
		return nil, fmt.Errorf("tasks: image %q: %w", desc.Label, err)
	}
	return u, nil
}

// toRGBA returns src as *image.RGBA, copying only when the underlying
// format differs.
func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok {
		return rgba
	}
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst
}

// Image returns the destination image handle. The caller owns it and
// retires it when done.
func (u *UploadImage) Image() rmg.Handle { return u.img }

// Levels returns the number of mip levels uploaded.
func (u *UploadImage) Levels() uint32 { return u.levels }

// Name implements rmg.Namer.
func (u *UploadImage) Name() string { return "upload:" + u.label }

// Queue asks for the transfer queue.
func (u *UploadImage) Queue() rmg.QueueKind { return rmg.QueueTransfer }

// Usages declares the staging source and the destination image.
func (u *UploadImage) Usages() []rmg.Usage {
	return []rmg.Usage{
		rmg.TransferSrc(u.staging),
		rmg.TransferDst(u.img),
	}
}

// Record encodes one copy covering every mip level.
func (u *UploadImage) Record(r rmg.Recorder) error {
	return r.CopyBufferToImage(u.stagingBuf, u.imgObj, u.regions)
}

// Free retires the staging buffer. Call it once the frame containing the
// task has been submitted.
func (u *UploadImage) Free() error {
	if u.staging == rmg.InvalidHandle {
		return nil
	}
	err := u.g.Retire(u.staging)
	u.staging = rmg.InvalidHandle
	return err
}
