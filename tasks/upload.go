package tasks

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rmg"
)

// UploadBuffer copies host data into a freshly created GPU buffer through a
// staging buffer on the transfer queue. The destination buffer is created at
// construction but holds undefined contents until the frame containing the
// task has executed.
//
//	up, err := tasks.NewUploadBuffer(g, "particles", data, 0)
//	if err != nil { ... }
//	if err := g.Record().Add(up).Execute(); err != nil { ... }
//	up.Free() // staging reclaimed once the copy's fence signals
//	... use up.Buffer() ...
type UploadBuffer struct {
	g       *rmg.Graph
	label   string
	size    uint64
	dst     rmg.Handle
	staging rmg.Handle

	dstBuf     rmg.Buffer
	stagingBuf rmg.Buffer
}

// NewUploadBuffer creates the staging and destination buffers and fills the
// staging side with data. usage describes the destination buffer; zero
// defaults to storage usage, and copy-dst is added when missing since the
// upload itself needs it.
func NewUploadBuffer(g *rmg.Graph, label string, data []byte, usage gputypes.BufferUsage) (*UploadBuffer, error) {
	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}
	if usage == 0 {
		usage = gputypes.BufferUsageStorage
	}
	if usage&gputypes.BufferUsageCopyDst == 0 {
		rmg.Logger().Warn("tasks: upload destination missing copy-dst usage, adding it",
			"buffer", label)
		usage |= gputypes.BufferUsageCopyDst
	}

	u := &UploadBuffer{g: g, label: label, size: uint64(len(data))}

	var err error
	u.staging, err = g.NewBuffer(&rmg.BufferDesc{
		Label: label + "_staging",
		Size:  u.size,
		Usage: gputypes.BufferUsageMapWrite | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("tasks: upload %q: %w", label, err)
	}
	u.dst, err = g.NewBuffer(&rmg.BufferDesc{
		Label: label,
		Size:  u.size,
		Usage: usage,
	})
	if err != nil {
		g.Retire(u.staging)
		return nil, fmt.Errorf("tasks: upload %q: %w", label, err)
	}

	if u.stagingBuf, err = g.Buffer(u.staging); err == nil {
		u.dstBuf, err = g.Buffer(u.dst)
	}
	if err == nil {
		err = g.Device().WriteBuffer(u.stagingBuf, 0, data)
	}
	if err != nil {
		g.Retire(u.staging)
		g.Retire(u.dst)
		return nil, fmt.Errorf("tasks: upload %q: %w", label, err)
	}
	return u, nil
}

// Buffer returns the destination buffer handle. The caller owns it and
// retires it when done.
func (u *UploadBuffer) Buffer() rmg.Handle { return u.dst }

// Name implements rmg.Namer.
func (u *UploadBuffer) Name() string { return "upload:" + u.label }

// Queue asks for the transfer queue.
func (u *UploadBuffer) Queue() rmg.QueueKind { return rmg.QueueTransfer }

// Usages declares the staging source and the destination.
func (u *UploadBuffer) Usages() []rmg.Usage {
	return []rmg.Usage{
		rmg.TransferSrc(u.staging),
		rmg.TransferDst(u.dst),
	}
}

// Record encodes the staging copy. The barriers putting both buffers into
// transfer states are already in place.
func (u *UploadBuffer) Record(r rmg.Recorder) error {
	return r.CopyBufferToBuffer(u.stagingBuf, u.dstBuf, []rmg.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: u.size},
	})
}

// Free retires the staging buffer. Call it once the frame containing the
// task has been submitted; the staging memory is destroyed in the background
// after the GPU copy completes. Freeing an upload that was never scheduled
// reclaims the staging immediately.
func (u *UploadBuffer) Free() error {
	if u.staging == rmg.InvalidHandle {
		return nil
	}
	err := u.g.Retire(u.staging)
	u.staging = rmg.InvalidHandle
	return err
}
