package tasks

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rmg"
)

// DownloadBuffer copies a buffer into a host-readable readback buffer on the
// transfer queue. After the frame containing the task has executed, Download
// returns the captured bytes.
//
// The source buffer is not consumed; the task only reads it. One
// DownloadBuffer captures one copy per execution, always from offset zero.
type DownloadBuffer struct {
	g        *rmg.Graph
	label    string
	size     uint64
	src      rmg.Handle
	readback rmg.Handle

	srcBuf      rmg.Buffer
	readbackBuf rmg.Buffer
}

// NewDownloadBuffer creates the readback buffer for size bytes of src. The
// registry does not track buffer sizes, so the caller states how much to
// copy.
func NewDownloadBuffer(g *rmg.Graph, label string, src rmg.Handle, size uint64) (*DownloadBuffer, error) {
	if size == 0 {
		return nil, ErrEmptyDownload
	}
	srcBuf, err := g.Buffer(src)
	if err != nil {
		return nil, fmt.Errorf("tasks: download %q: %w", label, err)
	}

	d := &DownloadBuffer{g: g, label: label, size: size, src: src, srcBuf: srcBuf}
	d.readback, err = g.NewBuffer(&rmg.BufferDesc{
		Label: label + "_readback",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("tasks: download %q: %w", label, err)
	}
	d.readbackBuf, err = g.Buffer(d.readback)
	if err != nil {
		g.Retire(d.readback)
		return nil, fmt.Errorf("tasks: download %q: %w", label, err)
	}
	return d, nil
}

// Name implements rmg.Namer.
func (d *DownloadBuffer) Name() string { return "download:" + d.label }

// Queue asks for the transfer queue.
func (d *DownloadBuffer) Queue() rmg.QueueKind { return rmg.QueueTransfer }

// Usages declares the source read and the readback write.
func (d *DownloadBuffer) Usages() []rmg.Usage {
	return []rmg.Usage{
		rmg.TransferSrc(d.src),
		rmg.TransferDst(d.readback),
	}
}

// Record encodes the readback copy.
func (d *DownloadBuffer) Record(r rmg.Recorder) error {
	return r.CopyBufferToBuffer(d.srcBuf, d.readbackBuf, []rmg.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: d.size},
	})
}

// Download returns the captured bytes. It blocks until the device has
// finished the submissions touching the readback buffer, so call it after
// the frame containing the task has been submitted.
func (d *DownloadBuffer) Download() ([]byte, error) {
	if d.readback == rmg.InvalidHandle {
		return nil, fmt.Errorf("tasks: download %q: already freed", d.label)
	}
	data, err := d.g.Device().ReadBuffer(d.readbackBuf, 0, d.size)
	if err != nil {
		return nil, fmt.Errorf("tasks: download %q: %w", d.label, err)
	}
	return data, nil
}

// Free retires the readback buffer. Download must not be called afterwards.
func (d *DownloadBuffer) Free() error {
	if d.readback == rmg.InvalidHandle {
		return nil
	}
	err := d.g.Retire(d.readback)
	d.readback = rmg.InvalidHandle
	return err
}
