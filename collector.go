package rmg

import (
	"log/slog"
	"time"
)

// collector is the background worker that destroys retired resources once
// the GPU is provably done with them. Retire hands items over a channel;
// the worker polls each item's guard and destroys payloads in whatever
// order the fences signal, so one slow submission never delays unrelated
// reclamation.
type collector struct {
	dev          Device
	reg          *registry
	ch           chan retired
	done         chan struct{}
	pollInterval time.Duration
	log          func() *slog.Logger
}

func newCollector(dev Device, reg *registry, opts *graphOptions, log func() *slog.Logger) *collector {
	c := &collector{
		dev:          dev,
		reg:          reg,
		ch:           make(chan retired, opts.retireBuffer),
		done:         make(chan struct{}),
		pollInterval: opts.pollInterval,
		log:          log,
	}
	go c.run()
	return c
}

// enqueue hands a retired resource to the worker. Blocks when the channel
// is full and the worker has fallen behind; see WithRetireBuffer.
func (c *collector) enqueue(item retired) {
	c.ch <- item
}

// close stops the worker after everything already queued has been
// destroyed, and waits for it to exit.
func (c *collector) close() {
	close(c.ch)
	<-c.done
}

// run receives retired items and sweeps the pending set until the channel
// closes and the set empties. With nothing pending it blocks on the
// channel; with pending work it wakes every poll interval.
func (c *collector) run() {
	defer close(c.done)
	ch := c.ch
	var pending []retired
	for ch != nil || len(pending) > 0 {
		if len(pending) == 0 {
			item, ok := <-ch
			if !ok {
				ch = nil
				continue
			}
			pending = append(pending, item)
		} else {
			select {
			case item, ok := <-ch:
				if !ok {
					ch = nil
				} else {
					pending = append(pending, item)
				}
			case <-time.After(c.pollInterval):
			}
		}
		pending = c.sweep(pending)
	}
}

// sweep destroys every pending item whose guard has signaled and returns
// the rest. A slot is released only after its guard confirms, never on the
// strength of retirement order.
func (c *collector) sweep(pending []retired) []retired {
	kept := pending[:0]
	for _, item := range pending {
		if item.guard != nil {
			done, err := item.guard.poll(c.dev)
			if err != nil {
				// The fence can no longer confirm anything, so the
				// payload is leaked rather than destroyed under a
				// possibly still running submission.
				c.log().Warn("rmg: fence poll failed for retired resource",
					slog.String("resource", item.name),
					slog.Any("error", err))
				item.guard.release(c.dev, c.log())
				c.reg.release(item.index)
				continue
			}
			if !done {
				kept = append(kept, item)
				continue
			}
		}
		c.destroy(&item)
		if item.guard != nil {
			item.guard.release(c.dev, c.log())
		}
		c.reg.release(item.index)
	}
	return kept
}

// destroy frees the item's device object. Imported resources stay alive;
// their owners only lend them to the graph. Failures are logged and the
// object dropped.
func (c *collector) destroy(item *retired) {
	if item.imported {
		c.log().Debug("rmg: released imported resource",
			slog.String("resource", item.name))
		return
	}
	var err error
	switch item.kind {
	case ResourceStorageBuffer:
		err = c.dev.DestroyBuffer(item.buffer)
	case ResourceStorageImage, ResourceSampledImage:
		err = c.dev.DestroyImage(item.image)
	case ResourceSampler:
		err = c.dev.DestroySampler(item.sampler)
	}
	if err != nil {
		c.log().Warn("rmg: resource destruction failed",
			slog.String("resource", item.name),
			slog.String("kind", item.kind.String()),
			slog.Any("error", err))
		return
	}
	c.log().Debug("rmg: destroyed resource",
		slog.String("resource", item.name),
		slog.String("kind", item.kind.String()))
}
