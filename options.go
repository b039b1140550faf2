package rmg

import (
	"fmt"
	"log/slog"
	"time"
)

// Option configures a Graph during creation.
// Use functional options to customize Graph behavior.
//
// Example:
//
//	// Default: all three queue kinds, device permitting
//	g, err := rmg.New(dev)
//
//	// Compute-only device
//	g, err := rmg.New(dev, rmg.WithQueues(rmg.QueueCompute))
type Option func(*graphOptions)

// graphOptions holds optional configuration for Graph creation.
type graphOptions struct {
	queues       queueSet
	logger       *slog.Logger
	retireBuffer int
	pollInterval time.Duration
}

// defaultOptions returns the default graph options.
func defaultOptions() graphOptions {
	return graphOptions{
		queues:       queueSet{QueueGraphics: true, QueueCompute: true, QueueTransfer: true},
		retireBuffer: 64,
		pollInterval: 500 * time.Microsecond,
	}
}

// queueSet records which queue kinds the device actually provides.
type queueSet map[QueueKind]bool

// resolve maps a requested queue kind to an available one. A missing kind
// falls back to the nearest more capable queue: transfer work runs anywhere,
// compute work runs on graphics. Graphics work has no substitute.
func (s queueSet) resolve(q QueueKind) (QueueKind, error) {
	if s[q] {
		return q, nil
	}
	switch q {
	case QueueTransfer:
		if s[QueueCompute] {
			return QueueCompute, nil
		}
		fallthrough
	case QueueCompute:
		if s[QueueGraphics] {
			return QueueGraphics, nil
		}
	}
	return q, fmt.Errorf("%w: %s", ErrNoQueue, q)
}

// WithQueues restricts the graph to the given queue kinds. Tasks asking for
// an absent kind run on the nearest capable queue instead: transfer falls
// back to compute then graphics, compute falls back to graphics.
//
// The default assumes all three kinds exist, which is what discrete GPUs
// expose. Pass the kinds your device actually has.
//
// Example:
//
//	// Integrated GPU with a single universal queue:
//	g, err := rmg.New(dev, rmg.WithQueues(rmg.QueueGraphics))
func WithQueues(kinds ...QueueKind) Option {
	return func(o *graphOptions) {
		o.queues = make(queueSet, len(kinds))
		for _, k := range kinds {
			o.queues[k] = true
		}
	}
}

// WithLogger sets a logger for this graph, overriding the package-wide
// logger configured with SetLogger.
//
// Example:
//
//	g, err := rmg.New(dev, rmg.WithLogger(slog.Default()))
func WithLogger(l *slog.Logger) Option {
	return func(o *graphOptions) {
		o.logger = l
	}
}

// WithRetireBuffer sets the capacity of the channel feeding retired
// resources to the collector goroutine. Retire blocks once the channel is
// full and the collector has fallen behind. The default is 64.
func WithRetireBuffer(n int) Option {
	return func(o *graphOptions) {
		if n > 0 {
			o.retireBuffer = n
		}
	}
}

// WithPollInterval sets how long the collector sleeps between fence polls
// while destructions are pending. Shorter intervals reclaim memory sooner
// at the cost of more polling. The default is 500µs.
func WithPollInterval(d time.Duration) Option {
	return func(o *graphOptions) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}
