package rmg

import (
	"errors"
	"testing"
	"time"
)

func TestQueueSetResolve(t *testing.T) {
	all := queueSet{QueueGraphics: true, QueueCompute: true, QueueTransfer: true}
	for _, q := range []QueueKind{QueueGraphics, QueueCompute, QueueTransfer} {
		got, err := all.resolve(q)
		if err != nil || got != q {
			t.Errorf("resolve(%v) on full set: expected %v, got %v (%v)", q, q, got, err)
		}
	}

	graphicsOnly := queueSet{QueueGraphics: true}
	for _, q := range []QueueKind{QueueCompute, QueueTransfer} {
		got, err := graphicsOnly.resolve(q)
		if err != nil || got != QueueGraphics {
			t.Errorf("resolve(%v) should fall back to graphics, got %v (%v)", q, got, err)
		}
	}

	computeOnly := queueSet{QueueCompute: true}
	if got, err := computeOnly.resolve(QueueTransfer); err != nil || got != QueueCompute {
		t.Errorf("transfer should fall back to compute, got %v (%v)", got, err)
	}
	if _, err := computeOnly.resolve(QueueGraphics); !errors.Is(err, ErrNoQueue) {
		t.Errorf("graphics has no substitute, expected ErrNoQueue, got %v", err)
	}
}

func TestDefaultOptions(t *testing.T) {
	o := defaultOptions()
	if len(o.queues) != 3 {
		t.Errorf("expected all queue kinds by default, got %d", len(o.queues))
	}
	if o.retireBuffer <= 0 {
		t.Errorf("expected positive retire buffer, got %d", o.retireBuffer)
	}
	if o.pollInterval <= 0 {
		t.Errorf("expected positive poll interval, got %v", o.pollInterval)
	}
}

func TestOptionGuards(t *testing.T) {
	o := defaultOptions()
	WithRetireBuffer(0)(&o)
	if o.retireBuffer != 64 {
		t.Errorf("zero retire buffer must keep the default, got %d", o.retireBuffer)
	}
	WithPollInterval(-time.Second)(&o)
	if o.pollInterval != 500*time.Microsecond {
		t.Errorf("negative poll interval must keep the default, got %v", o.pollInterval)
	}
	WithRetireBuffer(8)(&o)
	WithPollInterval(time.Millisecond)(&o)
	if o.retireBuffer != 8 || o.pollInterval != time.Millisecond {
		t.Errorf("options not applied: %+v", o)
	}
}
