package rmg

import "errors"

// Package errors. Operations wrap these sentinels with context, so callers
// test with errors.Is.
var (
	// ErrInvalidHandle is returned when a handle does not resolve to a live
	// resource: its type tag is undefined, its index is out of range, or
	// its generation no longer matches the registry slot.
	ErrInvalidHandle = errors.New("rmg: invalid resource handle")

	// ErrDeclarationConflict is returned when a single task declares the
	// same resource twice with different states. The frame that contains
	// the task is aborted.
	ErrDeclarationConflict = errors.New("rmg: conflicting state declarations for resource")

	// ErrDeviceSubmission is returned when the device rejects recorded
	// commands or a queue submission. The failure is not retried.
	ErrDeviceSubmission = errors.New("rmg: device submission failed")

	// ErrAllocation is returned when the device cannot allocate a resource.
	ErrAllocation = errors.New("rmg: resource allocation failed")

	// ErrNoUsage is returned when a resource descriptor carries no usage
	// flags, or when a task declares no resource accesses and therefore
	// cannot be scheduled against anything.
	ErrNoUsage = errors.New("rmg: no resource usage declared")

	// ErrNoQueue is returned when no queue of the requested kind exists and
	// no capable fallback is configured.
	ErrNoQueue = errors.New("rmg: no queue of requested kind")

	// ErrClosed is returned when the graph has been closed.
	ErrClosed = errors.New("rmg: graph closed")
)
