// Package tasks provides premade rmg tasks for common transfer work:
// uploading buffers and images to the GPU and downloading buffer contents
// back to the host.
//
// Each task owns the staging resources it needs and hands them to the
// graph's collector through Free, so staging memory is reclaimed in the
// background once the GPU copy has finished. The destination resources
// belong to the caller.
package tasks
