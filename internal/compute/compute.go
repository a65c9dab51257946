// Package compute abstracts the memory placement of per-step tensors.
//
// The training-loss pipeline is written against the Context interface so
// that the out-of-memory recovery path in the loss composer can be
// exercised without accelerator hardware: a Context decides where scratch
// buffers live and when an allocation must be refused.
package compute

import "errors"

// ErrResourceExhausted reports that a Context could not satisfy a scratch
// allocation. It is the only error the loss composer recovers from; the
// composer retries the failed computation on the host context.
var ErrResourceExhausted = errors.New("compute: resource exhausted")

// Context places tensors and scratch buffers.
//
// Alloc is the hot path: assigners request their O(anchors x targets)
// intermediates through it so exhaustion surfaces as ErrResourceExhausted
// instead of an unrecoverable failure. ToHost and ToDevice move tensors
// across the placement boundary; for a host-only context both are
// identity. ReleaseCache drops any pooled memory the context holds.
type Context interface {
	// Name identifies the placement for log messages.
	Name() string

	// Available reports whether the context's backing memory is usable.
	Available() bool

	// Alloc returns a zeroed scratch buffer of n float32 values, or
	// ErrResourceExhausted when the context cannot provide one.
	Alloc(n int) ([]float32, error)

	// ToHost returns t in host memory.
	ToHost(t []float32) []float32

	// ToDevice returns t in this context's memory.
	ToDevice(t []float32) []float32

	// ReleaseCache returns pooled memory to the allocator.
	ReleaseCache()
}

// Host is the always-available context backed by ordinary Go memory.
// Allocation never fails short of the runtime itself running out; moves
// are identity.
type Host struct{}

func (Host) Name() string    { return "host" }
func (Host) Available() bool { return true }
func (Host) ReleaseCache()   {}

func (Host) Alloc(n int) ([]float32, error) {
	if n < 0 {
		return nil, ErrResourceExhausted
	}
	return make([]float32, n), nil
}

func (Host) ToHost(t []float32) []float32   { return t }
func (Host) ToDevice(t []float32) []float32 { return t }
