package compute

import "sync"

// CappedContext is a Context that refuses allocations above a byte budget.
// It stands in for an accelerator with limited memory in tests of the
// composer's fallback path; moves copy the slice so placement transitions
// are observable.
type CappedContext struct {
	mu        sync.Mutex
	capacity  int // in float32 values; 0 means unlimited
	allocated int
	releases  int
	toHost    int
	toDevice  int
}

// NewCappedContext returns a CappedContext that can hand out at most
// capacity float32 values in total before reporting exhaustion.
func NewCappedContext(capacity int) *CappedContext {
	return &CappedContext{capacity: capacity}
}

func (c *CappedContext) Name() string    { return "capped" }
func (c *CappedContext) Available() bool { return true }

func (c *CappedContext) Alloc(n int) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 0 {
		return nil, ErrResourceExhausted
	}
	if c.capacity > 0 && c.allocated+n > c.capacity {
		return nil, ErrResourceExhausted
	}
	c.allocated += n
	return make([]float32, n), nil
}

func (c *CappedContext) ToHost(t []float32) []float32 {
	c.mu.Lock()
	c.toHost++
	c.mu.Unlock()
	out := make([]float32, len(t))
	copy(out, t)
	return out
}

func (c *CappedContext) ToDevice(t []float32) []float32 {
	c.mu.Lock()
	c.toDevice++
	c.mu.Unlock()
	out := make([]float32, len(t))
	copy(out, t)
	return out
}

// ReleaseCache resets the allocation budget, mimicking a cache flush
// returning memory to the pool.
func (c *CappedContext) ReleaseCache() {
	c.mu.Lock()
	c.allocated = 0
	c.releases++
	c.mu.Unlock()
}

// Releases reports how many times ReleaseCache has been called.
func (c *CappedContext) Releases() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releases
}

// HostMoves reports how many ToHost calls the context has served.
func (c *CappedContext) HostMoves() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.toHost
}

// DeviceMoves reports how many ToDevice calls the context has served.
func (c *CappedContext) DeviceMoves() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.toDevice
}
