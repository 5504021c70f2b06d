package engine

import (
	"context"
	"sync"
)

// semaphoreRegistry lazily creates one fair-FIFO semaphore per (skill,
// instance) pair, each bounded by that instance's max_concurrent_requests.
// A buffered channel of that size is the semaphore: acquire blocks on a
// send, release is a receive, and Go's channel semantics already give
// FIFO-ish fairness under contention.
type semaphoreRegistry struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newSemaphoreRegistry() *semaphoreRegistry {
	return &semaphoreRegistry{slots: make(map[string]chan struct{})}
}

func (r *semaphoreRegistry) get(skill, instanceName string, size int) chan struct{} {
	key := skill + "/" + instanceName
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.slots[key]
	if !ok || cap(ch) != size {
		ch = make(chan struct{}, size)
		r.slots[key] = ch
	}
	return ch
}

// acquire blocks until a concurrency slot for (skill, instanceName) is
// free or ctx is done, returning a release function to call exactly once.
func (r *semaphoreRegistry) acquire(ctx context.Context, skill, instanceName string, size int) (func(), error) {
	ch := r.get(skill, instanceName, size)
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
