// Package counter tracks per-resource hit counts for served files.
package counter

import (
	"sync"
	"sync/atomic"
)

// Registry holds one hit counter per canonical resource path plus a
// process-wide total. Counters are created lazily, live for the process
// lifetime and are never decremented.
//
// The map mutex is taken as a writer only when a path is first seen; the
// increment itself is an atomic add on the per-path counter, so concurrent
// increments on the same path never lose updates and increments on distinct
// paths never contend.
type Registry struct {
	mu     sync.RWMutex
	counts map[string]*atomic.Uint64
	total  atomic.Uint64
}

// NewRegistry creates an empty counter registry.
func NewRegistry() *Registry {
	return &Registry{
		counts: make(map[string]*atomic.Uint64),
	}
}

// Increment adds one to the counter for path and to the process total,
// returning the new per-path count. Called exactly once per successfully
// served file.
func (r *Registry) Increment(path string) uint64 {
	r.total.Add(1)
	return r.counter(path).Add(1)
}

// Count returns the current hit count for path. Unseen paths report zero.
func (r *Registry) Count(path string) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.counts[path]; ok {
		return c.Load()
	}
	return 0
}

// Total returns the number of increments across all paths.
func (r *Registry) Total() uint64 {
	return r.total.Load()
}

func (r *Registry) counter(path string) *atomic.Uint64 {
	r.mu.RLock()
	c, ok := r.counts[path]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok = r.counts[path]; ok {
		return c
	}
	c = &atomic.Uint64{}
	r.counts[path] = c
	return c
}
