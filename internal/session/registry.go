package session

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Registry runs at most one call per key at a time. Callers arriving while a
// call is in flight wait for it and share its result; the key is released
// as soon as the call returns, whether it failed or not.
type Registry struct {
	group singleflight.Group

	mu       sync.Mutex
	inflight map[string]int
}

func NewRegistry() *Registry {
	return &Registry{inflight: make(map[string]int)}
}

// Do runs fn for key unless a call for key is already running, in which case
// it waits for that call. joined is true for callers that did not run fn.
// A caller whose ctx ends stops waiting and gets ctx.Err(); the call itself
// keeps running for the others, so fn must not depend on any one caller's
// ctx.
func (r *Registry) Do(ctx context.Context, key string, fn func() (any, error)) (v any, joined bool, err error) {
	r.enter(key)
	defer r.leave(key)

	ran := false
	ch := r.group.DoChan(key, func() (any, error) {
		ran = true
		return fn()
	})
	select {
	case res := <-ch:
		return res.Val, !ran, res.Err
	case <-ctx.Done():
		return nil, true, ctx.Err()
	}
}

// InFlight returns how many callers are currently inside Do for key.
func (r *Registry) InFlight(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inflight[key]
}

func (r *Registry) enter(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inflight[key]++
}

func (r *Registry) leave(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inflight[key] <= 1 {
		delete(r.inflight, key)
		return
	}
	r.inflight[key]--
}
