package copytrade

import (
	"context"
	"sync"

	"aptos-copytrade/internal/domain"
)

// Registry tracks live runners keyed by (follower, master) pair.
// At most one runner is registered per key.
type Registry struct {
	mu      sync.Mutex
	runners map[domain.PairKey]*Runner
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{runners: make(map[domain.PairKey]*Runner)}
}

// Insert registers r under key unless a live runner holds it. A finished runner
// still awaiting removal is replaced. Reports whether r was inserted.
func (g *Registry) Insert(key domain.PairKey, r *Runner) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.runners[key]; ok {
		select {
		case <-existing.Done():
		default:
			return false
		}
	}
	g.runners[key] = r
	return true
}

// Remove unregisters key only if it still maps to r.
func (g *Registry) Remove(key domain.PairKey, r *Runner) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.runners[key] != r {
		return false
	}
	delete(g.runners, key)
	return true
}

// Get returns the runner registered under key.
func (g *Registry) Get(key domain.PairKey) (*Runner, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.runners[key]
	return r, ok
}

// Len returns the number of registered runners.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.runners)
}

// Runners returns a snapshot of the registered runners.
func (g *Registry) Runners() []*Runner {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]*Runner, 0, len(g.runners))
	for _, r := range g.runners {
		out = append(out, r)
	}
	return out
}

// Wait blocks until every currently registered runner is done or ctx ends.
func (g *Registry) Wait(ctx context.Context) error {
	for _, r := range g.Runners() {
		select {
		case <-r.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
