// Package lock implements the per-persona run token.
package lock

import (
	"context"
	"sync"

	"PersonaPipeline/internal/ports"
)

// MemoryGuard holds run tokens in process memory.
type MemoryGuard struct {
	mu   sync.Mutex
	held map[int64]struct{}
}

var _ ports.RunGuard = (*MemoryGuard)(nil)

// NewMemoryGuard returns an empty guard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{held: make(map[int64]struct{})}
}

// Acquire takes the persona's token or fails with ports.ErrTokenHeld.
func (g *MemoryGuard) Acquire(_ context.Context, personaID int64) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.held[personaID]; ok {
		return nil, ports.ErrTokenHeld
	}
	g.held[personaID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, personaID)
			g.mu.Unlock()
		})
	}, nil
}
