package statestore

import "sync"

// Gate serializes mutating engine operations. Every top-level mutation runs
// to completion, or fails with no observable state change, before the next
// one is admitted; readers do not take the gate.
type Gate struct {
	mu sync.Mutex
}

// NewGate returns a gate shared by all mutating services of one engine.
func NewGate() *Gate {
	return &Gate{}
}

// Do runs fn while holding the gate.
func (g *Gate) Do(fn func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn()
}
