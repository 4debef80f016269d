package weakref

import (
	"sync"
	"weak"
)

// Native is a weak reference to a Go value managed by the garbage collector.
// The zero value is an unbound reference.
type Native[T any] struct {
	mu    sync.Mutex
	ptr   weak.Pointer[T]
	state State
}

// SetTarget binds n to p without keeping p reachable. A nil p leaves n dead.
func (n *Native[T]) SetTarget(p *T) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if p == nil {
		n.ptr = weak.Pointer[T]{}
		n.state = Dead
		return
	}
	n.ptr = weak.Make(p)
	n.state = Bound
}

// GetTarget returns the target, or nil once it has been collected.
func (n *Native[T]) GetTarget() *T {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != Bound {
		return nil
	}
	p := n.ptr.Value()
	if p == nil {
		n.state = Dead
	}
	return p
}

// State returns the current state without checking liveness.
func (n *Native[T]) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}
