package gate

import (
	"sync"
	"sync/atomic"
)

// Gate is the mutual-exclusion region serializing use of one engine
// instance. The zero value is ready to use.
type Gate struct {
	mu    sync.Mutex
	depth atomic.Int32
}

// New returns a fresh gate.
func New() *Gate {
	return &Gate{}
}

// Enter acquires the gate.
func (g *Gate) Enter() {
	g.mu.Lock()
}

// Exit releases the gate.
func (g *Gate) Exit() {
	g.mu.Unlock()
}

// Depth reports the current callback nesting depth. Nonzero means the
// holder is inside a Reentrant engine call.
func (g *Gate) Depth() int32 {
	return g.depth.Load()
}

// Blocking runs fn with the gate released. It must be called while the
// gate is held and fn must not re-enter host code through the engine.
// The gate is reacquired before Blocking returns, on success, error and
// panic paths alike.
func (g *Gate) Blocking(fn func() error) error {
	g.mu.Unlock()
	defer g.mu.Lock()
	return fn()
}

// Reentrant runs fn with the gate held and the nesting depth raised.
// It must be called while the gate is held. Engine calls that can
// invoke registered callbacks go through here: the callbacks then find
// Depth() > 0 and know not to acquire the gate again.
func (g *Gate) Reentrant(fn func() error) error {
	g.depth.Add(1)
	defer g.depth.Add(-1)
	return fn()
}

// Reenter is the trampoline-side acquisition. At depth zero it takes
// the gate; at nonzero depth the calling goroutine already holds it
// through a Reentrant section and acquisition would self-deadlock, so
// it is skipped. The returned release undoes exactly what Reenter did.
//
// Callbacks arrive on the goroutine executing the enclosing engine
// call, so a nonzero depth can only be observed by the gate's holder.
func (g *Gate) Reenter() (release func()) {
	if g.depth.Load() > 0 {
		g.depth.Add(1)
		return func() { g.depth.Add(-1) }
	}
	g.mu.Lock()
	return g.mu.Unlock
}
