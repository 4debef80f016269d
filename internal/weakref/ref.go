package weakref

import (
	"sync"

	"rcweak/internal/rt"
	"rcweak/internal/trace"
)

// Ref is a weak reference to an object on an rt.Heap. It never owns a count
// on its target. A Ref must not be copied after first use.
type Ref struct {
	mu sync.Mutex

	heap *rt.Heap
	// slot holds the target address. Between calls it is always in the raw
	// form (rawKind) or null; a counted slot would be released by Close.
	slot    rt.Value
	rawKind rt.ValueKind
	fp      Fingerprint
	state   State

	mode   Mode
	tracer trace.Tracer
}

// Option configures a Ref.
type Option func(*Ref)

// WithMode sets the fingerprint mode.
func WithMode(mode Mode) Option {
	return func(r *Ref) { r.mode = mode }
}

// WithTracer sets the tracer used for slot events.
func WithTracer(t trace.Tracer) Option {
	return func(r *Ref) {
		if t != nil {
			r.tracer = t
		}
	}
}

// New returns an unbound weak reference on h.
func New(h *rt.Heap, opts ...Option) *Ref {
	r := &Ref{heap: h, tracer: trace.Nop}
	for _, opt := range opts {
		opt(r)
	}
	r.initialize()
	return r
}

func (r *Ref) initialize() {
	r.rawKind = rt.VKAddr
	r.slot = rt.Value{Kind: r.rawKind}
	r.fp = Fingerprint{}
	r.state = Unbound
}

// SetTarget binds r to v without changing v's count. A null v leaves r dead.
// Rebinding replaces the address and the fingerprint together.
func (r *Ref) SetTarget(v rt.Value) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var addr rt.Addr
	var fp Fingerprint
	r.heap.Exclusive(func(m rt.Mem) {
		addr = m.AddressOf(v)
		if addr != 0 {
			fp = readIdentityFingerprint(m, addr, r.mode)
		}
	})

	r.slot = rt.Value{Kind: r.rawKind, A: addr}
	if addr == 0 {
		r.state = Dead
		trace.Capture(r.tracer, 0, 0, 0)
		return
	}
	r.fp = fp
	r.state = Bound
	trace.Capture(r.tracer, uint64(addr), fp.Dispatch, fp.Epoch)
}

// GetTarget returns a counted reference to the target, or rt.Null() when the
// target is gone or was never set. The caller owns the returned count and
// must release it.
func (r *Ref) GetTarget() rt.Value {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Bound {
		return rt.Null()
	}

	out := rt.Null()
	matched := false
	r.heap.Exclusive(func(m rt.Mem) {
		if readIdentityFingerprint(m, r.slot.A, r.mode) != r.fp {
			return
		}
		matched = true
		// Promote, hand off, demote: nothing else touches the heap in
		// between, so the slot is counted only while out is being copied.
		m.Promote(&r.slot)
		out = r.slot
		m.Demote(&r.slot)
	})

	if !matched {
		r.state = Dead
		trace.Kill(r.tracer, uint64(r.slot.A), r.fp.Dispatch, r.fp.Epoch)
		return rt.Null()
	}
	trace.Promote(r.tracer, uint64(out.A))
	return out
}

// Alive runs the liveness check without promoting. A failed check kills r
// exactly as GetTarget would.
func (r *Ref) Alive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Bound {
		return false
	}
	var fp Fingerprint
	r.heap.Exclusive(func(m rt.Mem) {
		fp = readIdentityFingerprint(m, r.slot.A, r.mode)
	})
	if fp != r.fp {
		r.state = Dead
		trace.Kill(r.tracer, uint64(r.slot.A), r.fp.Dispatch, r.fp.Epoch)
		return false
	}
	return true
}

// State returns the current state without checking liveness.
func (r *Ref) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Address returns the captured address, 0 when none.
func (r *Ref) Address() rt.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slot.A
}

// Mode returns the fingerprint mode.
func (r *Ref) Mode() Mode {
	return r.mode
}

// Close releases r's storage. The slot is in the raw form, so tearing it down
// through the heap leaves the target's count alone.
func (r *Ref) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.heap.Drop(&r.slot)
	r.fp = Fingerprint{}
	r.state = Dead
}
