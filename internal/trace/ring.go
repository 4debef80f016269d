package trace

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// DefaultRingSize is the ring capacity used when none is given.
const DefaultRingSize = 4096

// RingTracer keeps the newest events in a fixed buffer and counts every
// admitted event by kind, including the ones it has since overwritten.
type RingTracer struct {
	mu      sync.Mutex
	buf     []Event
	written uint64
	counts  [kindCount]uint64
	level   Level
}

// NewRingTracer keeps up to capacity events admitted by level.
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = DefaultRingSize
	}
	return &RingTracer{buf: make([]Event, capacity), level: level}
}

func (r *RingTracer) Emit(ev *Event) {
	if !r.level.Admits(ev.Kind) || ev.Kind >= kindCount {
		return
	}
	r.mu.Lock()
	r.buf[r.written%uint64(len(r.buf))] = *ev
	r.written++
	r.counts[ev.Kind]++
	r.mu.Unlock()
}

// Events returns the kept events, oldest first.
func (r *RingTracer) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	size := uint64(len(r.buf))
	if r.written <= size {
		return append([]Event(nil), r.buf[:r.written]...)
	}
	head := r.written % size
	out := make([]Event, 0, size)
	out = append(out, r.buf[head:]...)
	return append(out, r.buf[:head]...)
}

// Dropped is the number of events overwritten by newer ones.
func (r *RingTracer) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if size := uint64(len(r.buf)); r.written > size {
		return r.written - size
	}
	return 0
}

// Count is the number of kind events seen since the ring was created.
func (r *RingTracer) Count(kind Kind) uint64 {
	if kind == 0 || kind >= kindCount {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[kind]
}

// Summary renders the per-kind counts, skipping kinds never seen.
func (r *RingTracer) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var b strings.Builder
	fmt.Fprintf(&b, "%d events", r.written)
	for k := KindBegin; k < kindCount; k++ {
		if r.counts[k] > 0 {
			fmt.Fprintf(&b, " %s=%d", k, r.counts[k])
		}
	}
	return b.String()
}

// Dump writes the kept events followed by a summary line.
func (r *RingTracer) Dump(w io.Writer, format Format) error {
	for _, ev := range r.Events() {
		if _, err := w.Write(FormatEvent(&ev, format)); err != nil {
			return err
		}
	}
	if dropped := r.Dropped(); dropped > 0 {
		_, err := fmt.Fprintf(w, "ring: %s (%d overwritten)\n", r.Summary(), dropped)
		return err
	}
	_, err := fmt.Fprintf(w, "ring: %s\n", r.Summary())
	return err
}

func (r *RingTracer) Flush() error { return nil }
func (r *RingTracer) Close() error { return nil }
func (r *RingTracer) Level() Level { return r.level }

// RingOf returns the ring behind t, or nil when t keeps none.
func RingOf(t Tracer) *RingTracer {
	switch tt := t.(type) {
	case *RingTracer:
		return tt
	case tee:
		return tt.ring
	}
	return nil
}
