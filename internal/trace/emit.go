package trace

import (
	"sync/atomic"
	"time"
)

var seq atomic.Uint64

func emit(t Tracer, ev Event) {
	if t == nil || !t.Level().Admits(ev.Kind) {
		return
	}
	ev.Time = time.Now()
	ev.Seq = seq.Add(1)
	t.Emit(&ev)
}

// Alloc records that an object of typeName now occupies addr.
func Alloc(t Tracer, typeName string, addr, epoch uint64) {
	emit(t, Event{Kind: KindAlloc, Name: typeName, Addr: addr, Epoch: epoch})
}

// Free records that the object of typeName at addr was reclaimed.
func Free(t Tracer, typeName string, addr uint64) {
	emit(t, Event{Kind: KindFree, Name: typeName, Addr: addr})
}

// Capture records a weak reference binding to addr with the given
// fingerprint. addr 0 is a binding to null.
func Capture(t Tracer, addr, dispatch, epoch uint64) {
	emit(t, Event{Kind: KindCapture, Addr: addr, Dispatch: dispatch, Epoch: epoch})
}

// Promote records a successful upgrade of the weak reference at addr.
func Promote(t Tracer, addr uint64) {
	emit(t, Event{Kind: KindPromote, Addr: addr})
}

// Kill records a weak reference whose fingerprint no longer matched.
// dispatch and epoch are the fingerprint it was holding.
func Kill(t Tracer, addr, dispatch, epoch uint64) {
	emit(t, Event{Kind: KindKill, Addr: addr, Dispatch: dispatch, Epoch: epoch})
}

// Span brackets a phase with begin and end events. The zero Span, returned
// when phases are not traced, does nothing.
type Span struct {
	t     Tracer
	name  string
	start time.Time
	tags  []Tag
}

// Begin opens a phase span.
func Begin(t Tracer, name string, tags ...Tag) *Span {
	if t == nil || !t.Level().Admits(KindBegin) {
		return &Span{}
	}
	s := &Span{t: t, name: name, start: time.Now(), tags: append([]Tag(nil), tags...)}
	emit(t, Event{Kind: KindBegin, Name: name, Tags: tags})
	return s
}

// Tag adds a key/value pair to the end event.
func (s *Span) Tag(key, value string) *Span {
	if s.t != nil {
		s.tags = append(s.tags, Tag{Key: key, Value: value})
	}
	return s
}

// End closes the span and returns its duration.
func (s *Span) End() time.Duration {
	if s.t == nil {
		return 0
	}
	d := time.Since(s.start)
	emit(s.t, Event{Kind: KindEnd, Name: s.name, Dur: d, Tags: s.tags})
	return d
}
