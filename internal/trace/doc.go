// Package trace records heap and weak-reference activity.
//
// Every event has a Kind, and the kind alone decides which Level admits it:
//
//	phase  begin, end, heartbeat   (demo run, stress rounds)
//	heap   + alloc, free           (object lifetime)
//	slot   + capture, promote, kill (weak reference transitions)
//
// Instrumented code calls the typed helpers (Alloc, Capture, Kill, ...) and
// never builds an Event by hand. With tracing off the helpers return after
// a single Level check.
//
//	rcweak demo --trace=- --trace-level=slot
//	rcweak stress --trace-mode=ring --trace-level=heap
//
// A ring sink keeps the newest events plus a count of every kind it saw, so
// a long stress run can be summarised without streaming millions of lines.
package trace
