// Package weakref provides weak references over the rt heap.
//
// A Ref remembers a target's address and a fingerprint read from the
// target's header (its dispatch-table word) without taking a count. Each
// GetTarget re-reads the header; if the word still matches, the stored
// address is promoted to a counted reference for the caller and the Ref's
// own slot is demoted back to the raw form before the call returns.
//
// The fingerprint is a heuristic. If the target is freed and its cell is
// reused by an object of the same type, the header matches again and
// GetTarget hands out the new object. ModeDispatchEpoch closes that gap by
// also comparing the cell's allocation epoch.
//
// Native offers the same contract for ordinary Go values using the
// standard library's weak pointers.
package weakref
