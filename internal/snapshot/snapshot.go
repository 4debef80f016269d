// Package snapshot stores heap snapshots on disk for offline inspection.
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"rcweak/internal/rt"
)

// Current schema version - increment when Snapshot changes shape.
const schemaVersion uint16 = 1

// ErrSchema is returned when a file was written by an incompatible version.
var ErrSchema = errors.New("snapshot schema mismatch")

// Snapshot is a copy of every heap cell header plus the heap counters.
// Weak references are not part of it: their addresses mean nothing outside
// the process that took the snapshot.
type Snapshot struct {
	Schema uint16        `msgpack:"schema"`
	Taken  time.Time     `msgpack:"taken"`
	Label  string        `msgpack:"label,omitempty"`
	Types  []TypeEntry   `msgpack:"types"`
	Cells  []rt.CellInfo `msgpack:"cells"`
	Stats  rt.Stats      `msgpack:"stats"`
}

// TypeEntry maps a dispatch-table address to its type name.
type TypeEntry struct {
	Name string `msgpack:"name"`
	Addr uint64 `msgpack:"addr"`
}

// FromHeap captures h. types lists the tables whose names should be kept.
func FromHeap(h *rt.Heap, label string, types ...*rt.DispatchTable) *Snapshot {
	s := &Snapshot{
		Schema: schemaVersion,
		Taken:  time.Now().UTC(),
		Label:  label,
		Cells:  h.Cells(),
		Stats:  h.Stats(),
	}
	for _, t := range types {
		s.Types = append(s.Types, TypeEntry{Name: t.Name, Addr: t.Addr()})
	}
	return s
}

// Write encodes s to path through a temp file and an atomic rename.
func Write(path string, s *Snapshot) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	f, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	if err = msgpack.NewEncoder(f).Encode(s); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close snapshot temp file: %w", err)
	}
	if err = os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("install snapshot %s: %w", path, err)
	}
	return nil
}

// Read decodes a snapshot written by Write.
func Read(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	var s Snapshot
	if err := msgpack.NewDecoder(f).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	if s.Schema != schemaVersion {
		return nil, fmt.Errorf("%s: %w: got %d, want %d", path, ErrSchema, s.Schema, schemaVersion)
	}
	return &s, nil
}

// Summary renders the snapshot the way rt.Heap.Dump renders a live heap,
// preceded by a header line.
func (s *Snapshot) Summary() string {
	head := fmt.Sprintf("snapshot %q taken %s: cells=%d live=%d allocs=%d frees=%d promotions=%d\n",
		s.Label, s.Taken.Format(time.RFC3339), s.Stats.Cells, s.Stats.Live,
		s.Stats.Allocs, s.Stats.Frees, s.Stats.Promotions)
	return head + rt.FormatCells(s.Cells)
}

// TypeName resolves a dispatch word recorded in the snapshot.
func (s *Snapshot) TypeName(dispatch uint64) (string, bool) {
	for _, t := range s.Types {
		if t.Addr == dispatch {
			return t.Name, true
		}
	}
	return "", false
}
