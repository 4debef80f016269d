package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"rcweak/internal/rt"
)

func TestWriteRead(t *testing.T) {
	h := rt.NewHeap(rt.Config{})
	node := h.RegisterType("Node")
	leaf := h.RegisterType("Leaf")
	a := h.Alloc(node)
	b := h.Alloc(leaf, rt.MakeInt(1))
	h.Release(b)

	path := filepath.Join(t.TempDir(), "out", "heap.mp")
	if err := Write(path, FromHeap(h, "unit", node, leaf)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if len(got.Cells) != 2 {
		t.Fatalf("expected 2 cells, got %d", len(got.Cells))
	}
	if got.Cells[0].Addr != a.A || got.Cells[0].Type != "Node" || got.Cells[0].Free || got.Cells[0].AllocID != 1 {
		t.Fatalf("unexpected first cell %+v", got.Cells[0])
	}
	if !got.Cells[1].Free {
		t.Fatalf("second cell should be free: %+v", got.Cells[1])
	}
	if name, ok := got.TypeName(node.Addr()); !ok || name != "Node" {
		t.Fatalf("TypeName = %q, %v", name, ok)
	}
	if _, ok := got.TypeName(got.Cells[1].Dispatch); ok {
		t.Fatalf("free-list link resolved to a type")
	}
	summary := got.Summary()
	if !strings.Contains(summary, `snapshot "unit"`) || !strings.Contains(summary, "OBJ type=Node rc=1 fields=0") {
		t.Fatalf("unexpected summary:\n%s", summary)
	}
	h.Release(a)
}

func TestReadRejectsOtherSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.mp")
	data, err := msgpack.Marshal(&Snapshot{Schema: schemaVersion + 1})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Read(path); !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.mp"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestWriteWrapsFilesystemErrors(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	h := rt.NewHeap(rt.Config{})

	err := Write(filepath.Join(blocker, "heap.mp"), FromHeap(h, "unit"))
	if err == nil || !strings.HasPrefix(err.Error(), "create snapshot dir: ") {
		t.Fatalf("expected wrapped mkdir error, got %v", err)
	}

	target := filepath.Join(dir, "taken")
	if err := os.Mkdir(target, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(target, "keep"), nil, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	err = Write(target, FromHeap(h, "unit"))
	if err == nil || !strings.HasPrefix(err.Error(), "install snapshot ") {
		t.Fatalf("expected wrapped rename error, got %v", err)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, ".snapshot-*"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}
