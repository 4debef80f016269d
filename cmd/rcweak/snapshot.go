package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"rcweak/internal/rt"
	"rcweak/internal/snapshot"
	"rcweak/internal/trace"
	"rcweak/internal/weakref"
)

var dumpCmd = &cobra.Command{
	Use:   "dump FILE",
	Short: "Write a snapshot of a sample heap with live and freed cells",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tr := trace.FromContext(cmd.Context())
		h := rt.NewHeap(settings.RuntimeConfig(tr))
		snap, release := sampleHeap(h, settings.Mode())
		defer release()

		if err := snapshot.Write(args[0], snap); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d cells, %d live)\n",
			okColor.Sprint("wrote"), args[0], snap.Stats.Cells, snap.Stats.Live)
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Print a heap snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := snapshot.Read(args[0])
		if err != nil {
			return err
		}
		printSnapshot(cmd.OutOrStdout(), snap)
		return nil
	},
}

// sampleHeap builds a small object graph, kills part of it and captures
// the heap. The returned func releases what is still alive.
func sampleHeap(h *rt.Heap, mode weakref.Mode) (*snapshot.Snapshot, func()) {
	node := h.RegisterType("sample.Node")
	leaf := h.RegisterType("sample.Leaf")

	var roots []rt.Value
	for i := 0; i < 3; i++ {
		child := h.Alloc(leaf, rt.MakeInt(int64(i)))
		roots = append(roots, h.Alloc(node, child, rt.MakeInt(int64(i))))
	}

	refs := make([]*weakref.Ref, 0, len(roots))
	for _, r := range roots {
		ref := weakref.New(h, weakref.WithMode(mode))
		ref.SetTarget(r)
		refs = append(refs, ref)
	}

	// Dropping the middle node frees its leaf too.
	h.Release(roots[1])
	roots = append(roots[:1], roots[2:]...)

	snap := snapshot.FromHeap(h, "sample", node, leaf)
	return snap, func() {
		for _, ref := range refs {
			ref.Close()
		}
		for _, r := range roots {
			h.Release(r)
		}
	}
}

func printSnapshot(out io.Writer, snap *snapshot.Snapshot) {
	fmt.Fprint(out, snap.Summary())
	if len(snap.Types) == 0 {
		return
	}
	fmt.Fprintln(out, noteColor.Sprint("types:"))
	for _, t := range snap.Types {
		fmt.Fprintf(out, "  %#x %s\n", t.Addr, t.Name)
	}
}
