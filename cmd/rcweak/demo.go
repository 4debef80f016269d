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

var demoDumpPath string

func init() {
	demoCmd.Flags().StringVar(&demoDumpPath, "dump", "", "write a heap snapshot taken after the demo to this file")
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Walk a weak reference through bind, promote and death",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tr := trace.FromContext(cmd.Context())
		h := rt.NewHeap(settings.RuntimeConfig(tr))
		res, err := runDemo(cmd.OutOrStdout(), h, settings.Mode(), tr)
		if err != nil {
			return err
		}
		if demoDumpPath != "" {
			snap := snapshot.FromHeap(h, "demo", res.types...)
			if err := snapshot.Write(demoDumpPath, snap); err != nil {
				return fmt.Errorf("write snapshot: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", noteColor.Sprint("snapshot:"), demoDumpPath)
		}
		return nil
	},
}

type demoResult struct {
	types []*rt.DispatchTable
}

// runDemo binds a weak reference to a fresh object, promotes it, drops the
// object, and shows that the reference then yields null, even after the
// freed cell has been handed to an object of another type.
func runDemo(out io.Writer, h *rt.Heap, mode weakref.Mode, tr trace.Tracer) (demoResult, error) {
	span := trace.Begin(tr, "demo", trace.Tag{Key: "fingerprint", Value: mode.String()})
	defer span.End()

	object := h.RegisterType("demo.Object")
	other := h.RegisterType("demo.Other")
	res := demoResult{types: []*rt.DispatchTable{object, other}}

	ref := weakref.New(h, weakref.WithMode(mode), weakref.WithTracer(tr))
	defer ref.Close()

	step := func(ok bool, format string, args ...any) error {
		msg := fmt.Sprintf(format, args...)
		if !ok {
			fmt.Fprintf(out, "%s %s\n", failColor.Sprint("FAIL"), msg)
			return fmt.Errorf("demo step failed: %s", msg)
		}
		fmt.Fprintf(out, "%s %s\n", okColor.Sprint("ok  "), msg)
		return nil
	}

	fmt.Fprintf(out, "%s fingerprint=%s reuse=%s\n", noteColor.Sprint("heap:"), mode, settings.Heap.Reuse)

	if err := step(ref.GetTarget().IsNull(), "unbound reference yields null"); err != nil {
		return res, err
	}

	a := h.Alloc(object, rt.MakeInt(42))
	ref.SetTarget(a)
	if err := step(h.RefCount(a.A) == 1, "SetTarget(%s) leaves rc=%d", a, h.RefCount(a.A)); err != nil {
		return res, err
	}

	got := ref.GetTarget()
	if err := step(got.SameObject(a) && h.RefCount(a.A) == 2,
		"GetTarget() = %s, rc=%d while the caller holds it", got, h.RefCount(a.A)); err != nil {
		return res, err
	}
	h.Release(got)
	if err := step(h.RefCount(a.A) == 1, "caller released its copy, rc=%d", h.RefCount(a.A)); err != nil {
		return res, err
	}

	addr := a.A
	h.Release(a)
	if err := step(!h.Live(addr), "last strong reference dropped, %s freed", addr); err != nil {
		return res, err
	}

	filler := h.Alloc(other)
	reused := filler.A == addr
	fmt.Fprintf(out, "%s %s allocated at %s (cell reused: %v)\n", noteColor.Sprint("note:"), other.Name, filler.A, reused)

	got = ref.GetTarget()
	if err := step(got.IsNull(), "GetTarget() after free = %s", got); err != nil {
		h.Release(got)
		h.Release(filler)
		return res, err
	}
	if err := step(ref.State() == weakref.Dead, "reference is %s", ref.State()); err != nil {
		h.Release(filler)
		return res, err
	}
	h.Release(filler)

	fmt.Fprintln(out)
	fmt.Fprint(out, h.Dump())
	return res, nil
}
