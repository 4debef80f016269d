// Package stress drives many weak references over one heap from several
// goroutines and checks that promotion, death and teardown keep the heap's
// counts exact.
package stress

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"rcweak/internal/observ"
	"rcweak/internal/rt"
	"rcweak/internal/trace"
	"rcweak/internal/weakref"
)

// ErrViolation is returned when a run observed a broken guarantee.
var ErrViolation = errors.New("weak reference guarantee violated")

// Config sizes a run.
type Config struct {
	Workers int
	Rounds  int // per worker
	Refs    int // weak references per round
	Seed    int64
	Mode    weakref.Mode
	// Recycle refills freed cells with objects of the dropped target's own
	// type instead of a filler type, provoking fingerprint collisions.
	Recycle bool
}

// Event reports one finished round.
type Event struct {
	Worker int
	Round  int
	Rounds int
}

// Report summarises a run.
type Report struct {
	Workers        int
	Rounds         int
	Captures       uint64
	Promotions     uint64
	Deaths         uint64
	FalsePositives uint64
	Violations     uint64
	Leaked         int
	FirstViolation string
	Stats          rt.Stats
	Timing         observ.Report
}

// String renders the report with grouped digits.
func (r Report) String() string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("workers=%d rounds=%d captures=%d promotions=%d deaths=%d false_positives=%d violations=%d leaked=%d",
		r.Workers, r.Rounds, r.Captures, r.Promotions, r.Deaths, r.FalsePositives, r.Violations, r.Leaked)
}

type tally struct {
	captures       atomic.Uint64
	promotions     atomic.Uint64
	deaths         atomic.Uint64
	falsePositives atomic.Uint64
	violations     atomic.Uint64
	first          atomic.Pointer[string]
}

func (t *tally) violate(format string, args ...any) {
	t.violations.Add(1)
	msg := fmt.Sprintf(format, args...)
	t.first.CompareAndSwap(nil, &msg)
}

type types struct {
	node   *rt.DispatchTable
	leaf   *rt.DispatchTable
	filler *rt.DispatchTable
}

// Run executes cfg against h. events may be nil; when set it receives one
// Event per finished round and is not closed by Run.
func Run(ctx context.Context, h *rt.Heap, cfg Config, events chan<- Event) (Report, error) {
	if cfg.Workers <= 0 || cfg.Rounds <= 0 || cfg.Refs <= 0 {
		return Report{}, fmt.Errorf("stress: workers, rounds and refs must be positive")
	}
	tr := trace.FromContext(ctx)
	timer := observ.NewTimer()

	endSetup := timer.Track("setup")
	// Types are per worker so a cell recycled by one worker never matches
	// another worker's fingerprints.
	perWorker := make([]types, cfg.Workers)
	for w := range perWorker {
		perWorker[w] = types{
			node:   h.RegisterType(fmt.Sprintf("stress.Node/%d", w)),
			leaf:   h.RegisterType(fmt.Sprintf("stress.Leaf/%d", w)),
			filler: h.RegisterType(fmt.Sprintf("stress.Filler/%d", w)),
		}
	}
	liveBefore := h.Stats().Live
	endSetup(fmt.Sprintf("%d workers", cfg.Workers))

	endRun := timer.Track("workers")
	var tl tally
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Workers; w++ {
		g.Go(func() error {
			wk := &worker{
				id:     w,
				heap:   h,
				cfg:    cfg,
				ty:     perWorker[w],
				tally:  &tl,
				tracer: tr,
				rng:    rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(w))),
			}
			for round := 0; round < cfg.Rounds; round++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				wk.round(round)
				if events != nil {
					select {
					case events <- Event{Worker: w, Round: round + 1, Rounds: cfg.Rounds}:
					case <-gctx.Done():
						return gctx.Err()
					}
				}
			}
			return nil
		})
	}
	runErr := g.Wait()
	endRun(strconv.Itoa(cfg.Workers*cfg.Rounds) + " rounds")

	endVerify := timer.Track("verify")
	stats := h.Stats()
	report := Report{
		Workers:        cfg.Workers,
		Rounds:         cfg.Rounds,
		Captures:       tl.captures.Load(),
		Promotions:     tl.promotions.Load(),
		Deaths:         tl.deaths.Load(),
		FalsePositives: tl.falsePositives.Load(),
		Violations:     tl.violations.Load(),
		Leaked:         stats.Live - liveBefore,
		Stats:          stats,
	}
	if msg := tl.first.Load(); msg != nil {
		report.FirstViolation = *msg
	}
	endVerify("")
	report.Timing = timer.Report()

	if runErr != nil {
		return report, runErr
	}
	if report.Leaked != 0 {
		return report, fmt.Errorf("%w: %d objects leaked", ErrViolation, report.Leaked)
	}
	if report.Violations > 0 {
		return report, fmt.Errorf("%w: %d violations, first: %s", ErrViolation, report.Violations, report.FirstViolation)
	}
	return report, nil
}

type worker struct {
	id     int
	heap   *rt.Heap
	cfg    Config
	ty     types
	tally  *tally
	tracer trace.Tracer
	rng    *rand.Rand
}

type binding struct {
	ref      *weakref.Ref
	target   rt.Value
	dispatch uint64
	dropped  bool
}

func (w *worker) round(n int) {
	span := trace.Begin(w.tracer, "round",
		trace.Tag{Key: "worker", Value: strconv.Itoa(w.id)},
		trace.Tag{Key: "round", Value: strconv.Itoa(n)})
	defer span.End()

	h := w.heap
	bs := make([]binding, w.cfg.Refs)
	for i := range bs {
		t := w.ty.node
		if i%2 == 1 {
			t = w.ty.leaf
		}
		target := h.Alloc(t, rt.MakeInt(int64(i)))
		ref := weakref.New(h, weakref.WithMode(w.cfg.Mode), weakref.WithTracer(w.tracer))

		before := h.RefCount(target.A)
		ref.SetTarget(target)
		if after := h.RefCount(target.A); after != before {
			w.tally.violate("worker %d: SetTarget changed rc %d -> %d", w.id, before, after)
		}
		w.tally.captures.Add(1)
		bs[i] = binding{ref: ref, target: target, dispatch: t.Addr()}
	}

	var fillers []rt.Value
	for i := range bs {
		if w.rng.IntN(2) == 0 {
			continue
		}
		h.Release(bs[i].target)
		bs[i].dropped = true
		refill := w.ty.filler
		if w.cfg.Recycle {
			refill, _ = h.TableAt(bs[i].dispatch)
		}
		fillers = append(fillers, h.Alloc(refill))
	}

	for i := range bs {
		b := &bs[i]
		got := b.ref.GetTarget()
		switch {
		case !b.dropped:
			if !got.SameObject(b.target) {
				w.tally.violate("worker %d: live target %s came back as %s", w.id, b.target, got)
			} else {
				w.tally.promotions.Add(1)
			}
		case got.IsNull():
			w.tally.deaths.Add(1)
			if again := b.ref.GetTarget(); !again.IsNull() {
				w.tally.violate("worker %d: dead reference revived as %s", w.id, again)
				h.Release(again)
			}
		case w.cfg.Mode == weakref.ModeDispatch && h.ReadHeaderWord(got.A, rt.WordDispatch) == b.dispatch:
			// The freed cell was refilled with the same type; a
			// dispatch-only fingerprint cannot tell.
			w.tally.falsePositives.Add(1)
		default:
			w.tally.violate("worker %d: dropped target %s promoted to %s", w.id, b.target, got)
		}
		h.Release(got)
	}

	for i := range bs {
		b := &bs[i]
		b.ref.Close()
		if !b.dropped {
			if rc := h.RefCount(b.target.A); rc != 1 {
				w.tally.violate("worker %d: %s has rc %d after Close, want 1", w.id, b.target, rc)
			}
			h.Release(b.target)
		}
	}
	for _, f := range fillers {
		h.Release(f)
	}
}
