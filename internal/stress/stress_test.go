package stress

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"rcweak/internal/rt"
	"rcweak/internal/weakref"
)

func TestRunKeepsCountsExact(t *testing.T) {
	h := rt.NewHeap(rt.Config{})
	cfg := Config{Workers: 4, Rounds: 20, Refs: 16, Seed: 7, Mode: weakref.ModeDispatch}

	report, err := Run(context.Background(), h, cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v (%s)", err, report)
	}
	if report.Violations != 0 || report.Leaked != 0 {
		t.Fatalf("unexpected report %s", report)
	}
	if want := uint64(4 * 20 * 16); report.Captures != want {
		t.Fatalf("captures = %d, want %d", report.Captures, want)
	}
	if got := report.Promotions + report.Deaths + report.FalsePositives; got != report.Captures {
		t.Fatalf("outcomes %d do not add up to captures %d", got, report.Captures)
	}
	if report.Deaths == 0 {
		t.Fatalf("expected some targets to die")
	}
	if err := h.CheckLeaks(); err != nil {
		t.Fatalf("heap not empty after run: %v", err)
	}
}

func TestRunRecycleDispatchSeesFalsePositives(t *testing.T) {
	// One worker on a LIFO heap hands every freed cell straight to the
	// refill of the same type.
	h := rt.NewHeap(rt.Config{Reuse: rt.ReuseLIFO})
	cfg := Config{Workers: 1, Rounds: 10, Refs: 8, Seed: 3, Mode: weakref.ModeDispatch, Recycle: true}

	report, err := Run(context.Background(), h, cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.FalsePositives == 0 {
		t.Fatalf("expected false positives, got %s", report)
	}
	if report.Deaths != 0 {
		t.Fatalf("expected every dropped target to be mistaken for live, got %s", report)
	}
}

func TestRunRecycleEpochHasNoFalsePositives(t *testing.T) {
	h := rt.NewHeap(rt.Config{Reuse: rt.ReuseLIFO})
	cfg := Config{Workers: 2, Rounds: 10, Refs: 8, Seed: 3, Mode: weakref.ModeDispatchEpoch, Recycle: true}

	report, err := Run(context.Background(), h, cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.FalsePositives != 0 {
		t.Fatalf("epoch fingerprint was fooled: %s", report)
	}
	if report.Deaths == 0 {
		t.Fatalf("expected deaths, got %s", report)
	}
}

func TestRunRejectsEmptyConfig(t *testing.T) {
	_, err := Run(context.Background(), rt.NewHeap(rt.Config{}), Config{Workers: 1}, nil)
	if err == nil || !strings.Contains(err.Error(), "must be positive") {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := rt.NewHeap(rt.Config{})
	_, err := Run(ctx, h, Config{Workers: 2, Rounds: 1000, Refs: 4, Seed: 1}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := h.CheckLeaks(); err != nil {
		t.Fatalf("cancelled run leaked: %v", err)
	}
}

func TestRunReportsEveryRound(t *testing.T) {
	events := make(chan Event)
	var (
		wg     sync.WaitGroup
		seen   int
		rounds = map[int]int{}
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range events {
			seen++
			if ev.Round > rounds[ev.Worker] {
				rounds[ev.Worker] = ev.Round
			}
		}
	}()

	cfg := Config{Workers: 3, Rounds: 5, Refs: 2, Seed: 11}
	_, err := Run(context.Background(), rt.NewHeap(rt.Config{}), cfg, events)
	close(events)
	wg.Wait()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if seen != 15 {
		t.Fatalf("saw %d events, want 15", seen)
	}
	for w := 0; w < cfg.Workers; w++ {
		if rounds[w] != cfg.Rounds {
			t.Fatalf("worker %d reached round %d, want %d", w, rounds[w], cfg.Rounds)
		}
	}
}

func TestReportStringGroupsDigits(t *testing.T) {
	r := Report{Workers: 1, Rounds: 1, Captures: 1234567}
	if s := r.String(); !strings.Contains(s, "captures=1,234,567") {
		t.Fatalf("unexpected rendering %q", s)
	}
}
