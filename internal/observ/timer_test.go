package observ

import (
	"strings"
	"testing"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	end := tm.Track("setup")
	end("2 workers")
	idx := tm.Begin("run")
	tm.End(idx, "")
	tm.End(42, "ignored")

	report := tm.Report()
	if len(report.Phases) != 2 {
		t.Fatalf("expected 2 phases, got %d", len(report.Phases))
	}
	if report.Phases[0].Name != "setup" || report.Phases[0].Note != "2 workers" {
		t.Fatalf("unexpected first phase %+v", report.Phases[0])
	}
	if report.TotalMS < report.Phases[0].DurationMS {
		t.Fatalf("total %f below phase duration %f", report.TotalMS, report.Phases[0].DurationMS)
	}

	summary := tm.Summary()
	if !strings.Contains(summary, "setup") || !strings.Contains(summary, "// 2 workers") || !strings.Contains(summary, "total") {
		t.Fatalf("unexpected summary:\n%s", summary)
	}
}

func TestEmptyTimer(t *testing.T) {
	if r := NewTimer().Report(); r.TotalMS != 0 || len(r.Phases) != 0 {
		t.Fatalf("expected empty report, got %+v", r)
	}
}
