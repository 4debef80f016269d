package ui

import (
	"strings"
	"testing"

	"rcweak/internal/stress"
)

func TestProgressModelTracksRounds(t *testing.T) {
	events := make(chan stress.Event)
	m := NewProgressModel("stress", 2, 3, events).(*progressModel)

	m.Update(eventMsg(stress.Event{Worker: 0, Round: 1, Rounds: 3}))
	m.Update(eventMsg(stress.Event{Worker: 1, Round: 3, Rounds: 3}))
	m.Update(eventMsg(stress.Event{Worker: 7, Round: 1, Rounds: 3}))

	if got := m.completed(); got != 4 {
		t.Fatalf("completed = %d, want 4", got)
	}
	view := m.View()
	if !strings.Contains(view, "4/6 rounds") {
		t.Fatalf("header missing round count:\n%s", view)
	}
	if !strings.Contains(view, "1/3") || !strings.Contains(view, "done") {
		t.Fatalf("worker statuses missing:\n%s", view)
	}
}

func TestProgressModelQuitsWhenEventsClose(t *testing.T) {
	events := make(chan stress.Event)
	close(events)
	m := NewProgressModel("stress", 1, 1, events).(*progressModel)

	msg := m.listenForEvent()()
	if _, ok := msg.(doneMsg); !ok {
		t.Fatalf("expected doneMsg, got %T", msg)
	}
	_, cmd := m.Update(msg)
	if cmd == nil || !m.done {
		t.Fatalf("model did not finish")
	}
	if !strings.Contains(m.View(), "done: stress") {
		t.Fatalf("expected done header, got %q", m.View())
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("worker 12", 20); got != "worker 12" {
		t.Fatalf("short value changed: %q", got)
	}
	got := truncate("a-very-long-worker-name", 10)
	if !strings.HasSuffix(got, "...") || len(got) > 10 {
		t.Fatalf("truncate = %q", got)
	}
}
