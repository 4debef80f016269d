package trace

import (
	"fmt"
	"strings"
)

// Level controls which kinds of event are recorded.
type Level uint8

const (
	LevelOff Level = iota
	LevelPhase
	LevelHeap
	LevelSlot
)

func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelPhase:
		return "phase"
	case LevelHeap:
		return "heap"
	case LevelSlot:
		return "slot"
	default:
		return "unknown"
	}
}

// ParseLevel accepts off, phase, heap and slot ("all" is slot), ignoring
// case and surrounding space. Empty means off.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off":
		return LevelOff, nil
	case "phase":
		return LevelPhase, nil
	case "heap":
		return LevelHeap, nil
	case "slot", "all":
		return LevelSlot, nil
	default:
		return LevelOff, fmt.Errorf("invalid trace level %q (expected off|phase|heap|slot)", s)
	}
}

// Admits reports whether events of kind k are recorded at l.
func (l Level) Admits(k Kind) bool {
	return l != LevelOff && k.Level() <= l
}
