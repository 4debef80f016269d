package weakref

import (
	"fmt"
	"strings"

	"rcweak/internal/rt"
)

// Mode selects what the fingerprint captures.
type Mode uint8

const (
	// ModeDispatch captures the dispatch-table word only.
	ModeDispatch Mode = iota
	// ModeDispatchEpoch also captures the cell's allocation epoch, which the
	// heap bumps every time it hands the cell out again.
	ModeDispatchEpoch
)

func (m Mode) String() string {
	switch m {
	case ModeDispatch:
		return "dispatch"
	case ModeDispatchEpoch:
		return "dispatch+epoch"
	default:
		return "unknown"
	}
}

// ParseMode converts a config string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dispatch":
		return ModeDispatch, nil
	case "dispatch+epoch", "epoch":
		return ModeDispatchEpoch, nil
	default:
		return ModeDispatch, fmt.Errorf("invalid fingerprint mode %q (expected dispatch|dispatch+epoch)", s)
	}
}

// Fingerprint is a snapshot of a target's header.
type Fingerprint struct {
	Dispatch uint64
	Epoch    uint64
}

func (f Fingerprint) String() string {
	if f.Epoch == 0 {
		return fmt.Sprintf("%#x", f.Dispatch)
	}
	return fmt.Sprintf("%#x/%d", f.Dispatch, f.Epoch)
}

// readIdentityFingerprint is the only place that looks inside a target's
// header. It relies on the rt cell layout: WordDispatch holds the table
// address of a live object and a tagged free-list link otherwise.
func readIdentityFingerprint(m rt.Mem, a rt.Addr, mode Mode) Fingerprint {
	fp := Fingerprint{Dispatch: m.ReadHeaderWord(a, rt.WordDispatch)}
	if mode == ModeDispatchEpoch {
		fp.Epoch = m.ReadHeaderWord(a, rt.WordEpoch)
	}
	return fp
}
