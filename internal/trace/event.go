package trace

import "time"

// Kind identifies what happened.
type Kind uint8

const (
	KindBegin Kind = iota + 1
	KindEnd
	KindHeartbeat
	KindAlloc
	KindFree
	KindCapture
	KindPromote
	KindKill

	kindCount
)

var kindNames = [kindCount]string{
	KindBegin:     "begin",
	KindEnd:       "end",
	KindHeartbeat: "heartbeat",
	KindAlloc:     "alloc",
	KindFree:      "free",
	KindCapture:   "capture",
	KindPromote:   "promote",
	KindKill:      "kill",
}

func (k Kind) String() string {
	if k == 0 || k >= kindCount {
		return "unknown"
	}
	return kindNames[k]
}

// Level is the least verbose level that admits k.
func (k Kind) Level() Level {
	switch k {
	case KindAlloc, KindFree:
		return LevelHeap
	case KindCapture, KindPromote, KindKill:
		return LevelSlot
	default:
		return LevelPhase
	}
}

// Tag is an ordered key/value pair attached to a span.
type Tag struct {
	Key   string
	Value string
}

// Event is one trace record. Which fields are set depends on Kind:
// spans fill Name and Tags (End also Dur), heap events fill Name with the
// type name plus Addr and Epoch, slot events fill Addr and the captured
// Dispatch/Epoch fingerprint, heartbeats carry Name "#n" and a Note.
type Event struct {
	Time     time.Time
	Seq      uint64
	Kind     Kind
	Name     string
	Addr     uint64
	Dispatch uint64
	Epoch    uint64
	Dur      time.Duration
	Note     string
	Tags     []Tag
}
