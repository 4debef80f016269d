package trace

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Format is an event encoding.
type Format uint8

const (
	FormatAuto Format = iota
	FormatText
	FormatNDJSON
)

// FormatEvent encodes ev as one newline-terminated line.
func FormatEvent(ev *Event, format Format) []byte {
	if format == FormatNDJSON {
		return eventJSON(ev)
	}
	return eventText(ev)
}

var glyphs = [kindCount]string{
	KindBegin:     "→",
	KindEnd:       "←",
	KindHeartbeat: "♡",
	KindAlloc:     "+",
	KindFree:      "-",
	KindCapture:   "•",
	KindPromote:   "↑",
	KindKill:      "✗",
}

func glyph(k Kind) string {
	if k == 0 || k >= kindCount {
		return "?"
	}
	return glyphs[k]
}

func fingerprint(dispatch, epoch uint64) string {
	if epoch == 0 {
		return fmt.Sprintf("%#x", dispatch)
	}
	return fmt.Sprintf("%#x/%d", dispatch, epoch)
}

// eventText renders for example
//
//	#000007 + alloc demo.Object @0x10000 epoch=1
//	#000009 ✗ kill @0x10000 fp=0x7f000000
//	#000012 ← round 1.2ms {worker=0 round=3}
func eventText(ev *Event) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "#%06d %s %s", ev.Seq, glyph(ev.Kind), ev.Kind)
	switch ev.Kind {
	case KindBegin, KindEnd:
		b.WriteString(" " + ev.Name)
		if ev.Kind == KindEnd {
			b.WriteString(" " + ev.Dur.Round(time.Microsecond).String())
		}
		if len(ev.Tags) > 0 {
			b.WriteString(" {")
			for i, tag := range ev.Tags {
				if i > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(tag.Key + "=" + tag.Value)
			}
			b.WriteByte('}')
		}
	case KindHeartbeat:
		b.WriteString(" " + ev.Name)
		if ev.Note != "" {
			b.WriteString(" " + ev.Note)
		}
	case KindAlloc:
		fmt.Fprintf(&b, " %s @%#x epoch=%d", ev.Name, ev.Addr, ev.Epoch)
	case KindFree:
		fmt.Fprintf(&b, " %s @%#x", ev.Name, ev.Addr)
	case KindCapture:
		if ev.Addr == 0 {
			b.WriteString(" null")
			break
		}
		fmt.Fprintf(&b, " @%#x fp=%s", ev.Addr, fingerprint(ev.Dispatch, ev.Epoch))
	case KindPromote:
		fmt.Fprintf(&b, " @%#x", ev.Addr)
	case KindKill:
		fmt.Fprintf(&b, " @%#x fp=%s", ev.Addr, fingerprint(ev.Dispatch, ev.Epoch))
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

type jsonEvent struct {
	Time     string            `json:"time"`
	Seq      uint64            `json:"seq"`
	Kind     string            `json:"kind"`
	Name     string            `json:"name,omitempty"`
	Addr     string            `json:"addr,omitempty"`
	Dispatch string            `json:"dispatch,omitempty"`
	Epoch    uint64            `json:"epoch,omitempty"`
	DurNS    int64             `json:"dur_ns,omitempty"`
	Note     string            `json:"note,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
}

func eventJSON(ev *Event) []byte {
	je := jsonEvent{
		Time:  ev.Time.Format(time.RFC3339Nano),
		Seq:   ev.Seq,
		Kind:  ev.Kind.String(),
		Name:  ev.Name,
		Epoch: ev.Epoch,
		DurNS: int64(ev.Dur),
		Note:  ev.Note,
	}
	if ev.Addr != 0 {
		je.Addr = fmt.Sprintf("%#x", ev.Addr)
	}
	if ev.Dispatch != 0 {
		je.Dispatch = fmt.Sprintf("%#x", ev.Dispatch)
	}
	if len(ev.Tags) > 0 {
		je.Tags = make(map[string]string, len(ev.Tags))
		for _, tag := range ev.Tags {
			je.Tags[tag.Key] = tag.Value
		}
	}
	data, _ := json.Marshal(je)
	return append(data, '\n')
}
