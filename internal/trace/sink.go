package trace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Tracer is a sink for events. Emit must be safe for concurrent use; the
// heap emits while holding its own lock.
type Tracer interface {
	Emit(ev *Event)
	Flush() error
	Close() error
	Level() Level
}

type nop struct{}

func (nop) Emit(*Event)  {}
func (nop) Flush() error { return nil }
func (nop) Close() error { return nil }
func (nop) Level() Level { return LevelOff }

// Nop records nothing.
var Nop Tracer = nop{}

// StreamTracer formats each event and writes it straight through.
type StreamTracer struct {
	mu     sync.Mutex
	w      io.Writer
	level  Level
	format Format
}

// NewStreamTracer writes events admitted by level to w.
func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	if format == FormatAuto {
		format = FormatText
	}
	return &StreamTracer{w: w, level: level, format: format}
}

func (t *StreamTracer) Emit(ev *Event) {
	if !t.level.Admits(ev.Kind) {
		return
	}
	line := FormatEvent(ev, t.format)
	t.mu.Lock()
	// A failed trace write must not fail the heap operation that caused it.
	_, _ = t.w.Write(line)
	t.mu.Unlock()
}

func (t *StreamTracer) Flush() error {
	if f, ok := t.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Close flushes and closes the writer unless it is stdout or stderr.
func (t *StreamTracer) Close() error {
	err := t.Flush()
	if c, ok := t.w.(io.Closer); ok && t.w != io.Writer(os.Stdout) && t.w != io.Writer(os.Stderr) {
		err = errors.Join(err, c.Close())
	}
	return err
}

func (t *StreamTracer) Level() Level { return t.level }

// tee sends every event to a stream and a ring.
type tee struct {
	stream *StreamTracer
	ring   *RingTracer
}

func (t tee) Emit(ev *Event) {
	t.stream.Emit(ev)
	t.ring.Emit(ev)
}

func (t tee) Flush() error { return t.stream.Flush() }
func (t tee) Close() error { return t.stream.Close() }
func (t tee) Level() Level { return t.stream.level }

// Mode selects where events go.
type Mode uint8

const (
	ModeStream Mode = iota + 1
	ModeRing
	ModeBoth
)

func (m Mode) String() string {
	switch m {
	case ModeStream:
		return "stream"
	case ModeRing:
		return "ring"
	case ModeBoth:
		return "both"
	default:
		return "unknown"
	}
}

// ParseMode accepts stream, ring and both. Empty means stream.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stream":
		return ModeStream, nil
	case "ring":
		return ModeRing, nil
	case "both":
		return ModeBoth, nil
	default:
		return ModeStream, fmt.Errorf("invalid trace mode %q (expected stream|ring|both)", s)
	}
}

// Config describes a tracer for New.
type Config struct {
	Level Level
	Mode  Mode
	// Format defaults to NDJSON for *.ndjson and *.jsonl paths, text otherwise.
	Format Format
	// Output overrides OutputPath. An empty path or "-" is stderr.
	Output     io.Writer
	OutputPath string
	RingSize   int
}

// Streams reports whether c writes events as they happen.
func (c Config) Streams() bool {
	return c.Level != LevelOff && c.Mode != ModeRing
}

// ToStderr reports whether c streams to the process's stderr.
func (c Config) ToStderr() bool {
	if !c.Streams() {
		return false
	}
	if c.Output != nil {
		return c.Output == io.Writer(os.Stderr)
	}
	return c.OutputPath == "" || c.OutputPath == "-"
}

// New builds the tracer c describes. LevelOff yields Nop.
func New(c Config) (Tracer, error) {
	if c.Level == LevelOff {
		return Nop, nil
	}
	if c.Mode == ModeRing {
		return NewRingTracer(c.RingSize, c.Level), nil
	}
	if c.Mode != ModeStream && c.Mode != ModeBoth {
		return nil, fmt.Errorf("unknown trace mode %v", c.Mode)
	}

	w := c.Output
	if w == nil {
		if c.OutputPath == "" || c.OutputPath == "-" {
			w = os.Stderr
		} else {
			f, err := os.Create(c.OutputPath)
			if err != nil {
				return nil, fmt.Errorf("open trace output: %w", err)
			}
			w = f
		}
	}
	format := c.Format
	if format == FormatAuto && (strings.HasSuffix(c.OutputPath, ".ndjson") || strings.HasSuffix(c.OutputPath, ".jsonl")) {
		format = FormatNDJSON
	}
	stream := NewStreamTracer(w, c.Level, format)
	if c.Mode == ModeStream {
		return stream, nil
	}
	return tee{stream: stream, ring: NewRingTracer(c.RingSize, c.Level)}, nil
}
