package trace

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Heartbeat emits a periodic event so a stalled run shows up as beats with
// no round ends between them. Each beat carries the status line of whatever
// is being watched.
type Heartbeat struct {
	t      Tracer
	status atomic.Pointer[func() string]
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// StartHeartbeat beats every interval. It returns nil, on which every
// method is a no-op, when t records nothing or interval is not positive.
func StartHeartbeat(t Tracer, interval time.Duration) *Heartbeat {
	if t == nil || t.Level() == LevelOff || interval <= 0 {
		return nil
	}
	hb := &Heartbeat{t: t, stop: make(chan struct{}), done: make(chan struct{})}
	go hb.run(interval)
	return hb
}

// Watch sets the status reported with each beat. nil clears it.
func (hb *Heartbeat) Watch(status func() string) {
	if hb == nil {
		return
	}
	if status == nil {
		hb.status.Store(nil)
		return
	}
	hb.status.Store(&status)
}

func (hb *Heartbeat) run(interval time.Duration) {
	defer close(hb.done)
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for n := 1; ; n++ {
		select {
		case <-tick.C:
			var note string
			if f := hb.status.Load(); f != nil {
				note = (*f)()
			}
			emit(hb.t, Event{Kind: KindHeartbeat, Name: fmt.Sprintf("#%d", n), Note: note})
		case <-hb.stop:
			return
		}
	}
}

// Stop ends the beat and waits for the goroutine to exit.
func (hb *Heartbeat) Stop() {
	if hb == nil {
		return
	}
	hb.once.Do(func() { close(hb.stop) })
	<-hb.done
}
