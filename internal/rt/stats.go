package rt

import (
	"fmt"
	"sort"
	"strings"
)

type counters struct {
	allocs     uint64
	frees      uint64
	reuses     uint64
	incs       uint64
	decs       uint64
	promotions uint64
	demotions  uint64
}

// Stats is a point-in-time view of heap activity.
type Stats struct {
	Allocs     uint64 `msgpack:"allocs"`
	Frees      uint64 `msgpack:"frees"`
	Reuses     uint64 `msgpack:"reuses"`
	Increments uint64 `msgpack:"increments"`
	Decrements uint64 `msgpack:"decrements"`
	Promotions uint64 `msgpack:"promotions"`
	Demotions  uint64 `msgpack:"demotions"`
	Live       int    `msgpack:"live"`
	Cells      int    `msgpack:"cells"`
}

// Stats returns the current counters.
func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		Allocs:     h.counters.allocs,
		Frees:      h.counters.frees,
		Reuses:     h.counters.reuses,
		Increments: h.counters.incs,
		Decrements: h.counters.decs,
		Promotions: h.counters.promotions,
		Demotions:  h.counters.demotions,
		Live:       len(h.cells) - len(h.freeList),
		Cells:      len(h.cells),
	}
}

// CheckLeaks returns an RT2005 error listing live objects, or nil when every
// object has been freed.
func (h *Heap) CheckLeaks() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	const maxList = 8
	leakCount := 0
	byType := make(map[string]int, 8)
	list := make([]string, 0, maxList)
	for idx := range h.cells {
		c := &h.cells[idx]
		if c.free() {
			continue
		}
		leakCount++
		byType[c.obj.Table.Name]++
		if len(list) < maxList {
			list = append(list, fmt.Sprintf("%s@%s(rc=%d)", c.obj.Table.Name, addrOf(idx), c.header[WordRefCount]))
		}
	}
	if leakCount == 0 {
		return nil
	}

	msg := fmt.Sprintf("heap leak detected: %d objects still alive", leakCount)
	typeList := make([]string, 0, len(byType))
	for name, n := range byType {
		typeList = append(typeList, fmt.Sprintf("%s=%d", name, n))
	}
	sort.Strings(typeList)
	msg += " (" + strings.Join(typeList, ", ") + "): " + strings.Join(list, ", ")
	return &RTError{Code: PanicHeapLeakDetected, Message: msg}
}
