package rt

// Mem is the heap seen from inside an Exclusive section. Its methods do not
// lock, so a header read and the promotion that depends on it cannot be
// separated by a free on another goroutine.
type Mem struct {
	h *Heap
}

// Exclusive runs fn with the heap locked. fn must not call back into the
// locking Heap methods.
func (h *Heap) Exclusive(fn func(m Mem)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(Mem{h: h})
}

// AddressOf returns the identity of v without touching any count.
// Null and zero values have address 0, and so does a raw address outside
// the heap or on a free cell.
func (m Mem) AddressOf(v Value) Addr {
	switch v.Kind {
	case VKInvalid, VKNull:
		return 0
	case VKRef:
		if v.A != 0 {
			m.h.liveCell(v.A)
		}
		return v.A
	case VKAddr:
		// A raw address only has an identity while it names a live object.
		if c, ok := m.h.cellAt(v.A); !ok || c.free() {
			return 0
		}
		return v.A
	default:
		fault(PanicTypeMismatch, "address of %s value", v.Kind)
		return 0
	}
}

// ReadHeaderWord reads one header word at a as plain memory. It never forms
// a reference and never faults: addresses outside the heap or off a cell
// boundary read as 0.
func (m Mem) ReadHeaderWord(a Addr, w HeaderWord) uint64 {
	if w >= headerWords {
		return 0
	}
	c, ok := m.h.cellAt(a)
	if !ok {
		return 0
	}
	return c.header[w]
}

// Promote retags a raw slot as a counted reference and adds the count that
// the counted form owns. The count is new; nothing is adopted.
func (m Mem) Promote(slot *Value) {
	if slot.Kind != VKAddr || slot.A == 0 {
		fault(PanicBadRetag, "promote of %s slot", slot)
	}
	c := m.h.liveCell(slot.A)
	c.header[WordRefCount]++
	m.h.counters.incs++
	m.h.counters.promotions++
	slot.Kind = VKRef
}

// Demote retags a counted slot back to raw without releasing. Call it only
// after the count the slot held has been handed to someone else.
func (m Mem) Demote(slot *Value) {
	if slot.Kind != VKRef {
		fault(PanicBadRetag, "demote of %s slot", slot)
	}
	m.h.counters.demotions++
	slot.Kind = VKAddr
}

// AddressOf is the locking form of Mem.AddressOf.
func (h *Heap) AddressOf(v Value) Addr {
	var a Addr
	h.Exclusive(func(m Mem) { a = m.AddressOf(v) })
	return a
}

// ReadHeaderWord is the locking form of Mem.ReadHeaderWord.
func (h *Heap) ReadHeaderWord(a Addr, w HeaderWord) uint64 {
	var word uint64
	h.Exclusive(func(m Mem) { word = m.ReadHeaderWord(a, w) })
	return word
}
