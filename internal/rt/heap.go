package rt

import (
	"fmt"
	"strings"
	"sync"

	"fortio.org/safecast"

	"rcweak/internal/trace"
)

// ReusePolicy selects which free cell the next allocation takes.
type ReusePolicy uint8

const (
	// ReuseLIFO hands out the most recently freed cell first.
	ReuseLIFO ReusePolicy = iota
	// ReuseFIFO hands out the least recently freed cell first.
	ReuseFIFO
)

func (p ReusePolicy) String() string {
	switch p {
	case ReuseLIFO:
		return "lifo"
	case ReuseFIFO:
		return "fifo"
	default:
		return "unknown"
	}
}

// ParseReusePolicy converts a config string to a ReusePolicy. Case and
// surrounding space are ignored.
func ParseReusePolicy(s string) (ReusePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lifo":
		return ReuseLIFO, nil
	case "fifo":
		return ReuseFIFO, nil
	default:
		return ReuseLIFO, fmt.Errorf("invalid reuse policy %q (expected lifo|fifo)", s)
	}
}

// Config configures a Heap.
type Config struct {
	InitialCells int
	Reuse        ReusePolicy
	Tracer       trace.Tracer
}

// Heap stores every object of one runtime. All methods are goroutine-safe;
// Exclusive groups several operations under one lock acquisition.
type Heap struct {
	mu sync.Mutex

	cells    []cell
	freeList []int
	lastFree Addr

	reuse  ReusePolicy
	tables map[string]*DispatchTable
	byAddr map[uint64]*DispatchTable

	nextAllocID uint64
	counters    counters
	tracer      trace.Tracer
}

// NewHeap creates an empty heap.
func NewHeap(cfg Config) *Heap {
	capacity := cfg.InitialCells
	if capacity <= 0 {
		capacity = 64
	}
	tr := cfg.Tracer
	if tr == nil {
		tr = trace.Nop
	}
	return &Heap{
		cells:       make([]cell, 0, capacity),
		reuse:       cfg.Reuse,
		tables:      make(map[string]*DispatchTable, 8),
		byAddr:      make(map[uint64]*DispatchTable, 8),
		nextAllocID: 1,
		tracer:      tr,
	}
}

// RegisterType returns the dispatch table for name, creating it on first use.
func (h *Heap) RegisterType(name string) *DispatchTable {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.tables[name]; ok {
		return t
	}
	n, err := safecast.Conv[uint64](len(h.tables))
	if err != nil {
		panic(fmt.Errorf("dispatch table count overflow: %w", err))
	}
	t := &DispatchTable{Name: name, addr: tableBase + n*tableStride}
	h.tables[name] = t
	h.byAddr[t.addr] = t
	return t
}

// TableAt returns the dispatch table registered at word, if any.
func (h *Heap) TableAt(word uint64) (*DispatchTable, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.byAddr[word]
	return t, ok
}

// Alloc creates an object with refcount 1 and returns the counted reference.
// Counted fields are moved into the object.
func (h *Heap) Alloc(t *DispatchTable, fields ...Value) Value {
	if t == nil || t.addr == 0 {
		fault(PanicTypeMismatch, "alloc without a registered dispatch table")
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	idx, reused := h.takeCell()
	c := &h.cells[idx]
	c.obj = &Object{
		Table:   t,
		Fields:  append([]Value(nil), fields...),
		AllocID: h.nextAllocID,
	}
	h.nextAllocID++
	c.header[WordDispatch] = t.addr
	c.header[WordRefCount] = 1
	c.header[WordEpoch]++

	h.counters.allocs++
	if reused {
		h.counters.reuses++
	}
	a := addrOf(idx)
	trace.Alloc(h.tracer, t.Name, uint64(a), c.header[WordEpoch])
	return Value{Kind: VKRef, A: a}
}

func (h *Heap) takeCell() (int, bool) {
	if len(h.freeList) == 0 {
		h.cells = append(h.cells, cell{})
		return len(h.cells) - 1, false
	}
	var idx int
	switch h.reuse {
	case ReuseFIFO:
		idx = h.freeList[0]
		h.freeList = h.freeList[1:]
	default:
		idx = h.freeList[len(h.freeList)-1]
		h.freeList = h.freeList[:len(h.freeList)-1]
	}
	return idx, true
}

// Retain copies a counted reference, adding one count. Null passes through.
func (h *Heap) Retain(v Value) Value {
	if v.IsNull() {
		return Null()
	}
	if v.Kind != VKRef {
		fault(PanicTypeMismatch, "retain of %s value", v.Kind)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.liveCell(v.A)
	c.header[WordRefCount]++
	h.counters.incs++
	return v
}

// Release gives up the count held by v. Uncounted values are ignored.
func (h *Heap) Release(v Value) {
	if !v.IsCounted() {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.releaseLocked(v.A)
}

// Drop tears down a storage slot: a counted slot releases its count, any
// other slot is simply cleared.
func (h *Heap) Drop(slot *Value) {
	if slot == nil {
		return
	}
	v := *slot
	*slot = Value{}
	h.Release(v)
}

// Get dereferences a counted reference.
func (h *Heap) Get(v Value) *Object {
	if v.Kind != VKRef {
		fault(PanicTypeMismatch, "deref of %s value", v.Kind)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.liveCell(v.A).obj
}

// SetField stores v into field i of owner, moving v's count in and releasing
// the previous field value.
func (h *Heap) SetField(owner Value, i int, v Value) {
	if owner.Kind != VKRef {
		fault(PanicTypeMismatch, "field store into %s value", owner.Kind)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	obj := h.liveCell(owner.A).obj
	if i < 0 || i >= len(obj.Fields) {
		fault(PanicInvalidAddr, "field %d out of range for %s with %d fields", i, obj.Table.Name, len(obj.Fields))
	}
	old := obj.Fields[i]
	obj.Fields[i] = v
	if old.IsCounted() {
		h.releaseLocked(old.A)
	}
}

// Field returns a counted copy of field i of owner.
func (h *Heap) Field(owner Value, i int) Value {
	if owner.Kind != VKRef {
		fault(PanicTypeMismatch, "field load from %s value", owner.Kind)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	obj := h.liveCell(owner.A).obj
	if i < 0 || i >= len(obj.Fields) {
		fault(PanicInvalidAddr, "field %d out of range for %s with %d fields", i, obj.Table.Name, len(obj.Fields))
	}
	v := obj.Fields[i]
	if v.IsCounted() {
		h.liveCell(v.A).header[WordRefCount]++
		h.counters.incs++
	}
	return v
}

// RefCount returns the refcount word of the cell at a, or 0 for a free or
// unknown cell.
func (h *Heap) RefCount(a Addr) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.cellAt(a)
	if !ok || c.free() {
		return 0
	}
	n, err := safecast.Conv[int](c.header[WordRefCount])
	if err != nil {
		panic(fmt.Errorf("refcount overflow at %s: %w", a, err))
	}
	return n
}

// Live reports whether a names a live object.
func (h *Heap) Live(a Addr) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.cellAt(a)
	return ok && !c.free()
}

// releaseLocked drops one count on a and frees everything that reaches zero.
// Freed objects release their fields through a worklist so long chains do
// not recurse.
func (h *Heap) releaseLocked(a Addr) {
	work := []Addr{a}
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]

		idx, ok := indexOf(cur, len(h.cells))
		if !ok {
			fault(PanicInvalidAddr, "invalid address %s", cur)
		}
		c := &h.cells[idx]
		if c.free() || c.header[WordRefCount] == 0 {
			fault(PanicDoubleFree, "double free: %s (epoch=%d)", cur, c.header[WordEpoch])
		}
		c.header[WordRefCount]--
		h.counters.decs++
		if c.header[WordRefCount] > 0 {
			continue
		}

		obj := c.obj
		for _, f := range obj.Fields {
			if f.IsCounted() {
				work = append(work, f.A)
			}
		}
		c.obj = nil
		// The allocator threads its free list through the first header
		// word, overwriting the dispatch-table address.
		c.header[WordDispatch] = uint64(h.lastFree) | freeLinkTag
		h.lastFree = cur
		h.freeList = append(h.freeList, idx)
		h.counters.frees++
		trace.Free(h.tracer, obj.Table.Name, uint64(cur))
	}
}

func (h *Heap) cellAt(a Addr) (*cell, bool) {
	idx, ok := indexOf(a, len(h.cells))
	if !ok {
		return nil, false
	}
	return &h.cells[idx], true
}

func (h *Heap) liveCell(a Addr) *cell {
	c, ok := h.cellAt(a)
	if !ok {
		fault(PanicInvalidAddr, "invalid address %s", a)
	}
	if c.free() {
		fault(PanicUseAfterFree, "use after free: %s (epoch=%d)", a, c.header[WordEpoch])
	}
	return c
}

func addrOf(idx int) Addr {
	off, err := safecast.Conv[uint64](idx)
	if err != nil {
		panic(fmt.Errorf("cell index overflow: %w", err))
	}
	return addrBase + Addr(off)*cellStride
}

func indexOf(a Addr, ncells int) (int, bool) {
	if a < addrBase || (a-addrBase)%cellStride != 0 {
		return 0, false
	}
	idx, err := safecast.Conv[int]((a - addrBase) / cellStride)
	if err != nil || idx >= ncells {
		return 0, false
	}
	return idx, true
}
