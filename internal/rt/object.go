package rt

import "fmt"

// Addr is the raw identity of a heap cell. Addr(0) is null.
// Addresses are stable while the cell is live and are handed out again once
// the cell has been freed.
type Addr uint64

func (a Addr) String() string {
	return fmt.Sprintf("%#x", uint64(a))
}

// HeaderWord indexes a word in a cell header.
type HeaderWord uint8

const (
	// WordDispatch holds the dispatch-table address of a live object and the
	// free-list link of a free cell.
	WordDispatch HeaderWord = iota
	// WordRefCount holds the number of counted references to the object.
	WordRefCount
	// WordEpoch counts how many times the cell has been allocated.
	WordEpoch

	headerWords
)

func (w HeaderWord) String() string {
	switch w {
	case WordDispatch:
		return "dispatch"
	case WordRefCount:
		return "refcount"
	case WordEpoch:
		return "epoch"
	default:
		return fmt.Sprintf("HeaderWord(%d)", w)
	}
}

// Layout constants. Table addresses are 8-aligned and the free-list link has
// its low bit set, so a free cell never shows a table address.
const (
	addrBase    Addr   = 0x10000
	cellStride  Addr   = 0x40
	tableBase   uint64 = 0x7f0000
	tableStride uint64 = 0x40
	freeLinkTag uint64 = 0x1
)

// DispatchTable is a registered object type.
type DispatchTable struct {
	Name string
	addr uint64
}

// Addr returns the table address written into the header of every object of
// this type.
func (t *DispatchTable) Addr() uint64 {
	if t == nil {
		return 0
	}
	return t.addr
}

// Object is a heap object. AllocID numbers allocations heap-wide, so two
// occupants of the same cell never share one.
type Object struct {
	Table   *DispatchTable
	Fields  []Value
	AllocID uint64
}

type cell struct {
	header [headerWords]uint64
	obj    *Object
}

func (c *cell) free() bool { return c.obj == nil }
