package rt

import (
	"fmt"
	"sort"
	"strings"
)

// CellInfo describes one heap cell.
type CellInfo struct {
	Addr     Addr   `msgpack:"addr"`
	Type     string `msgpack:"type,omitempty"`
	Dispatch uint64 `msgpack:"dispatch"`
	RefCount uint64 `msgpack:"rc"`
	Epoch    uint64 `msgpack:"epoch"`
	Fields   int    `msgpack:"fields"`
	AllocID  uint64 `msgpack:"alloc_id,omitempty"`
	Free     bool   `msgpack:"free"`
}

// Cells returns every cell in address order, free ones included.
func (h *Heap) Cells() []CellInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]CellInfo, 0, len(h.cells))
	for idx := range h.cells {
		c := &h.cells[idx]
		info := CellInfo{
			Addr:     addrOf(idx),
			Dispatch: c.header[WordDispatch],
			RefCount: c.header[WordRefCount],
			Epoch:    c.header[WordEpoch],
			Free:     c.free(),
		}
		if !info.Free {
			info.Type = c.obj.Table.Name
			info.Fields = len(c.obj.Fields)
			info.AllocID = c.obj.AllocID
		}
		out = append(out, info)
	}
	return out
}

// Dump renders live objects one per line, sorted, with identical lines
// folded into a count. Free cells are summarised on the last line.
func (h *Heap) Dump() string {
	return FormatCells(h.Cells())
}

// FormatCells renders cells the way Dump does.
func FormatCells(cells []CellInfo) string {
	lines := make([]string, 0, len(cells))
	free := 0
	for _, c := range cells {
		if c.Free {
			free++
			continue
		}
		lines = append(lines, fmt.Sprintf("OBJ type=%s rc=%d fields=%d", c.Type, c.RefCount, c.Fields))
	}
	sort.Strings(lines)

	var sb strings.Builder
	for i := 0; i < len(lines); {
		line := lines[i]
		count := 1
		for i+count < len(lines) && lines[i+count] == line {
			count++
		}
		sb.WriteString(line)
		if count > 1 {
			fmt.Fprintf(&sb, " count=%d", count)
		}
		sb.WriteString("\n")
		i += count
	}
	if free > 0 {
		fmt.Fprintf(&sb, "FREE cells=%d\n", free)
	}
	return sb.String()
}
