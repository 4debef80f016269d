package rt

import "testing"

func TestPromoteAddsExactlyOneCount(t *testing.T) {
	h := NewHeap(Config{})
	v := h.Alloc(h.RegisterType("Node"))

	slot := Value{Kind: VKAddr, A: v.A}
	var out Value
	h.Exclusive(func(m Mem) {
		m.Promote(&slot)
		out = slot
		m.Demote(&slot)
	})

	if out.Kind != VKRef || out.A != v.A {
		t.Fatalf("expected counted ref to %s, got %s", v.A, out)
	}
	if slot.Kind != VKAddr {
		t.Fatalf("slot left as %s after demote", slot.Kind)
	}
	if rc := h.RefCount(v.A); rc != 2 {
		t.Fatalf("expected rc 2 (owner + promoted copy), got %d", rc)
	}
	s := h.Stats()
	if s.Promotions != 1 || s.Demotions != 1 {
		t.Fatalf("unexpected retag counters %+v", s)
	}

	h.Release(out)
	h.Release(v)
	if err := h.CheckLeaks(); err != nil {
		t.Fatalf("unexpected leak: %v", err)
	}
}

func TestPromoteRejectsWrongTag(t *testing.T) {
	h := NewHeap(Config{})
	v := h.Alloc(h.RegisterType("Node"))
	defer h.Release(v)

	counted := v
	expectRTPanic(t, PanicBadRetag, func() {
		h.Exclusive(func(m Mem) { m.Promote(&counted) })
	})
	null := Value{Kind: VKAddr}
	expectRTPanic(t, PanicBadRetag, func() {
		h.Exclusive(func(m Mem) { m.Promote(&null) })
	})
	raw := Value{Kind: VKAddr, A: v.A}
	expectRTPanic(t, PanicBadRetag, func() {
		h.Exclusive(func(m Mem) { m.Demote(&raw) })
	})
}

func TestPromoteFreedCellPanics(t *testing.T) {
	h := NewHeap(Config{})
	v := h.Alloc(h.RegisterType("Node"))
	slot := Value{Kind: VKAddr, A: v.A}
	h.Release(v)

	expectRTPanic(t, PanicUseAfterFree, func() {
		h.Exclusive(func(m Mem) { m.Promote(&slot) })
	})
}

func TestReadHeaderWordNeverFaults(t *testing.T) {
	h := NewHeap(Config{})
	v := h.Alloc(h.RegisterType("Node"))
	defer h.Release(v)

	tests := []struct {
		name string
		addr Addr
		word HeaderWord
	}{
		{"null", 0, WordDispatch},
		{"below base", addrBase - cellStride, WordDispatch},
		{"misaligned", v.A + 8, WordDispatch},
		{"past end", v.A + 16*cellStride, WordRefCount},
		{"bad word", v.A, headerWords},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.ReadHeaderWord(tt.addr, tt.word); got != 0 {
				t.Fatalf("expected 0, got %#x", got)
			}
		})
	}
}

func TestAddressOfDoesNotCount(t *testing.T) {
	h := NewHeap(Config{})
	v := h.Alloc(h.RegisterType("Node"))
	defer h.Release(v)

	if a := h.AddressOf(v); a != v.A {
		t.Fatalf("AddressOf = %s, want %s", a, v.A)
	}
	if a := h.AddressOf(Null()); a != 0 {
		t.Fatalf("AddressOf(null) = %s, want 0", a)
	}
	if rc := h.RefCount(v.A); rc != 1 {
		t.Fatalf("AddressOf changed rc to %d", rc)
	}
	expectRTPanic(t, PanicTypeMismatch, func() { h.AddressOf(MakeInt(3)) })
}

func TestAddressOfRawDeadAddress(t *testing.T) {
	h := NewHeap(Config{})
	node := h.RegisterType("Node")

	if a := h.AddressOf(Value{Kind: VKAddr, A: addrBase}); a != 0 {
		t.Fatalf("AddressOf(raw, empty heap) = %s, want 0", a)
	}

	v := h.Alloc(node)
	raw := Value{Kind: VKAddr, A: v.A}
	if a := h.AddressOf(raw); a != v.A {
		t.Fatalf("AddressOf(raw live) = %s, want %s", a, v.A)
	}
	h.Release(v)
	if a := h.AddressOf(raw); a != 0 {
		t.Fatalf("AddressOf(raw freed) = %s, want 0", a)
	}
	if a := h.AddressOf(Value{Kind: VKAddr, A: v.A + 8}); a != 0 {
		t.Fatalf("AddressOf(misaligned) = %s, want 0", a)
	}
}
