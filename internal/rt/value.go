// Package rt implements a small reference-counted object heap.
//
// It is the host runtime for weak references: every object lives in a cell
// with a fixed header (dispatch-table word, refcount word, epoch word), every
// strong reference is a counted Value, and freed cells are reused.
package rt

import "fmt"

// ValueKind is the type tag of a Value.
type ValueKind uint8

const (
	// VKInvalid represents an invalid (zero) value.
	VKInvalid ValueKind = iota
	// VKNull is the null reference.
	VKNull
	// VKInt is a plain integer.
	VKInt
	// VKAddr is a raw cell address. It holds no count.
	VKAddr
	// VKRef is a counted reference. It owns one count on its cell.
	VKRef
)

// String returns a human-readable name for the value kind.
func (k ValueKind) String() string {
	switch k {
	case VKInvalid:
		return "invalid"
	case VKNull:
		return "null"
	case VKInt:
		return "int"
	case VKAddr:
		return "addr"
	case VKRef:
		return "ref"
	default:
		return fmt.Sprintf("ValueKind(%d)", k)
	}
}

// Value is a tagged runtime value. VKAddr and VKRef share the payload A, so
// switching between the raw and counted forms only rewrites Kind.
type Value struct {
	Kind ValueKind
	Int  int64 // VKInt
	A    Addr  // VKAddr, VKRef
}

// Null returns the null reference.
func Null() Value { return Value{Kind: VKNull} }

// MakeInt wraps an integer.
func MakeInt(n int64) Value { return Value{Kind: VKInt, Int: n} }

// IsNull reports whether v is null or the zero value.
func (v Value) IsNull() bool {
	return v.Kind == VKNull || v.Kind == VKInvalid || (v.Kind == VKRef && v.A == 0)
}

// IsCounted reports whether v owns a count.
func (v Value) IsCounted() bool {
	return v.Kind == VKRef && v.A != 0
}

// SameObject reports whether a and b name the same cell.
func (v Value) SameObject(other Value) bool {
	if v.IsNull() || other.IsNull() {
		return false
	}
	return v.A == other.A
}

func (v Value) String() string {
	switch v.Kind {
	case VKInt:
		return fmt.Sprintf("int(%d)", v.Int)
	case VKAddr, VKRef:
		return fmt.Sprintf("%s(%s)", v.Kind, v.A)
	default:
		return v.Kind.String()
	}
}
