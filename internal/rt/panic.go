package rt

import "fmt"

// PanicCode identifies the type of runtime panic.
type PanicCode int

// Stable panic codes - do not change values.
const (
	PanicInvalidAddr      PanicCode = 2001 // RT2001: address does not name a cell
	PanicUseAfterFree     PanicCode = 2002 // RT2002: counted use of a freed cell
	PanicDoubleFree       PanicCode = 2003 // RT2003: release of a freed cell
	PanicBadRetag         PanicCode = 2004 // RT2004: promote/demote on the wrong tag
	PanicHeapLeakDetected PanicCode = 2005 // RT2005: live objects at shutdown
	PanicTypeMismatch     PanicCode = 2006 // RT2006: value of the wrong kind
)

// String returns the code as "RT2001" format.
func (c PanicCode) String() string {
	return fmt.Sprintf("RT%d", c)
}

// RTError is a runtime fault raised by the heap.
type RTError struct {
	Code    PanicCode
	Message string
}

// Error implements the error interface.
func (e *RTError) Error() string {
	return fmt.Sprintf("panic %s: %s", e.Code, e.Message)
}

func fault(code PanicCode, format string, args ...any) {
	panic(&RTError{Code: code, Message: fmt.Sprintf(format, args...)})
}
