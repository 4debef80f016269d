package weakref

// State is the liveness state of a weak reference.
type State uint8

const (
	// Unbound: no target has ever been set.
	Unbound State = iota
	// Bound: a target was captured and is re-checked on every access.
	Bound
	// Dead: the target was null or failed a liveness check.
	Dead
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Bound:
		return "bound"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}
