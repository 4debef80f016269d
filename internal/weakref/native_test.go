package weakref

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

type payload struct {
	Name string
	Next *payload
	Pad  [4]int64
}

func forceGC() {
	for i := 0; i < 10; i++ {
		runtime.Gosched()
		runtime.GC()
	}
}

// bindDropped binds n to a value that is unreachable once this returns.
//
//go:noinline
func bindDropped(n *Native[payload]) {
	n.SetTarget(&payload{Name: "dropped"})
}

func TestNative(t *testing.T) {
	t.Run("valid: target kept alive by caller", func(t *testing.T) {
		p := &payload{Name: "kept"}
		var n Native[payload]
		n.SetTarget(p)

		forceGC()

		got := n.GetTarget()
		assert.Same(t, p, got, "unexpected: GetTarget lost a reachable target")
		assert.Equal(t, Bound, n.State())
		runtime.KeepAlive(p)
	})

	t.Run("invalid: forced cleanup by garbage collector", func(t *testing.T) {
		var n Native[payload]
		bindDropped(&n)

		forceGC()

		assert.Nil(t, n.GetTarget(), "unexpected: GetTarget is not nil after GC")
		assert.Equal(t, Dead, n.State())
		assert.Nil(t, n.GetTarget(), "unexpected: dead reference came back")
	})

	t.Run("invalid: nil target", func(t *testing.T) {
		var n Native[payload]
		assert.Equal(t, Unbound, n.State())
		assert.Nil(t, n.GetTarget())

		n.SetTarget(nil)
		assert.Equal(t, Dead, n.State())
		assert.Nil(t, n.GetTarget())
	})

	t.Run("valid: rebind after death", func(t *testing.T) {
		var n Native[payload]
		bindDropped(&n)
		forceGC()
		assert.Nil(t, n.GetTarget())

		p := &payload{Name: "second"}
		n.SetTarget(p)
		assert.Same(t, p, n.GetTarget())
		runtime.KeepAlive(p)
	})
}
