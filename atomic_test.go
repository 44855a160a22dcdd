package fibers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAtomicSection_nesting(t *testing.T) {
	h, err := GetHub(WithReactor(&stubReactor{}))
	require.NoError(t, err)
	require.False(t, h.InAtomic())

	outer := h.EnterAtomic()
	middle := h.EnterAtomic()
	inner := h.EnterAtomic()
	require.True(t, h.InAtomic())

	inner.Exit()
	middle.Exit()
	require.True(t, h.InAtomic())
	outer.Exit()
	require.False(t, h.InAtomic())
}

func TestAtomicSection_outOfOrderExitPanics(t *testing.T) {
	h, err := GetHub(WithReactor(&stubReactor{}))
	require.NoError(t, err)

	outer := h.EnterAtomic()
	inner := h.EnterAtomic()
	require.PanicsWithValue(t, `fibers: atomic sections exited out of order`, func() {
		outer.Exit()
	})
	inner.Exit()
	outer.Exit()
}

func TestAtomicSection_exitWithoutEnterPanics(t *testing.T) {
	h, err := GetHub(WithReactor(&stubReactor{}))
	require.NoError(t, err)

	section := h.EnterAtomic()
	section.Exit()
	require.PanicsWithValue(t, `fibers: atomic section exited without matching enter`, func() {
		section.Exit()
	})
}
