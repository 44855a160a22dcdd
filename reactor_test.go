package fibers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReactor_idleReturnsWithoutBlocking(t *testing.T) {
	r := NewReactor()
	start := time.Now()
	require.False(t, r.RunOnce())
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestReactor_wakeUnblocks(t *testing.T) {
	r := NewReactor()
	w := r.ArmTimer(time.Hour, func() { t.Error(`timer must not fire`) })

	r.Wake()
	start := time.Now()
	require.True(t, r.RunOnce())
	require.Less(t, time.Since(start), time.Second)

	// a second wake before the iteration coalesces with the first
	r.Wake()
	r.Wake()
	require.True(t, r.RunOnce())

	w.Cancel()
	require.False(t, r.RunOnce())
}

func TestReactor_wakeFromAnotherGoroutine(t *testing.T) {
	r := NewReactor()
	w := r.ArmTimer(time.Hour, func() { t.Error(`timer must not fire`) })
	defer w.Cancel()

	go func() {
		time.Sleep(10 * time.Millisecond)
		r.Wake()
	}()
	start := time.Now()
	require.True(t, r.RunOnce())
	require.Less(t, time.Since(start), time.Second)
}

func TestReactor_timerFires(t *testing.T) {
	r := NewReactor()
	var fired bool
	r.ArmTimer(20*time.Millisecond, func() { fired = true })

	start := time.Now()
	active := r.RunOnce()
	elapsed := time.Since(start)

	require.True(t, fired)
	require.False(t, active)
	assert.GreaterOrEqual(t, elapsed, 10*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestReactor_timersFireInDeadlineOrder(t *testing.T) {
	r := NewReactor()
	var order []string
	r.ArmTimer(50*time.Millisecond, func() { order = append(order, `late`) })
	r.ArmTimer(10*time.Millisecond, func() { order = append(order, `early`) })

	require.True(t, r.RunOnce())
	require.Equal(t, []string{`early`}, order)
	require.False(t, r.RunOnce())
	require.Equal(t, []string{`early`, `late`}, order)
}

func TestReactor_cancelPreventsFire(t *testing.T) {
	r := NewReactor()
	var fired bool
	w := r.ArmTimer(10*time.Millisecond, func() { fired = true })
	w.Cancel()
	w.Cancel()

	require.False(t, r.RunOnce())
	time.Sleep(20 * time.Millisecond)
	require.False(t, r.RunOnce())
	require.False(t, fired)
}

func TestReactor_cancelOneOfTwoTimers(t *testing.T) {
	r := NewReactor()
	var order []string
	w := r.ArmTimer(10*time.Millisecond, func() { order = append(order, `canceled`) })
	r.ArmTimer(20*time.Millisecond, func() { order = append(order, `kept`) })
	w.Cancel()

	require.False(t, r.RunOnce())
	require.Equal(t, []string{`kept`}, order)
}
