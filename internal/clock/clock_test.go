package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestFake_AdvanceRunsDueCallbacksInOrder(t *testing.T) {
	c := NewFake(epoch)
	var order []string

	c.AfterFunc(3*time.Second, func() { order = append(order, "c") })
	c.AfterFunc(1*time.Second, func() { order = append(order, "a") })
	c.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	c.AfterFunc(10*time.Second, func() { order = append(order, "late") })

	c.Advance(3 * time.Second)

	require.Equal(t, []string{"a", "b", "c"}, order)
	require.Equal(t, epoch.Add(3*time.Second), c.Now())
	require.Equal(t, 1, c.Pending())
}

func TestFake_CallbackSeesDeadlineTime(t *testing.T) {
	c := NewFake(epoch)
	var seen time.Time
	c.AfterFunc(time.Second, func() { seen = c.Now() })

	c.Advance(time.Minute)

	require.Equal(t, epoch.Add(time.Second), seen)
	require.Equal(t, epoch.Add(time.Minute), c.Now())
}

func TestFake_Stop(t *testing.T) {
	c := NewFake(epoch)
	ran := false
	timer := c.AfterFunc(time.Second, func() { ran = true })

	require.True(t, timer.Stop())
	require.False(t, timer.Stop(), "second Stop must report false")

	c.Advance(time.Hour)
	require.False(t, ran)
}

func TestFake_StopAfterFire(t *testing.T) {
	c := NewFake(epoch)
	timer := c.AfterFunc(time.Second, func() {})
	c.Advance(time.Second)
	require.False(t, timer.Stop())
}

func TestEvery_TicksUntilStopped(t *testing.T) {
	c := NewFake(epoch)
	ticks := 0
	stop := Every(c, time.Second, func() { ticks++ })

	c.Advance(5 * time.Second)
	require.Equal(t, 5, ticks)

	stop()
	stop() // idempotent

	c.Advance(5 * time.Second)
	require.Equal(t, 5, ticks)
	require.Equal(t, 0, c.Pending())
}

func TestEvery_StopFromInsideCallback(t *testing.T) {
	c := NewFake(epoch)
	ticks := 0
	var stop func()
	stop = Every(c, time.Second, func() {
		ticks++
		if ticks == 3 {
			stop()
		}
	})

	c.Advance(time.Minute)
	require.Equal(t, 3, ticks)
}

func TestReal_AfterFunc(t *testing.T) {
	done := make(chan struct{})
	Real{}.AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("real timer did not fire")
	}
}
