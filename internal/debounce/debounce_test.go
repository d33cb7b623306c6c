package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTriggerRunsOnceAfterBurst(t *testing.T) {
	var calls atomic.Int32
	d := New(50*time.Millisecond, func() { calls.Add(1) })

	for i := 0; i < 20; i++ {
		d.Trigger()
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "burst should collapse into one call")
	assert.False(t, d.Pending())
}

func TestTriggerResetsDelay(t *testing.T) {
	var fired atomic.Int64
	start := time.Now()
	d := New(80*time.Millisecond, func() { fired.Store(int64(time.Since(start))) })

	d.Trigger()
	time.Sleep(50 * time.Millisecond)
	d.Trigger()

	require.Eventually(t, func() bool { return fired.Load() != 0 }, time.Second, 5*time.Millisecond)
	// Trailing edge: the call lands a full delay after the second trigger.
	assert.GreaterOrEqual(t, time.Duration(fired.Load()), 130*time.Millisecond)
}

func TestStopCancelsPendingCall(t *testing.T) {
	var calls atomic.Int32
	d := New(30*time.Millisecond, func() { calls.Add(1) })

	d.Trigger()
	require.True(t, d.Pending())
	assert.True(t, d.Stop())
	assert.False(t, d.Stop(), "second Stop has nothing to cancel")

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestTriggerAfterStop(t *testing.T) {
	var calls atomic.Int32
	d := New(20*time.Millisecond, func() { calls.Add(1) })

	d.Trigger()
	d.Stop()
	d.Trigger()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestStaleGenerationIgnored(t *testing.T) {
	var calls atomic.Int32
	d := New(time.Hour, func() { calls.Add(1) })

	d.Trigger()
	d.mu.Lock()
	stale := d.gen - 1
	d.mu.Unlock()

	d.fire(stale)
	assert.Equal(t, int32(0), calls.Load())
	assert.True(t, d.Pending())
	d.Stop()
}

func TestDelay(t *testing.T) {
	d := New(300*time.Millisecond, func() {})
	assert.Equal(t, 300*time.Millisecond, d.Delay())
}
