package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/go-openapi/testify/v2/assert"
	"github.com/go-openapi/testify/v2/require"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewDefaults(t *testing.T) {
	assert.Equal(t, DefaultWindow, New(0).Window())
	assert.Equal(t, time.Second, New(time.Second).Window())
}

func TestBurstCoalesced(t *testing.T) {
	d := New(20 * time.Millisecond)
	var calls, last atomic.Int64
	done := make(chan struct{}, 1)

	for i := range 10 {
		d.Trigger(func() {
			calls.Add(1)
			last.Store(int64(i))
			done <- struct{}{}
		})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced call never ran")
	}

	// leave room for a spurious second call
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, int64(9), last.Load(), "the most recent trigger wins")
	assert.False(t, d.Pending())
}

func TestFlush(t *testing.T) {
	d := New(time.Hour)
	var calls int

	assert.False(t, d.Flush(), "nothing to flush")

	d.Trigger(func() { calls++ })
	d.Trigger(func() { calls += 10 })
	require.True(t, d.Pending())

	require.True(t, d.Flush())
	assert.Equal(t, 10, calls)
	assert.False(t, d.Pending())
	assert.False(t, d.Flush())
}

func TestStop(t *testing.T) {
	d := New(10 * time.Millisecond)
	var calls atomic.Int64

	d.Trigger(func() { calls.Add(1) })
	require.True(t, d.Stop())
	assert.False(t, d.Stop())

	time.Sleep(40 * time.Millisecond)
	assert.Zero(t, calls.Load())
}
