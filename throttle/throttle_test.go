package throttle_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/recrutech-auth/throttle"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestThrottle_LimitAndBlock(t *testing.T) {
	clk := newClock()
	th := throttle.New(throttle.DefaultConfig(), throttle.WithNowFunc(clk.Now))

	for i := 0; i < 10; i++ {
		require.True(t, th.Allow("10.0.0.1"), "request %d", i+1)
	}
	require.False(t, th.Allow("10.0.0.1"), "11th request in the window is blocked")

	// other clients are unaffected
	require.True(t, th.Allow("10.0.0.2"))

	// still blocked inside the 30s timeout
	clk.Advance(29 * time.Second)
	require.False(t, th.Allow("10.0.0.1"))

	// block over but the 60s window has not reset: the next request blocks again
	clk.Advance(2 * time.Second)
	require.False(t, th.Allow("10.0.0.1"))

	// past the block and the window: the counter resets
	clk.Advance(61 * time.Second)
	require.True(t, th.Allow("10.0.0.1"))
}

func TestThrottle_WindowReset(t *testing.T) {
	clk := newClock()
	th := throttle.New(throttle.DefaultConfig(), throttle.WithNowFunc(clk.Now))

	for i := 0; i < 10; i++ {
		require.True(t, th.Allow("k"))
	}
	clk.Advance(61 * time.Second)
	for i := 0; i < 10; i++ {
		require.True(t, th.Allow("k"))
	}
	require.False(t, th.Allow("k"))
}

func TestThrottle_Concurrent(t *testing.T) {
	th := throttle.New(throttle.Config{Limit: 50, RefreshPeriod: time.Hour, Timeout: time.Hour})

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if th.Allow("shared") {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(50), allowed.Load())
}

func TestThrottle_Sweep(t *testing.T) {
	clk := newClock()
	th := throttle.New(throttle.DefaultConfig(), throttle.WithNowFunc(clk.Now))

	th.Allow("idle")
	for i := 0; i < 11; i++ {
		th.Allow("blocked")
	}
	require.Equal(t, 2, th.Len())

	clk.Advance(61 * time.Second)
	th.Allow("fresh")
	require.Equal(t, 2, th.Sweep(clk.Now()), "idle and blocked keys have lapsed")
	require.Equal(t, 1, th.Len())

	// an evicted key starts over
	require.True(t, th.Allow("blocked"))
}

func TestThrottle_RunStopsOnCancel(t *testing.T) {
	th := throttle.New(throttle.Config{Limit: 1, RefreshPeriod: time.Millisecond, Timeout: time.Millisecond})
	th.Allow("k")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		th.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return th.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("throttle sweeper did not stop")
	}
}
