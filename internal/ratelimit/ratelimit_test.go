package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when told to and counts performed sleeps.
type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1000, 0)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func TestFixedPeriodSpacing(t *testing.T) {
	const period = 100 * time.Millisecond
	ctx := context.Background()
	clk := newFakeClock()
	l := newFixed(period, clk)

	var starts []time.Time
	for i := 0; i < 10; i++ {
		starts = append(starts, l.Now())
		clk.advance(time.Millisecond) // near-instant processing
		l.IterationEnd()
		l.Sleep(ctx)
	}

	for i := 1; i < len(starts); i++ {
		assert.Equal(t, period, starts[i].Sub(starts[i-1]), "iteration %d start not spaced by the period", i)
	}

	for _, d := range clk.slept {
		assert.Positive(t, d, "scheduled a non-positive sleep")
	}
}

func TestSlowIterationSkipsSleep(t *testing.T) {
	const period = 100 * time.Millisecond
	clk := newFakeClock()
	l := newFixed(period, clk)

	clk.advance(3 * period)
	end := l.IterationEnd()
	l.Sleep(context.Background())

	assert.Equal(t, clk.now, end, "IterationEnd must return the real completion time")
	assert.Empty(t, clk.slept, "must not sleep when behind schedule")
}

func TestDriftCap(t *testing.T) {
	const period = 10 * time.Millisecond
	clk := newFakeClock()
	l := newFixed(period, clk)

	// One iteration stalls for far longer than the 100-period lag cap.
	clk.advance(1000 * period)
	l.IterationEnd()

	lag := clk.now.Sub(l.ref)
	require.LessOrEqual(t, lag, maxLagPeriods*period, "reference lags real time beyond the cap")

	// The next fast iteration recovers without sleeping.
	clk.advance(time.Millisecond)
	l.IterationEnd()
	l.Sleep(context.Background())
	assert.Empty(t, clk.slept)
}

func TestCatchUpAfterModerateDelay(t *testing.T) {
	const period = 100 * time.Millisecond
	ctx := context.Background()
	clk := newFakeClock()
	l := newFixed(period, clk)

	// One iteration takes 2.5 periods; the following fast iterations run
	// with no sleep until the reference catches up, then cadence resumes.
	clk.advance(period*2 + period/2)
	l.IterationEnd()
	l.Sleep(ctx)
	require.Empty(t, clk.slept)

	clk.advance(time.Millisecond)
	l.IterationEnd()
	l.Sleep(ctx)
	require.Empty(t, clk.slept)

	clk.advance(time.Millisecond)
	l.IterationEnd()
	l.Sleep(ctx)
	assert.NotEmpty(t, clk.slept, "cadence must resume once the reference caught up")
}

func TestSleepReturnsOnCancelledContext(t *testing.T) {
	l := New(time.Hour)
	l.IterationEnd() // schedules a sleep of nearly an hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	l.Sleep(ctx)
	assert.Less(t, time.Since(start), time.Second, "Sleep must return promptly once the context is cancelled")
}

func TestNoopLimiter(t *testing.T) {
	l := New(0)
	_, isNoop := l.(noop)
	assert.True(t, isNoop, "non-positive period must select the no-op limiter")

	l.Sleep(context.Background()) // must not block

	l = New(-time.Second)
	_, isNoop = l.(noop)
	assert.True(t, isNoop)
}

func TestNewSelectsFixed(t *testing.T) {
	l := New(time.Second)
	_, isFixed := l.(*fixed)
	assert.True(t, isFixed)
}
