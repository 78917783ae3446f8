// Package ratelimit maintains a fixed average period across iterations of a
// loop whose active part has arbitrary and variable duration.
package ratelimit

import (
	"context"
	"time"
)

// maxLagPeriods caps how far the reference time may fall behind real time.
// After a pathologically slow iteration the loop recovers to near-real-time
// within one capped step instead of scheduling an unbounded zero-delay
// catch-up.
const maxLagPeriods = 100

// Limiter gates the cadence of a sampling loop.
type Limiter interface {
	// Now returns the current monotonic time, usable for duration
	// accounting against the value returned by IterationEnd.
	Now() time.Time
	// IterationEnd records the end of the active part of an iteration and
	// computes the sleep needed to hold the cadence. It returns the real
	// end time.
	IterationEnd() time.Time
	// Sleep blocks for the duration computed by the last IterationEnd, or
	// until the context is cancelled. No-op if the loop is already behind
	// schedule.
	Sleep(ctx context.Context)
}

// New returns a fixed-period limiter for positive periods, otherwise a
// no-op limiter that lets the loop run at full speed.
func New(period time.Duration) Limiter {
	if period > 0 {
		return newFixed(period, realClock{})
	}

	return noop{}
}

type clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

type fixed struct {
	period    time.Duration
	clk       clock
	ref       time.Time
	sleepTime time.Duration
}

func newFixed(period time.Duration, clk clock) *fixed {
	return &fixed{
		period: period,
		clk:    clk,
		ref:    clk.Now(), // start of the first iteration
	}
}

func (l *fixed) Now() time.Time {
	return l.clk.Now()
}

func (l *fixed) IterationEnd() time.Time {
	ref := l.ref.Add(l.period) // ideal end of this iteration
	now := l.clk.Now()
	l.sleepTime = ref.Sub(now)

	// Limit the lag behind real time so recovery after a slow iteration
	// takes one step.
	if floor := now.Add(-maxLagPeriods * l.period); ref.Before(floor) {
		ref = floor
	}
	l.ref = ref

	return now
}

func (l *fixed) Sleep(ctx context.Context) {
	if l.sleepTime > 0 {
		l.clk.Sleep(ctx, l.sleepTime)
	}
}

type noop struct{}

func (noop) Now() time.Time          { return time.Now() }
func (noop) IterationEnd() time.Time { return time.Now() }
func (noop) Sleep(context.Context)   {}
