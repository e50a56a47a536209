// vgm_scheduler.go - Periodic tick source and dual-clock bookkeeping.
//
// Two clocks drive playback: the logical 44.1 kHz sample counter,
// advanced only by spending Wait effects, and the free-running wall
// clock. A float64 "next due" timestamp bridges them, advanced by
// exactly one sample period per spent sample. The accumulator stays in
// floating point; truncating to integer microseconds every tick drifts
// audibly over multi-minute tracks.

package main

import (
	"math"
	"sync/atomic"
	"time"
)

// Default tick period of the wake-up source. Sub-millisecond, well
// under one sample period's worth of backlog per tick at 44.1 kHz.
const TICK_PERIOD_DEFAULT = 250 * time.Microsecond

// TickSource is the stand-in for the periodic hardware timer
// interrupt. The goroutine it starts does nothing but set the atomic
// due flag; all decoding, chip I/O and state mutation happen in the
// poll path on the caller's context.
type TickSource struct {
	period time.Duration
	due    atomic.Bool
	done   chan struct{}
}

func NewTickSource(period time.Duration) *TickSource {
	if period <= 0 {
		period = TICK_PERIOD_DEFAULT
	}
	return &TickSource{period: period}
}

func (t *TickSource) Period() time.Duration {
	return t.period
}

func (t *TickSource) Running() bool {
	return t.done != nil
}

func (t *TickSource) Start() {
	if t.done != nil {
		return
	}
	t.done = make(chan struct{})
	go func(done chan struct{}) {
		ticker := time.NewTicker(t.period)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				t.due.Store(true)
			}
		}
	}(t.done)
}

// Stop disables the tick goroutine and then waits out one full tick
// period before returning. The quiescence delay guarantees no
// in-flight tick races with the teardown that follows; every path that
// disables the timer (stop, pause, reload) must come through here.
func (t *TickSource) Stop() {
	if t.done == nil {
		return
	}
	close(t.done)
	t.done = nil
	time.Sleep(t.period)
	t.due.Store(false)
}

// Due consumes the tick flag.
func (t *TickSource) Due() bool {
	return t.due.Swap(false)
}

// SampleClock maintains the logical sample counter and the
// floating-point due timestamp, in microseconds of wall time.
type SampleClock struct {
	// now returns the wall clock in microseconds. Replaceable so tests
	// drive time explicitly.
	now func() float64

	samplePeriodMicros float64
	nextDueMicros      float64
	sampleCount        uint64
}

func NewSampleClock(sampleRate int) *SampleClock {
	start := time.Now()
	return &SampleClock{
		now: func() float64 {
			return float64(time.Since(start)) / float64(time.Microsecond)
		},
		samplePeriodMicros: 1e6 / float64(sampleRate),
	}
}

func (c *SampleClock) NowMicros() float64 {
	return c.now()
}

func (c *SampleClock) SampleCount() uint64 {
	return c.sampleCount
}

// Resync aligns the due timestamp with the present. Used at play start
// and on resume so a paused stretch is not "caught up" as a burst.
func (c *SampleClock) Resync() {
	c.nextDueMicros = c.now()
}

// SampleDue reports whether the wall clock has reached the next due
// timestamp. The comparison rounds the float accumulator to the
// nearest integer microsecond; the accumulator itself is never
// rounded.
func (c *SampleClock) SampleDue() bool {
	return c.now() >= math.Round(c.nextDueMicros)
}

// Spend advances both clocks by exactly one sample.
func (c *SampleClock) Spend() {
	c.nextDueMicros += c.samplePeriodMicros
	c.sampleCount++
}

// BehindSamples estimates the current backlog, for diagnostics.
func (c *SampleClock) BehindSamples() float64 {
	behind := (c.now() - c.nextDueMicros) / c.samplePeriodMicros
	if behind < 0 {
		return 0
	}
	return behind
}

// SchedulerStats counts the poll-loop breaker trips. Overruns degrade
// timing but never abort playback; they are surfaced, not hidden.
type SchedulerStats struct {
	IterationOverruns uint64
	BudgetOverruns    uint64
	CorruptionFaults  uint64
}
