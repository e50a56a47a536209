package main

import "testing"

func loopTestLog(total, loop uint64) *CommandLog {
	return &CommandLog{
		Header: VGMHeader{
			TotalSamples: total,
			LoopSamples:  loop,
			LoopOffset:   0x100,
		},
	}
}

func TestLoopFade_NoLoopStopsAtEnd(t *testing.T) {
	commandLog := loopTestLog(88200, 0)
	commandLog.Header.LoopOffset = 0
	s := NewLoopFadeState(commandLog, 2, 3.0)

	if s.HandleEndOfData() != LOOP_ACTION_STOP {
		t.Error("unlooped file did not stop at end-of-data")
	}
}

func TestLoopFade_LimitTwoWalk(t *testing.T) {
	s := NewLoopFadeState(loopTestLog(88200, 44100), 2, 1.0)

	if s.Phase() != LOOP_PLAYING_NORMAL {
		t.Fatalf("initial phase: %d", s.Phase())
	}

	// First end-of-data: one play-through done, loop back into the
	// final one.
	if s.HandleEndOfData() != LOOP_ACTION_LOOP_BACK {
		t.Fatal("first end-of-data did not loop back")
	}
	if s.PlayCount() != 1 {
		t.Errorf("play count: %d", s.PlayCount())
	}
	if !s.IsFinalLoop() || s.Phase() != LOOP_PLAYING_FINAL {
		t.Errorf("not in final play-through: phase=%d", s.Phase())
	}
	if s.FinalStartSample() != 44100 {
		t.Errorf("final start sample: %d, want 44100", s.FinalStartSample())
	}

	// Second end-of-data: the backstop, fade or no fade.
	if s.HandleEndOfData() != LOOP_ACTION_STOP {
		t.Error("backstop did not stop")
	}
}

func TestLoopFade_PositionalTrigger(t *testing.T) {
	// 1 second of fade over a 1 second loop: fadeSamples clamps to the
	// loop length, so the fade starts the moment the final loop does.
	s := NewLoopFadeState(loopTestLog(88200, 44100), 2, 1.0)
	s.HandleEndOfData()

	// Before the final region nothing triggers.
	s.OnSample(44099, 0)
	if s.FadeActive() {
		t.Fatal("fade triggered before the final start sample")
	}
	s.OnSample(44100, 1000)
	if !s.FadeActive() || s.Phase() != LOOP_FADING {
		t.Fatalf("fade not triggered at the final start: phase=%d", s.Phase())
	}
}

func TestLoopFade_TriggerDistance(t *testing.T) {
	// 0.5 s fade over a 1 s loop: trigger at half a loop before the end.
	s := NewLoopFadeState(loopTestLog(88200, 44100), 2, 0.5)
	s.HandleEndOfData()

	s.OnSample(44100+22049, 0)
	if s.FadeActive() {
		t.Fatal("fade triggered early")
	}
	s.OnSample(44100+22050, 0)
	if !s.FadeActive() {
		t.Fatal("fade did not trigger at loopSamples-fadeSamples")
	}
}

func TestLoopFade_GainRamp(t *testing.T) {
	s := NewLoopFadeState(loopTestLog(88200, 44100), 2, 2.0)
	s.HandleEndOfData()
	s.OnSample(88199, 1_000_000) // trigger at t=1s

	// Squared ramp: monotonic non-increasing, hits zero at the
	// configured duration.
	prev := 1.0
	for _, elapsed := range []float64{0, 0.25, 0.5, 1.0, 1.5, 1.99} {
		gain, done := s.FadeGain(1_000_000 + elapsed*1e6)
		if done {
			t.Fatalf("done at %.2fs", elapsed)
		}
		if gain > prev || gain < 0 || gain > 1 {
			t.Fatalf("gain not a clamped ramp: %.4f after %.4f", gain, prev)
		}
		prev = gain
	}

	// Midpoint of a squared ramp is a quarter of full scale.
	mid, _ := s.FadeGain(1_000_000 + 1e6)
	if mid < 0.24 || mid > 0.26 {
		t.Errorf("gain at half duration: %.4f, want 0.25", mid)
	}

	if gain, done := s.FadeGain(1_000_000 + 2e6); !done || gain != 0 {
		t.Errorf("ramp end: gain=%.4f done=%v", gain, done)
	}
}

func TestLoopFade_EndOfDataDuringFadeStops(t *testing.T) {
	s := NewLoopFadeState(loopTestLog(88200, 44100), 2, 1.0)
	s.HandleEndOfData()
	s.OnSample(44100, 0)

	if s.HandleEndOfData() != LOOP_ACTION_STOP {
		t.Error("end-of-data during fade looped back")
	}
}

func TestLoopFade_StoppedIsTerminal(t *testing.T) {
	s := NewLoopFadeState(loopTestLog(88200, 44100), 3, 1.0)
	s.MarkStopped()

	if s.Phase() != LOOP_STOPPED {
		t.Fatalf("phase: %d", s.Phase())
	}
	if s.HandleEndOfData() != LOOP_ACTION_STOP {
		t.Error("stopped machine looped back")
	}
	if s.FadeActive() {
		t.Error("fade active after stop")
	}
}

func TestLoopFade_LoopLongerThanTotal(t *testing.T) {
	// Header nonsense: loop region longer than the file. Loop target
	// clamps to zero instead of wrapping.
	s := NewLoopFadeState(loopTestLog(44100, 88200), 2, 1.0)
	if s.LoopTargetSample() != 0 {
		t.Errorf("loop target: %d, want 0", s.LoopTargetSample())
	}
}
