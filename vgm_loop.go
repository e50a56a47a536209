// vgm_loop.go - Play-through counting and fade-out state machine.

package main

// Loop phases. The only legal walk is PLAYING_NORMAL -> PLAYING_FINAL
// -> FADING -> STOPPED; once STOPPED is reached playback never
// restarts without a fresh load.
type LoopPhase int

const (
	LOOP_PLAYING_NORMAL LoopPhase = iota
	LOOP_PLAYING_FINAL
	LOOP_FADING
	LOOP_STOPPED
)

// LoopAction is what the player must do after an end-of-data effect.
type LoopAction int

const (
	LOOP_ACTION_STOP LoopAction = iota
	LOOP_ACTION_LOOP_BACK
)

// LoopFadeState tracks play-through count, the loop-point sample
// offset and the exponential fade into the shared master gain.
type LoopFadeState struct {
	phase LoopPhase

	loopEnabled bool
	loopLimit   int
	playCount   int // completed play-throughs

	totalSamples uint64
	loopSamples  uint64

	finalStartSample uint64 // logical offset where the final play-through began

	fadeSamples     uint64  // positional trigger distance before loop end
	fadeDurationSec float64 // wall-clock fade length
	fadeStartMicros float64
	fadeActive      bool
}

// NewLoopFadeState configures loop handling for one load. A zero loop
// region or loopLimit <= 0 disables looping entirely: end-of-data
// stops with no fade.
func NewLoopFadeState(log *CommandLog, loopLimit int, fadeSeconds float64) *LoopFadeState {
	s := &LoopFadeState{
		loopLimit:       loopLimit,
		totalSamples:    log.Header.TotalSamples,
		loopSamples:     log.Header.LoopSamples,
		fadeDurationSec: fadeSeconds,
	}
	s.loopEnabled = log.HasLoop() && loopLimit > 0
	if s.loopEnabled {
		fadeSamples := uint64(fadeSeconds * VGM_SAMPLE_RATE)
		// Fade length never exceeds loop length.
		if fadeSamples > s.loopSamples {
			fadeSamples = s.loopSamples
		}
		s.fadeSamples = fadeSamples
	}
	return s
}

func (s *LoopFadeState) Phase() LoopPhase {
	return s.phase
}

func (s *LoopFadeState) PlayCount() int {
	return s.playCount
}

func (s *LoopFadeState) IsFinalLoop() bool {
	return s.phase == LOOP_PLAYING_FINAL || s.phase == LOOP_FADING
}

func (s *LoopFadeState) FadeActive() bool {
	return s.fadeActive
}

func (s *LoopFadeState) FinalStartSample() uint64 {
	return s.finalStartSample
}

// LoopTargetSample is the logical position after a loop-back: the loop
// region is a suffix, so the target is totalSamples - loopSamples, not
// zero.
func (s *LoopFadeState) LoopTargetSample() uint64 {
	if s.loopSamples > s.totalSamples {
		return 0
	}
	return s.totalSamples - s.loopSamples
}

// HandleEndOfData runs the loop decision for one completed
// play-through and returns whether the player loops back or stops.
func (s *LoopFadeState) HandleEndOfData() LoopAction {
	if !s.loopEnabled || s.phase == LOOP_FADING || s.phase == LOOP_STOPPED {
		return LOOP_ACTION_STOP
	}

	s.playCount++
	if s.playCount >= s.loopLimit {
		// Backstop: the configured number of play-throughs is done
		// (normally the fade stops playback first).
		return LOOP_ACTION_STOP
	}

	if s.playCount == s.loopLimit-1 {
		s.phase = LOOP_PLAYING_FINAL
		s.finalStartSample = s.LoopTargetSample()
	}
	return LOOP_ACTION_LOOP_BACK
}

// OnSample checks the positional fade trigger. The transition to
// FADING is computed purely from the offset within the final
// play-through, not from a timer.
func (s *LoopFadeState) OnSample(positionSamples uint64, nowMicros float64) {
	if s.phase != LOOP_PLAYING_FINAL || s.fadeSamples == 0 {
		return
	}
	if positionSamples < s.finalStartSample {
		return
	}
	offset := positionSamples - s.finalStartSample
	if s.loopSamples >= s.fadeSamples && offset >= s.loopSamples-s.fadeSamples {
		s.phase = LOOP_FADING
		s.fadeActive = true
		s.fadeStartMicros = nowMicros
	}
}

// FadeGain evaluates the squared fade ramp against wall-clock elapsed
// time: g(t) = (1 - t/fadeDuration)^2, clamped to [0,1]. done is true
// once the ramp reaches zero.
func (s *LoopFadeState) FadeGain(nowMicros float64) (gain float64, done bool) {
	if !s.fadeActive {
		return 1.0, false
	}
	elapsed := (nowMicros - s.fadeStartMicros) / 1e6
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed >= s.fadeDurationSec {
		return 0, true
	}
	r := 1.0 - elapsed/s.fadeDurationSec
	return r * r, false
}

// MarkStopped finalizes the machine; it never leaves this phase.
func (s *LoopFadeState) MarkStopped() {
	s.phase = LOOP_STOPPED
	s.fadeActive = false
}
