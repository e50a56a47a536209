// vgm_player.go - VGM playback lifecycle and cooperative poll loop.

package main

import (
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/spf13/afero"
)

func vgmDebugEnabled() bool {
	return os.Getenv("VGM_DEBUG") != ""
}

type PlayerState int

const (
	PLAYER_IDLE PlayerState = iota
	PLAYER_LOADING
	PLAYER_STOPPED
	PLAYER_PLAYING
	PLAYER_PAUSED
	PLAYER_STOPPING
	PLAYER_ERROR
)

func (s PlayerState) String() string {
	switch s {
	case PLAYER_IDLE:
		return "idle"
	case PLAYER_LOADING:
		return "loading"
	case PLAYER_STOPPED:
		return "stopped"
	case PLAYER_PLAYING:
		return "playing"
	case PLAYER_PAUSED:
		return "paused"
	case PLAYER_STOPPING:
		return "stopping"
	case PLAYER_ERROR:
		return "error"
	default:
		return "unknown"
	}
}

// PlayerConfig carries the engine tunables. Zero values fall back to
// the defaults.
type PlayerConfig struct {
	SampleRate  int
	LoopLimit   int     // play-throughs before fade-out
	FadeSeconds float64 // wall-clock fade length

	// Poll-loop breakers. Either cap tripping leaves the player behind
	// schedule rather than blocking the caller; the backlog is made up
	// on the next tick.
	MaxCommandsPerPoll int
	PollBudget         time.Duration

	TickPeriod         time.Duration
	EnableDACPrerender bool
}

func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate:         VGM_SAMPLE_RATE,
		LoopLimit:          2,
		FadeSeconds:        3.0,
		MaxCommandsPerPoll: 384,
		PollBudget:         3 * time.Millisecond,
		TickPeriod:         TICK_PERIOD_DEFAULT,
		EnableDACPrerender: true,
	}
}

func (c PlayerConfig) withDefaults() PlayerConfig {
	d := DefaultPlayerConfig()
	if c.SampleRate == 0 {
		c.SampleRate = d.SampleRate
	}
	if c.LoopLimit == 0 {
		c.LoopLimit = d.LoopLimit
	}
	if c.FadeSeconds == 0 {
		c.FadeSeconds = d.FadeSeconds
	}
	if c.MaxCommandsPerPoll == 0 {
		c.MaxCommandsPerPoll = d.MaxCommandsPerPoll
	}
	if c.PollBudget == 0 {
		c.PollBudget = d.PollBudget
	}
	if c.TickPeriod == 0 {
		c.TickPeriod = d.TickPeriod
	}
	return c
}

// PlayerDiagnostics is a point-in-time snapshot for the status line.
type PlayerDiagnostics struct {
	State             PlayerState
	Chip              ChipModel
	PlayCount         int
	IsFinalLoop       bool
	FadeActive        bool
	IterationOverruns uint64
	BudgetOverruns    uint64
	CorruptionFaults  uint64
	BehindSamples     float64
	ActiveVoices      int
	DACPrerendered    bool
}

// VGMPlayer composes cursor, interpreter, loop machine, stream voices
// and backend dispatch into the public lifecycle. Update must be
// polled continuously from the owning loop; the tick source only flags
// work, it never does any.
type VGMPlayer struct {
	config PlayerConfig
	fs     afero.Fs
	bus    *AudioBus

	state PlayerState

	commandLog *CommandLog
	backend    ChipBackend
	interp     *Interpreter
	streams    *StreamBank
	loop       *LoopFadeState
	clock      *SampleClock
	tick       *TickSource
	stream     *PCMStream

	// PlaybackCursor state beyond the byte position: the logical
	// position within the track and the wait still to spend. The
	// pending wait is always zero when a side-effecting command runs.
	pendingWait     uint32
	positionSamples uint64

	lastVoiceTickSample uint64

	stats          SchedulerStats
	finished       func()
	finishedFired  bool
	dacPrerendered bool
}

func NewVGMPlayer(config PlayerConfig, fs afero.Fs, bus *AudioBus) *VGMPlayer {
	config = config.withDefaults()
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if bus == nil {
		bus = NewAudioBus()
	}
	return &VGMPlayer{
		config: config,
		fs:     fs,
		bus:    bus,
		state:  PLAYER_IDLE,
		tick:   NewTickSource(config.TickPeriod),
	}
}

func (p *VGMPlayer) State() PlayerState {
	return p.state
}

func (p *VGMPlayer) Chip() ChipModel {
	if p.commandLog == nil {
		return CHIP_NONE
	}
	return p.commandLog.Chip
}

// SetFinishedCallback registers the at-most-once completion callback.
// It fires synchronously from the polling context when playback ends
// naturally, never on explicit Stop.
func (p *VGMPlayer) SetFinishedCallback(fn func()) {
	p.finished = fn
}

// LoadFile reads and decodes a command log, selects the backend and
// prepares playback state. Returns false on any load error; the player
// is left in ERROR with no partial state playable.
func (p *VGMPlayer) LoadFile(path string) bool {
	p.teardownPlayback()
	p.state = PLAYER_LOADING

	data, err := openForRead(p.fs, path)
	if err != nil {
		return p.loadFailed(fmt.Errorf("open: %w", err))
	}
	commandLog, err := ParseVGMData(data)
	if err != nil {
		return p.loadFailed(err)
	}
	backend, err := newChipBackend(commandLog.Chip, commandLog.Header.Clocks, p.config.SampleRate)
	if err != nil {
		return p.loadFailed(err)
	}

	p.commandLog = commandLog
	p.backend = backend
	p.streams = NewStreamBank(commandLog.Bank, backend, p.config.SampleRate)
	p.interp = NewInterpreter(commandLog, backend, p.streams)
	p.loop = NewLoopFadeState(commandLog, p.config.LoopLimit, p.config.FadeSeconds)
	p.clock = NewSampleClock(p.config.SampleRate)
	p.pendingWait = 0
	p.positionSamples = 0
	p.lastVoiceTickSample = 0
	p.finishedFired = false
	p.stream = nil
	p.dacPrerendered = false

	if p.config.EnableDACPrerender && commandLog.Chip == CHIP_GENESIS {
		p.setupPrerender()
	}

	p.state = PLAYER_STOPPED
	return true
}

// setupPrerender attempts the ahead-of-time DAC expansion. Failure is
// a degraded mode, not a load failure: the live DAC path still works.
func (p *VGMPlayer) setupPrerender() {
	path, err := PrerenderDACStream(p.fs, p.commandLog)
	if err != nil {
		log.Printf("dac prerender unavailable, falling back to live path: %v", err)
		return
	}
	if path == "" {
		return
	}
	stream, err := NewPCMStream(p.fs, path)
	p.fs.Remove(path)
	if err != nil {
		log.Printf("dac prerender unavailable, falling back to live path: %v", err)
		return
	}
	p.stream = stream
	p.interp.SetSuppressDAC(true)
	p.dacPrerendered = true
}

func (p *VGMPlayer) loadFailed(err error) bool {
	log.Printf("load failed: %v", err)
	p.commandLog = nil
	p.backend = nil
	p.interp = nil
	p.streams = nil
	p.loop = nil
	p.stream = nil
	p.state = PLAYER_ERROR
	return false
}

// pathGainFor sets the per-path routing gain applied on unmute.
func pathGainFor(model ChipModel) float64 {
	if model == CHIP_GENESIS {
		// PSG plus DAC share the path; leave headroom.
		return 0.6
	}
	return 0.8
}

// Play starts playback from the top of a loaded file, rebuilding the
// per-session state so a replay after an explicit Stop begins at the
// first command, not mid-stream. A session that ended naturally (fade
// complete or unlooped end-of-data) is terminal: the file must be
// reloaded before it plays again. The previously routed path is muted
// before the new one is unmuted; an idle backend must never leak
// residual output into the shared bus.
func (p *VGMPlayer) Play() {
	if p.state != PLAYER_STOPPED {
		return
	}
	if p.finishedFired {
		return
	}
	p.rewindPlayback()

	p.bus.Lock()
	if prev := p.bus.Source(); prev != nil && prev != p.backend {
		prev.Mute()
	}
	p.backend.Reset()
	p.bus.SetSource(p.backend)
	p.bus.SetStream(p.stream)
	p.bus.SetFadeGain(1.0)
	p.backend.Unmute(pathGainFor(p.commandLog.Chip))
	p.bus.Unlock()

	p.clock.Resync()
	p.tick.Start()
	p.state = PLAYER_PLAYING
}

// rewindPlayback rebuilds the per-session playback state: cursor back
// at the data start, empty bank, idle stream voices, fresh loop
// machine. The sample clock is kept (its counter is monotonic across
// sessions; tests inject their own).
func (p *VGMPlayer) rewindPlayback() {
	p.commandLog.Bank.Clear()
	p.streams.Reset()
	p.interp = NewInterpreter(p.commandLog, p.backend, p.streams)
	p.interp.SetSuppressDAC(p.dacPrerendered)
	p.loop = NewLoopFadeState(p.commandLog, p.config.LoopLimit, p.config.FadeSeconds)
	p.pendingWait = 0
	p.positionSamples = 0
	p.lastVoiceTickSample = p.clock.SampleCount()
}

// Pause suspends playback, holding position. Follows the quiescence
// protocol: the tick source is stopped (which waits out one period)
// before any state is touched.
func (p *VGMPlayer) Pause() {
	if p.state != PLAYER_PLAYING {
		return
	}
	p.tick.Stop()
	p.bus.Lock()
	p.backend.Mute()
	p.bus.Unlock()
	p.state = PLAYER_PAUSED
}

// Resume continues from a pause. The due timestamp is re-synced so the
// paused stretch is not replayed as a catch-up burst.
func (p *VGMPlayer) Resume() {
	if p.state != PLAYER_PAUSED {
		return
	}
	p.bus.Lock()
	p.backend.Unmute(pathGainFor(p.commandLog.Chip))
	p.bus.Unlock()
	p.clock.Resync()
	p.tick.Start()
	p.state = PLAYER_PLAYING
}

// Stop halts playback and silences the backend. Safe to call in any
// state, any number of times. Never fires the completion callback.
func (p *VGMPlayer) Stop() {
	switch p.state {
	case PLAYER_PLAYING, PLAYER_PAUSED, PLAYER_STOPPING:
	default:
		return
	}
	p.state = PLAYER_STOPPING
	p.tick.Stop()
	p.bus.Lock()
	p.backend.Reset()
	p.backend.Mute()
	p.bus.Unlock()
	if p.loop != nil {
		p.loop.MarkStopped()
	}
	p.state = PLAYER_STOPPED
}

// Reset drops the loaded file entirely and returns to IDLE.
func (p *VGMPlayer) Reset() {
	p.teardownPlayback()
	p.bus.Lock()
	p.bus.SetSource(nil)
	p.bus.SetStream(nil)
	p.bus.SetFadeGain(1.0)
	p.bus.Unlock()
	p.commandLog = nil
	p.backend = nil
	p.interp = nil
	p.streams = nil
	p.loop = nil
	p.stream = nil
	p.state = PLAYER_IDLE
}

// teardownPlayback quiesces the timer and mutes whatever is routed.
// Shared by Stop-like paths that precede reconfiguration (reload,
// reset).
func (p *VGMPlayer) teardownPlayback() {
	p.tick.Stop()
	if p.backend != nil {
		p.bus.Lock()
		p.backend.Reset()
		p.backend.Mute()
		p.bus.Unlock()
	}
}

// Update is the cooperative poll entry point. It consumes the tick
// flag and catches the logical clock up to the wall clock, bounded by
// the configured breakers.
func (p *VGMPlayer) Update() {
	if p.state != PLAYER_PLAYING {
		return
	}
	if !p.tick.Due() {
		return
	}
	p.poll()
}

func (p *VGMPlayer) poll() {
	p.bus.Lock()
	defer p.bus.Unlock()

	pollStart := p.clock.NowMicros()
	budgetMicros := float64(p.config.PollBudget) / float64(time.Microsecond)
	iterations := 0

	for p.state == PLAYER_PLAYING {
		if iterations >= p.config.MaxCommandsPerPoll {
			p.stats.IterationOverruns++
			break
		}
		if p.clock.NowMicros()-pollStart > budgetMicros {
			p.stats.BudgetOverruns++
			break
		}
		if !p.clock.SampleDue() {
			break
		}

		if p.pendingWait > 0 {
			// Spend one sample: both clocks advance together.
			p.pendingWait--
			p.clock.Spend()
			p.positionSamples++
			p.loop.OnSample(p.positionSamples, p.clock.NowMicros())
			iterations++
			continue
		}

		eff := p.interp.DecodeOne()
		iterations++

		switch eff.Kind {
		case EFFECT_WAIT, EFFECT_REG_WRITE:
			// 0x8n carries an embedded wait on a register write.
			p.pendingWait += eff.Wait
		case EFFECT_FAULT:
			p.stats.CorruptionFaults++
			log.Printf("stream corruption: opcode 0x%02X at offset %d", eff.Opcode, p.interp.Cursor().Pos())
			p.endPlayback(false)
		case EFFECT_END_OF_DATA:
			p.handleEndOfData()
		}
	}

	p.tickVoices()
	p.alignStream()
	p.advanceFade()
}

// handleEndOfData runs the loop decision. A loop-back applies the
// stream seek and the sample-position reset together, under the bus
// lock, so no observer ever sees one without the other.
func (p *VGMPlayer) handleEndOfData() {
	if p.loop.HandleEndOfData() == LOOP_ACTION_LOOP_BACK {
		p.interp.Cursor().Seek(int(p.commandLog.Header.LoopOffset))
		p.positionSamples = p.commandLog.LoopPointSample()
		p.commandLog.Bank.Reset()
		p.pendingWait = 0
		if vgmDebugEnabled() {
			log.Printf("loop-back %d/%d to offset 0x%X (sample %d)",
				p.loop.PlayCount()+1, p.config.LoopLimit,
				p.commandLog.Header.LoopOffset, p.positionSamples)
		}
		return
	}
	// Unlooped end-of-data (or the loop-count backstop) ends the
	// session naturally.
	p.endPlayback(!p.interp.Faulted())
}

// endPlayback is the in-poll stop path. natural selects whether the
// completion callback fires.
func (p *VGMPlayer) endPlayback(natural bool) {
	p.loop.MarkStopped()
	p.state = PLAYER_STOPPING
	p.tick.Stop()
	p.backend.Reset()
	p.backend.Mute()
	p.state = PLAYER_STOPPED
	// A natural end is terminal even when no callback is registered.
	if natural && !p.finishedFired {
		p.finishedFired = true
		if p.finished != nil {
			p.finished()
		}
	}
}

// tickVoices drives the autonomous stream voices once per poll with
// the logical time elapsed since the previous poll.
func (p *VGMPlayer) tickVoices() {
	now := p.clock.SampleCount()
	delta := now - p.lastVoiceTickSample
	p.lastVoiceTickSample = now
	if p.streams != nil {
		p.streams.Tick(delta)
	}
}

// alignStream re-targets the pre-rendered DAC stream once per poll.
func (p *VGMPlayer) alignStream() {
	if p.stream != nil {
		p.stream.SetTargetSample(p.positionSamples)
	}
}

// advanceFade evaluates the fade ramp and finishes the session when it
// reaches zero.
func (p *VGMPlayer) advanceFade() {
	if p.loop == nil || !p.loop.FadeActive() {
		return
	}
	gain, done := p.loop.FadeGain(p.clock.NowMicros())
	p.bus.SetFadeGain(gain)
	if done && p.state == PLAYER_PLAYING {
		p.bus.SetFadeGain(0)
		p.endPlayback(true)
	}
}

// Progress reports position within the current play-through, 0..1.
func (p *VGMPlayer) Progress() float64 {
	if p.commandLog == nil || p.commandLog.Header.TotalSamples == 0 {
		return 0
	}
	progress := float64(p.positionSamples) / float64(p.commandLog.Header.TotalSamples)
	return math.Min(progress, 1.0)
}

func (p *VGMPlayer) PositionMs() uint64 {
	return p.positionSamples * 1000 / uint64(p.config.SampleRate)
}

func (p *VGMPlayer) DurationMs() uint64 {
	if p.commandLog == nil {
		return 0
	}
	return p.commandLog.Header.TotalSamples * 1000 / uint64(p.config.SampleRate)
}

func (p *VGMPlayer) DurationSeconds() float64 {
	if p.commandLog == nil {
		return 0
	}
	return float64(p.commandLog.Header.TotalSamples) / float64(p.config.SampleRate)
}

func (p *VGMPlayer) DurationText() string {
	secs := p.DurationSeconds()
	if secs <= 0 {
		return ""
	}
	mins := int(secs) / 60
	rem := int(math.Round(secs)) % 60
	return fmt.Sprintf("%d:%02d", mins, rem)
}

func (p *VGMPlayer) Diagnostics() PlayerDiagnostics {
	d := PlayerDiagnostics{
		State:             p.state,
		Chip:              p.Chip(),
		IterationOverruns: p.stats.IterationOverruns,
		BudgetOverruns:    p.stats.BudgetOverruns,
		CorruptionFaults:  p.stats.CorruptionFaults,
		DACPrerendered:    p.dacPrerendered,
	}
	if p.loop != nil {
		d.PlayCount = p.loop.PlayCount()
		d.IsFinalLoop = p.loop.IsFinalLoop()
		d.FadeActive = p.loop.FadeActive()
	}
	if p.clock != nil {
		d.BehindSamples = p.clock.BehindSamples()
	}
	if p.streams != nil {
		d.ActiveVoices = p.streams.ActiveVoices()
	}
	return d
}
