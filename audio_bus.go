// audio_bus.go - Shared stereo mix bus and master fade gain.

package main

import "sync"

// AudioOutput is the host audio device behind the bus. The concrete
// implementation is selected by build tag (oto, or the headless null
// device).
type AudioOutput interface {
	Start()
	Stop()
	Close()
	IsStarted() bool
}

// AudioBus mixes the active chip backend and the optional pre-rendered
// PCM stream into a stereo bus, then applies the master fade gain
// symmetrically to both channels. The fade gain is the single shared
// control written by the loop/fade machine; nothing else writes it.
//
// The bus mutex covers everything behind the mix: the player holds it
// for the duration of one poll, the audio pull thread holds it per
// buffer fill. Within the poll context itself ordering alone
// (mute -> reconfigure -> unmute) keeps the paths exclusive.
type AudioBus struct {
	mu sync.Mutex

	source ChipBackend
	stream *PCMStream

	fadeGain float32
}

func NewAudioBus() *AudioBus {
	return &AudioBus{fadeGain: 1.0}
}

// Lock is taken by the player around each poll so register writes and
// sample generation never interleave mid-buffer.
func (b *AudioBus) Lock() {
	b.mu.Lock()
}

func (b *AudioBus) Unlock() {
	b.mu.Unlock()
}

// SetSource routes a backend onto the bus. Caller holds the lock.
func (b *AudioBus) SetSource(source ChipBackend) {
	b.source = source
}

// Source returns the currently routed backend. Caller holds the lock.
func (b *AudioBus) Source() ChipBackend {
	return b.source
}

func (b *AudioBus) SetStream(stream *PCMStream) {
	b.stream = stream
}

// SetFadeGain sets the master fade gain, clamped to [0,1].
func (b *AudioBus) SetFadeGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	if gain > 1 {
		gain = 1
	}
	b.fadeGain = float32(gain)
}

func (b *AudioBus) FadeGain() float64 {
	return float64(b.fadeGain)
}

// ReadStereo fills an interleaved stereo float32 buffer from the
// active path. Called from the audio output's pull thread.
func (b *AudioBus) ReadStereo(buf []float32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := 0; i+1 < len(buf); i += 2 {
		var sample float32
		if b.source != nil {
			sample = b.source.GenerateSample()
		}
		if b.stream != nil {
			sample += b.stream.NextSample()
		}
		sample *= b.fadeGain
		buf[i] = sample
		buf[i+1] = sample
	}
}
