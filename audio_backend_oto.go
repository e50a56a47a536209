//go:build !headless

// audio_backend_oto.go - OTO v3 audio output implementation.

package main

import (
	"sync"
	"unsafe"

	"github.com/ebitengine/oto/v3"
)

type OtoOutput struct {
	ctx       *oto.Context
	player    *oto.Player
	bus       *AudioBus
	sampleBuf []float32
	started   bool
	mutex     sync.Mutex
}

func NewAudioOutput(sampleRate int, bus *AudioBus) (AudioOutput, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   4,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	out := &OtoOutput{
		ctx: ctx,
		bus: bus,
		// Pre-allocated for typical oto buffer sizes (4096 bytes = 1024
		// float32 samples).
		sampleBuf: make([]float32, 4096),
	}
	out.player = ctx.NewPlayer(out)
	return out, nil
}

func (op *OtoOutput) Read(p []byte) (n int, err error) {
	numSamples := len(p) / 4
	if len(op.sampleBuf) < numSamples {
		op.sampleBuf = make([]float32, numSamples)
	}
	samples := op.sampleBuf[:numSamples]

	op.bus.ReadStereo(samples)

	copy(p, (*[1 << 30]byte)(unsafe.Pointer(&samples[0]))[:len(p)])
	return len(p), nil
}

func (op *OtoOutput) Start() {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if !op.started && op.player != nil {
		op.player.Play()
		op.started = true
	}
}

func (op *OtoOutput) Stop() {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if op.started && op.player != nil {
		op.player.Pause()
		op.started = false
	}
}

func (op *OtoOutput) Close() {
	op.Stop()
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if op.player != nil {
		op.player.Close()
		op.player = nil
	}
}

func (op *OtoOutput) IsStarted() bool {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	return op.started
}
