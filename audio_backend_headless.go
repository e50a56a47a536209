//go:build headless

package main

type NullOutput struct {
	started bool
}

func NewAudioOutput(sampleRate int, bus *AudioBus) (AudioOutput, error) {
	return &NullOutput{}, nil
}

func (op *NullOutput) Start() {
	op.started = true
}

func (op *NullOutput) Stop() {
	op.started = false
}

func (op *NullOutput) Close() {
	op.started = false
}

func (op *NullOutput) IsStarted() bool {
	return op.started
}
