// vgm_prerender.go - Ahead-of-time DAC expansion and synchronized PCM stream.
//
// Dense 0x8n runs on the Genesis backend can be expanded once, at load
// time, into a flat mono WAV indexed by logical sample position. An
// independent PCMStream then carries the DAC audio while the live
// interpreter skips its DAC register writes. The stream is re-aligned
// to the interpreter's logical position once per poll, tolerating a
// small drift window instead of hard-reseeking every tick.
//
// Any pre-render failure (I/O, size) is reported to the caller, which
// falls back to driving the DAC latch directly from the command
// stream: degraded timing for dense PCM, but functional.

package main

import (
	"fmt"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
)

const (
	// Re-align threshold, in samples (~10 ms). Below this the stream
	// free-runs on its own clock.
	PRERENDER_DRIFT_TOLERANCE = 441

	// Expansion ceiling: an hour of mono 16-bit at 44.1 kHz. Headers
	// claiming more than this are not worth a scratch file.
	PRERENDER_MAX_SAMPLES = 60 * 60 * VGM_SAMPLE_RATE

	prerenderWriteChunk = 32768
)

// PrerenderDACStream expands the file's 0x8n sub-stream into a WAV on
// fs and returns its path. Returns ("", nil) when the stream contains
// no short-form DAC commands at all.
func PrerenderDACStream(fs afero.Fs, log *CommandLog) (string, error) {
	if log.Header.TotalSamples == 0 || log.Header.TotalSamples > PRERENDER_MAX_SAMPLES {
		return "", fmt.Errorf("prerender: unreasonable total sample count %d", log.Header.TotalSamples)
	}

	samples, hasDAC, err := expandDACSamples(log)
	if err != nil {
		return "", err
	}
	if !hasDAC {
		return "", nil
	}

	f, err := afero.TempFile(fs, "", "dacstream-*.wav")
	if err != nil {
		return "", fmt.Errorf("prerender: %w", err)
	}
	path := f.Name()

	enc := wav.NewEncoder(f, VGM_SAMPLE_RATE, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: VGM_SAMPLE_RATE},
		SourceBitDepth: 16,
	}
	for start := 0; start < len(samples); start += prerenderWriteChunk {
		end := min(start+prerenderWriteChunk, len(samples))
		buf.Data = samples[start:end]
		if err := enc.Write(buf); err != nil {
			enc.Close()
			f.Close()
			fs.Remove(path)
			return "", fmt.Errorf("prerender: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		f.Close()
		fs.Remove(path)
		return "", fmt.Errorf("prerender: %w", err)
	}
	if err := f.Close(); err != nil {
		fs.Remove(path)
		return "", fmt.Errorf("prerender: %w", err)
	}
	return path, nil
}

// expandDACSamples performs a timing-only walk of the command stream:
// data blocks feed a scratch bank, waits advance the position, 0x8n
// fetches latch a new DAC level. Everything else is skipped. The DAC
// level holds between fetches, exactly as the hardware latch does.
func expandDACSamples(log *CommandLog) ([]int, bool, error) {
	scratch := &CommandLog{Header: log.Header, Data: log.Data, Bank: NewDataBank(), Chip: log.Chip}
	backend := newNullSink()
	it := NewInterpreter(scratch, backend, NewStreamBank(scratch.Bank, backend, VGM_SAMPLE_RATE))

	total := int(log.Header.TotalSamples)
	samples := make([]int, 0, total)
	hasDAC := false
	level := 0 // centered 16-bit

	emit := func(n uint32) {
		for i := uint32(0); i < n && len(samples) < total; i++ {
			samples = append(samples, level)
		}
	}

	for {
		eff := it.DecodeOne()
		switch eff.Kind {
		case EFFECT_END_OF_DATA, EFFECT_FAULT:
			emit(uint32(total - len(samples)))
			return samples, hasDAC, nil
		case EFFECT_REG_WRITE:
			if eff.Opcode >= 0x80 && eff.Opcode <= 0x8F {
				hasDAC = true
				level = (int(eff.Value) - 0x80) << 8
			}
			emit(eff.Wait)
		case EFFECT_WAIT:
			if eff.Opcode >= 0x80 && eff.Opcode <= 0x8F {
				// DAC opcode routed as wait-only (non-Genesis); still
				// counts as DAC presence for the Genesis caller.
				hasDAC = true
				level = (int(eff.Value) - 0x80) << 8
			}
			emit(eff.Wait)
		}
		if len(samples) >= total && total > 0 {
			return samples, hasDAC, nil
		}
	}
}

// nullSink absorbs register writes during the expansion walk.
type nullSink struct {
	chipPath
	sampleRAM [CHIP_SAMPLE_RAM_SIZE]byte
}

func newNullSink() *nullSink {
	return &nullSink{}
}

func (n *nullSink) Model() ChipModel { return CHIP_GENESIS }

func (n *nullSink) WriteRegister(space AddrSpace, addr, value uint8) {}

func (n *nullSink) Reset() {}

func (n *nullSink) WriteSampleRAM(offset uint32, payload []byte) {
	if offset >= CHIP_SAMPLE_RAM_SIZE {
		return
	}
	copy(n.sampleRAM[offset:], payload)
}

func (n *nullSink) GenerateSample() float32 { return 0 }

// PCMStream plays a pre-rendered WAV, re-aligned once per poll to the
// interpreter's logical sample position.
type PCMStream struct {
	samples []float32
	pos     int
	gain    float32
}

// NewPCMStream loads the whole pre-rendered file into memory. The
// scratch file can be removed once loaded.
func NewPCMStream(fs afero.Fs, path string) (*PCMStream, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pcm stream: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if dec == nil || !dec.IsValidFile() {
		return nil, fmt.Errorf("pcm stream: not a valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("pcm stream: %w", err)
	}
	floatBuf := buf.AsFloat32Buffer()

	numChans := int(dec.NumChans)
	if numChans < 1 {
		numChans = 1
	}
	samples := make([]float32, 0, len(floatBuf.Data)/numChans)
	for i := 0; i < len(floatBuf.Data); i += numChans {
		samples = append(samples, floatBuf.Data[i])
	}

	return &PCMStream{samples: samples, gain: 1.0}, nil
}

// NextSample advances the stream's own clock by one output sample.
func (s *PCMStream) NextSample() float32 {
	if s.pos >= len(s.samples) {
		return 0
	}
	v := s.samples[s.pos]
	s.pos++
	return v * s.gain
}

func (s *PCMStream) Position() int {
	return s.pos
}

// SetTargetSample re-aligns the stream to the interpreter's logical
// position. Small drift is tolerated so the two clocks do not fight
// each other every tick.
func (s *PCMStream) SetTargetSample(target uint64) {
	t := int(target)
	if t > len(s.samples) {
		t = len(s.samples)
	}
	drift := s.pos - t
	if drift < 0 {
		drift = -drift
	}
	if drift > PRERENDER_DRIFT_TOLERANCE {
		s.pos = t
	}
}

func (s *PCMStream) SetGain(gain float64) {
	s.gain = float32(gain)
}
