// vgm_stream_control.go - Autonomous PCM stream voices (0x90-0x95).
//
// Stream voices replay data-bank bytes at a fixed frequency instead of
// through per-sample stream commands. They are ticked once per poll
// with the number of logical samples elapsed, outside the
// sample-accurate command path.

package main

const STREAM_MAX_VOICES = 0x100

// lengthMode bit 7 marks a looping stream; bit 0 selects "length is a
// command count" (the only length interpretation used here).
const (
	STREAM_MODE_LOOP       = 0x80
	STREAM_MODE_CMD_LENGTH = 0x01
)

// StreamVoice is one autonomous PCM voice. Owned by the CommandLog for
// the duration of a load; reset wholesale on each load.
type StreamVoice struct {
	id       uint8
	chipType uint8
	space    AddrSpace
	reg      uint8

	bankID   uint8
	stepSize uint8
	stepBase uint8

	freqHz uint32

	startOffset int
	length      int
	mode        uint8

	active bool
	sent   int
	frac   float64
}

// StreamBank owns all stream voices of the current load and drives
// them against the data bank and the active backend.
type StreamBank struct {
	voices  [STREAM_MAX_VOICES]*StreamVoice
	bank    *DataBank
	backend ChipBackend
	rate    float64
}

func NewStreamBank(bank *DataBank, backend ChipBackend, sampleRate int) *StreamBank {
	return &StreamBank{
		bank:    bank,
		backend: backend,
		rate:    float64(sampleRate),
	}
}

func (s *StreamBank) voice(id uint8) *StreamVoice {
	if s.voices[id] == nil {
		s.voices[id] = &StreamVoice{id: id, stepSize: 1}
	}
	return s.voices[id]
}

// ActiveVoices reports how many voices are currently playing.
func (s *StreamBank) ActiveVoices() int {
	n := 0
	for _, v := range s.voices {
		if v != nil && v.active {
			n++
		}
	}
	return n
}

// HandleSetup wires stream id to a backend register (0x90).
func (s *StreamBank) HandleSetup(id, chipType, port, reg uint8) {
	v := s.voice(id)
	v.chipType = chipType
	v.reg = reg
	switch port {
	case 0:
		v.space = SPACE_PORT0
	case 1:
		v.space = SPACE_PORT1
	default:
		v.space = SPACE_MAIN
	}
}

// HandleSetData assigns the backing bank and step layout (0x91).
func (s *StreamBank) HandleSetData(id, bankID, stepSize, stepBase uint8) {
	v := s.voice(id)
	v.bankID = bankID
	if stepSize == 0 {
		stepSize = 1
	}
	v.stepSize = stepSize
	v.stepBase = stepBase
}

// HandleSetFrequency sets the voice replay rate in Hz (0x92).
func (s *StreamBank) HandleSetFrequency(id uint8, freqHz uint32) {
	s.voice(id).freqHz = freqHz
}

// HandleStart begins playback at an absolute bank offset (0x93).
func (s *StreamBank) HandleStart(id uint8, offset uint32, mode uint8, length uint32) {
	v := s.voice(id)
	v.startOffset = int(offset)
	if offset == 0xFFFFFFFF {
		v.startOffset = 0
	}
	v.mode = mode
	v.length = int(length)
	v.sent = 0
	v.frac = 0
	v.active = v.freqHz > 0
}

// HandleStartFast begins playback of an appended block by index (0x95).
func (s *StreamBank) HandleStartFast(id uint8, blockIndex uint16, flags uint8) {
	v := s.voice(id)
	off, length, ok := s.bank.Block(int(blockIndex))
	if !ok {
		v.active = false
		return
	}
	v.startOffset = off
	v.length = length
	v.mode = STREAM_MODE_CMD_LENGTH
	if flags&0x01 != 0 {
		v.mode |= STREAM_MODE_LOOP
	}
	v.sent = 0
	v.frac = 0
	v.active = v.freqHz > 0
}

// HandleStop halts a voice (0x94). id 0xFF stops every voice.
func (s *StreamBank) HandleStop(id uint8) {
	if id == 0xFF {
		for _, v := range s.voices {
			if v != nil {
				v.active = false
			}
		}
		return
	}
	if v := s.voices[id]; v != nil {
		v.active = false
	}
}

// Tick advances every active voice by deltaSamples of logical time,
// fetching bank bytes and writing them to the configured backend
// register as each voice's own clock comes due.
func (s *StreamBank) Tick(deltaSamples uint64) {
	if deltaSamples == 0 {
		return
	}
	for _, v := range s.voices {
		if v == nil || !v.active {
			continue
		}
		v.frac += float64(v.freqHz) * float64(deltaSamples) / s.rate
		steps := int(v.frac)
		v.frac -= float64(steps)
		for i := 0; i < steps && v.active; i++ {
			s.emit(v)
		}
	}
}

func (s *StreamBank) emit(v *StreamVoice) {
	offset := v.startOffset + v.sent*int(v.stepSize) + int(v.stepBase)
	s.backend.WriteRegister(v.space, v.reg, s.bank.ByteAt(offset))
	v.sent++
	if v.length > 0 && v.sent >= v.length {
		if v.mode&STREAM_MODE_LOOP != 0 {
			v.sent = 0
			return
		}
		v.active = false
	}
}

// Reset deactivates and forgets all voices. Called on load.
func (s *StreamBank) Reset() {
	s.voices = [STREAM_MAX_VOICES]*StreamVoice{}
}
