// chip_backend.go - Sound backend interface and load-time chip selection.

package main

import "fmt"

// AddrSpace selects a register address space within a backend. FM chips
// expose two ports; the PSG and the APUs use the main space only.
type AddrSpace uint8

const (
	SPACE_MAIN  AddrSpace = 0
	SPACE_PORT0 AddrSpace = 1
	SPACE_PORT1 AddrSpace = 2
)

// ChipModel identifies which of the mutually exclusive backends a
// loaded file drives. Selected once per load, never changed mid-session.
type ChipModel int

const (
	CHIP_NONE ChipModel = iota
	CHIP_GENESIS
	CHIP_OPL2
	CHIP_OPL3
	CHIP_NES
	CHIP_GAMEBOY
)

func (m ChipModel) String() string {
	switch m {
	case CHIP_GENESIS:
		return "Sega PSG+FM"
	case CHIP_OPL2:
		return "OPL2 x2"
	case CHIP_OPL3:
		return "OPL3"
	case CHIP_NES:
		return "NES APU"
	case CHIP_GAMEBOY:
		return "Game Boy APU"
	default:
		return "none"
	}
}

// Fixed size of the addressable sample RAM each backend exposes for
// address-qualified RAM-write data blocks.
const CHIP_SAMPLE_RAM_SIZE = 64 * 1024

// ChipBackend is the polymorphic target for decoded register writes.
// The interpreter forwards values verbatim; any protocol-level write
// spacing is the backend's own concern. Mute/Unmute own the audio
// routing side effect of play()/stop(): whichever path is not in use
// stays muted so an idle backend contributes no residual output.
type ChipBackend interface {
	Model() ChipModel
	WriteRegister(space AddrSpace, addr uint8, value uint8)
	Reset()
	Mute()
	Unmute(pathGain float64)
	Muted() bool

	// WriteSampleRAM deposits an address-qualified data block into the
	// backend's sample RAM. Out-of-range writes are clipped.
	WriteSampleRAM(offset uint32, payload []byte)

	// GenerateSample produces one mono sample at the output rate.
	// Returns 0 while muted.
	GenerateSample() float32
}

// selectChipModel picks exactly one backend from the declared header
// clocks. Precedence when a file declares several chips: the Genesis
// board wins (it is the only one with a DAC path), then OPL3, dual
// OPL2, NES, Game Boy.
func selectChipModel(clocks ChipClocks) ChipModel {
	switch {
	case clocks.YM2612 != 0 || clocks.SN76489 != 0:
		return CHIP_GENESIS
	case clocks.YMF262 != 0:
		return CHIP_OPL3
	case clocks.YM3812 != 0:
		return CHIP_OPL2
	case clocks.NESAPU != 0:
		return CHIP_NES
	case clocks.GBDMG != 0:
		return CHIP_GAMEBOY
	default:
		return CHIP_NONE
	}
}

// newChipBackend builds the backend instance for a selected model.
func newChipBackend(model ChipModel, clocks ChipClocks, sampleRate int) (ChipBackend, error) {
	switch model {
	case CHIP_GENESIS:
		return NewGenesisBackend(clocks, sampleRate), nil
	case CHIP_OPL2, CHIP_OPL3:
		return NewOPLBackend(model), nil
	case CHIP_NES:
		return NewNESBackend(), nil
	case CHIP_GAMEBOY:
		return NewGameBoyBackend(), nil
	default:
		return nil, fmt.Errorf("no backend for chip declaration")
	}
}

// chipPath is the shared mute/gain state embedded in every backend.
type chipPath struct {
	muted    bool
	pathGain float32
}

func (p *chipPath) Mute() {
	p.muted = true
}

func (p *chipPath) Unmute(pathGain float64) {
	p.pathGain = float32(pathGain)
	p.muted = false
}

func (p *chipPath) Muted() bool {
	return p.muted
}
