// chip_opl.go - OPL register-image backend (dual YM3812 or single YMF262).

package main

// OPLBackend targets the FM board path: either two 2-operator OPL2
// chips (SPACE_PORT0 / SPACE_PORT1 address the first and second chip)
// or a single OPL3 in native mode (the two spaces address its low and
// high register banks). Register values are retained verbatim for the
// hardware path; no FM synthesis is modelled, so the mixed output of
// this backend is silent and the real chips carry the audio.
type OPLBackend struct {
	chipPath

	model ChipModel
	regs  [2][256]uint8

	sampleRAM [CHIP_SAMPLE_RAM_SIZE]byte
}

func NewOPLBackend(model ChipModel) *OPLBackend {
	b := &OPLBackend{model: model}
	b.muted = true
	return b
}

func (b *OPLBackend) Model() ChipModel {
	return b.model
}

func (b *OPLBackend) WriteRegister(space AddrSpace, addr uint8, value uint8) {
	switch space {
	case SPACE_PORT0, SPACE_MAIN:
		b.regs[0][addr] = value
	case SPACE_PORT1:
		b.regs[1][addr] = value
	}
}

func (b *OPLBackend) Register(bank int, addr uint8) uint8 {
	if bank < 0 || bank > 1 {
		return 0
	}
	return b.regs[bank][addr]
}

func (b *OPLBackend) Reset() {
	b.regs = [2][256]uint8{}
}

func (b *OPLBackend) WriteSampleRAM(offset uint32, payload []byte) {
	if offset >= CHIP_SAMPLE_RAM_SIZE {
		return
	}
	copy(b.sampleRAM[offset:], payload)
}

func (b *OPLBackend) GenerateSample() float32 {
	return 0
}
