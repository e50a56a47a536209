// chip_gameboy.go - Game-Boy-style 4-channel APU backend.

package main

// GB APU registers NR10-NR52 plus wave RAM: $FF10-$FF3F folded to a
// 0x00-0x2F offset by the command encoding.
const GB_APU_REG_COUNT = 0x30

// GameBoyBackend retains the DMG APU register image, wave RAM included.
type GameBoyBackend struct {
	chipPath

	regs [GB_APU_REG_COUNT]uint8

	sampleRAM [CHIP_SAMPLE_RAM_SIZE]byte
}

func NewGameBoyBackend() *GameBoyBackend {
	b := &GameBoyBackend{}
	b.muted = true
	return b
}

func (b *GameBoyBackend) Model() ChipModel {
	return CHIP_GAMEBOY
}

func (b *GameBoyBackend) WriteRegister(space AddrSpace, addr uint8, value uint8) {
	if addr >= GB_APU_REG_COUNT {
		return
	}
	b.regs[addr] = value
}

func (b *GameBoyBackend) Register(addr uint8) uint8 {
	if addr >= GB_APU_REG_COUNT {
		return 0
	}
	return b.regs[addr]
}

func (b *GameBoyBackend) Reset() {
	b.regs = [GB_APU_REG_COUNT]uint8{}
}

func (b *GameBoyBackend) WriteSampleRAM(offset uint32, payload []byte) {
	if offset >= CHIP_SAMPLE_RAM_SIZE {
		return
	}
	copy(b.sampleRAM[offset:], payload)
}

func (b *GameBoyBackend) GenerateSample() float32 {
	return 0
}
