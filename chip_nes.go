// chip_nes.go - NES-style pulse/noise/DPCM APU backend.

package main

// NES APU register file: $4000-$401F mirrored into an 8-bit offset.
const NES_APU_REG_COUNT = 0x20

// NESBackend retains the APU register image ($4000 base) for the
// pulse/triangle/noise/DPCM path. DPCM sample payloads land in the
// backend sample RAM via RAM-write data blocks.
type NESBackend struct {
	chipPath

	regs [NES_APU_REG_COUNT]uint8

	sampleRAM [CHIP_SAMPLE_RAM_SIZE]byte
}

func NewNESBackend() *NESBackend {
	b := &NESBackend{}
	b.muted = true
	return b
}

func (b *NESBackend) Model() ChipModel {
	return CHIP_NES
}

func (b *NESBackend) WriteRegister(space AddrSpace, addr uint8, value uint8) {
	if addr >= NES_APU_REG_COUNT {
		return
	}
	b.regs[addr] = value
}

func (b *NESBackend) Register(addr uint8) uint8 {
	if addr >= NES_APU_REG_COUNT {
		return 0
	}
	return b.regs[addr]
}

func (b *NESBackend) Reset() {
	b.regs = [NES_APU_REG_COUNT]uint8{}
}

func (b *NESBackend) WriteSampleRAM(offset uint32, payload []byte) {
	if offset >= CHIP_SAMPLE_RAM_SIZE {
		return
	}
	copy(b.sampleRAM[offset:], payload)
}

func (b *NESBackend) SampleRAMByte(offset uint32) byte {
	if offset >= CHIP_SAMPLE_RAM_SIZE {
		return 0
	}
	return b.sampleRAM[offset]
}

func (b *NESBackend) GenerateSample() float32 {
	return 0
}
