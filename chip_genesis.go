// chip_genesis.go - Sega-style PSG+FM backend (SN76489 core + YM2612 register image).

package main

import (
	sn76489 "github.com/user-none/go-chip-sn76489"
)

const (
	GENESIS_PSG_CLOCK = 3579545
	GENESIS_FM_CLOCK  = 7670453

	YM2612_REG_DAC_DATA   = 0x2A
	YM2612_REG_DAC_ENABLE = 0x2B
)

// GenesisBackend drives the Sega board path: an SN76489 PSG core for
// the tone/noise half and a YM2612 register image with a live DAC
// latch. FM synthesis is not performed here; FM register values are
// retained verbatim for the hardware path, while the DAC latch and the
// PSG contribute to the mixed output.
type GenesisBackend struct {
	chipPath

	psg     *sn76489.SN76489
	psgStep float64 // chip clocks per output sample
	psgAcc  float64

	fmRegs    [2][256]uint8
	dacEnable bool
	dacLatch  uint8

	ggStereo uint8

	sampleRAM [CHIP_SAMPLE_RAM_SIZE]byte
}

func NewGenesisBackend(clocks ChipClocks, sampleRate int) *GenesisBackend {
	psgClock := int(clocks.SN76489)
	if psgClock == 0 {
		psgClock = GENESIS_PSG_CLOCK
	}
	b := &GenesisBackend{
		psg:     sn76489.New(psgClock, sampleRate, 1, sn76489.Sega),
		psgStep: float64(psgClock) / float64(sampleRate),
	}
	b.muted = true
	b.dacLatch = 0x80
	return b
}

func (b *GenesisBackend) Model() ChipModel {
	return CHIP_GENESIS
}

func (b *GenesisBackend) WriteRegister(space AddrSpace, addr uint8, value uint8) {
	switch space {
	case SPACE_MAIN:
		if addr == PSG_ADDR_STEREO {
			b.ggStereo = value
			return
		}
		b.psg.Write(value)
	case SPACE_PORT0:
		b.fmRegs[0][addr] = value
		switch addr {
		case YM2612_REG_DAC_DATA:
			b.dacLatch = value
		case YM2612_REG_DAC_ENABLE:
			b.dacEnable = value&0x80 != 0
		}
	case SPACE_PORT1:
		b.fmRegs[1][addr] = value
	}
}

const (
	// PSG register addresses within SPACE_MAIN. The write port itself
	// carries the register in the data byte; only the Game Gear stereo
	// latch needs its own address.
	PSG_ADDR_WRITE  = 0
	PSG_ADDR_STEREO = 1
)

func (b *GenesisBackend) Reset() {
	b.psg.Reset()
	b.psgAcc = 0
	b.fmRegs = [2][256]uint8{}
	b.dacEnable = false
	b.dacLatch = 0x80
	b.ggStereo = 0
}

func (b *GenesisBackend) WriteSampleRAM(offset uint32, payload []byte) {
	if offset >= CHIP_SAMPLE_RAM_SIZE {
		return
	}
	copy(b.sampleRAM[offset:], payload)
}

// DACLatch exposes the last DAC byte written, for the mixer's PCM path
// and for tests.
func (b *GenesisBackend) DACLatch() (uint8, bool) {
	return b.dacLatch, b.dacEnable
}

func (b *GenesisBackend) FMRegister(port int, addr uint8) uint8 {
	if port < 0 || port > 1 {
		return 0
	}
	return b.fmRegs[port][addr]
}

func (b *GenesisBackend) GenerateSample() float32 {
	if b.muted {
		return 0
	}

	// Advance the PSG core by one output sample's worth of chip clocks.
	// The fractional remainder carries over so long sessions do not
	// drift against the 44.1 kHz output clock.
	b.psgAcc += b.psgStep
	steps := int(b.psgAcc)
	b.psgAcc -= float64(steps)
	for i := 0; i < steps; i++ {
		b.psg.Clock()
	}

	sample := b.psg.Sample()
	if b.dacEnable {
		sample += (float32(b.dacLatch) - 128.0) / 128.0
	}
	return sample * b.pathGain
}
