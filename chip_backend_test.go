package main

import "testing"

func TestNewChipBackend_Models(t *testing.T) {
	clocks := ChipClocks{SN76489: 3579545, YM2612: 7670453}

	for _, model := range []ChipModel{CHIP_GENESIS, CHIP_OPL2, CHIP_OPL3, CHIP_NES, CHIP_GAMEBOY} {
		b, err := newChipBackend(model, clocks, VGM_SAMPLE_RATE)
		if err != nil {
			t.Fatalf("%s: %v", model, err)
		}
		if b.Model() != model {
			t.Errorf("backend model: got %s, want %s", b.Model(), model)
		}
		if !b.Muted() {
			t.Errorf("%s: backend starts unmuted", model)
		}
	}

	if _, err := newChipBackend(CHIP_NONE, clocks, VGM_SAMPLE_RATE); err == nil {
		t.Error("CHIP_NONE produced a backend")
	}
}

func TestGenesisBackend_DACLatch(t *testing.T) {
	b := NewGenesisBackend(ChipClocks{SN76489: 3579545}, VGM_SAMPLE_RATE)

	if latch, enabled := b.DACLatch(); latch != 0x80 || enabled {
		t.Fatalf("initial latch: %02X enabled=%v", latch, enabled)
	}

	b.WriteRegister(SPACE_PORT0, YM2612_REG_DAC_ENABLE, 0x80)
	b.WriteRegister(SPACE_PORT0, YM2612_REG_DAC_DATA, 0xC0)
	latch, enabled := b.DACLatch()
	if latch != 0xC0 || !enabled {
		t.Errorf("latch after writes: %02X enabled=%v", latch, enabled)
	}

	b.WriteRegister(SPACE_PORT0, YM2612_REG_DAC_ENABLE, 0x00)
	if _, enabled := b.DACLatch(); enabled {
		t.Error("DAC still enabled after clearing bit 7")
	}
}

func TestGenesisBackend_MuteGatesOutput(t *testing.T) {
	b := NewGenesisBackend(ChipClocks{SN76489: 3579545}, VGM_SAMPLE_RATE)
	b.WriteRegister(SPACE_PORT0, YM2612_REG_DAC_ENABLE, 0x80)
	b.WriteRegister(SPACE_PORT0, YM2612_REG_DAC_DATA, 0xFF)

	if s := b.GenerateSample(); s != 0 {
		t.Fatalf("muted backend produced %f", s)
	}
	b.Unmute(1.0)
	if s := b.GenerateSample(); s <= 0 {
		t.Errorf("unmuted DAC at full scale produced %f", s)
	}
	b.Mute()
	if s := b.GenerateSample(); s != 0 {
		t.Errorf("re-muted backend produced %f", s)
	}
}

func TestGenesisBackend_ResetClearsState(t *testing.T) {
	b := NewGenesisBackend(ChipClocks{SN76489: 3579545}, VGM_SAMPLE_RATE)
	b.WriteRegister(SPACE_PORT0, 0x22, 0x08)
	b.WriteRegister(SPACE_PORT1, 0xA4, 0x1C)
	b.WriteRegister(SPACE_PORT0, YM2612_REG_DAC_ENABLE, 0x80)

	b.Reset()
	if b.FMRegister(0, 0x22) != 0 || b.FMRegister(1, 0xA4) != 0 {
		t.Error("FM registers survive reset")
	}
	if latch, enabled := b.DACLatch(); latch != 0x80 || enabled {
		t.Errorf("DAC state after reset: %02X enabled=%v", latch, enabled)
	}
}

func TestOPLBackend_BankRouting(t *testing.T) {
	b := NewOPLBackend(CHIP_OPL3)
	b.WriteRegister(SPACE_PORT0, 0xB0, 0x31)
	b.WriteRegister(SPACE_PORT1, 0xB0, 0x32)

	if b.Register(0, 0xB0) != 0x31 || b.Register(1, 0xB0) != 0x32 {
		t.Errorf("bank routing: %02X/%02X", b.Register(0, 0xB0), b.Register(1, 0xB0))
	}
}

func TestNESBackend_RegisterWindow(t *testing.T) {
	b := NewNESBackend()
	b.WriteRegister(SPACE_MAIN, 0x00, 0x3F)
	b.WriteRegister(SPACE_MAIN, 0x7F, 0xAA) // outside $4000-$401F

	if b.Register(0x00) != 0x3F {
		t.Errorf("reg 0: %02X", b.Register(0x00))
	}
	if b.Register(0x7F) != 0 {
		t.Error("out-of-window write landed")
	}

	b.WriteSampleRAM(0x0100, []byte{0xD0, 0xD1})
	if b.SampleRAMByte(0x0101) != 0xD1 {
		t.Errorf("sample RAM: %02X", b.SampleRAMByte(0x0101))
	}
}

func TestBackend_SampleRAMClipping(t *testing.T) {
	b := NewGameBoyBackend()
	// Offset past the RAM: dropped, not wrapped.
	b.WriteSampleRAM(CHIP_SAMPLE_RAM_SIZE, []byte{0x01})
	// Payload overrunning the end: clipped by copy semantics.
	b.WriteSampleRAM(CHIP_SAMPLE_RAM_SIZE-1, []byte{0x01, 0x02, 0x03})
}
