package main

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"testing"
)

// buildVGMHeader creates a minimal VGM header with data starting at
// offset 0x80 and no chips declared.
func buildVGMHeader(totalSamples uint32) []byte {
	header := make([]byte, 0x80)
	copy(header[0:4], []byte("Vgm "))
	binary.LittleEndian.PutUint32(header[0x08:0x0C], 0x00000161) // version 1.61
	binary.LittleEndian.PutUint32(header[0x18:0x1C], totalSamples)
	binary.LittleEndian.PutUint32(header[0x34:0x38], 0x4C) // data offset: 0x34+0x4C=0x80
	return header
}

func setClock(header []byte, offset int, clock uint32) {
	binary.LittleEndian.PutUint32(header[offset:offset+4], clock)
}

func setLoop(header []byte, absOffset, loopSamples uint32) {
	binary.LittleEndian.PutUint32(header[0x1C:0x20], absOffset-0x1C)
	binary.LittleEndian.PutUint32(header[0x20:0x24], loopSamples)
}

func buildGenesisVGM(totalSamples uint32, cmds ...byte) []byte {
	header := buildVGMHeader(totalSamples)
	setClock(header, 0x0C, 3579545) // SN76489
	setClock(header, 0x2C, 7670453) // YM2612
	return append(header, cmds...)
}

func TestVGMParse_GenesisHeader(t *testing.T) {
	data := buildGenesisVGM(88200, 0x62, 0x66)

	f, err := ParseVGMData(data)
	if err != nil {
		t.Fatalf("ParseVGMData failed: %v", err)
	}
	if f.Chip != CHIP_GENESIS {
		t.Fatalf("expected Genesis chip, got %s", f.Chip)
	}
	if f.Header.TotalSamples != 88200 {
		t.Errorf("total samples: got %d", f.Header.TotalSamples)
	}
	if f.Header.DataStart != 0x80 {
		t.Errorf("data start: got 0x%X", f.Header.DataStart)
	}
	if f.Header.Clocks.SN76489 != 3579545 || f.Header.Clocks.YM2612 != 7670453 {
		t.Errorf("clocks: %+v", f.Header.Clocks)
	}
	if f.HasLoop() {
		t.Error("no loop declared, HasLoop true")
	}
}

func TestVGMParse_LoopOffsets(t *testing.T) {
	header := buildVGMHeader(88200)
	setClock(header, 0x0C, 3579545)
	setLoop(header, 0x83, 44100)
	data := append(header, 0x62, 0x61, 0x00, 0x10, 0x66)

	f, err := ParseVGMData(data)
	if err != nil {
		t.Fatalf("ParseVGMData failed: %v", err)
	}
	if !f.HasLoop() {
		t.Fatal("expected loop")
	}
	if f.Header.LoopOffset != 0x83 {
		t.Errorf("loop offset: got 0x%X, want 0x83", f.Header.LoopOffset)
	}
	if f.Header.LoopSamples != 44100 {
		t.Errorf("loop samples: got %d", f.Header.LoopSamples)
	}
	if f.LoopPointSample() != 44100 {
		t.Errorf("loop point sample: got %d, want 44100", f.LoopPointSample())
	}
}

func TestVGMParse_LegacyDataOffset(t *testing.T) {
	// Data offset field zero means the pre-1.50 fixed command start.
	header := make([]byte, 0x40)
	copy(header[0:4], []byte("Vgm "))
	binary.LittleEndian.PutUint32(header[0x08:0x0C], 0x00000110)
	binary.LittleEndian.PutUint32(header[0x18:0x1C], 735)
	setClock(header, 0x0C, 3579545)
	data := append(header, 0x62, 0x66)

	f, err := ParseVGMData(data)
	if err != nil {
		t.Fatalf("ParseVGMData failed: %v", err)
	}
	if f.Header.DataStart != 0x40 {
		t.Errorf("data start: got 0x%X, want 0x40", f.Header.DataStart)
	}
}

func TestVGMParse_DualChipBitMasked(t *testing.T) {
	header := buildVGMHeader(735)
	setClock(header, 0x0C, 3579545|0x80000000) // dual-chip flag set
	data := append(header, 0x66)

	f, err := ParseVGMData(data)
	if err != nil {
		t.Fatalf("ParseVGMData failed: %v", err)
	}
	if f.Header.Clocks.SN76489 != 3579545 {
		t.Errorf("dual-chip bit not masked: got %d", f.Header.Clocks.SN76489)
	}
}

func TestVGMParse_VGZ(t *testing.T) {
	plain := buildGenesisVGM(735, 0x62, 0x66)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write(plain)
	gz.Close()

	f, err := ParseVGMData(buf.Bytes())
	if err != nil {
		t.Fatalf("ParseVGMData on vgz failed: %v", err)
	}
	if f.Chip != CHIP_GENESIS {
		t.Errorf("chip after decompression: %s", f.Chip)
	}
	if f.Header.TotalSamples != 735 {
		t.Errorf("total samples after decompression: %d", f.Header.TotalSamples)
	}
}

func TestVGMParse_Rejects(t *testing.T) {
	// Too short.
	if _, err := ParseVGMData([]byte("Vgm ")); err == nil {
		t.Error("short file accepted")
	}

	// Bad magic.
	bad := buildGenesisVGM(735, 0x66)
	copy(bad[0:4], []byte("Xgm "))
	if _, err := ParseVGMData(bad); err == nil {
		t.Error("bad magic accepted")
	}

	// No supported chip declared.
	none := append(buildVGMHeader(735), 0x66)
	if _, err := ParseVGMData(none); err == nil {
		t.Error("chipless file accepted")
	}

	// Loop offset beyond the file.
	header := buildVGMHeader(735)
	setClock(header, 0x0C, 3579545)
	setLoop(header, 0x4000, 100)
	if _, err := ParseVGMData(append(header, 0x66)); err == nil {
		t.Error("out-of-range loop offset accepted")
	}

	// Data offset beyond the file.
	header = buildVGMHeader(735)
	setClock(header, 0x0C, 3579545)
	binary.LittleEndian.PutUint32(header[0x34:0x38], 0x4000)
	if _, err := ParseVGMData(append(header, 0x66)); err == nil {
		t.Error("out-of-range data offset accepted")
	}
}

func TestVGMParse_ExtendedClocksRequireHeaderRoom(t *testing.T) {
	// A 0x40 header cannot carry the GB/NES clock fields even if bytes
	// happen to exist past it.
	header := make([]byte, 0x40)
	copy(header[0:4], []byte("Vgm "))
	binary.LittleEndian.PutUint32(header[0x08:0x0C], 0x00000110)
	setClock(header, 0x0C, 3579545)
	cmds := make([]byte, 0x50)
	binary.LittleEndian.PutUint32(cmds[0x80-0x40:], 4194304) // would be the DMG field
	cmds[0x4F] = 0x66

	f, err := ParseVGMData(append(header, cmds...))
	if err != nil {
		t.Fatalf("ParseVGMData failed: %v", err)
	}
	if f.Header.Clocks.GBDMG != 0 {
		t.Errorf("GB clock read from outside the header: %d", f.Header.Clocks.GBDMG)
	}
}

func TestVGMParse_ChipPrecedence(t *testing.T) {
	cases := []struct {
		name   string
		clocks ChipClocks
		want   ChipModel
	}{
		{"psg only", ChipClocks{SN76489: 3579545}, CHIP_GENESIS},
		{"fm only", ChipClocks{YM2612: 7670453}, CHIP_GENESIS},
		{"genesis beats opl3", ChipClocks{YM2612: 7670453, YMF262: 14318180}, CHIP_GENESIS},
		{"opl3 beats opl2", ChipClocks{YMF262: 14318180, YM3812: 3579545}, CHIP_OPL3},
		{"opl2", ChipClocks{YM3812: 3579545}, CHIP_OPL2},
		{"nes beats gb", ChipClocks{NESAPU: 1789772, GBDMG: 4194304}, CHIP_NES},
		{"gb", ChipClocks{GBDMG: 4194304}, CHIP_GAMEBOY},
		{"none", ChipClocks{}, CHIP_NONE},
	}
	for _, c := range cases {
		if got := selectChipModel(c.clocks); got != c.want {
			t.Errorf("%s: got %s, want %s", c.name, got, c.want)
		}
	}
}
