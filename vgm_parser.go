// vgm_parser.go - VGM/VGZ container parser.
//
// Parses the fixed header (chip clocks, total/loop sample counts, data
// offset) and keeps the raw command stream for the live interpreter.
// Supported chip declarations, one backend selected per file:
//   - SN76489 (0x0C) / YM2612 (0x2C)  -> Sega PSG+FM board
//   - YMF262 (0x5C)                   -> OPL3
//   - YM3812 (0x50)                   -> dual OPL2
//   - NES APU (0x84)                  -> NES pulse/noise/DPCM
//   - GB DMG (0x80)                   -> Game Boy APU
//
// Files declaring none of the above are load failures; extra clocks
// beyond the selected backend are ignored.

package main

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	VGM_HEADER_MIN  = 0x40
	VGM_SAMPLE_RATE = 44100

	vgmOffsetVersion  = 0x08
	vgmOffsetSNClock  = 0x0C
	vgmOffsetTotal    = 0x18
	vgmOffsetLoop     = 0x1C
	vgmOffsetLoopLen  = 0x20
	vgmOffsetYM2612   = 0x2C
	vgmOffsetData     = 0x34
	vgmOffsetYM3812   = 0x50
	vgmOffsetYMF262   = 0x5C
	vgmOffsetGBDMG    = 0x80
	vgmOffsetNESAPU   = 0x84
	vgmLegacyDataBase = 0x40
)

// ChipClocks holds the declared chip clock fields. A zero clock means
// the chip is absent.
type ChipClocks struct {
	SN76489 uint32
	YM2612  uint32
	YM3812  uint32
	YMF262  uint32
	NESAPU  uint32
	GBDMG   uint32
}

// VGMHeader is the decoded fixed header of a command log.
type VGMHeader struct {
	Version      uint32
	TotalSamples uint64
	LoopOffset   uint32 // absolute byte offset of the loop point, 0 = no loop
	LoopSamples  uint64
	DataStart    uint32
	Clocks       ChipClocks
}

// CommandLog owns the decoded header and the raw byte stream of one
// loaded file, plus the data bank populated by 0x67 blocks during
// playback. Replaced wholesale on the next load.
type CommandLog struct {
	Header VGMHeader
	Data   []byte
	Bank   *DataBank
	Chip   ChipModel
}

// HasLoop reports whether the file declares a usable loop region.
func (l *CommandLog) HasLoop() bool {
	return l.Header.LoopOffset != 0 && l.Header.LoopSamples > 0
}

// LoopPointSample is the logical sample offset playback jumps to on
// loop-back: the loop region is a suffix of the total duration.
func (l *CommandLog) LoopPointSample() uint64 {
	if l.Header.LoopSamples > l.Header.TotalSamples {
		return 0
	}
	return l.Header.TotalSamples - l.Header.LoopSamples
}

// ParseVGMData decodes a VGM or gzip-compressed VGZ image.
func ParseVGMData(data []byte) (*CommandLog, error) {
	if len(data) >= 2 && data[0] == 0x1F && data[1] == 0x8B {
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		data, err = io.ReadAll(gz)
		if err != nil {
			return nil, err
		}
	}
	if len(data) < VGM_HEADER_MIN {
		return nil, fmt.Errorf("vgm too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[0:4], []byte("Vgm ")) {
		return nil, fmt.Errorf("invalid vgm header")
	}

	h := VGMHeader{
		Version:      binary.LittleEndian.Uint32(data[vgmOffsetVersion : vgmOffsetVersion+4]),
		TotalSamples: uint64(binary.LittleEndian.Uint32(data[vgmOffsetTotal : vgmOffsetTotal+4])),
		LoopSamples:  uint64(binary.LittleEndian.Uint32(data[vgmOffsetLoopLen : vgmOffsetLoopLen+4])),
	}

	loopOffset := binary.LittleEndian.Uint32(data[vgmOffsetLoop : vgmOffsetLoop+4])
	if loopOffset != 0 {
		h.LoopOffset = vgmOffsetLoop + loopOffset
		if int(h.LoopOffset) >= len(data) {
			return nil, fmt.Errorf("vgm loop offset out of range")
		}
	}

	dataOffset := binary.LittleEndian.Uint32(data[vgmOffsetData : vgmOffsetData+4])
	h.DataStart = vgmLegacyDataBase
	if dataOffset != 0 {
		h.DataStart = vgmOffsetData + dataOffset
	}
	if int(h.DataStart) >= len(data) {
		return nil, fmt.Errorf("vgm data offset out of range")
	}

	h.Clocks.SN76489 = clockField(data, vgmOffsetSNClock)
	h.Clocks.YM2612 = clockField(data, vgmOffsetYM2612)
	h.Clocks.YM3812 = clockField(data, vgmOffsetYM3812)
	h.Clocks.YMF262 = clockField(data, vgmOffsetYMF262)

	// Extended clock fields only exist when the header reaches them.
	if int(h.DataStart) > vgmOffsetGBDMG {
		h.Clocks.GBDMG = clockField(data, vgmOffsetGBDMG)
	}
	if int(h.DataStart) > vgmOffsetNESAPU {
		h.Clocks.NESAPU = clockField(data, vgmOffsetNESAPU)
	}

	chip := selectChipModel(h.Clocks)
	if chip == CHIP_NONE {
		return nil, fmt.Errorf("vgm declares no supported chip")
	}

	return &CommandLog{
		Header: h,
		Data:   data,
		Bank:   NewDataBank(),
		Chip:   chip,
	}, nil
}

func clockField(data []byte, offset int) uint32 {
	if len(data) < offset+4 {
		return 0
	}
	// Bit 31 flags a dual-chip declaration; the clock is the low 30 bits.
	return binary.LittleEndian.Uint32(data[offset:offset+4]) & 0x3FFFFFFF
}
