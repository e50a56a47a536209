// vgm_interpreter.go - Byte-stream command interpreter.
//
// Decodes one opcode per DecodeOne call and applies its side effect
// immediately: register writes go verbatim to the active backend, data
// blocks to the data bank or backend sample RAM, stream-control
// commands to the stream voices. Timing is returned to the caller as a
// Wait effect and never applied here — a side-effecting command always
// executes at the current sample position.
//
// Commands addressed to chips other than the selected backend are
// recognized and dropped. Unknown opcodes outside every recognized
// range are fatal for the current file: the cursor is forced to
// end-of-data (fail-fast; a corrupt stream is not worth resync
// guessing, it can run unbounded without matching an opcode).

package main

type EffectKind int

const (
	EFFECT_NONE EffectKind = iota // recognized command, no effect for this backend
	EFFECT_REG_WRITE
	EFFECT_WAIT
	EFFECT_DATA_BLOCK
	EFFECT_STREAM_CONTROL
	EFFECT_END_OF_DATA
	EFFECT_FAULT
)

// Effect describes the outcome of decoding exactly one opcode.
// A register write carries routing details for diagnostics; the write
// itself has already been applied. The short-form DAC opcodes (0x8n)
// produce a register write and an embedded wait in one decode, so
// Wait may be nonzero on an EFFECT_REG_WRITE.
type Effect struct {
	Kind   EffectKind
	Opcode byte

	Space AddrSpace
	Addr  uint8
	Value uint8

	Wait uint32

	BlockType uint8
	BlockSize uint32
}

// Interpreter decodes the command region of one loaded file.
type Interpreter struct {
	cursor  *StreamCursor
	bank    *DataBank
	backend ChipBackend
	chip    ChipModel
	streams *StreamBank

	// When the Genesis DAC sub-stream has been pre-rendered, live 0x8n
	// fetches still consume bank bytes and waits but skip the register
	// write (the pre-rendered stream carries the audio).
	suppressDAC bool

	// Stream offsets of 0x67 blocks already appended to the bank. A
	// loop region can contain the block that filled the bank; a
	// re-visited block must not grow it or shift block indices.
	appendedBlocks map[int]bool

	faulted bool
}

func NewInterpreter(log *CommandLog, backend ChipBackend, streams *StreamBank) *Interpreter {
	return &Interpreter{
		cursor:         NewStreamCursor(log.Data, int(log.Header.DataStart)),
		bank:           log.Bank,
		backend:        backend,
		chip:           log.Chip,
		streams:        streams,
		appendedBlocks: map[int]bool{},
	}
}

func (it *Interpreter) Cursor() *StreamCursor {
	return it.cursor
}

func (it *Interpreter) Faulted() bool {
	return it.faulted
}

func (it *Interpreter) SetSuppressDAC(suppress bool) {
	it.suppressDAC = suppress
}

// DecodeOne consumes one opcode and returns its effect.
func (it *Interpreter) DecodeOne() Effect {
	op, ok := it.cursor.NextByte()
	if !ok {
		return Effect{Kind: EFFECT_END_OF_DATA}
	}

	switch {
	case op == 0x66:
		return Effect{Kind: EFFECT_END_OF_DATA, Opcode: op}

	// Waits: three encodings, all resolving to the same effect.
	case op == 0x61:
		n, ok := it.cursor.ReadUint16()
		if !ok {
			return it.fault(op)
		}
		return Effect{Kind: EFFECT_WAIT, Opcode: op, Wait: uint32(n)}
	case op == 0x62:
		return Effect{Kind: EFFECT_WAIT, Opcode: op, Wait: 735}
	case op == 0x63:
		return Effect{Kind: EFFECT_WAIT, Opcode: op, Wait: 882}
	case op >= 0x70 && op <= 0x7F:
		return Effect{Kind: EFFECT_WAIT, Opcode: op, Wait: uint32(op&0x0F) + 1}

	// Short-form DAC fetch + wait: bank byte to the YM2612 DAC latch
	// and a 0-15 sample wait, both from one opcode.
	case op >= 0x80 && op <= 0x8F:
		v := it.bank.NextByte()
		eff := Effect{Kind: EFFECT_REG_WRITE, Opcode: op,
			Space: SPACE_PORT0, Addr: YM2612_REG_DAC_DATA, Value: v,
			Wait: uint32(op & 0x0F)}
		if it.suppressDAC || it.chip != CHIP_GENESIS {
			eff.Kind = EFFECT_WAIT
			return eff
		}
		it.backend.WriteRegister(SPACE_PORT0, YM2612_REG_DAC_DATA, v)
		return eff

	// Backend register writes.
	case op == 0x50:
		v, ok := it.cursor.NextByte()
		if !ok {
			return it.fault(op)
		}
		return it.routeWrite(op, CHIP_GENESIS, SPACE_MAIN, PSG_ADDR_WRITE, v)
	case op == 0x4F:
		v, ok := it.cursor.NextByte()
		if !ok {
			return it.fault(op)
		}
		return it.routeWrite(op, CHIP_GENESIS, SPACE_MAIN, PSG_ADDR_STEREO, v)
	case op == 0x52 || op == 0x53:
		a, v, ok := it.readAddrValue()
		if !ok {
			return it.fault(op)
		}
		space := SPACE_PORT0
		if op == 0x53 {
			space = SPACE_PORT1
		}
		return it.routeWrite(op, CHIP_GENESIS, space, a, v)
	case op == 0x5A:
		a, v, ok := it.readAddrValue()
		if !ok {
			return it.fault(op)
		}
		return it.routeOPL(op, SPACE_PORT0, a, v)
	case op == 0xAA:
		// Second-chip form of 0x5A (dual OPL2 board).
		a, v, ok := it.readAddrValue()
		if !ok {
			return it.fault(op)
		}
		return it.routeOPL(op, SPACE_PORT1, a, v)
	case op == 0x5E || op == 0x5F:
		a, v, ok := it.readAddrValue()
		if !ok {
			return it.fault(op)
		}
		space := SPACE_PORT0
		if op == 0x5F {
			space = SPACE_PORT1
		}
		return it.routeWrite(op, CHIP_OPL3, space, a, v)
	case op == 0xB4:
		a, v, ok := it.readAddrValue()
		if !ok {
			return it.fault(op)
		}
		return it.routeWrite(op, CHIP_NES, SPACE_MAIN, a, v)
	case op == 0xB3:
		a, v, ok := it.readAddrValue()
		if !ok {
			return it.fault(op)
		}
		return it.routeWrite(op, CHIP_GAMEBOY, SPACE_MAIN, a, v)

	// Data blocks and bank control.
	case op == 0x67:
		return it.decodeDataBlock()
	case op == 0x68:
		return it.decodePCMRAMWrite()
	case op == 0xE0:
		off, ok := it.cursor.ReadUint32()
		if !ok {
			return it.fault(op)
		}
		it.bank.Seek(off)
		return Effect{Kind: EFFECT_NONE, Opcode: op}

	// DAC stream control.
	case op >= 0x90 && op <= 0x95:
		return it.decodeStreamControl(op)

	// Recognized opcode ranges for chips without a backend here:
	// skipped by their fixed operand counts, never an error.
	case op >= 0x30 && op <= 0x3F:
		return it.skipOperands(op, 1)
	case op >= 0x40 && op <= 0x4E:
		return it.skipOperands(op, 2)
	case op >= 0x51 && op <= 0x5D:
		return it.skipOperands(op, 2)
	case op == 0x64:
		// Wait-length override: reference length only, no timing change.
		return it.skipOperands(op, 3)
	case op >= 0xA0 && op <= 0xBF:
		return it.skipOperands(op, 2)
	case op >= 0xC0 && op <= 0xDF:
		return it.skipOperands(op, 3)
	case op >= 0xE1:
		return it.skipOperands(op, 4)

	default:
		return it.fault(op)
	}
}

func (it *Interpreter) readAddrValue() (uint8, uint8, bool) {
	b, ok := it.cursor.ReadBytes(2)
	if !ok {
		return 0, 0, false
	}
	return b[0], b[1], true
}

// routeWrite forwards a register write when the opcode's chip matches
// the active backend, and drops it otherwise.
func (it *Interpreter) routeWrite(op byte, model ChipModel, space AddrSpace, addr, value uint8) Effect {
	if it.chip != model {
		return Effect{Kind: EFFECT_NONE, Opcode: op}
	}
	it.backend.WriteRegister(space, addr, value)
	return Effect{Kind: EFFECT_REG_WRITE, Opcode: op, Space: space, Addr: addr, Value: value}
}

// routeOPL handles YM3812 writes, valid for both the dual-OPL2 board
// and an OPL3 running in 2-op compatibility mode.
func (it *Interpreter) routeOPL(op byte, space AddrSpace, addr, value uint8) Effect {
	if it.chip != CHIP_OPL2 && it.chip != CHIP_OPL3 {
		return Effect{Kind: EFFECT_NONE, Opcode: op}
	}
	it.backend.WriteRegister(space, addr, value)
	return Effect{Kind: EFFECT_REG_WRITE, Opcode: op, Space: space, Addr: addr, Value: value}
}

func (it *Interpreter) skipOperands(op byte, n int) Effect {
	if !it.cursor.Skip(n) {
		return it.fault(op)
	}
	return Effect{Kind: EFFECT_NONE, Opcode: op}
}

// decodeDataBlock handles 0x67: 0x66 marker, type byte, 32-bit length,
// payload. PCM stream data (type < 0x40) is appended to the data bank;
// RAM-write types (0xC0-0xDF) deposit at an explicit 16-bit offset in
// the backend sample RAM; every other type is skipped by length.
// Unknown payloads are a forward-compatibility requirement, never an
// error.
func (it *Interpreter) decodeDataBlock() Effect {
	blockPos := it.cursor.Pos()
	marker, ok := it.cursor.NextByte()
	if !ok || marker != 0x66 {
		return it.fault(0x67)
	}
	blockType, ok := it.cursor.NextByte()
	if !ok {
		return it.fault(0x67)
	}
	size, ok := it.cursor.ReadUint32()
	if !ok {
		return it.fault(0x67)
	}
	size &= 0x7FFFFFFF

	payload, ok := it.cursor.ReadBytes(int(size))
	if !ok {
		return it.fault(0x67)
	}

	eff := Effect{Kind: EFFECT_DATA_BLOCK, Opcode: 0x67, BlockType: blockType, BlockSize: size}
	switch {
	case blockType < 0x40:
		if !it.appendedBlocks[blockPos] {
			it.appendedBlocks[blockPos] = true
			it.bank.Append(payload)
		}
	case blockType >= 0xC0 && blockType <= 0xDF:
		if len(payload) < 2 {
			return eff
		}
		offset := uint32(payload[0]) | uint32(payload[1])<<8
		it.backend.WriteSampleRAM(offset, payload[2:])
	default:
		// Compressed blocks, ROM images for absent chips: skipped.
	}
	return eff
}

// decodePCMRAMWrite handles 0x68: copies a bank region into the backend
// sample RAM. Layout: 0x66 marker, chip type, 24-bit bank offset,
// 24-bit write offset, 24-bit size.
func (it *Interpreter) decodePCMRAMWrite() Effect {
	b, ok := it.cursor.ReadBytes(11)
	if !ok || b[0] != 0x66 {
		return it.fault(0x68)
	}
	readOff := int(b[2]) | int(b[3])<<8 | int(b[4])<<16
	writeOff := uint32(b[5]) | uint32(b[6])<<8 | uint32(b[7])<<16
	size := int(b[8]) | int(b[9])<<8 | int(b[10])<<16
	if size == 0 {
		size = 0x1000000
	}
	if size > CHIP_SAMPLE_RAM_SIZE {
		size = CHIP_SAMPLE_RAM_SIZE
	}

	payload := make([]byte, size)
	for i := 0; i < size; i++ {
		payload[i] = it.bank.ByteAt(readOff + i)
	}
	it.backend.WriteSampleRAM(writeOff, payload)
	return Effect{Kind: EFFECT_DATA_BLOCK, Opcode: 0x68, BlockSize: uint32(size)}
}

func (it *Interpreter) decodeStreamControl(op byte) Effect {
	eff := Effect{Kind: EFFECT_STREAM_CONTROL, Opcode: op}
	switch op {
	case 0x90:
		b, ok := it.cursor.ReadBytes(4)
		if !ok {
			return it.fault(op)
		}
		it.streams.HandleSetup(b[0], b[1], b[2], b[3])
	case 0x91:
		b, ok := it.cursor.ReadBytes(4)
		if !ok {
			return it.fault(op)
		}
		it.streams.HandleSetData(b[0], b[1], b[2], b[3])
	case 0x92:
		id, ok := it.cursor.NextByte()
		if !ok {
			return it.fault(op)
		}
		freq, ok := it.cursor.ReadUint32()
		if !ok {
			return it.fault(op)
		}
		it.streams.HandleSetFrequency(id, freq)
	case 0x93:
		id, ok := it.cursor.NextByte()
		if !ok {
			return it.fault(op)
		}
		offset, ok := it.cursor.ReadUint32()
		if !ok {
			return it.fault(op)
		}
		rest, ok := it.cursor.ReadBytes(5)
		if !ok {
			return it.fault(op)
		}
		length := uint32(rest[1]) | uint32(rest[2])<<8 | uint32(rest[3])<<16 | uint32(rest[4])<<24
		it.streams.HandleStart(id, offset, rest[0], length)
	case 0x94:
		id, ok := it.cursor.NextByte()
		if !ok {
			return it.fault(op)
		}
		it.streams.HandleStop(id)
	case 0x95:
		b, ok := it.cursor.ReadBytes(4)
		if !ok {
			return it.fault(op)
		}
		it.streams.HandleStartFast(b[0], uint16(b[1])|uint16(b[2])<<8, b[3])
	}
	return eff
}

// fault marks the current file corrupt and forces end-of-data.
func (it *Interpreter) fault(op byte) Effect {
	it.faulted = true
	it.cursor.ForceEnd()
	return Effect{Kind: EFFECT_FAULT, Opcode: op}
}
