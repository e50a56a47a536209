// vgm_cursor.go - Sequential command-stream cursor and PCM data bank.

package main

import "encoding/binary"

// StreamCursor walks the command region of a loaded VGM byte stream.
// All reads are bounds-checked; a failed read leaves the cursor at
// end-of-data so the caller sees a clean EndOfData on the next decode.
type StreamCursor struct {
	data []byte
	pos  int
}

func NewStreamCursor(data []byte, start int) *StreamCursor {
	c := &StreamCursor{data: data}
	c.Seek(start)
	return c
}

func (c *StreamCursor) Pos() int {
	return c.pos
}

func (c *StreamCursor) AtEnd() bool {
	return c.pos >= len(c.data)
}

// ForceEnd jumps the cursor past the last byte. Used by the fail-fast
// path on stream corruption and by the loop backstop.
func (c *StreamCursor) ForceEnd() {
	c.pos = len(c.data)
}

func (c *StreamCursor) Seek(pos int) {
	if pos < 0 || pos > len(c.data) {
		c.pos = len(c.data)
		return
	}
	c.pos = pos
}

func (c *StreamCursor) NextByte() (byte, bool) {
	if c.pos >= len(c.data) {
		return 0, false
	}
	b := c.data[c.pos]
	c.pos++
	return b, true
}

func (c *StreamCursor) ReadUint16() (uint16, bool) {
	if c.pos+2 > len(c.data) {
		c.ForceEnd()
		return 0, false
	}
	v := binary.LittleEndian.Uint16(c.data[c.pos : c.pos+2])
	c.pos += 2
	return v, true
}

func (c *StreamCursor) ReadUint32() (uint32, bool) {
	if c.pos+4 > len(c.data) {
		c.ForceEnd()
		return 0, false
	}
	v := binary.LittleEndian.Uint32(c.data[c.pos : c.pos+4])
	c.pos += 4
	return v, true
}

// ReadBytes returns a view into the underlying stream. The slice is
// only valid for the lifetime of the load.
func (c *StreamCursor) ReadBytes(n int) ([]byte, bool) {
	if n < 0 || c.pos+n > len(c.data) {
		c.ForceEnd()
		return nil, false
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, true
}

func (c *StreamCursor) Skip(n int) bool {
	if n < 0 || c.pos+n > len(c.data) {
		c.ForceEnd()
		return false
	}
	c.pos += n
	return true
}

// DataBank is the auxiliary byte region holding PCM payloads carried by
// 0x67 data blocks. It has its own read position, independent of the
// command stream. The read position moves only via Seek (0xE0 command),
// sequential reads, or Reset on loop-back/reload — never implicitly.
type DataBank struct {
	data    []byte
	readPos int

	// Byte offset of each appended block, for block-indexed stream
	// starts (0x95).
	blockOffsets []int
	blockLens    []int
}

func NewDataBank() *DataBank {
	return &DataBank{}
}

func (b *DataBank) Len() int {
	return len(b.data)
}

func (b *DataBank) BlockCount() int {
	return len(b.blockOffsets)
}

// Append adds one data-block payload and records its extent.
func (b *DataBank) Append(payload []byte) {
	b.blockOffsets = append(b.blockOffsets, len(b.data))
	b.blockLens = append(b.blockLens, len(payload))
	b.data = append(b.data, payload...)
}

// Block returns the offset and length of block i, or false if i is out
// of range.
func (b *DataBank) Block(i int) (offset int, length int, ok bool) {
	if i < 0 || i >= len(b.blockOffsets) {
		return 0, 0, false
	}
	return b.blockOffsets[i], b.blockLens[i], true
}

func (b *DataBank) Seek(offset uint32) {
	if int64(offset) > int64(len(b.data)) {
		b.readPos = len(b.data)
		return
	}
	b.readPos = int(offset)
}

func (b *DataBank) ReadPos() int {
	return b.readPos
}

// NextByte returns the next bank byte. Past the end it returns silence
// (0x80, the unsigned-PCM midpoint) so a short bank never faults the
// DAC path.
func (b *DataBank) NextByte() byte {
	if b.readPos >= len(b.data) {
		return 0x80
	}
	v := b.data[b.readPos]
	b.readPos++
	return v
}

// ByteAt reads without moving the sequential position. Used by the
// autonomous stream voices, which keep their own positions.
func (b *DataBank) ByteAt(offset int) byte {
	if offset < 0 || offset >= len(b.data) {
		return 0x80
	}
	return b.data[offset]
}

// Reset rewinds the sequential read position. Called on loop-back and
// on reload.
func (b *DataBank) Reset() {
	b.readPos = 0
}

// Clear drops the appended data and the block index entirely. Called
// when playback restarts from the top of the stream, so the blocks
// re-fill from scratch.
func (b *DataBank) Clear() {
	b.data = b.data[:0]
	b.blockOffsets = b.blockOffsets[:0]
	b.blockLens = b.blockLens[:0]
	b.readPos = 0
}
