// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"math"
)

// Buffer is a read-only cursor over exactly one frame's bytes. Offsets
// are absolute within the frame even for sub-buffers, so emitted field
// ranges stay meaningful. A Buffer never mutates the underlying slice
// and must not outlive it.
type Buffer struct {
	data []byte
	pos  int
	end  int
}

// NewBuffer wraps one frame's bytes.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data, end: len(data)}
}

// Pos returns the absolute cursor offset within the frame.
func (b *Buffer) Pos() int { return b.pos }

// Remaining returns the number of unread bytes in this buffer's window.
func (b *Buffer) Remaining() int { return b.end - b.pos }

// ReadOctet reads a single byte.
func (b *Buffer) ReadOctet() (byte, error) {
	if b.Remaining() < 1 {
		return 0, Truncated(b.pos, "octet")
	}
	v := b.data[b.pos]
	b.pos++
	return v, nil
}

// ReadUint16 reads a big-endian 16-bit unsigned integer.
func (b *Buffer) ReadUint16() (uint16, error) {
	if b.Remaining() < 2 {
		return 0, Truncated(b.pos, "uint16")
	}
	v := binary.BigEndian.Uint16(b.data[b.pos:])
	b.pos += 2
	return v, nil
}

// ReadUint32 reads a big-endian 32-bit unsigned integer.
func (b *Buffer) ReadUint32() (uint32, error) {
	if b.Remaining() < 4 {
		return 0, Truncated(b.pos, "uint32")
	}
	v := binary.BigEndian.Uint32(b.data[b.pos:])
	b.pos += 4
	return v, nil
}

// ReadUint64 reads a big-endian 64-bit unsigned integer.
func (b *Buffer) ReadUint64() (uint64, error) {
	if b.Remaining() < 8 {
		return 0, Truncated(b.pos, "uint64")
	}
	v := binary.BigEndian.Uint64(b.data[b.pos:])
	b.pos += 8
	return v, nil
}

// ReadFloat reads a big-endian IEEE 754 binary32.
func (b *Buffer) ReadFloat() (float32, error) {
	v, err := b.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadDouble reads a big-endian IEEE 754 binary64.
func (b *Buffer) ReadDouble() (float64, error) {
	v, err := b.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadBytes reads n bytes. The returned slice aliases the frame buffer.
func (b *Buffer) ReadBytes(n int) ([]byte, error) {
	if n < 0 || b.Remaining() < n {
		return nil, Truncated(b.pos, "bytes")
	}
	v := b.data[b.pos : b.pos+n]
	b.pos += n
	return v, nil
}

// Skip advances the cursor by n bytes.
func (b *Buffer) Skip(n int) error {
	if n < 0 || b.Remaining() < n {
		return Truncated(b.pos, "skip")
	}
	b.pos += n
	return nil
}

// SkipRest advances the cursor past every unread byte in the window.
func (b *Buffer) SkipRest() {
	b.pos = b.end
}

// Slice consumes the next n bytes and returns a sub-buffer limited to
// them. The sub-buffer shares the frame slice, so its offsets remain
// absolute. Used for length-delimited composites (field tables, 0-10
// structs, 1.0 compounds).
func (b *Buffer) Slice(n int) (*Buffer, error) {
	if n < 0 || b.Remaining() < n {
		return nil, Truncated(b.pos, "slice")
	}
	sub := &Buffer{data: b.data, pos: b.pos, end: b.pos + n}
	b.pos += n
	return sub, nil
}
