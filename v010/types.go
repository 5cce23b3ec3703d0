// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package v010 decodes AMQP 0-10 frames: typed primitives, maps, lists,
// arrays, self-describing struct32 values and the packed command
// arguments of every class.
package v010

import (
	"github.com/google/uuid"

	"github.com/absmach/amqptap/wire"
)

// Fixed-width type codes.
const (
	TypeBin8     byte = 0x00
	TypeInt8     byte = 0x01
	TypeUint8    byte = 0x02
	TypeChar     byte = 0x04
	TypeBoolean  byte = 0x08
	TypeBin16    byte = 0x10
	TypeInt16    byte = 0x11
	TypeUint16   byte = 0x12
	TypeBin32    byte = 0x20
	TypeInt32    byte = 0x21
	TypeUint32   byte = 0x22
	TypeFloat    byte = 0x23
	TypeDec32    byte = 0x24
	TypeCharUTF  byte = 0x27
	TypeBin64    byte = 0x30
	TypeInt64    byte = 0x31
	TypeUint64   byte = 0x32
	TypeDouble   byte = 0x33
	TypeDec64    byte = 0x34
	TypeDatetime byte = 0x38
	TypeBin128   byte = 0x40
	TypeUUID     byte = 0x48
	TypeVoid     byte = 0xf0
	TypeBit      byte = 0xf1
)

// Variable-width type codes.
const (
	TypeVbin8      byte = 0xa0
	TypeStr8Latin  byte = 0xa1
	TypeStr8       byte = 0xa4
	TypeStr8UTF16  byte = 0xa6
	TypeVbin16     byte = 0xb0
	TypeStr16Latin byte = 0xb1
	TypeStr16      byte = 0xb4
	TypeStr16UTF16 byte = 0xb6
	TypeVbin32     byte = 0xd0
)

// Compound type codes, all with a 32-bit size prefix.
const (
	TypeMap      byte = 0xa8
	TypeList     byte = 0xa9
	TypeArray    byte = 0xaa
	TypeStruct32 byte = 0xab
)

type typeinfo struct {
	name   string
	width  int
	decode func(buf *wire.Buffer, width int) (any, error)
}

// fixedTypes maps fixed-width codes to their decoders.
var fixedTypes = map[byte]typeinfo{
	TypeBin8:     {"bin8", 1, decodeBin},
	TypeInt8:     {"int8", 1, decodeInt},
	TypeUint8:    {"uint8", 1, decodeUint},
	TypeChar:     {"char", 1, decodeBin},
	TypeBoolean:  {"boolean", 1, decodeBool},
	TypeBin16:    {"bin16", 2, decodeBin},
	TypeInt16:    {"int16", 2, decodeInt},
	TypeUint16:   {"uint16", 2, decodeUint},
	TypeBin32:    {"bin32", 4, decodeBin},
	TypeInt32:    {"int32", 4, decodeInt},
	TypeUint32:   {"uint32", 4, decodeUint},
	TypeFloat:    {"float", 4, decodeFloat},
	TypeDec32:    {"dec32", 5, decodeDec},
	TypeCharUTF:  {"char-utf32", 4, decodeBin},
	TypeBin64:    {"bin64", 8, decodeBin},
	TypeInt64:    {"int64", 8, decodeInt},
	TypeUint64:   {"uint64", 8, decodeUint},
	TypeDouble:   {"double", 8, decodeDouble},
	TypeDec64:    {"dec64", 9, decodeDec},
	TypeDatetime: {"datetime", 8, decodeDatetime},
	TypeBin128:   {"bin128", 16, decodeBin},
	TypeUUID:     {"uuid", 16, decodeUUID},
	TypeVoid:     {"void", 0, decodeVoid},
	TypeBit:      {"bit", 0, decodeVoid},
}

// varTypes maps variable-width codes to the width of their size prefix.
var varTypes = map[byte]typeinfo{
	TypeVbin8:      {"vbin8", 1, decodeVbin},
	TypeStr8Latin:  {"str8-latin", 1, decodeStr},
	TypeStr8:       {"str8", 1, decodeStr},
	TypeStr8UTF16:  {"str8-utf16", 1, decodeVbin},
	TypeVbin16:     {"vbin16", 2, decodeVbin},
	TypeStr16Latin: {"str16-latin", 2, decodeStr},
	TypeStr16:      {"str16", 2, decodeStr},
	TypeStr16UTF16: {"str16-utf16", 2, decodeVbin},
	TypeVbin32:     {"vbin32", 4, decodeVbin},
}

func decodeBin(buf *wire.Buffer, width int) (any, error) {
	return buf.ReadBytes(width)
}

func decodeBool(buf *wire.Buffer, _ int) (any, error) {
	b, err := buf.ReadOctet()
	return b != 0, err
}

func decodeVoid(_ *wire.Buffer, _ int) (any, error) {
	return nil, nil
}

func decodeInt(buf *wire.Buffer, width int) (any, error) {
	switch width {
	case 1:
		v, err := buf.ReadOctet()
		return int8(v), err
	case 2:
		v, err := buf.ReadUint16()
		return int16(v), err
	case 4:
		v, err := buf.ReadUint32()
		return int32(v), err
	default:
		v, err := buf.ReadUint64()
		return int64(v), err
	}
}

func decodeUint(buf *wire.Buffer, width int) (any, error) {
	switch width {
	case 1:
		return buf.ReadOctet()
	case 2:
		return buf.ReadUint16()
	case 4:
		return buf.ReadUint32()
	default:
		return buf.ReadUint64()
	}
}

func decodeFloat(buf *wire.Buffer, _ int) (any, error) {
	return buf.ReadFloat()
}

func decodeDouble(buf *wire.Buffer, _ int) (any, error) {
	return buf.ReadDouble()
}

func decodeDec(buf *wire.Buffer, width int) (any, error) {
	scale, err := buf.ReadOctet()
	if err != nil {
		return nil, err
	}
	if width == 5 {
		v, err := buf.ReadUint32()
		if err != nil {
			return nil, err
		}
		return wire.Decimal{Scale: scale, Value: int32(v)}, nil
	}
	// dec64 mantissa is kept opaque in its 8 wire bytes.
	var d wire.Decimal64
	b, err := buf.ReadBytes(8)
	if err != nil {
		return nil, err
	}
	copy(d[:], b)
	return d, nil
}

func decodeDatetime(buf *wire.Buffer, _ int) (any, error) {
	v, err := buf.ReadUint64()
	if err != nil {
		return nil, err
	}
	return wire.TimestampFromMillis(int64(v)), nil
}

func decodeUUID(buf *wire.Buffer, _ int) (any, error) {
	b, err := buf.ReadBytes(16)
	if err != nil {
		return nil, err
	}
	u, err := uuid.FromBytes(b)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func decodeVbin(buf *wire.Buffer, prefix int) (any, error) {
	n, err := readSize(buf, prefix)
	if err != nil {
		return nil, err
	}
	return buf.ReadBytes(n)
}

func decodeStr(buf *wire.Buffer, prefix int) (any, error) {
	n, err := readSize(buf, prefix)
	if err != nil {
		return nil, err
	}
	b, err := buf.ReadBytes(n)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func readSize(buf *wire.Buffer, prefix int) (int, error) {
	switch prefix {
	case 1:
		v, err := buf.ReadOctet()
		return int(v), err
	case 2:
		v, err := buf.ReadUint16()
		return int(v), err
	default:
		return readSize32(buf)
	}
}

// readSize32 reads a 32-bit size and clamps it to 65535: a 0-10 frame
// cannot exceed that, so a larger declared size is itself corrupt.
func readSize32(buf *wire.Buffer) (int, error) {
	off := buf.Pos()
	v, err := buf.ReadUint32()
	if err != nil {
		return 0, err
	}
	if v > 0xFFFF {
		return 0xFFFF, wire.NewErr(wire.KindCountExceedsSize, off, "size exceeds frame limit")
	}
	return int(v), nil
}

// ReadValue decodes one value of the given type code. Types outside
// the fixed and variable tables fall back to widths derived from the
// code's bit pattern: top bit clear means a fixed width of 2^(bits
// 4-6) octets, otherwise a 1/2/4-byte declared size precedes the
// value; either way the value is surfaced as opaque bytes.
func ReadValue(buf *wire.Buffer, code byte, depth int) (any, error) {
	if depth <= 0 {
		return nil, wire.NewErr(wire.KindRecursionLimit, buf.Pos(), "0-10 value")
	}

	switch code {
	case TypeMap:
		return ReadMap(buf, depth-1)
	case TypeList:
		return ReadList(buf, depth-1)
	case TypeArray:
		return ReadArray(buf, depth-1)
	case TypeStruct32:
		return ReadStruct32(buf, depth-1)
	}

	if ti, ok := fixedTypes[code]; ok {
		return ti.decode(buf, ti.width)
	}
	if ti, ok := varTypes[code]; ok {
		return ti.decode(buf, ti.width)
	}

	if code&0x80 == 0 {
		width := 1 << ((code >> 4) & 0x07)
		return buf.ReadBytes(width)
	}
	switch code >> 4 {
	case 0x0a:
		return decodeVbin(buf, 1)
	case 0x0b:
		return decodeVbin(buf, 2)
	case 0x0c, 0x0d:
		return decodeVbin(buf, 4)
	default:
		return nil, wire.UnknownType(buf.Pos()-1, code)
	}
}

// TypeName returns the protocol name of a type code for display.
func TypeName(code byte) string {
	switch code {
	case TypeMap:
		return "map"
	case TypeList:
		return "list"
	case TypeArray:
		return "array"
	case TypeStruct32:
		return "struct32"
	}
	if ti, ok := fixedTypes[code]; ok {
		return ti.name
	}
	if ti, ok := varTypes[code]; ok {
		return ti.name
	}
	return "unknown"
}
