// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package v10 decodes AMQP 1.0 frames: described types, primitive and
// compound constructors, AMQP and SASL performatives and the message
// sections chained behind a transfer.
package v10

import (
	"github.com/google/uuid"

	"github.com/absmach/amqptap/wire"
)

// Type constructor codes per the OASIS spec.
const (
	TypeDescriptor byte = 0x00

	// Fixed-width primitives
	TypeNull       byte = 0x40
	TypeBoolTrue   byte = 0x41
	TypeBoolFalse  byte = 0x42
	TypeBool       byte = 0x56
	TypeUbyte      byte = 0x50
	TypeUshort     byte = 0x60
	TypeUint       byte = 0x70
	TypeUintSmall  byte = 0x52
	TypeUint0      byte = 0x43
	TypeUlong      byte = 0x80
	TypeUlongSmall byte = 0x53
	TypeUlong0     byte = 0x44
	TypeByte       byte = 0x51
	TypeShort      byte = 0x61
	TypeInt        byte = 0x71
	TypeIntSmall   byte = 0x54
	TypeLong       byte = 0x81
	TypeLongSmall  byte = 0x55
	TypeFloat      byte = 0x72
	TypeDouble     byte = 0x82
	TypeDecimal32  byte = 0x74
	TypeDecimal64  byte = 0x84
	TypeDecimal128 byte = 0x94
	TypeChar       byte = 0x73
	TypeTimestamp  byte = 0x83
	TypeUUID       byte = 0x98

	// Variable-width primitives
	TypeBinaryShort byte = 0xa0
	TypeBinaryLong  byte = 0xb0
	TypeStringShort byte = 0xa1
	TypeStringLong  byte = 0xb1
	TypeSymbolShort byte = 0xa3
	TypeSymbolLong  byte = 0xb3

	// Compound types
	TypeList0   byte = 0x45
	TypeList8   byte = 0xc0
	TypeList32  byte = 0xd0
	TypeMap8    byte = 0xc1
	TypeMap32   byte = 0xd1
	TypeArray8  byte = 0xe0
	TypeArray32 byte = 0xf0
)

// Kind is the semantic family of a decoded value, used by the synonym
// resolver to pick the concrete typed field id.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindUint
	KindInt
	KindFloat
	KindDecimal
	KindChar
	KindTimestamp
	KindUUID
	KindBinary
	KindString
	KindSymbol
	KindList
	KindMap
	KindArray
	KindDescribed
)

type typeinfo struct {
	name   string
	kind   Kind
	width  int
	decode func(buf *wire.Buffer, width int) (any, error)
}

// primitiveTypes is the constructor registry for every non-compound
// code.
var primitiveTypes = map[byte]typeinfo{
	TypeNull:       {"null", KindNull, 0, decodeNull},
	TypeBoolTrue:   {"true", KindBool, 0, func(*wire.Buffer, int) (any, error) { return true, nil }},
	TypeBoolFalse:  {"false", KindBool, 0, func(*wire.Buffer, int) (any, error) { return false, nil }},
	TypeBool:       {"boolean", KindBool, 1, decodeBool},
	TypeUbyte:      {"ubyte", KindUint, 1, decodeUint},
	TypeUshort:     {"ushort", KindUint, 2, decodeUshort},
	TypeUint:       {"uint", KindUint, 4, decodeUint32},
	TypeUintSmall:  {"smalluint", KindUint, 1, decodeSmallUint32},
	TypeUint0:      {"uint0", KindUint, 0, func(*wire.Buffer, int) (any, error) { return uint32(0), nil }},
	TypeUlong:      {"ulong", KindUint, 8, decodeUint64},
	TypeUlongSmall: {"smallulong", KindUint, 1, decodeSmallUint64},
	TypeUlong0:     {"ulong0", KindUint, 0, func(*wire.Buffer, int) (any, error) { return uint64(0), nil }},
	TypeByte:       {"byte", KindInt, 1, decodeInt8},
	TypeShort:      {"short", KindInt, 2, decodeInt16},
	TypeInt:        {"int", KindInt, 4, decodeInt32},
	TypeIntSmall:   {"smallint", KindInt, 1, decodeSmallInt32},
	TypeLong:       {"long", KindInt, 8, decodeInt64},
	TypeLongSmall:  {"smalllong", KindInt, 1, decodeSmallInt64},
	TypeFloat:      {"float", KindFloat, 4, decodeFloat},
	TypeDouble:     {"double", KindFloat, 8, decodeDouble},
	TypeDecimal32:  {"decimal32", KindDecimal, 4, decodeDecimal},
	TypeDecimal64:  {"decimal64", KindDecimal, 8, decodeDecimal},
	TypeDecimal128: {"decimal128", KindDecimal, 16, decodeDecimal},
	TypeChar:       {"char", KindChar, 4, decodeChar},
	TypeTimestamp:  {"timestamp", KindTimestamp, 8, decodeTimestamp},
	TypeUUID:       {"uuid", KindUUID, 16, decodeUUID},

	TypeBinaryShort: {"vbin8", KindBinary, 1, decodeVbin},
	TypeBinaryLong:  {"vbin32", KindBinary, 4, decodeVbin},
	TypeStringShort: {"str8-utf8", KindString, 1, decodeString},
	TypeStringLong:  {"str32-utf8", KindString, 4, decodeString},
	TypeSymbolShort: {"sym8", KindSymbol, 1, decodeSymbol},
	TypeSymbolLong:  {"sym32", KindSymbol, 4, decodeSymbol},
}

func decodeNull(*wire.Buffer, int) (any, error) {
	return nil, nil
}

func decodeBool(buf *wire.Buffer, _ int) (any, error) {
	b, err := buf.ReadOctet()
	return b != 0, err
}

func decodeUint(buf *wire.Buffer, _ int) (any, error) {
	return buf.ReadOctet()
}

func decodeUshort(buf *wire.Buffer, _ int) (any, error) {
	return buf.ReadUint16()
}

func decodeUint32(buf *wire.Buffer, _ int) (any, error) {
	return buf.ReadUint32()
}

func decodeSmallUint32(buf *wire.Buffer, _ int) (any, error) {
	b, err := buf.ReadOctet()
	return uint32(b), err
}

func decodeUint64(buf *wire.Buffer, _ int) (any, error) {
	return buf.ReadUint64()
}

func decodeSmallUint64(buf *wire.Buffer, _ int) (any, error) {
	b, err := buf.ReadOctet()
	return uint64(b), err
}

func decodeInt8(buf *wire.Buffer, _ int) (any, error) {
	b, err := buf.ReadOctet()
	return int8(b), err
}

func decodeInt16(buf *wire.Buffer, _ int) (any, error) {
	v, err := buf.ReadUint16()
	return int16(v), err
}

func decodeInt32(buf *wire.Buffer, _ int) (any, error) {
	v, err := buf.ReadUint32()
	return int32(v), err
}

func decodeSmallInt32(buf *wire.Buffer, _ int) (any, error) {
	b, err := buf.ReadOctet()
	return int32(int8(b)), err
}

func decodeInt64(buf *wire.Buffer, _ int) (any, error) {
	v, err := buf.ReadUint64()
	return int64(v), err
}

func decodeSmallInt64(buf *wire.Buffer, _ int) (any, error) {
	b, err := buf.ReadOctet()
	return int64(int8(b)), err
}

func decodeFloat(buf *wire.Buffer, _ int) (any, error) {
	return buf.ReadFloat()
}

func decodeDouble(buf *wire.Buffer, _ int) (any, error) {
	return buf.ReadDouble()
}

func decodeDecimal(buf *wire.Buffer, width int) (any, error) {
	b, err := buf.ReadBytes(width)
	if err != nil {
		return nil, err
	}
	switch width {
	case 4:
		var d wire.Decimal32
		copy(d[:], b)
		return d, nil
	case 8:
		var d wire.Decimal64
		copy(d[:], b)
		return d, nil
	default:
		var d wire.Decimal128
		copy(d[:], b)
		return d, nil
	}
}

func decodeChar(buf *wire.Buffer, _ int) (any, error) {
	v, err := buf.ReadUint32()
	return rune(v), err
}

func decodeTimestamp(buf *wire.Buffer, _ int) (any, error) {
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

func decodeString(buf *wire.Buffer, prefix int) (any, error) {
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

func decodeSymbol(buf *wire.Buffer, prefix int) (any, error) {
	n, err := readSize(buf, prefix)
	if err != nil {
		return nil, err
	}
	b, err := buf.ReadBytes(n)
	if err != nil {
		return nil, err
	}
	return wire.Symbol(b), nil
}

func readSize(buf *wire.Buffer, prefix int) (int, error) {
	if prefix == 1 {
		v, err := buf.ReadOctet()
		return int(v), err
	}
	v, err := buf.ReadUint32()
	return int(v), err
}

// KindOf returns the semantic family of a decoded value.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case uint8, uint16, uint32, uint64:
		return KindUint
	case int8, int16, int32, int64:
		return KindInt
	case float32, float64:
		return KindFloat
	case wire.Decimal32, wire.Decimal64, wire.Decimal128:
		return KindDecimal
	case wire.Timestamp:
		return KindTimestamp
	case uuid.UUID:
		return KindUUID
	case []byte:
		return KindBinary
	case string:
		return KindString
	case wire.Symbol:
		return KindSymbol
	case []any:
		return KindList
	case map[any]any:
		return KindMap
	case *wire.Described:
		return KindDescribed
	default:
		return KindNull
	}
}
