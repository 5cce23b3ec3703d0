// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package v091 decodes AMQP 0-9 and 0-9-1 frames: method arguments,
// content headers with packed properties, field tables and arrays.
package v091

import (
	"github.com/absmach/amqptap/wire"
)

// ReadShortStr reads a length-prefixed short string.
func ReadShortStr(buf *wire.Buffer) (string, error) {
	n, err := buf.ReadOctet()
	if err != nil {
		return "", err
	}
	b, err := buf.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadLongStr reads a length-prefixed long string.
func ReadLongStr(buf *wire.Buffer) ([]byte, error) {
	n, err := buf.ReadUint32()
	if err != nil {
		return nil, err
	}
	return buf.ReadBytes(int(n))
}

// ReadTable reads a length-prefixed field table. The returned map holds
// every field decoded before a failure; on failure the remaining table
// bytes are skipped and the error reported, the cursor still ends
// exactly past the table so sibling fields stay decodable.
func ReadTable(buf *wire.Buffer, depth int) (map[string]any, error) {
	length, err := buf.ReadUint32()
	if err != nil {
		return nil, err
	}
	sub, err := buf.Slice(int(length))
	if err != nil {
		return nil, err
	}

	table := make(map[string]any)
	for sub.Remaining() > 0 {
		key, err := ReadShortStr(sub)
		if err != nil {
			sub.SkipRest()
			return table, err
		}
		value, err := ReadFieldValue(sub, depth)
		if err != nil {
			sub.SkipRest()
			return table, err
		}
		table[key] = value
	}
	return table, nil
}

// ReadArray reads a length-prefixed field array.
func ReadArray(buf *wire.Buffer, depth int) ([]any, error) {
	length, err := buf.ReadUint32()
	if err != nil {
		return nil, err
	}
	sub, err := buf.Slice(int(length))
	if err != nil {
		return nil, err
	}

	var items []any
	for sub.Remaining() > 0 {
		value, err := ReadFieldValue(sub, depth)
		if err != nil {
			sub.SkipRest()
			return items, err
		}
		items = append(items, value)
	}
	return items, nil
}

// ReadFieldValue reads one tagged field value. An unknown tag byte
// aborts the containing table or array: the tag decides how many bytes
// the value occupies, so the cursor cannot move past it.
func ReadFieldValue(buf *wire.Buffer, depth int) (any, error) {
	if depth <= 0 {
		return nil, wire.NewErr(wire.KindRecursionLimit, buf.Pos(), "field table")
	}

	tagOff := buf.Pos()
	tag, err := buf.ReadOctet()
	if err != nil {
		return nil, err
	}

	switch tag {
	case 't':
		b, err := buf.ReadOctet()
		return b != 0, err
	case 'b':
		b, err := buf.ReadOctet()
		return int8(b), err
	case 'B':
		return buf.ReadOctet()
	case 'u':
		v, err := buf.ReadUint16()
		return int16(v), err
	case 'U':
		return buf.ReadUint16()
	case 'I', 'i':
		v, err := buf.ReadUint32()
		return int32(v), err
	case 'l':
		v, err := buf.ReadUint64()
		return int64(v), err
	case 'f':
		return buf.ReadFloat()
	case 'd':
		return buf.ReadDouble()
	case 'D':
		scale, err := buf.ReadOctet()
		if err != nil {
			return nil, err
		}
		v, err := buf.ReadUint32()
		if err != nil {
			return nil, err
		}
		return wire.Decimal{Scale: scale, Value: int32(v)}, nil
	case 's':
		return ReadShortStr(buf)
	case 'S':
		b, err := ReadLongStr(buf)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case 'T':
		v, err := buf.ReadUint64()
		if err != nil {
			return nil, err
		}
		return wire.TimestampFromMillis(int64(v) * 1000), nil
	case 'F':
		return ReadTable(buf, depth-1)
	case 'A':
		return ReadArray(buf, depth-1)
	case 'V':
		return nil, nil
	case 'x':
		return ReadLongStr(buf)
	default:
		return nil, wire.UnknownType(tagOff, tag)
	}
}
