// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package v010

import (
	"fmt"

	"github.com/absmach/amqptap/wire"
)

// ReadMap decodes a 0-10 map: 32-bit size, 32-bit pair count, then
// alternating str8 keys (with a type tag before each value) and typed
// values.
func ReadMap(buf *wire.Buffer, depth int) (map[string]any, error) {
	size, err := readSize32(buf)
	if err != nil {
		return nil, err
	}
	sub, err := buf.Slice(size)
	if err != nil {
		return nil, err
	}
	countOff := sub.Pos()
	count, err := sub.ReadUint32()
	if err != nil {
		return nil, err
	}
	if int(count) > size {
		return nil, wire.NewErr(wire.KindCountExceedsSize, countOff, fmt.Sprintf("map count %d", count))
	}

	m := make(map[string]any, count)
	for i := uint32(0); i < count; i++ {
		keyLen, err := sub.ReadOctet()
		if err != nil {
			return m, err
		}
		key, err := sub.ReadBytes(int(keyLen))
		if err != nil {
			return m, err
		}
		code, err := sub.ReadOctet()
		if err != nil {
			return m, err
		}
		value, err := ReadValue(sub, code, depth)
		if err != nil {
			return m, err
		}
		m[string(key)] = value
	}
	return m, nil
}

// ReadList decodes a 0-10 list: 32-bit size, 32-bit count, then one
// typed value per element.
func ReadList(buf *wire.Buffer, depth int) ([]any, error) {
	size, err := readSize32(buf)
	if err != nil {
		return nil, err
	}
	sub, err := buf.Slice(size)
	if err != nil {
		return nil, err
	}
	countOff := sub.Pos()
	count, err := sub.ReadUint32()
	if err != nil {
		return nil, err
	}
	if int(count) > size {
		return nil, wire.NewErr(wire.KindCountExceedsSize, countOff, fmt.Sprintf("list count %d", count))
	}

	items := make([]any, 0, count)
	for i := uint32(0); i < count; i++ {
		code, err := sub.ReadOctet()
		if err != nil {
			return items, err
		}
		value, err := ReadValue(sub, code, depth)
		if err != nil {
			return items, err
		}
		items = append(items, value)
	}
	return items, nil
}

// ReadArray decodes a 0-10 array: 32-bit size, one element type code
// shared by all elements, 32-bit count. Only str16 and struct32
// elements occur in practice; any other element type stops the array,
// its element width being unknowable.
func ReadArray(buf *wire.Buffer, depth int) ([]any, error) {
	size, err := readSize32(buf)
	if err != nil {
		return nil, err
	}
	sub, err := buf.Slice(size)
	if err != nil {
		return nil, err
	}
	typeOff := sub.Pos()
	elemType, err := sub.ReadOctet()
	if err != nil {
		return nil, err
	}
	countOff := sub.Pos()
	count, err := sub.ReadUint32()
	if err != nil {
		return nil, err
	}
	if int(count) > size {
		return nil, wire.NewErr(wire.KindCountExceedsSize, countOff, fmt.Sprintf("array count %d", count))
	}

	items := make([]any, 0, count)
	for i := uint32(0); i < count; i++ {
		switch elemType {
		case TypeStr16:
			n, err := sub.ReadUint16()
			if err != nil {
				return items, err
			}
			b, err := sub.ReadBytes(int(n))
			if err != nil {
				return items, err
			}
			items = append(items, string(b))
		case TypeStruct32:
			s, err := ReadStruct32(sub, depth-1)
			if err != nil {
				return items, err
			}
			items = append(items, s)
		default:
			return items, wire.NewErr(wire.KindUnknownType, typeOff, fmt.Sprintf("array element type 0x%02x", elemType))
		}
	}
	return items, nil
}

// SequenceSet is a set of inclusive command-number ranges.
type SequenceSet [][2]uint32

// ReadSequenceSet decodes a 16-bit length followed by pairs of 32-bit
// range bounds.
func ReadSequenceSet(buf *wire.Buffer) (SequenceSet, error) {
	size, err := buf.ReadUint16()
	if err != nil {
		return nil, err
	}
	sub, err := buf.Slice(int(size))
	if err != nil {
		return nil, err
	}
	var set SequenceSet
	for sub.Remaining() >= 8 {
		lo, err := sub.ReadUint32()
		if err != nil {
			return set, err
		}
		hi, err := sub.ReadUint32()
		if err != nil {
			return set, err
		}
		set = append(set, [2]uint32{lo, hi})
	}
	if sub.Remaining() != 0 {
		return set, wire.Truncated(sub.Pos(), "sequence-set")
	}
	return set, nil
}
