// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package v10

import (
	"fmt"

	"github.com/absmach/amqptap/wire"
)

// ReadValue decodes one complete value: an optional 0x00 descriptor
// prefix followed by a constructor and its body.
func ReadValue(buf *wire.Buffer, depth int) (any, error) {
	if depth <= 0 {
		return nil, wire.NewErr(wire.KindRecursionLimit, buf.Pos(), "value nesting too deep")
	}
	code, err := buf.ReadOctet()
	if err != nil {
		return nil, err
	}
	if code == TypeDescriptor {
		desc, err := ReadValue(buf, depth-1)
		if err != nil {
			return nil, err
		}
		val, err := ReadValue(buf, depth-1)
		if err != nil {
			return nil, err
		}
		return &wire.Described{Descriptor: desc, Value: val}, nil
	}
	return readBody(buf, code, depth)
}

// readBody decodes the body of an already-consumed constructor code.
func readBody(buf *wire.Buffer, code byte, depth int) (any, error) {
	if ti, ok := primitiveTypes[code]; ok {
		return ti.decode(buf, ti.width)
	}
	switch code {
	case TypeList0:
		return []any{}, nil
	case TypeList8:
		return readList(buf, 1, depth)
	case TypeList32:
		return readList(buf, 4, depth)
	case TypeMap8:
		return readMap(buf, 1, depth)
	case TypeMap32:
		return readMap(buf, 4, depth)
	case TypeArray8:
		return readArray(buf, 1, depth)
	case TypeArray32:
		return readArray(buf, 4, depth)
	}
	return nil, wire.UnknownType(buf.Pos()-1, code)
}

// readList decodes a list8 or list32 compound. The count is validated
// against the size so a corrupt count cannot walk past the compound
// into sibling data.
func readList(buf *wire.Buffer, prefix, depth int) ([]any, error) {
	if depth <= 0 {
		return nil, wire.NewErr(wire.KindRecursionLimit, buf.Pos(), "list nesting too deep")
	}
	size, err := readSize(buf, prefix)
	if err != nil {
		return nil, err
	}
	body, err := buf.Slice(size)
	if err != nil {
		return nil, err
	}
	count, err := readSize(body, prefix)
	if err != nil {
		return nil, err
	}
	if count > size {
		return nil, wire.NewErr(wire.KindCountExceedsSize, body.Pos(), fmt.Sprintf("list count %d exceeds size %d", count, size))
	}
	items := make([]any, 0, count)
	for i := 0; i < count; i++ {
		v, err := ReadValue(body, depth-1)
		if err != nil {
			body.SkipRest()
			return items, err
		}
		items = append(items, v)
	}
	body.SkipRest()
	return items, nil
}

// readMap decodes a map8 or map32 compound. The element count covers
// keys and values together and must be even.
func readMap(buf *wire.Buffer, prefix, depth int) (map[any]any, error) {
	if depth <= 0 {
		return nil, wire.NewErr(wire.KindRecursionLimit, buf.Pos(), "map nesting too deep")
	}
	size, err := readSize(buf, prefix)
	if err != nil {
		return nil, err
	}
	body, err := buf.Slice(size)
	if err != nil {
		return nil, err
	}
	count, err := readSize(body, prefix)
	if err != nil {
		return nil, err
	}
	if count > size {
		return nil, wire.NewErr(wire.KindCountExceedsSize, body.Pos(), fmt.Sprintf("map count %d exceeds size %d", count, size))
	}
	if count%2 != 0 {
		return nil, wire.NewErr(wire.KindOddMapCount, body.Pos(), fmt.Sprintf("map count %d is odd", count))
	}
	m := make(map[any]any, count/2)
	for i := 0; i < count/2; i++ {
		k, err := ReadValue(body, depth-1)
		if err != nil {
			body.SkipRest()
			return m, err
		}
		v, err := ReadValue(body, depth-1)
		if err != nil {
			body.SkipRest()
			return m, err
		}
		m[mapKey(k)] = v
	}
	body.SkipRest()
	return m, nil
}

// mapKey converts decoded keys that are not comparable, or that would
// collide awkwardly, into map-safe forms.
func mapKey(k any) any {
	switch v := k.(type) {
	case []byte:
		return string(v)
	case wire.Symbol:
		return v
	default:
		return v
	}
}

// readArray decodes an array8 or array32 compound: one shared
// constructor followed by count bodies.
func readArray(buf *wire.Buffer, prefix, depth int) ([]any, error) {
	if depth <= 0 {
		return nil, wire.NewErr(wire.KindRecursionLimit, buf.Pos(), "array nesting too deep")
	}
	size, err := readSize(buf, prefix)
	if err != nil {
		return nil, err
	}
	body, err := buf.Slice(size)
	if err != nil {
		return nil, err
	}
	count, err := readSize(body, prefix)
	if err != nil {
		return nil, err
	}
	if count > size {
		return nil, wire.NewErr(wire.KindCountExceedsSize, body.Pos(), fmt.Sprintf("array count %d exceeds size %d", count, size))
	}
	code, err := body.ReadOctet()
	if err != nil {
		return nil, err
	}
	var desc any
	if code == TypeDescriptor {
		desc, err = ReadValue(body, depth-1)
		if err != nil {
			return nil, err
		}
		code, err = body.ReadOctet()
		if err != nil {
			return nil, err
		}
	}
	items := make([]any, 0, count)
	for i := 0; i < count; i++ {
		v, err := readBody(body, code, depth-1)
		if err != nil {
			body.SkipRest()
			return items, err
		}
		if desc != nil {
			v = &wire.Described{Descriptor: desc, Value: v}
		}
		items = append(items, v)
	}
	body.SkipRest()
	return items, nil
}
