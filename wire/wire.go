// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package wire holds the plumbing shared by all three AMQP dialect
// decoders: the frame buffer, the decode error taxonomy, the decoded
// value types and the field output contract.
package wire

// Dialect identifies one of the three incompatible AMQP wire formats.
type Dialect uint8

const (
	DialectUnknown Dialect = iota
	Dialect091
	Dialect010
	Dialect10
)

// String returns the conventional version string for the dialect.
func (d Dialect) String() string {
	switch d {
	case Dialect091:
		return "0-9-1"
	case Dialect010:
		return "0-10"
	case Dialect10:
		return "1.0"
	default:
		return "unknown"
	}
}

// Direction identifies one flow of a bidirectional connection. Delivery
// acknowledgments travel opposite to the delivery they settle, so the
// two directions are never conflated.
type Direction uint8

const (
	DirAToB Direction = iota
	DirBToA
)

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	if d == DirAToB {
		return DirBToA
	}
	return DirAToB
}

// String returns a short label for the direction.
func (d Direction) String() string {
	if d == DirAToB {
		return "a->b"
	}
	return "b->a"
}

// DefaultMaxDepth bounds recursion in and across the composite codecs.
// Corrupted or adversarial input can nest tables arbitrarily deep;
// decoders return ErrRecursionLimit once the budget is spent.
const DefaultMaxDepth = 32

// Range locates a decoded field inside its frame.
type Range struct {
	Off int
	Len int
}

// Field is one decoded (id, value, byte range) tuple. IDs are stable
// dotted paths such as "amqp.method.basic.ack.delivery-tag"; the value
// is one of the types in values.go or a plain Go scalar.
type Field struct {
	ID    string
	Value any
	Range Range
}

// Sink consumes the append-only field stream of one decoded frame.
// Implementations must not retain the Value beyond the call if it
// aliases frame bytes.
type Sink interface {
	Emit(f Field)
}

// FieldList is a Sink that collects fields in emission order.
type FieldList []Field

// Emit appends the field.
func (l *FieldList) Emit(f Field) {
	*l = append(*l, f)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(f Field)

// Emit calls the function.
func (fn SinkFunc) Emit(f Field) { fn(f) }
