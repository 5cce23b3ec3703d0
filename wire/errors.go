// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"errors"
	"fmt"
)

// ErrorKind classifies decode failures. The kind decides how far the
// failure propagates: a truncation or internal-consistency violation
// aborts only the field or compound it occurred in, an unknown type
// code aborts the enclosing composite because the cursor position is
// unrecoverable past it.
type ErrorKind uint8

const (
	// KindTruncated means a declared length exceeds the remaining buffer.
	KindTruncated ErrorKind = iota
	// KindUnknownType means a tag byte matched no type table.
	KindUnknownType
	// KindCountExceedsSize means a compound declared more elements than
	// its size can hold.
	KindCountExceedsSize
	// KindOddMapCount means a map compound carried an odd element count.
	KindOddMapCount
	// KindBadPackingFlags means reserved bits were set in a packing-flag
	// byte. Non-fatal: decoding continues best effort.
	KindBadPackingFlags
	// KindRecursionLimit means the nesting budget was exhausted.
	KindRecursionLimit
)

func (k ErrorKind) String() string {
	switch k {
	case KindTruncated:
		return "truncated"
	case KindUnknownType:
		return "unknown type code"
	case KindCountExceedsSize:
		return "count exceeds size"
	case KindOddMapCount:
		return "odd map count"
	case KindBadPackingFlags:
		return "bad packing flags"
	case KindRecursionLimit:
		return "recursion limit exceeded"
	default:
		return "decode error"
	}
}

// DecodeError reports a failure at a byte offset inside the frame.
type DecodeError struct {
	Kind   ErrorKind
	Offset int
	Detail string
}

// Error returns the string representation of the error.
func (e *DecodeError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("amqp: %s at offset %d: %s", e.Kind, e.Offset, e.Detail)
	}
	return fmt.Sprintf("amqp: %s at offset %d", e.Kind, e.Offset)
}

// NewErr creates a DecodeError of the given kind.
func NewErr(kind ErrorKind, offset int, detail string) *DecodeError {
	return &DecodeError{Kind: kind, Offset: offset, Detail: detail}
}

// Truncated reports a declared length running past the buffer.
func Truncated(offset int, detail string) *DecodeError {
	return NewErr(KindTruncated, offset, detail)
}

// UnknownType reports an unrecognized tag byte.
func UnknownType(offset int, code byte) *DecodeError {
	return NewErr(KindUnknownType, offset, fmt.Sprintf("0x%02x", code))
}

// IsKind reports whether err is a DecodeError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *DecodeError
	return errors.As(err, &de) && de.Kind == kind
}
