// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package wire

import "time"

// Symbol is an AMQP symbolic value (ASCII subset of string).
type Symbol string

// Timestamp wraps time.Time for AMQP timestamps (milliseconds since
// the Unix epoch on the wire).
type Timestamp time.Time

// TimestampFromMillis creates a Timestamp from milliseconds since the
// Unix epoch.
func TimestampFromMillis(ms int64) Timestamp {
	return Timestamp(time.UnixMilli(ms))
}

// Decimal is the 0-9 scaled decimal: Value scaled down by 10^Scale.
type Decimal struct {
	Scale uint8
	Value int32
}

// Decimal32, Decimal64 and Decimal128 carry the 1.0 IEEE 754 decimal
// encodings opaquely; nothing in the decoder interprets them.
type (
	Decimal32  [4]byte
	Decimal64  [8]byte
	Decimal128 [16]byte
)

// Described wraps a 1.0 described value with its descriptor. The
// descriptor is either a uint64 code or a Symbol name.
type Described struct {
	Descriptor any
	Value      any
}
