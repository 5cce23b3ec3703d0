// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package dissect is the per-connection front door: it resolves the
// dialect of a fresh connection, answers frame-length queries for the
// reassembler and dispatches complete frames into the dialect decoders.
package dissect

import (
	"bytes"
	"encoding/binary"

	"github.com/absmach/amqptap/wire"
)

var protoTag = []byte("AMQP")

// MinPrefix is the number of bytes DetectDialect and FrameLen need.
const MinPrefix = 8

// max091Frame clamps the declared 0-9 frame size.
const max091Frame = 1 << 20

// DetectDialect resolves the wire dialect from the first bytes of a
// connection. With a literal protocol tag the version octets decide;
// byte 5 picks the header layout, since 0-9 and 0-10 place their
// version numbers two bytes later than 1.0 does. Without a tag the
// frame shape is probed: a 0-9 size field landing exactly on a
// frame-end octet, then the 0-10 reserved byte, then 1.0 as the last
// resort. The heuristic path is approximate on captures that begin
// mid-stream.
func DetectDialect(prefix []byte) wire.Dialect {
	if len(prefix) < MinPrefix {
		return wire.DialectUnknown
	}
	if bytes.HasPrefix(prefix, protoTag) {
		if prefix[5] == 1 {
			if prefix[7] == 10 {
				return wire.Dialect010
			}
			return wire.Dialect091
		}
		return wire.Dialect10
	}

	if size := binary.BigEndian.Uint32(prefix[3:7]); size <= max091Frame {
		if end := 7 + int(size); end < len(prefix) && prefix[end] == 0xCE {
			return wire.Dialect091
		}
	}
	if prefix[4] == 0 {
		return wire.Dialect010
	}
	return wire.Dialect10
}

// FrameLen returns the total byte length of the frame starting at
// prefix, reading at most MinPrefix bytes. A protocol-header frame is a
// fixed 8 bytes in every dialect. Zero means the length cannot be
// determined from this prefix.
func FrameLen(d wire.Dialect, prefix []byte) int {
	if len(prefix) < MinPrefix {
		return 0
	}
	if bytes.HasPrefix(prefix, protoTag) {
		return MinPrefix
	}
	switch d {
	case wire.Dialect091:
		size := binary.BigEndian.Uint32(prefix[3:7])
		if size > max091Frame {
			size = max091Frame
		}
		return int(size) + 8
	case wire.Dialect010:
		return int(binary.BigEndian.Uint16(prefix[2:4]))
	case wire.Dialect10:
		return int(binary.BigEndian.Uint32(prefix[:4]))
	default:
		return 0
	}
}
