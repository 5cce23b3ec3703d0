// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package v010

import (
	"fmt"

	"github.com/absmach/amqptap/wire"
)

// Class codes.
const (
	ClassConnection = 0x01
	ClassSession    = 0x02
	ClassExecution  = 0x03
	ClassMessage    = 0x04
	ClassTx         = 0x05
	ClassDtx        = 0x06
	ClassExchange   = 0x07
	ClassQueue      = 0x08
	ClassFile       = 0x09
	ClassStream     = 0x0a
)

// ftype is the wire type of one packed field.
type ftype uint8

const (
	ftBit ftype = iota
	ftUint8
	ftUint16
	ftUint32
	ftUint64
	ftDatetime
	ftStr8
	ftStr16
	ftVbin8
	ftVbin16
	ftVbin32
	ftMap
	ftArray
	ftSequenceSet
	ftSequenceNo
	ftStruct32
	ftReplyTo
	ftXid
	ftUUID
)

type field struct {
	name string
	typ  ftype
}

// Struct is a decoded self-describing 0-10 struct32 value.
type Struct struct {
	Class  uint8
	Code   uint8
	Name   string
	Fields map[string]any
}

type structSpec struct {
	name   string
	pack   int
	fields []field
}

// struct32Specs maps (class<<8 | struct code) to the decoders of the
// self-describing structs carried in header segments and query
// results. Field order and packing flags follow the protocol
// definitions; the decoder advances only for present fields.
var struct32Specs = map[uint16]structSpec{
	uint16(ClassMessage)<<8 | 0x01: {"delivery-properties", 2, []field{
		{"discard-unroutable", ftBit},
		{"immediate", ftBit},
		{"redelivered", ftBit},
		{"priority", ftUint8},
		{"delivery-mode", ftUint8},
		{"ttl", ftUint64},
		{"timestamp", ftDatetime},
		{"expiration", ftDatetime},
		{"exchange", ftStr8},
		{"routing-key", ftStr8},
		{"resume-id", ftStr16},
		{"resume-ttl", ftUint64},
	}},
	uint16(ClassMessage)<<8 | 0x02: {"fragment-properties", 2, []field{
		{"first", ftBit},
		{"last", ftBit},
		{"fragment-size", ftUint64},
	}},
	uint16(ClassMessage)<<8 | 0x03: {"message-properties", 2, []field{
		{"content-length", ftUint64},
		{"message-id", ftUUID},
		{"correlation-id", ftVbin16},
		{"reply-to", ftReplyTo},
		{"content-type", ftStr8},
		{"content-encoding", ftStr8},
		{"user-id", ftVbin16},
		{"app-id", ftVbin16},
		{"application-headers", ftMap},
	}},
	uint16(ClassMessage)<<8 | 0x04: {"acquired", 2, []field{
		{"transfers", ftSequenceSet},
	}},
	uint16(ClassMessage)<<8 | 0x05: {"message-resume-result", 2, []field{
		{"offset", ftUint64},
	}},
	uint16(ClassDtx)<<8 | 0x01: {"xa-result", 2, []field{
		{"status", ftUint16},
	}},
	uint16(ClassDtx)<<8 | 0x03: {"recover-result", 2, []field{
		{"in-doubt", ftArray},
	}},
	uint16(ClassExchange)<<8 | 0x01: {"exchange-query-result", 2, []field{
		{"type", ftStr8},
		{"durable", ftBit},
		{"not-found", ftBit},
		{"arguments", ftMap},
	}},
	uint16(ClassExchange)<<8 | 0x02: {"exchange-bound-result", 2, []field{
		{"exchange-not-found", ftBit},
		{"queue-not-found", ftBit},
		{"queue-not-matched", ftBit},
		{"key-not-matched", ftBit},
		{"args-not-matched", ftBit},
	}},
	uint16(ClassQueue)<<8 | 0x01: {"queue-query-result", 2, []field{
		{"queue", ftStr8},
		{"alternate-exchange", ftStr8},
		{"durable", ftBit},
		{"exclusive", ftBit},
		{"auto-delete", ftBit},
		{"arguments", ftMap},
		{"message-count", ftUint32},
		{"subscriber-count", ftUint32},
	}},
	uint16(ClassFile)<<8 | 0x01: {"file-properties", 2, []field{
		{"content-type", ftStr8},
		{"content-encoding", ftStr8},
		{"headers", ftMap},
		{"priority", ftUint8},
		{"reply-to", ftStr8},
		{"message-id", ftStr8},
		{"filename", ftStr8},
		{"timestamp", ftDatetime},
		{"cluster-id", ftStr8},
	}},
	uint16(ClassStream)<<8 | 0x01: {"stream-properties", 2, []field{
		{"content-type", ftStr8},
		{"content-encoding", ftStr8},
		{"headers", ftMap},
		{"priority", ftUint8},
		{"timestamp", ftDatetime},
	}},
}

// ReadStruct32 decodes one self-describing struct: 32-bit size, class
// and struct code, packing flags, then the present fields. Unknown
// (class, struct) pairs are surfaced with their raw bytes.
func ReadStruct32(buf *wire.Buffer, depth int) (*Struct, error) {
	size, err := readSize32(buf)
	if err != nil {
		return nil, err
	}
	sub, err := buf.Slice(size)
	if err != nil {
		return nil, err
	}
	return readStruct32Body(sub, depth)
}

// readStruct32Body decodes the class, struct code and packed fields of
// an already size-delimited struct. However decoding ends, the caller's
// cursor sits exactly past the struct, so its siblings stay decodable.
func readStruct32Body(sub *wire.Buffer, depth int) (*Struct, error) {
	if depth <= 0 {
		return nil, wire.NewErr(wire.KindRecursionLimit, sub.Pos(), "struct32")
	}
	class, err := sub.ReadOctet()
	if err != nil {
		return nil, err
	}
	code, err := sub.ReadOctet()
	if err != nil {
		return nil, err
	}

	s := &Struct{Class: class, Code: code}
	spec, ok := struct32Specs[uint16(class)<<8|uint16(code)]
	if !ok {
		s.Name = "unknown"
		raw, err := sub.ReadBytes(sub.Remaining())
		if err != nil {
			return s, err
		}
		s.Fields = map[string]any{"raw": raw}
		return s, nil
	}
	s.Name = spec.name
	fields, warn, err := readPacked(sub, spec.pack, spec.fields, depth)
	s.Fields = fields
	if err != nil {
		return s, err
	}
	return s, warn
}

// readPacked walks one or two packing-flag bytes and decodes the
// fields whose presence bit is set, in protocol order. Reserved bits
// that are set are reported as a non-fatal BadPackingFlags warning;
// decoding continues best effort. The warning is returned separately
// from fatal errors so callers can keep sibling fields.
func readPacked(buf *wire.Buffer, pack int, fields []field, depth int) (map[string]any, error, error) {
	flagsOff := buf.Pos()
	var flags uint16
	for i := 0; i < pack; i++ {
		b, err := buf.ReadOctet()
		if err != nil {
			return nil, nil, err
		}
		flags |= uint16(b) << (8 * i)
	}

	var warn error
	if reserved := flags &^ (1<<len(fields) - 1); reserved != 0 {
		warn = wire.NewErr(wire.KindBadPackingFlags, flagsOff, fmt.Sprintf("reserved bits 0x%04x", reserved))
	}

	out := make(map[string]any)
	for i, f := range fields {
		if flags&(1<<i) == 0 {
			continue
		}
		if f.typ == ftBit {
			out[f.name] = true
			continue
		}
		v, err := readPackedField(buf, f.typ, depth)
		if err != nil {
			return out, warn, err
		}
		out[f.name] = v
	}
	return out, warn, nil
}

func readPackedField(buf *wire.Buffer, typ ftype, depth int) (any, error) {
	switch typ {
	case ftUint8:
		return buf.ReadOctet()
	case ftUint16:
		return buf.ReadUint16()
	case ftUint32, ftSequenceNo:
		return buf.ReadUint32()
	case ftUint64:
		return buf.ReadUint64()
	case ftDatetime:
		return decodeDatetime(buf, 8)
	case ftStr8:
		return decodeStr(buf, 1)
	case ftStr16:
		return decodeStr(buf, 2)
	case ftVbin8:
		return decodeVbin(buf, 1)
	case ftVbin16:
		return decodeVbin(buf, 2)
	case ftVbin32:
		return decodeVbin(buf, 4)
	case ftMap:
		return ReadMap(buf, depth-1)
	case ftArray:
		return ReadArray(buf, depth-1)
	case ftSequenceSet:
		v, err := ReadSequenceSet(buf)
		return v, err
	case ftStruct32:
		return ReadStruct32(buf, depth-1)
	case ftReplyTo:
		return readReplyTo(buf)
	case ftXid:
		return readXid(buf)
	case ftUUID:
		return decodeUUID(buf, 16)
	default:
		return nil, wire.UnknownType(buf.Pos(), byte(typ))
	}
}

// readReplyTo decodes the nested reply-to struct inside
// message-properties: a 16-bit size, one packing byte, then exchange
// and routing-key.
func readReplyTo(buf *wire.Buffer) (map[string]any, error) {
	size, err := buf.ReadUint16()
	if err != nil {
		return nil, err
	}
	sub, err := buf.Slice(int(size))
	if err != nil {
		return nil, err
	}
	flags, err := sub.ReadOctet()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if flags&0x01 != 0 {
		v, err := decodeStr(sub, 1)
		if err != nil {
			return out, err
		}
		out["exchange"] = v
	}
	if flags&0x02 != 0 {
		v, err := decodeStr(sub, 1)
		if err != nil {
			return out, err
		}
		out["routing-key"] = v
	}
	return out, nil
}

// readXid decodes a dtx transaction id: 16-bit size, one packing byte,
// then format, global-id and branch-id.
func readXid(buf *wire.Buffer) (map[string]any, error) {
	size, err := buf.ReadUint16()
	if err != nil {
		return nil, err
	}
	sub, err := buf.Slice(int(size))
	if err != nil {
		return nil, err
	}
	flags, err := sub.ReadOctet()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if flags&0x01 != 0 {
		v, err := sub.ReadUint32()
		if err != nil {
			return out, err
		}
		out["format"] = v
	}
	if flags&0x02 != 0 {
		v, err := decodeVbin(sub, 1)
		if err != nil {
			return out, err
		}
		out["global-id"] = v
	}
	if flags&0x04 != 0 {
		v, err := decodeVbin(sub, 1)
		if err != nil {
			return out, err
		}
		out["branch-id"] = v
	}
	return out, nil
}
