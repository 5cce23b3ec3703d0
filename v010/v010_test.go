// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package v010_test

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/absmach/amqptap/session"
	"github.com/absmach/amqptap/v010"
	"github.com/absmach/amqptap/wire"
)

// sized32 prefixes body with its u32 size.
func sized32(body []byte) []byte {
	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out, uint32(len(body)))
	copy(out[4:], body)
	return out
}

func TestReadStruct32DeliveryPropertiesTTL(t *testing.T) {
	var body bytes.Buffer
	body.WriteByte(0x04) // message class
	body.WriteByte(0x01) // delivery-properties
	body.WriteByte(0x20) // flag1: ttl present
	body.WriteByte(0x00) // flag2
	binary.Write(&body, binary.BigEndian, uint64(1000))

	buf := wire.NewBuffer(sized32(body.Bytes()))
	s, err := v010.ReadStruct32(buf, wire.DefaultMaxDepth)
	if err != nil {
		t.Fatalf("ReadStruct32 failed: %v", err)
	}
	if s.Name != "delivery-properties" {
		t.Fatalf("Expected delivery-properties, got %q", s.Name)
	}
	want := map[string]any{"ttl": uint64(1000)}
	if !reflect.DeepEqual(s.Fields, want) {
		t.Fatalf("Expected %v, got %v", want, s.Fields)
	}
}

func TestReadStruct32MessagePropertiesReplyTo(t *testing.T) {
	var reply bytes.Buffer
	reply.WriteByte(0x03) // exchange and routing-key present
	reply.WriteByte(2)
	reply.WriteString("ex")
	reply.WriteByte(2)
	reply.WriteString("rk")

	var body bytes.Buffer
	body.WriteByte(0x04) // message class
	body.WriteByte(0x03) // message-properties
	body.WriteByte(0x08) // flag1: reply-to present
	body.WriteByte(0x00)
	binary.Write(&body, binary.BigEndian, uint16(reply.Len()))
	body.Write(reply.Bytes())

	buf := wire.NewBuffer(sized32(body.Bytes()))
	s, err := v010.ReadStruct32(buf, wire.DefaultMaxDepth)
	if err != nil {
		t.Fatalf("ReadStruct32 failed: %v", err)
	}
	want := map[string]any{"reply-to": map[string]any{"exchange": "ex", "routing-key": "rk"}}
	if !reflect.DeepEqual(s.Fields, want) {
		t.Fatalf("Expected %v, got %v", want, s.Fields)
	}
}

func TestReadStruct32BadPackingFlags(t *testing.T) {
	var body bytes.Buffer
	body.WriteByte(0x04)
	body.WriteByte(0x02) // fragment-properties: 3 fields
	body.WriteByte(0x03) // first and last
	body.WriteByte(0x80) // reserved bit set

	buf := wire.NewBuffer(sized32(body.Bytes()))
	s, err := v010.ReadStruct32(buf, wire.DefaultMaxDepth)
	if !wire.IsKind(err, wire.KindBadPackingFlags) {
		t.Fatalf("Expected bad packing flags warning, got %v", err)
	}
	// Best effort: the valid fields are still decoded.
	want := map[string]any{"first": true, "last": true}
	if !reflect.DeepEqual(s.Fields, want) {
		t.Fatalf("Expected %v, got %v", want, s.Fields)
	}
}

func TestReadMap(t *testing.T) {
	var body bytes.Buffer
	binary.Write(&body, binary.BigEndian, uint32(1)) // pair count
	body.WriteByte(3)
	body.WriteString("key")
	body.WriteByte(v010.TypeUint32)
	binary.Write(&body, binary.BigEndian, uint32(7))

	buf := wire.NewBuffer(sized32(body.Bytes()))
	m, err := v010.ReadMap(buf, wire.DefaultMaxDepth)
	if err != nil {
		t.Fatalf("ReadMap failed: %v", err)
	}
	want := map[string]any{"key": uint32(7)}
	if !reflect.DeepEqual(m, want) {
		t.Fatalf("Expected %v, got %v", want, m)
	}
}

func TestReadMapCountExceedsSize(t *testing.T) {
	var body bytes.Buffer
	binary.Write(&body, binary.BigEndian, uint32(9999))

	buf := wire.NewBuffer(sized32(body.Bytes()))
	_, err := v010.ReadMap(buf, wire.DefaultMaxDepth)
	if !wire.IsKind(err, wire.KindCountExceedsSize) {
		t.Fatalf("Expected count exceeds size error, got %v", err)
	}
}

func TestReadArrayStr16(t *testing.T) {
	var body bytes.Buffer
	body.WriteByte(v010.TypeStr16)
	binary.Write(&body, binary.BigEndian, uint32(2))
	binary.Write(&body, binary.BigEndian, uint16(5))
	body.WriteString("PLAIN")
	binary.Write(&body, binary.BigEndian, uint16(9))
	body.WriteString("ANONYMOUS")

	buf := wire.NewBuffer(sized32(body.Bytes()))
	items, err := v010.ReadArray(buf, wire.DefaultMaxDepth)
	if err != nil {
		t.Fatalf("ReadArray failed: %v", err)
	}
	want := []any{"PLAIN", "ANONYMOUS"}
	if !reflect.DeepEqual(items, want) {
		t.Fatalf("Expected %v, got %v", want, items)
	}
}

func TestReadArrayUnknownElementType(t *testing.T) {
	var body bytes.Buffer
	body.WriteByte(v010.TypeUint32)
	binary.Write(&body, binary.BigEndian, uint32(1))
	binary.Write(&body, binary.BigEndian, uint32(42))

	buf := wire.NewBuffer(sized32(body.Bytes()))
	_, err := v010.ReadArray(buf, wire.DefaultMaxDepth)
	if !wire.IsKind(err, wire.KindUnknownType) {
		t.Fatalf("Expected unknown type error, got %v", err)
	}
}

func TestReadValueSizeClamp(t *testing.T) {
	var body bytes.Buffer
	binary.Write(&body, binary.BigEndian, uint32(0x10000))

	buf := wire.NewBuffer(body.Bytes())
	_, err := v010.ReadValue(buf, v010.TypeVbin32, wire.DefaultMaxDepth)
	if !wire.IsKind(err, wire.KindCountExceedsSize) {
		t.Fatalf("Expected clamp error, got %v", err)
	}
}

// commandFrame assembles a complete 0-10 command frame.
func commandFrame(channel uint16, payload []byte) []byte {
	var frame bytes.Buffer
	frame.WriteByte(0x03) // flags: first+last segment
	frame.WriteByte(v010.FrameCommand)
	binary.Write(&frame, binary.BigEndian, uint16(v010.HeaderSize+len(payload)))
	frame.WriteByte(0) // reserved
	frame.WriteByte(1) // track
	binary.Write(&frame, binary.BigEndian, channel)
	frame.Write([]byte{0, 0, 0, 0})
	frame.Write(payload)
	return frame.Bytes()
}

func TestDecodeFrameMessageTransfer(t *testing.T) {
	var payload bytes.Buffer
	payload.WriteByte(0x04) // message class
	payload.WriteByte(0x01) // transfer
	payload.WriteByte(0x01) // flag1: destination
	payload.WriteByte(0x00)
	payload.WriteByte(3)
	payload.WriteString("amq")

	var fields wire.FieldList
	ctx := &v010.Context{Conn: session.NewConn(), Dir: wire.DirAToB}
	if err := v010.DecodeFrame(commandFrame(1, payload.Bytes()), ctx, &fields); err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}

	var name, dest any
	for _, f := range fields {
		switch f.ID {
		case "amqp.method.name":
			name = f.Value
		case "amqp.method.arguments.destination":
			dest = f.Value
		}
	}
	if name != "message.transfer" || dest != "amq" {
		t.Fatalf("Expected message.transfer to amq, got %v %v", name, dest)
	}
}

func TestDecodeFrameHeaderSegment(t *testing.T) {
	var body bytes.Buffer
	body.WriteByte(0x04)
	body.WriteByte(0x01)
	body.WriteByte(0x20)
	body.WriteByte(0x00)
	binary.Write(&body, binary.BigEndian, uint64(5000))

	var payload bytes.Buffer
	payload.Write(sized32(body.Bytes()))

	var frame bytes.Buffer
	frame.WriteByte(0x03)
	frame.WriteByte(v010.FrameHeader)
	binary.Write(&frame, binary.BigEndian, uint16(v010.HeaderSize+payload.Len()))
	frame.WriteByte(0)
	frame.WriteByte(1)
	binary.Write(&frame, binary.BigEndian, uint16(1))
	frame.Write([]byte{0, 0, 0, 0})
	frame.Write(payload.Bytes())

	var fields wire.FieldList
	ctx := &v010.Context{Conn: session.NewConn(), Dir: wire.DirAToB}
	if err := v010.DecodeFrame(frame.Bytes(), ctx, &fields); err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}

	found := false
	for _, f := range fields {
		if f.ID == "amqp.struct.delivery-properties" {
			found = true
			m, ok := f.Value.(map[string]any)
			if !ok || m["ttl"] != uint64(5000) {
				t.Fatalf("Expected ttl 5000, got %v", f.Value)
			}
		}
	}
	if !found {
		t.Fatal("Expected delivery-properties struct field")
	}
}

func TestDecodeFrameHeaderSegmentMalformedStruct(t *testing.T) {
	// message-properties declaring a content-length but carrying only
	// half of it, followed by an intact delivery-properties. The first
	// struct's size prefix still bounds it, so the second decodes.
	var bad bytes.Buffer
	bad.WriteByte(0x04) // message class
	bad.WriteByte(0x03) // message-properties
	bad.WriteByte(0x01) // flag1: content-length present
	bad.WriteByte(0x00)
	bad.Write([]byte{0, 0, 0, 0})

	var good bytes.Buffer
	good.WriteByte(0x04)
	good.WriteByte(0x01) // delivery-properties
	good.WriteByte(0x20) // flag1: ttl present
	good.WriteByte(0x00)
	binary.Write(&good, binary.BigEndian, uint64(1000))

	var payload bytes.Buffer
	payload.Write(sized32(bad.Bytes()))
	payload.Write(sized32(good.Bytes()))

	var frame bytes.Buffer
	frame.WriteByte(0x03)
	frame.WriteByte(v010.FrameHeader)
	binary.Write(&frame, binary.BigEndian, uint16(v010.HeaderSize+payload.Len()))
	frame.WriteByte(0)
	frame.WriteByte(1)
	binary.Write(&frame, binary.BigEndian, uint16(1))
	frame.Write([]byte{0, 0, 0, 0})
	frame.Write(payload.Bytes())

	var fields wire.FieldList
	ctx := &v010.Context{Conn: session.NewConn(), Dir: wire.DirAToB}
	if err := v010.DecodeFrame(frame.Bytes(), ctx, &fields); err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}

	var malformed, ttl any
	for _, f := range fields {
		switch f.ID {
		case "amqp.error.malformed-struct":
			malformed = f.Value
		case "amqp.struct.delivery-properties":
			m, ok := f.Value.(map[string]any)
			if !ok {
				t.Fatalf("Expected field map, got %v", f.Value)
			}
			ttl = m["ttl"]
		}
	}
	if malformed == nil {
		t.Fatal("Expected malformed struct field")
	}
	if ttl != uint64(1000) {
		t.Fatalf("Expected ttl 1000 after the malformed struct, got %v", ttl)
	}
}
