// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package v10_test

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/absmach/amqptap/session"
	"github.com/absmach/amqptap/v10"
	"github.com/absmach/amqptap/wire"
)

func readOne(t *testing.T, data []byte) any {
	t.Helper()
	v, err := v10.ReadValue(wire.NewBuffer(data), wire.DefaultMaxDepth)
	if err != nil {
		t.Fatalf("ReadValue failed: %v", err)
	}
	return v
}

func TestReadValuePrimitives(t *testing.T) {
	u := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	cases := []struct {
		name string
		data []byte
		want any
	}{
		{"null", []byte{0x40}, nil},
		{"true", []byte{0x41}, true},
		{"false", []byte{0x42}, false},
		{"boolean", []byte{0x56, 0x01}, true},
		{"ubyte", []byte{0x50, 0xff}, byte(0xff)},
		{"ushort", []byte{0x60, 0x01, 0x02}, uint16(0x0102)},
		{"uint", []byte{0x70, 0x00, 0x00, 0x01, 0x00}, uint32(256)},
		{"smalluint", []byte{0x52, 0x07}, uint32(7)},
		{"uint0", []byte{0x43}, uint32(0)},
		{"ulong", []byte{0x80, 0, 0, 0, 0, 0, 0, 0x01, 0x00}, uint64(256)},
		{"smallulong", []byte{0x53, 0x10}, uint64(0x10)},
		{"ulong0", []byte{0x44}, uint64(0)},
		{"byte", []byte{0x51, 0xff}, int8(-1)},
		{"short", []byte{0x61, 0xff, 0xfe}, int16(-2)},
		{"int", []byte{0x71, 0xff, 0xff, 0xff, 0xfd}, int32(-3)},
		{"smallint", []byte{0x54, 0xfc}, int32(-4)},
		{"long", []byte{0x81, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xfb}, int64(-5)},
		{"smalllong", []byte{0x55, 0xfa}, int64(-6)},
		{"char", []byte{0x73, 0x00, 0x00, 0x00, 0x41}, rune('A')},
		{"timestamp", []byte{0x83, 0, 0, 0, 0, 0, 0, 0x03, 0xe8}, wire.TimestampFromMillis(1000)},
		{"uuid", append([]byte{0x98}, u[:]...), u},
		{"vbin8", []byte{0xa0, 0x02, 0xca, 0xfe}, []byte{0xca, 0xfe}},
		{"str8", []byte{0xa1, 0x02, 'h', 'i'}, "hi"},
		{"str32", []byte{0xb1, 0, 0, 0, 0x02, 'h', 'i'}, "hi"},
		{"sym8", []byte{0xa3, 0x04, 'a', 'm', 'q', 'p'}, wire.Symbol("amqp")},
		{"list0", []byte{0x45}, []any{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := readOne(t, tc.data)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Expected %#v, got %#v", tc.want, got)
			}
		})
	}
}

func TestReadListUintZero(t *testing.T) {
	// list8, declared size 3, count 1, one uint0 element plus slack.
	data := []byte{0xc0, 0x03, 0x01, 0x43, 0x00}
	got := readOne(t, data)
	want := []any{uint32(0)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
}

func TestReadListCountExceedsSize(t *testing.T) {
	data := []byte{0xc0, 0x02, 0xff, 0x43}
	_, err := v10.ReadValue(wire.NewBuffer(data), wire.DefaultMaxDepth)
	if !wire.IsKind(err, wire.KindCountExceedsSize) {
		t.Fatalf("Expected count-exceeds-size, got %v", err)
	}
}

func TestReadMapOddCount(t *testing.T) {
	data := []byte{0xc1, 0x05, 0x03, 0x43, 0x43, 0x43, 0x00}
	_, err := v10.ReadValue(wire.NewBuffer(data), wire.DefaultMaxDepth)
	if !wire.IsKind(err, wire.KindOddMapCount) {
		t.Fatalf("Expected odd-map-count, got %v", err)
	}
}

func TestReadMap(t *testing.T) {
	var body bytes.Buffer
	body.WriteByte(0x02)                        // count
	body.Write([]byte{0xa3, 0x01, 'k'})         // key sym8 "k"
	body.Write([]byte{0x52, 0x2a})              // value smalluint 42
	data := append([]byte{0xc1, byte(body.Len())}, body.Bytes()...)

	got := readOne(t, data)
	want := map[any]any{wire.Symbol("k"): uint32(42)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
}

func TestReadArraySharedConstructor(t *testing.T) {
	// array8: count 3, shared smalluint constructor.
	data := []byte{0xe0, 0x05, 0x03, 0x52, 0x01, 0x02, 0x03}
	got := readOne(t, data)
	want := []any{uint32(1), uint32(2), uint32(3)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
}

func TestReadValueUnknownConstructor(t *testing.T) {
	_, err := v10.ReadValue(wire.NewBuffer([]byte{0x3f}), wire.DefaultMaxDepth)
	if !wire.IsKind(err, wire.KindUnknownType) {
		t.Fatalf("Expected unknown-type, got %v", err)
	}
}

func TestReadValueTruncated(t *testing.T) {
	_, err := v10.ReadValue(wire.NewBuffer([]byte{0x70, 0x00, 0x00}), wire.DefaultMaxDepth)
	if !wire.IsKind(err, wire.KindTruncated) {
		t.Fatalf("Expected truncated, got %v", err)
	}
}

func TestReadValueRecursionLimit(t *testing.T) {
	var data []byte
	for i := 0; i < 64; i++ {
		data = append(data, 0x00, 0x53, 0x75) // descriptor: data
	}
	data = append(data, 0xa0, 0x00)
	_, err := v10.ReadValue(wire.NewBuffer(data), wire.DefaultMaxDepth)
	if !wire.IsKind(err, wire.KindRecursionLimit) {
		t.Fatalf("Expected recursion-limit, got %v", err)
	}
}

// amqpFrame wraps a body in an 8-byte 1.0 frame header.
func amqpFrame(ftype byte, channel uint16, body []byte) []byte {
	frame := make([]byte, 8+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(frame)))
	frame[4] = 2 // doff
	frame[5] = ftype
	binary.BigEndian.PutUint16(frame[6:], channel)
	copy(frame[8:], body)
	return frame
}

// describedList builds 0x00 smallulong(code) list8 of the pre-encoded
// elements.
func describedList(code byte, elems ...[]byte) []byte {
	var list bytes.Buffer
	list.WriteByte(byte(len(elems)))
	for _, e := range elems {
		list.Write(e)
	}
	out := []byte{0x00, 0x53, code, 0xc0, byte(list.Len())}
	return append(out, list.Bytes()...)
}

func fieldByID(fields wire.FieldList, id string) (wire.Field, bool) {
	for _, f := range fields {
		if f.ID == id {
			return f, true
		}
	}
	return wire.Field{}, false
}

func TestDecodeFrameOpen(t *testing.T) {
	body := describedList(0x10,
		[]byte{0xa1, 0x03, 'a', 'p', 'p'}, // container-id
		[]byte{0xa1, 0x04, 'h', 'o', 's', 't'},
	)
	ctx := &v10.Context{Conn: session.NewConn()}
	var fields wire.FieldList
	if err := v10.DecodeFrame(amqpFrame(v10.FrameAMQP, 0, body), ctx, &fields); err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	perf, ok := fieldByID(fields, "amqp.performative")
	if !ok || perf.Value != "open" {
		t.Fatalf("Expected open performative, got %v", perf.Value)
	}
	cid, ok := fieldByID(fields, "amqp.performative.arguments.open.container-id")
	if !ok || cid.Value != "app" {
		t.Fatalf("Expected container-id app, got %v", cid.Value)
	}
}

func TestDecodeFrameTransferWithData(t *testing.T) {
	perf := describedList(0x14,
		[]byte{0x43},             // handle
		[]byte{0x52, 0x09},       // delivery-id 9
		[]byte{0xa0, 0x01, 0x05}, // delivery-tag
	)
	payload := []byte(`{"k":1}`)
	section := append([]byte{0x00, 0x53, 0x75, 0xa0, byte(len(payload))}, payload...)
	body := append(perf, section...)

	var got []byte
	ctx := &v10.Context{
		Conn: session.NewConn(),
		Payload: func(_ *session.Channel, body []byte, _ wire.Range) {
			got = body
		},
	}
	var fields wire.FieldList
	if err := v10.DecodeFrame(amqpFrame(v10.FrameAMQP, 1, body), ctx, &fields); err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("Expected payload %q, got %q", payload, got)
	}
	if _, ok := fieldByID(fields, "amqp.section.data"); !ok {
		t.Fatal("Expected a data section field")
	}
	id, ok := fieldByID(fields, "amqp.performative.arguments.transfer.delivery-id")
	if !ok || id.Value != uint32(9) {
		t.Fatalf("Expected delivery-id 9, got %v", id.Value)
	}
}

func TestDecodeFrameAttachRecordsLinkAddress(t *testing.T) {
	target := append([]byte{0x00, 0x53, 0x29}, // target composite
		0xc0, 0x07, 0x01, 0xa1, 0x04, 'd', 'e', 's', 't')
	perf := describedList(0x12,
		[]byte{0xa1, 0x01, 'l'}, // name
		[]byte{0x43},            // handle
		[]byte{0x42},            // role
		[]byte{0x40},            // snd-settle-mode
		[]byte{0x40},            // rcv-settle-mode
		[]byte{0x40},            // source
		target,
	)
	conn := session.NewConn()
	ctx := &v10.Context{Conn: conn}
	var fields wire.FieldList
	if err := v10.DecodeFrame(amqpFrame(v10.FrameAMQP, 3, perf), ctx, &fields); err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if got := conn.Channel(3).LinkAddress; got != "dest" {
		t.Fatalf("Expected link address dest, got %q", got)
	}
}

func TestDecodeFrameSASLInit(t *testing.T) {
	body := describedList(0x41,
		[]byte{0xa3, 0x05, 'P', 'L', 'A', 'I', 'N'},
	)
	ctx := &v10.Context{Conn: session.NewConn()}
	var fields wire.FieldList
	if err := v10.DecodeFrame(amqpFrame(v10.FrameSASL, 0, body), ctx, &fields); err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	perf, _ := fieldByID(fields, "amqp.performative")
	if perf.Value != "sasl.init" {
		t.Fatalf("Expected sasl.init, got %v", perf.Value)
	}
	mech, ok := fieldByID(fields, "amqp.performative.arguments.sasl.init.mechanism")
	if !ok || !reflect.DeepEqual(mech.Value, wire.Symbol("PLAIN")) {
		t.Fatalf("Expected PLAIN mechanism, got %v", mech.Value)
	}
}

func TestDecodeFrameProtocolHeader(t *testing.T) {
	conn := session.NewConn()
	ctx := &v10.Context{Conn: conn}
	var fields wire.FieldList
	hdr := []byte{'A', 'M', 'Q', 'P', 3, 1, 0, 0}
	if err := v10.DecodeFrame(hdr, ctx, &fields); err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if !conn.SASLHeaderSeen {
		t.Fatal("Expected SASL header to be recorded")
	}
	ver, _ := fieldByID(fields, "amqp.protocol.version")
	if ver.Value != "1.0.0" {
		t.Fatalf("Expected version 1.0.0, got %v", ver.Value)
	}
}

func TestDecodeFrameSASLThenAMQPHeader(t *testing.T) {
	conn := session.NewConn()
	ctx := &v10.Context{Conn: conn}

	var fields wire.FieldList
	if err := v10.DecodeFrame([]byte{'A', 'M', 'Q', 'P', 3, 1, 0, 0}, ctx, &fields); err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if !conn.SASLHeaderSeen {
		t.Fatal("Expected SASL header to be recorded")
	}

	// The plain header restarting the handshake ends the exchange.
	fields = nil
	if err := v10.DecodeFrame([]byte{'A', 'M', 'Q', 'P', 0, 1, 0, 0}, ctx, &fields); err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if _, ok := fieldByID(fields, "amqp.sasl.complete"); !ok {
		t.Fatal("Expected sasl.complete field on the restarted handshake")
	}
	if conn.SASLHeaderSeen {
		t.Fatal("Expected SASL flag cleared by the plain header")
	}
}

func TestDecodeFrameHeartbeat(t *testing.T) {
	ctx := &v10.Context{Conn: session.NewConn()}
	var fields wire.FieldList
	if err := v10.DecodeFrame(amqpFrame(v10.FrameAMQP, 0, nil), ctx, &fields); err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if _, ok := fieldByID(fields, "amqp.heartbeat"); !ok {
		t.Fatal("Expected heartbeat field")
	}
}

func TestMessageIDSynonym(t *testing.T) {
	u := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	props := append([]byte{0x00, 0x53, 0x73, 0xc0, 18, 0x01, 0x98}, u[:]...)
	perf := describedList(0x14, []byte{0x43})
	body := append(perf, props...)

	ctx := &v10.Context{Conn: session.NewConn()}
	var fields wire.FieldList
	if err := v10.DecodeFrame(amqpFrame(v10.FrameAMQP, 0, body), ctx, &fields); err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	f, ok := fieldByID(fields, "amqp.section.properties.message-id.uuid")
	if !ok {
		t.Fatalf("Expected uuid-typed message-id field, fields: %v", fields)
	}
	if f.Value != u {
		t.Fatalf("Expected %v, got %v", u, f.Value)
	}
}
