// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package v010

import (
	"bytes"
	"fmt"

	"github.com/absmach/amqptap/session"
	"github.com/absmach/amqptap/wire"
)

// Frame segment types.
const (
	FrameControl byte = 0
	FrameCommand byte = 1
	FrameHeader  byte = 2
	FrameBody    byte = 3
)

// HeaderSize is the fixed 0-10 frame header length; the size field at
// offset 2 includes it.
const HeaderSize = 12

var protoTag = []byte("AMQP")

// Context carries the per-frame decode environment.
type Context struct {
	Conn     *session.Conn
	Dir      wire.Direction
	FrameID  uint32
	MaxDepth int
}

func (c *Context) depth() int {
	if c.MaxDepth > 0 {
		return c.MaxDepth
	}
	return wire.DefaultMaxDepth
}

type methodSpec struct {
	name   string
	fields []field
}

var connectionMethods = map[byte]methodSpec{
	0x01: {"connection.start", []field{
		{"server-properties", ftMap},
		{"mechanisms", ftArray},
		{"locales", ftArray},
	}},
	0x02: {"connection.start-ok", []field{
		{"client-properties", ftMap},
		{"mechanism", ftStr8},
		{"response", ftVbin32},
		{"locale", ftStr8},
	}},
	0x03: {"connection.secure", []field{{"challenge", ftVbin32}}},
	0x04: {"connection.secure-ok", []field{{"response", ftVbin32}}},
	0x05: {"connection.tune", []field{
		{"channel-max", ftUint16},
		{"max-frame-size", ftUint16},
		{"heartbeat-min", ftUint16},
		{"heartbeat-max", ftUint16},
	}},
	0x06: {"connection.tune-ok", []field{
		{"channel-max", ftUint16},
		{"max-frame-size", ftUint16},
		{"heartbeat", ftUint16},
	}},
	0x07: {"connection.open", []field{
		{"virtual-host", ftStr8},
		{"capabilities", ftArray},
		{"insist", ftBit},
	}},
	0x08: {"connection.open-ok", []field{{"known-hosts", ftArray}}},
	0x09: {"connection.redirect", []field{
		{"host", ftStr16},
		{"known-hosts", ftArray},
	}},
	0x0a: {"connection.heartbeat", nil},
	0x0b: {"connection.close", []field{
		{"reply-code", ftUint16},
		{"reply-text", ftStr8},
	}},
	0x0c: {"connection.close-ok", nil},
}

var sessionMethods = map[byte]methodSpec{
	0x01: {"session.attach", []field{{"name", ftVbin16}, {"force", ftBit}}},
	0x02: {"session.attached", []field{{"name", ftVbin16}}},
	0x03: {"session.detach", []field{{"name", ftVbin16}}},
	0x04: {"session.detached", []field{{"name", ftVbin16}, {"detach-code", ftUint8}}},
	0x05: {"session.request-timeout", []field{{"timeout", ftUint32}}},
	0x06: {"session.timeout", []field{{"timeout", ftUint32}}},
	0x07: {"session.command-point", []field{
		{"command-id", ftSequenceNo},
		{"command-offset", ftUint64},
	}},
	0x08: {"session.expected", []field{{"commands", ftSequenceSet}, {"fragments", ftArray}}},
	0x09: {"session.confirmed", []field{{"commands", ftSequenceSet}, {"fragments", ftArray}}},
	0x0a: {"session.completed", []field{{"commands", ftSequenceSet}, {"timely-reply", ftBit}}},
	0x0b: {"session.known-completed", []field{{"commands", ftSequenceSet}}},
	0x0c: {"session.flush", []field{
		{"expected", ftBit},
		{"confirmed", ftBit},
		{"completed", ftBit},
	}},
	0x0d: {"session.gap", []field{{"commands", ftSequenceSet}}},
}

var executionMethods = map[byte]methodSpec{
	0x01: {"execution.sync", nil},
	0x02: {"execution.result", []field{
		{"command-id", ftSequenceNo},
		{"value", ftStruct32},
	}},
	0x03: {"execution.exception", []field{
		{"error-code", ftUint16},
		{"command-id", ftSequenceNo},
		{"class-code", ftUint8},
		{"command-code", ftUint8},
		{"field-index", ftUint8},
		{"description", ftStr16},
		{"error-info", ftMap},
	}},
}

var messageMethods = map[byte]methodSpec{
	0x01: {"message.transfer", []field{
		{"destination", ftStr8},
		{"accept-mode", ftUint8},
		{"acquire-mode", ftUint8},
	}},
	0x02: {"message.accept", []field{{"transfers", ftSequenceSet}}},
	0x03: {"message.reject", []field{
		{"transfers", ftSequenceSet},
		{"reject-code", ftUint16},
		{"reject-text", ftStr8},
	}},
	0x04: {"message.release", []field{
		{"transfers", ftSequenceSet},
		{"set-redelivered", ftBit},
	}},
	0x05: {"message.acquire", []field{{"transfers", ftSequenceSet}}},
	0x06: {"message.resume", []field{
		{"destination", ftStr8},
		{"resume-id", ftStr16},
	}},
	0x07: {"message.subscribe", []field{
		{"queue", ftStr8},
		{"destination", ftStr8},
		{"accept-mode", ftUint8},
		{"acquire-mode", ftUint8},
		{"exclusive", ftBit},
		{"resume-id", ftStr16},
		{"resume-ttl", ftUint64},
		{"arguments", ftMap},
	}},
	0x08: {"message.cancel", []field{{"destination", ftStr8}}},
	0x09: {"message.set-flow-mode", []field{
		{"destination", ftStr8},
		{"flow-mode", ftUint8},
	}},
	0x0a: {"message.flow", []field{
		{"destination", ftStr8},
		{"unit", ftUint8},
		{"value", ftUint32},
	}},
	0x0b: {"message.flush", []field{{"destination", ftStr8}}},
	0x0c: {"message.stop", []field{{"destination", ftStr8}}},
}

var txMethods = map[byte]methodSpec{
	0x01: {"tx.select", nil},
	0x02: {"tx.commit", nil},
	0x03: {"tx.rollback", nil},
}

var dtxMethods = map[byte]methodSpec{
	0x01: {"dtx.select", nil},
	0x02: {"dtx.start", []field{{"xid", ftXid}, {"join", ftBit}, {"resume", ftBit}}},
	0x03: {"dtx.end", []field{{"xid", ftXid}, {"fail", ftBit}, {"suspend", ftBit}}},
	0x04: {"dtx.commit", []field{{"xid", ftXid}, {"one-phase", ftBit}}},
	0x05: {"dtx.forget", []field{{"xid", ftXid}}},
	0x06: {"dtx.get-timeout", []field{{"xid", ftXid}}},
	0x07: {"dtx.prepare", []field{{"xid", ftXid}}},
	0x08: {"dtx.recover", nil},
	0x09: {"dtx.rollback", []field{{"xid", ftXid}}},
	0x0a: {"dtx.set-timeout", []field{{"xid", ftXid}, {"timeout", ftUint32}}},
}

var exchangeMethods = map[byte]methodSpec{
	0x01: {"exchange.declare", []field{
		{"exchange", ftStr8},
		{"type", ftStr8},
		{"alternate-exchange", ftStr8},
		{"passive", ftBit},
		{"durable", ftBit},
		{"auto-delete", ftBit},
		{"arguments", ftMap},
	}},
	0x02: {"exchange.delete", []field{{"exchange", ftStr8}, {"if-unused", ftBit}}},
	0x03: {"exchange.query", []field{{"name", ftStr8}}},
	0x04: {"exchange.bind", []field{
		{"queue", ftStr8},
		{"exchange", ftStr8},
		{"binding-key", ftStr8},
		{"arguments", ftMap},
	}},
	0x05: {"exchange.unbind", []field{
		{"queue", ftStr8},
		{"exchange", ftStr8},
		{"binding-key", ftStr8},
	}},
	0x06: {"exchange.bound", []field{
		{"exchange", ftStr8},
		{"queue", ftStr8},
		{"binding-key", ftStr8},
		{"arguments", ftMap},
	}},
}

var queueMethods = map[byte]methodSpec{
	0x01: {"queue.declare", []field{
		{"queue", ftStr8},
		{"alternate-exchange", ftStr8},
		{"passive", ftBit},
		{"durable", ftBit},
		{"exclusive", ftBit},
		{"auto-delete", ftBit},
		{"arguments", ftMap},
	}},
	0x02: {"queue.delete", []field{
		{"queue", ftStr8},
		{"if-unused", ftBit},
		{"if-empty", ftBit},
	}},
	0x03: {"queue.purge", []field{{"queue", ftStr8}}},
	0x04: {"queue.query", []field{{"queue", ftStr8}}},
}

var fileMethods = map[byte]methodSpec{
	0x01: {"file.qos", []field{
		{"prefetch-size", ftUint32},
		{"prefetch-count", ftUint16},
		{"global", ftBit},
	}},
	0x02: {"file.qos-ok", nil},
	0x03: {"file.consume", []field{
		{"queue", ftStr8},
		{"consumer-tag", ftStr8},
		{"no-local", ftBit},
		{"no-ack", ftBit},
		{"exclusive", ftBit},
		{"nowait", ftBit},
		{"arguments", ftMap},
	}},
	0x04: {"file.consume-ok", []field{{"consumer-tag", ftStr8}}},
	0x05: {"file.cancel", []field{{"consumer-tag", ftStr8}}},
	0x06: {"file.open", []field{{"identifier", ftStr8}, {"content-size", ftUint64}}},
	0x07: {"file.open-ok", []field{{"staged-size", ftUint64}}},
	0x08: {"file.stage", nil},
	0x09: {"file.publish", []field{
		{"exchange", ftStr8},
		{"routing-key", ftStr8},
		{"mandatory", ftBit},
		{"immediate", ftBit},
		{"identifier", ftStr8},
	}},
	0x0a: {"file.return", []field{
		{"reply-code", ftUint16},
		{"reply-text", ftStr8},
		{"exchange", ftStr8},
		{"routing-key", ftStr8},
	}},
	0x0b: {"file.deliver", []field{
		{"consumer-tag", ftStr8},
		{"delivery-tag", ftUint64},
		{"redelivered", ftBit},
		{"exchange", ftStr8},
		{"routing-key", ftStr8},
		{"identifier", ftStr8},
	}},
	0x0c: {"file.ack", []field{{"delivery-tag", ftUint64}, {"multiple", ftBit}}},
	0x0d: {"file.reject", []field{{"delivery-tag", ftUint64}, {"requeue", ftBit}}},
}

var streamMethods = map[byte]methodSpec{
	0x01: {"stream.qos", []field{
		{"prefetch-size", ftUint32},
		{"prefetch-count", ftUint16},
		{"consume-rate", ftUint32},
		{"global", ftBit},
	}},
	0x02: {"stream.qos-ok", nil},
	0x03: {"stream.consume", []field{
		{"queue", ftStr8},
		{"consumer-tag", ftStr8},
		{"no-local", ftBit},
		{"exclusive", ftBit},
		{"nowait", ftBit},
		{"arguments", ftMap},
	}},
	0x04: {"stream.consume-ok", []field{{"consumer-tag", ftStr8}}},
	0x05: {"stream.cancel", []field{{"consumer-tag", ftStr8}}},
	0x06: {"stream.publish", []field{
		{"exchange", ftStr8},
		{"routing-key", ftStr8},
		{"mandatory", ftBit},
		{"immediate", ftBit},
	}},
	0x07: {"stream.return", []field{
		{"reply-code", ftUint16},
		{"reply-text", ftStr8},
		{"exchange", ftStr8},
		{"routing-key", ftStr8},
	}},
	0x08: {"stream.deliver", []field{
		{"consumer-tag", ftStr8},
		{"delivery-tag", ftUint64},
		{"exchange", ftStr8},
		{"queue", ftStr8},
	}},
}

var classMethods = map[byte]map[byte]methodSpec{
	ClassConnection: connectionMethods,
	ClassSession:    sessionMethods,
	ClassExecution:  executionMethods,
	ClassMessage:    messageMethods,
	ClassTx:         txMethods,
	ClassDtx:        dtxMethods,
	ClassExchange:   exchangeMethods,
	ClassQueue:      queueMethods,
	ClassFile:       fileMethods,
	ClassStream:     streamMethods,
}

// DecodeFrame decodes one complete 0-10 frame into the sink.
func DecodeFrame(data []byte, ctx *Context, sink wire.Sink) error {
	if bytes.HasPrefix(data, protoTag) {
		return decodeProtoHeader(data, sink)
	}

	buf := wire.NewBuffer(data)
	flags, err := buf.ReadOctet()
	if err != nil {
		return err
	}
	ftype, err := buf.ReadOctet()
	if err != nil {
		return err
	}
	size, err := buf.ReadUint16()
	if err != nil {
		return err
	}
	if err := buf.Skip(1); err != nil { // reserved
		return err
	}
	track, err := buf.ReadOctet()
	if err != nil {
		return err
	}
	channel, err := buf.ReadUint16()
	if err != nil {
		return err
	}
	if err := buf.Skip(4); err != nil { // reserved
		return err
	}

	sink.Emit(wire.Field{ID: "amqp.frame.flags", Value: flags, Range: wire.Range{Off: 0, Len: 1}})
	sink.Emit(wire.Field{ID: "amqp.frame.type", Value: ftype, Range: wire.Range{Off: 1, Len: 1}})
	sink.Emit(wire.Field{ID: "amqp.frame.size", Value: size, Range: wire.Range{Off: 2, Len: 2}})
	sink.Emit(wire.Field{ID: "amqp.frame.track", Value: track, Range: wire.Range{Off: 5, Len: 1}})
	sink.Emit(wire.Field{ID: "amqp.channel", Value: channel, Range: wire.Range{Off: 6, Len: 2}})

	if int(size) < HeaderSize {
		return wire.Truncated(2, "frame size below header size")
	}
	payload, err := buf.Slice(int(size) - HeaderSize)
	if err != nil {
		return err
	}

	switch ftype {
	case FrameControl, FrameCommand:
		return decodeMethod(payload, ctx, sink)
	case FrameHeader:
		return decodeHeaderSegment(payload, ctx, sink)
	case FrameBody:
		body, err := payload.ReadBytes(payload.Remaining())
		if err != nil {
			return err
		}
		sink.Emit(wire.Field{ID: "amqp.payload", Value: body, Range: wire.Range{Off: HeaderSize, Len: len(body)}})
		return nil
	default:
		return wire.UnknownType(1, ftype)
	}
}

func decodeProtoHeader(data []byte, sink wire.Sink) error {
	if len(data) < 8 {
		return wire.Truncated(len(data), "protocol header")
	}
	sink.Emit(wire.Field{ID: "amqp.protocol", Value: string(data[0:4]), Range: wire.Range{Off: 0, Len: 4}})
	sink.Emit(wire.Field{ID: "amqp.proto.major", Value: data[6], Range: wire.Range{Off: 6, Len: 1}})
	sink.Emit(wire.Field{ID: "amqp.proto.minor", Value: data[7], Range: wire.Range{Off: 7, Len: 1}})
	return nil
}

// decodeMethod decodes a control or command segment: class code,
// method code, packing flags, then the present arguments.
func decodeMethod(buf *wire.Buffer, ctx *Context, sink wire.Sink) error {
	class, err := buf.ReadOctet()
	if err != nil {
		return err
	}
	method, err := buf.ReadOctet()
	if err != nil {
		return err
	}
	sink.Emit(wire.Field{ID: "amqp.method.class-id", Value: class})
	sink.Emit(wire.Field{ID: "amqp.method.method-id", Value: method})

	methods, ok := classMethods[class]
	if !ok {
		return wire.NewErr(wire.KindUnknownType, 0, fmt.Sprintf("class 0x%02x", class))
	}
	spec, ok := methods[method]
	if !ok {
		return wire.NewErr(wire.KindUnknownType, 0, fmt.Sprintf("class 0x%02x method 0x%02x", class, method))
	}
	sink.Emit(wire.Field{ID: "amqp.method.name", Value: spec.name})

	if len(spec.fields) == 0 {
		return nil
	}
	fields, warn, err := readPacked(buf, 2, spec.fields, ctx.depth())
	emitPacked(sink, "amqp.method.arguments.", spec.fields, fields)
	if warn != nil {
		sink.Emit(wire.Field{ID: "amqp.error.bad-packing-flags", Value: warn.Error()})
	}
	return err
}

// decodeHeaderSegment decodes the sequence of struct32 values carried
// in a header segment (delivery-properties, message-properties, ...).
// Only a bad size prefix aborts the walk: each struct is
// size-delimited, so a failure inside one is reported as a field and
// the following structs still decode.
func decodeHeaderSegment(buf *wire.Buffer, ctx *Context, sink wire.Sink) error {
	for buf.Remaining() > 0 {
		off := buf.Pos()
		size, err := readSize32(buf)
		if err != nil {
			return err
		}
		sub, err := buf.Slice(size)
		if err != nil {
			return err
		}
		s, err := readStruct32Body(sub, ctx.depth())
		if s != nil {
			sink.Emit(wire.Field{
				ID:    "amqp.struct." + s.Name,
				Value: s.Fields,
				Range: wire.Range{Off: off, Len: buf.Pos() - off},
			})
		}
		switch {
		case err == nil:
		case wire.IsKind(err, wire.KindBadPackingFlags):
			sink.Emit(wire.Field{ID: "amqp.error.bad-packing-flags", Value: err.Error()})
		default:
			sink.Emit(wire.Field{ID: "amqp.error.malformed-struct", Value: err.Error()})
		}
	}
	return nil
}

// emitPacked emits decoded packed fields in spec order.
func emitPacked(sink wire.Sink, prefix string, fields []field, values map[string]any) {
	for _, f := range fields {
		if v, ok := values[f.name]; ok {
			sink.Emit(wire.Field{ID: prefix + f.name, Value: v})
		}
	}
}
