// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package v10

import (
	"bytes"
	"fmt"

	"github.com/absmach/amqptap/session"
	"github.com/absmach/amqptap/wire"
)

// Frame body types from the 8-byte frame header.
const (
	FrameAMQP byte = 0x00
	FrameSASL byte = 0x01
)

// HeaderSize is the fixed frame header length.
const HeaderSize = 8

var protoTag = []byte("AMQP")

// Protocol ids carried in byte 4 of the 8-byte protocol header.
const (
	ProtoAMQP byte = 0
	ProtoTLS  byte = 2
	ProtoSASL byte = 3
)

// Context carries the per-frame decode inputs.
type Context struct {
	Conn     *session.Conn
	Dir      wire.Direction
	FrameID  uint32
	MaxDepth int

	// Payload receives the body of each data section of a transfer.
	Payload func(ch *session.Channel, body []byte, r wire.Range)
}

func (c *Context) depth() int {
	if c.MaxDepth > 0 {
		return c.MaxDepth
	}
	return wire.DefaultMaxDepth
}

// DecodeFrame decodes one 1.0 frame: protocol header, keepalive, SASL
// exchange frame or AMQP performative with any trailing message
// sections.
func DecodeFrame(data []byte, ctx *Context, sink wire.Sink) error {
	if bytes.HasPrefix(data, protoTag) {
		return decodeProtoHeader(data, ctx, sink)
	}

	buf := wire.NewBuffer(data)
	size, err := buf.ReadUint32()
	if err != nil {
		return err
	}
	sink.Emit(wire.Field{ID: "amqp.length", Value: size, Range: wire.Range{Off: 0, Len: 4}})
	doff, err := buf.ReadOctet()
	if err != nil {
		return err
	}
	ftype, err := buf.ReadOctet()
	if err != nil {
		return err
	}
	sink.Emit(wire.Field{ID: "amqp.type", Value: ftype, Range: wire.Range{Off: 5, Len: 1}})
	channel, err := buf.ReadUint16()
	if err != nil {
		return err
	}
	sink.Emit(wire.Field{ID: "amqp.channel", Value: channel, Range: wire.Range{Off: 6, Len: 2}})

	if doff < 2 {
		return wire.NewErr(wire.KindTruncated, 4, fmt.Sprintf("doff %d below frame header", doff))
	}
	if err := buf.Skip(int(doff)*4 - HeaderSize); err != nil {
		return err
	}
	if buf.Remaining() == 0 {
		// Empty AMQP frames are the 1.0 heartbeat.
		sink.Emit(wire.Field{ID: "amqp.heartbeat", Value: true, Range: wire.Range{Off: 0, Len: HeaderSize}})
		return nil
	}

	if ftype != FrameAMQP && ftype != FrameSASL {
		return wire.UnknownType(5, ftype)
	}
	return decodeBody(buf, ctx, channel, sink)
}

func decodeProtoHeader(data []byte, ctx *Context, sink wire.Sink) error {
	if len(data) < HeaderSize {
		return wire.Truncated(len(data), "protocol header")
	}
	sink.Emit(wire.Field{ID: "amqp.protocol", Value: string(data[:4]), Range: wire.Range{Off: 0, Len: 4}})
	sink.Emit(wire.Field{ID: "amqp.protocol.id", Value: data[4], Range: wire.Range{Off: 4, Len: 1}})
	ver := fmt.Sprintf("%d.%d.%d", data[5], data[6], data[7])
	sink.Emit(wire.Field{ID: "amqp.protocol.version", Value: ver, Range: wire.Range{Off: 5, Len: 3}})
	switch data[4] {
	case ProtoSASL:
		ctx.Conn.SASLHeaderSeen = true
	case ProtoAMQP:
		if ctx.Conn.SASLHeaderSeen {
			// The handshake restarts with a plain header once the
			// SASL exchange settled.
			sink.Emit(wire.Field{ID: "amqp.sasl.complete", Value: true, Range: wire.Range{Off: 4, Len: 1}})
			ctx.Conn.SASLHeaderSeen = false
		}
	}
	return nil
}

// decodeBody decodes the described performative at the start of the
// frame body and, for a transfer, the message sections behind it.
func decodeBody(buf *wire.Buffer, ctx *Context, channel uint16, sink wire.Sink) error {
	start := buf.Pos()
	v, err := ReadValue(buf, ctx.depth())
	if err != nil {
		return err
	}
	desc, ok := v.(*wire.Described)
	if !ok {
		return wire.NewErr(wire.KindUnknownType, start, "frame body is not a described type")
	}
	name, hints, known := descriptorName(desc.Descriptor)
	if !known {
		sink.Emit(wire.Field{ID: "amqp.performative", Value: fmt.Sprintf("unknown(%v)", desc.Descriptor), Range: wire.Range{Off: start, Len: buf.Pos() - start}})
		return nil
	}
	sink.Emit(wire.Field{ID: "amqp.performative", Value: name, Range: wire.Range{Off: start, Len: buf.Pos() - start}})
	body := wire.Range{Off: start, Len: buf.Pos() - start}

	args, _ := desc.Value.([]any)
	emitArgs(sink, "amqp.performative.arguments."+name, hints, args, body)

	ch := ctx.Conn.Channel(channel)
	switch {
	case name == "attach":
		recordLinkAddress(ch, args)
	case name == "transfer":
		return decodeSections(buf, ctx, ch, sink)
	}
	return nil
}

// emitArgs emits the positional arguments of a described list against
// the hint names, suppressing trailing and embedded nulls.
func emitArgs(sink wire.Sink, prefix string, hints []string, args []any, r wire.Range) {
	for i, arg := range args {
		if arg == nil {
			continue
		}
		name := fmt.Sprintf("%d", i)
		if i < len(hints) {
			name = fieldName(hints[i], arg)
		}
		sink.Emit(wire.Field{ID: prefix + "." + name, Value: arg, Range: r})
	}
}

// recordLinkAddress stores the attach's target (or, failing that,
// source) address on the channel for payload topic routing.
func recordLinkAddress(ch *session.Channel, args []any) {
	// attach fields: ... source at 5, target at 6.
	for _, idx := range []int{6, 5} {
		if idx >= len(args) {
			continue
		}
		node, ok := args[idx].(*wire.Described)
		if !ok {
			continue
		}
		fields, ok := node.Value.([]any)
		if !ok || len(fields) == 0 {
			continue
		}
		if addr, ok := fields[0].(string); ok && addr != "" {
			ch.LinkAddress = addr
			return
		}
	}
}

// decodeSections walks the message sections chained behind a transfer
// until the frame is exhausted. Each section is a described type; the
// body of a data section is handed to the payload router.
func decodeSections(buf *wire.Buffer, ctx *Context, ch *session.Channel, sink wire.Sink) error {
	for buf.Remaining() > 0 {
		start := buf.Pos()
		v, err := ReadValue(buf, ctx.depth())
		if err != nil {
			return err
		}
		desc, ok := v.(*wire.Described)
		if !ok {
			return wire.NewErr(wire.KindUnknownType, start, "message section is not a described type")
		}
		name, hints, known := descriptorName(desc.Descriptor)
		if !known {
			name = fmt.Sprintf("unknown(%v)", desc.Descriptor)
		}
		r := wire.Range{Off: start, Len: buf.Pos() - start}
		sink.Emit(wire.Field{ID: "amqp.section." + name, Value: desc.Value, Range: r})
		if args, ok := desc.Value.([]any); ok && len(hints) > 0 {
			emitArgs(sink, "amqp.section."+name, hints, args, r)
		}

		if name == "properties" {
			recordContentParams(ch, desc.Value)
		}
		if name == "data" {
			if body, ok := desc.Value.([]byte); ok && ctx.Payload != nil {
				pr := wire.Range{Off: buf.Pos() - len(body), Len: len(body)}
				ctx.Payload(ch, body, pr)
			}
		}
	}
	return nil
}

// recordContentParams lifts content-type and content-encoding out of a
// properties section so body routing can use them.
func recordContentParams(ch *session.Channel, v any) {
	fields, ok := v.([]any)
	if !ok {
		return
	}
	params := session.ContentParams{}
	if len(fields) > 6 {
		if s, ok := fields[6].(wire.Symbol); ok {
			params.Type = string(s)
		}
	}
	if len(fields) > 7 {
		if s, ok := fields[7].(wire.Symbol); ok {
			params.Encoding = string(s)
		}
	}
	if params.Type != "" || params.Encoding != "" {
		ch.Content = &params
	}
}
