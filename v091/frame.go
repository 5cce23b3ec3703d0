// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package v091

import (
	"bytes"

	"github.com/absmach/amqptap/session"
	"github.com/absmach/amqptap/wire"
)

// Frame types.
const (
	FrameMethod    byte = 1
	FrameHeader    byte = 2
	FrameBody      byte = 3
	FrameHeartbeat byte = 8
)

// FrameEnd is the octet that ends all frames.
const FrameEnd = 0xCE

var protoTag = []byte("AMQP")

// Context carries the per-frame decode environment. Payload, when set,
// receives content-body bytes together with the channel whose content
// header most recently announced their parameters.
type Context struct {
	Conn     *session.Conn
	Dir      wire.Direction
	FrameID  uint32
	MaxDepth int
	Payload  func(ch *session.Channel, body []byte, r wire.Range)
}

func (c *Context) depth() int {
	if c.MaxDepth > 0 {
		return c.MaxDepth
	}
	return wire.DefaultMaxDepth
}

// DecodeFrame decodes one complete 0-9/0-9-1 frame into the sink and
// feeds the connection's delivery tracking.
func DecodeFrame(data []byte, ctx *Context, sink wire.Sink) error {
	if bytes.HasPrefix(data, protoTag) {
		return decodeProtoHeader(data, sink)
	}

	buf := wire.NewBuffer(data)
	ftype, err := buf.ReadOctet()
	if err != nil {
		return err
	}
	channel, err := buf.ReadUint16()
	if err != nil {
		return err
	}
	size, err := buf.ReadUint32()
	if err != nil {
		return err
	}
	sink.Emit(wire.Field{ID: "amqp.type", Value: ftype, Range: wire.Range{Off: 0, Len: 1}})
	sink.Emit(wire.Field{ID: "amqp.channel", Value: channel, Range: wire.Range{Off: 1, Len: 2}})
	sink.Emit(wire.Field{ID: "amqp.length", Value: size, Range: wire.Range{Off: 3, Len: 4}})

	payload, err := buf.Slice(int(size))
	if err != nil {
		return err
	}
	trailer, err := buf.ReadOctet()
	if err != nil {
		return err
	}
	if trailer != FrameEnd {
		return wire.NewErr(wire.KindTruncated, buf.Pos()-1, "missing frame-end octet")
	}

	ch := ctx.Conn.Channel(channel)
	d := &decoder{buf: payload, sink: sink, depth: ctx.depth()}

	switch ftype {
	case FrameMethod:
		return d.method(ctx, ch)
	case FrameHeader:
		return d.contentHeader(ch)
	case FrameBody:
		body, err := payload.ReadBytes(payload.Remaining())
		if err != nil {
			return err
		}
		r := wire.Range{Off: 7, Len: len(body)}
		sink.Emit(wire.Field{ID: "amqp.payload", Value: body, Range: r})
		if ctx.Payload != nil {
			ctx.Payload(ch, body, r)
		}
		return nil
	case FrameHeartbeat:
		sink.Emit(wire.Field{ID: "amqp.heartbeat", Value: true, Range: wire.Range{Off: 0, Len: 1}})
		return nil
	default:
		return wire.UnknownType(0, ftype)
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

// decoder wraps the method payload with sink-emitting read helpers.
type decoder struct {
	buf   *wire.Buffer
	sink  wire.Sink
	depth int
}

func (d *decoder) emit(id string, v any, off int) {
	d.sink.Emit(wire.Field{ID: id, Value: v, Range: wire.Range{Off: off, Len: d.buf.Pos() - off}})
}

func (d *decoder) octet(id string) (byte, error) {
	off := d.buf.Pos()
	v, err := d.buf.ReadOctet()
	if err != nil {
		return 0, err
	}
	d.emit(id, v, off)
	return v, nil
}

func (d *decoder) short(id string) (uint16, error) {
	off := d.buf.Pos()
	v, err := d.buf.ReadUint16()
	if err != nil {
		return 0, err
	}
	d.emit(id, v, off)
	return v, nil
}

func (d *decoder) long(id string) (uint32, error) {
	off := d.buf.Pos()
	v, err := d.buf.ReadUint32()
	if err != nil {
		return 0, err
	}
	d.emit(id, v, off)
	return v, nil
}

func (d *decoder) longlong(id string) (uint64, error) {
	off := d.buf.Pos()
	v, err := d.buf.ReadUint64()
	if err != nil {
		return 0, err
	}
	d.emit(id, v, off)
	return v, nil
}

func (d *decoder) shortstr(id string) (string, error) {
	off := d.buf.Pos()
	v, err := ReadShortStr(d.buf)
	if err != nil {
		return "", err
	}
	d.emit(id, v, off)
	return v, nil
}

func (d *decoder) longstr(id string) ([]byte, error) {
	off := d.buf.Pos()
	v, err := ReadLongStr(d.buf)
	if err != nil {
		return nil, err
	}
	d.emit(id, v, off)
	return v, nil
}

// table reads a field-table argument. A non-nil map means the table's
// size prefix was honored and the cursor already sits past it, so a
// decode failure inside is reported as a field and the remaining
// method arguments still decode.
func (d *decoder) table(id string) (map[string]any, error) {
	off := d.buf.Pos()
	v, err := ReadTable(d.buf, d.depth)
	if v == nil {
		return nil, err
	}
	d.emit(id, v, off)
	if err != nil {
		d.sink.Emit(wire.Field{ID: "amqp.error.malformed-table", Value: err.Error()})
	}
	return v, nil
}

// bits reads one octet holding up to eight packed boolean arguments,
// emitted in protocol order from the low bit up.
func (d *decoder) bits(ids ...string) (byte, error) {
	off := d.buf.Pos()
	v, err := d.buf.ReadOctet()
	if err != nil {
		return 0, err
	}
	for i, id := range ids {
		d.sink.Emit(wire.Field{ID: id, Value: v&(1<<i) != 0, Range: wire.Range{Off: off, Len: 1}})
	}
	return v, nil
}
