// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package dissect

import (
	"fmt"
	"log/slog"

	"github.com/absmach/amqptap/payload"
	"github.com/absmach/amqptap/session"
	"github.com/absmach/amqptap/v010"
	"github.com/absmach/amqptap/v091"
	"github.com/absmach/amqptap/v10"
	"github.com/absmach/amqptap/wire"
)

// Config carries the dissector dependencies.
type Config struct {
	Logger   *slog.Logger
	Payloads *payload.Registry
	MaxDepth int
}

// Dissector owns the per-connection state store and drives the three
// dialect decoders. Frames of one connection must arrive in order on
// one goroutine; distinct connections are independent.
type Dissector struct {
	log      *slog.Logger
	payloads *payload.Registry
	maxDepth int
	conns    map[string]*session.Conn
}

// New builds a Dissector, defaulting the logger, registry and depth
// budget when unset.
func New(cfg Config) *Dissector {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Payloads == nil {
		cfg.Payloads = payload.NewRegistry()
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = wire.DefaultMaxDepth
	}
	return &Dissector{
		log:      cfg.Logger,
		payloads: cfg.Payloads,
		maxDepth: cfg.MaxDepth,
		conns:    make(map[string]*session.Conn),
	}
}

// Conn returns the connection state for key, creating it on first use.
func (d *Dissector) Conn(key string) *session.Conn {
	conn, ok := d.conns[key]
	if !ok {
		conn = session.NewConn()
		d.conns[key] = conn
	}
	return conn
}

// DecodeFrame decodes one complete frame, resolving the dialect first
// if the connection has none pinned yet.
func (d *Dissector) DecodeFrame(conn *session.Conn, dir wire.Direction, frameID uint32, frame []byte, sink wire.Sink) error {
	if conn.Dialect() == wire.DialectUnknown {
		conn.SetDialect(DetectDialect(frame))
	}

	switch conn.Dialect() {
	case wire.Dialect091:
		ctx := &v091.Context{
			Conn:     conn,
			Dir:      dir,
			FrameID:  frameID,
			MaxDepth: d.maxDepth,
			Payload: func(ch *session.Channel, body []byte, r wire.Range) {
				d.routeContentBody(ch, body, r, sink, frameID)
			},
		}
		return v091.DecodeFrame(frame, ctx, sink)
	case wire.Dialect010:
		ctx := &v010.Context{Conn: conn, Dir: dir, FrameID: frameID, MaxDepth: d.maxDepth}
		return v010.DecodeFrame(frame, ctx, sink)
	case wire.Dialect10:
		ctx := &v10.Context{
			Conn:     conn,
			Dir:      dir,
			FrameID:  frameID,
			MaxDepth: d.maxDepth,
			Payload: func(ch *session.Channel, body []byte, r wire.Range) {
				d.routeDataSection(ch, body, r, sink, frameID)
			},
		}
		return v10.DecodeFrame(frame, ctx, sink)
	default:
		return fmt.Errorf("frame %d: dialect undetermined from %d bytes", frameID, len(frame))
	}
}

// routeContentBody handles a 0-9 content-body chunk: undo the channel's
// announced content encoding, then route by content type.
func (d *Dissector) routeContentBody(ch *session.Channel, body []byte, r wire.Range, sink wire.Sink, frameID uint32) {
	body = d.decodeEncoding(ch, body, frameID)

	if ch.Content != nil && ch.Content.Type != "" {
		if name, fn, ok := d.payloads.ForContentType(ch.Content.Type); ok {
			d.emitDecoded(sink, name, fn, body, r, frameID)
			return
		}
	}
	sink.Emit(wire.Field{ID: "amqp.payload.raw", Value: body, Range: r})
}

// routeDataSection handles a 1.0 data section body: undo encoding, then
// route by the channel's link address through the topic rules.
func (d *Dissector) routeDataSection(ch *session.Channel, body []byte, r wire.Range, sink wire.Sink, frameID uint32) {
	body = d.decodeEncoding(ch, body, frameID)

	if ch.LinkAddress != "" {
		if name, fn, ok := d.payloads.ForTopic(ch.LinkAddress); ok {
			d.emitDecoded(sink, name, fn, body, r, frameID)
			return
		}
	}
	sink.Emit(wire.Field{ID: "amqp.payload.raw", Value: body, Range: r})
}

func (d *Dissector) decodeEncoding(ch *session.Channel, body []byte, frameID uint32) []byte {
	if ch.Content == nil || ch.Content.Encoding == "" {
		return body
	}
	out, err := payload.DecodeEncoding(ch.Content.Encoding, body)
	if err != nil {
		d.log.Warn("content encoding decode failed",
			"frame", frameID, "encoding", ch.Content.Encoding, "err", err)
	}
	return out
}

func (d *Dissector) emitDecoded(sink wire.Sink, name string, fn payload.DecodeFunc, body []byte, r wire.Range, frameID uint32) {
	v, err := fn(body)
	if err != nil {
		d.log.Warn("payload decode failed", "frame", frameID, "decoder", name, "err", err)
		sink.Emit(wire.Field{ID: "amqp.payload.raw", Value: body, Range: r})
		return
	}
	sink.Emit(wire.Field{ID: "amqp.payload." + name, Value: v, Range: r})
}
