// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package session keeps the long-lived per-connection decode state:
// the resolved dialect, the lazily built channel map and the in-flight
// delivery lists used to match acknowledgments back to publishes.
package session

import (
	"github.com/absmach/amqptap/wire"
)

// ContentParams holds the content-type and content-encoding most
// recently announced by a content header on a channel. The next body
// frame on the channel is routed through them.
type ContentParams struct {
	Type     string
	Encoding string
}

// Conn is the state for one transport connection. It exclusively owns
// its channel map; channels are created on first reference and live as
// long as the connection. Conn is not safe for concurrent use: frames
// of one connection must be processed in arrival order on one
// goroutine. Distinct connections are fully independent.
type Conn struct {
	dialect  wire.Dialect
	channels map[uint16]*Channel

	// SASLHeaderSeen is set while a 1.0 SASL exchange is in progress:
	// raised by the SASL protocol header, cleared by the plain AMQP
	// header that restarts the handshake afterwards.
	SASLHeaderSeen bool
}

// NewConn creates an empty connection with the dialect unresolved.
func NewConn() *Conn {
	return &Conn{channels: make(map[uint16]*Channel)}
}

// Dialect returns the resolved dialect, or DialectUnknown.
func (c *Conn) Dialect() wire.Dialect {
	return c.dialect
}

// SetDialect pins the dialect. The first resolution wins; later calls
// are ignored so re-running detection is idempotent and a re-dissection
// pass reuses the stored value.
func (c *Conn) SetDialect(d wire.Dialect) {
	if c.dialect == wire.DialectUnknown {
		c.dialect = d
	}
}

// Channel returns the state for a channel number, creating it on first
// reference.
func (c *Conn) Channel(num uint16) *Channel {
	ch, ok := c.channels[num]
	if !ok {
		ch = &Channel{Number: num}
		c.channels[num] = ch
	}
	return ch
}

// Channel is the per-channel decode state.
type Channel struct {
	Number uint16

	// Confirms is set once confirm.select is seen and never unset.
	Confirms bool

	// PublishCount counts basic.publish frames on this channel. In
	// confirm mode the broker acknowledges publishes by this ordinal,
	// so it doubles as the delivery tag of an outgoing publish.
	PublishCount uint64

	// Content is the most recent content-header announcement, nil
	// until the first content header arrives on this channel.
	Content *ContentParams

	// LinkAddress is the source or target address of the most recent
	// 1.0 attach on this channel. Payload routing uses it as the topic.
	LinkAddress string

	pending [2][]*Delivery
}

// Delivery is one message transfer awaiting acknowledgment. Tags are
// unique only within one direction of one channel.
type Delivery struct {
	Tag          uint64
	PublishFrame uint32
	AckFrame     uint32
}

// Record notes an unacknowledged delivery observed on dir. Newest
// deliveries sit at the front so delivery-tag reuse on a long-lived
// channel resolves to the most recent transfer.
func (ch *Channel) Record(dir wire.Direction, tag uint64, frameID uint32) {
	ch.pending[dir] = append(ch.pending[dir], nil)
	copy(ch.pending[dir][1:], ch.pending[dir])
	ch.pending[dir][0] = &Delivery{Tag: tag, PublishFrame: frameID}
}

// Pending returns the unacknowledged deliveries recorded on dir,
// newest first.
func (ch *Channel) Pending(dir wire.Direction) []*Delivery {
	return ch.pending[dir]
}

// Settle matches an ack/nack/reject observed on ackDir against the
// reverse direction's pending list, because acknowledgments travel
// opposite to the delivery they settle. With multiple set, every
// delivery older than the matched tag is settled too, matched tag
// inclusive. Settled deliveries are stamped with frameID, unlinked from
// pending and returned for the display layer; callers consume the
// result immediately and must not retain it across frames. A tag that
// matches nothing returns an empty result rather than an error: the
// publish may predate the capture window.
func (ch *Channel) Settle(ackDir wire.Direction, tag uint64, multiple bool, frameID uint32) []*Delivery {
	dir := ackDir.Reverse()
	list := ch.pending[dir]

	match := -1
	for i, d := range list {
		if d.Tag == tag {
			match = i
			break
		}
	}
	if match < 0 {
		return nil
	}

	var acked []*Delivery
	if multiple {
		acked = list[match:]
		ch.pending[dir] = list[:match]
	} else {
		acked = []*Delivery{list[match]}
		ch.pending[dir] = append(list[:match], list[match+1:]...)
	}
	for _, d := range acked {
		d.AckFrame = frameID
	}
	return acked
}
