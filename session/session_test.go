// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absmach/amqptap/wire"
)

func TestDialectPinning(t *testing.T) {
	c := NewConn()
	assert.Equal(t, wire.DialectUnknown, c.Dialect())

	c.SetDialect(wire.Dialect091)
	assert.Equal(t, wire.Dialect091, c.Dialect())

	// Later resolutions never override the pinned value.
	c.SetDialect(wire.Dialect10)
	assert.Equal(t, wire.Dialect091, c.Dialect())
}

func TestChannelLazyCreation(t *testing.T) {
	c := NewConn()
	ch := c.Channel(7)
	require.NotNil(t, ch)
	assert.Equal(t, uint16(7), ch.Number)
	assert.Same(t, ch, c.Channel(7))
}

func TestSettleSingle(t *testing.T) {
	ch := &Channel{Number: 1}
	ch.Record(wire.DirAToB, 5, 10)

	acked := ch.Settle(wire.DirBToA, 5, false, 11)
	require.Len(t, acked, 1)
	assert.Equal(t, uint64(5), acked[0].Tag)
	assert.Equal(t, uint32(10), acked[0].PublishFrame)
	assert.Equal(t, uint32(11), acked[0].AckFrame)
	assert.Empty(t, ch.Pending(wire.DirAToB))
}

func TestSettleMultiple(t *testing.T) {
	ch := &Channel{Number: 1}
	const n = 8
	for tag := uint64(1); tag <= n; tag++ {
		ch.Record(wire.DirAToB, tag, uint32(tag))
	}

	acked := ch.Settle(wire.DirBToA, n, true, 100)
	assert.Len(t, acked, n)
	assert.Empty(t, ch.Pending(wire.DirAToB))
	for _, d := range acked {
		assert.Equal(t, uint32(100), d.AckFrame)
	}
}

func TestSettleMultiplePartial(t *testing.T) {
	ch := &Channel{Number: 1}
	for tag := uint64(1); tag <= 5; tag++ {
		ch.Record(wire.DirAToB, tag, uint32(tag))
	}

	// Settling tag 3 cumulatively leaves only the newer 4 and 5.
	acked := ch.Settle(wire.DirBToA, 3, true, 50)
	assert.Len(t, acked, 3)

	left := ch.Pending(wire.DirAToB)
	require.Len(t, left, 2)
	assert.Equal(t, uint64(5), left[0].Tag)
	assert.Equal(t, uint64(4), left[1].Tag)
}

func TestSettleWrongDirection(t *testing.T) {
	ch := &Channel{Number: 1}
	ch.Record(wire.DirAToB, 5, 10)

	// An ack on the same direction as the publish must never match.
	assert.Empty(t, ch.Settle(wire.DirAToB, 5, false, 11))
	assert.Len(t, ch.Pending(wire.DirAToB), 1)

	// The reverse direction matches.
	assert.Len(t, ch.Settle(wire.DirBToA, 5, false, 11), 1)
}

func TestSettleUnmatchedTag(t *testing.T) {
	ch := &Channel{Number: 1}
	ch.Record(wire.DirAToB, 1, 10)

	// Unknown tags are dropped silently: the publish may be outside
	// the capture window.
	assert.Empty(t, ch.Settle(wire.DirBToA, 99, false, 11))
	assert.Len(t, ch.Pending(wire.DirAToB), 1)
}

func TestTagReuseMatchesNewest(t *testing.T) {
	ch := &Channel{Number: 1}
	ch.Record(wire.DirAToB, 1, 10)
	ch.Record(wire.DirAToB, 1, 20)

	acked := ch.Settle(wire.DirBToA, 1, false, 30)
	require.Len(t, acked, 1)
	assert.Equal(t, uint32(20), acked[0].PublishFrame)

	left := ch.Pending(wire.DirAToB)
	require.Len(t, left, 1)
	assert.Equal(t, uint32(10), left[0].PublishFrame)
}

func TestDirectionsIndependent(t *testing.T) {
	ch := &Channel{Number: 1}
	ch.Record(wire.DirAToB, 1, 10)
	ch.Record(wire.DirBToA, 1, 11)

	acked := ch.Settle(wire.DirBToA, 1, false, 12)
	require.Len(t, acked, 1)
	assert.Equal(t, uint32(10), acked[0].PublishFrame)
	assert.Len(t, ch.Pending(wire.DirBToA), 1)
}
