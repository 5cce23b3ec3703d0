// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package reassembly_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absmach/amqptap/reassembly"
	"github.com/absmach/amqptap/session"
	"github.com/absmach/amqptap/wire"
)

func frame091(ftype byte, channel uint16, payload []byte) []byte {
	frame := make([]byte, 7+len(payload)+1)
	frame[0] = ftype
	binary.BigEndian.PutUint16(frame[1:], channel)
	binary.BigEndian.PutUint32(frame[3:], uint32(len(payload)))
	copy(frame[7:], payload)
	frame[len(frame)-1] = 0xCE
	return frame
}

type captured struct {
	dir   wire.Direction
	id    uint32
	frame []byte
}

func collect(dst *[]captured) reassembly.FrameFunc {
	return func(dir wire.Direction, frameID uint32, frame []byte) error {
		cp := make([]byte, len(frame))
		copy(cp, frame)
		*dst = append(*dst, captured{dir: dir, id: frameID, frame: cp})
		return nil
	}
}

func TestFeedSplitsFrames(t *testing.T) {
	conn := session.NewConn()
	var got []captured
	s := reassembly.NewStream(conn, 1<<20, nil, collect(&got))

	hdr := []byte("AMQP\x00\x01\x00\x00")
	f1 := frame091(8, 0, nil)
	f2 := frame091(1, 1, []byte{0, 10, 0, 10, 0, 0, 0, 0, 0})

	stream := append(append(append([]byte{}, hdr...), f1...), f2...)

	// Byte-at-a-time delivery must still produce whole frames.
	for _, b := range stream {
		require.NoError(t, s.Feed(wire.DirAToB, []byte{b}))
	}

	require.Len(t, got, 3)
	assert.Equal(t, hdr, got[0].frame)
	assert.Equal(t, f1, got[1].frame)
	assert.Equal(t, f2, got[2].frame)
	assert.Equal(t, uint32(1), got[0].id)
	assert.Equal(t, uint32(3), got[2].id)
	assert.Equal(t, wire.Dialect091, conn.Dialect())
	assert.Zero(t, s.Pending(wire.DirAToB))
}

func TestFeedDirectionsIndependent(t *testing.T) {
	conn := session.NewConn()
	conn.SetDialect(wire.Dialect091)
	var got []captured
	s := reassembly.NewStream(conn, 1<<20, nil, collect(&got))

	f := frame091(8, 0, nil)
	half := len(f) / 2

	require.NoError(t, s.Feed(wire.DirAToB, f[:half]))
	require.NoError(t, s.Feed(wire.DirBToA, f))
	require.NoError(t, s.Feed(wire.DirAToB, f[half:]))

	require.Len(t, got, 2)
	assert.Equal(t, wire.DirBToA, got[0].dir)
	assert.Equal(t, wire.DirAToB, got[1].dir)
}

func TestFeedDesyncKillsDirection(t *testing.T) {
	conn := session.NewConn()
	conn.SetDialect(wire.Dialect091)
	var got []captured
	s := reassembly.NewStream(conn, 1024, nil, collect(&got))

	// Declared size blows past the frame cap.
	bad := []byte{1, 0, 1, 0x00, 0x10, 0x00, 0x00, 0xaa}
	err := s.Feed(wire.DirAToB, bad)
	require.Error(t, err)

	// The dead direction ignores further input; the other still works.
	require.NoError(t, s.Feed(wire.DirAToB, bytes.Repeat([]byte{0xaa}, 64)))
	assert.Zero(t, s.Pending(wire.DirAToB))

	require.NoError(t, s.Feed(wire.DirBToA, frame091(8, 0, nil)))
	require.Len(t, got, 1)
}
