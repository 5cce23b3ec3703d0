// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package reassembly splits a connection's raw byte stream into whole
// frames. It buffers each direction independently, asks the framer how
// long the next frame is and delivers exactly one complete frame per
// callback. Frame ids are assigned in delivery order across both
// directions.
package reassembly

import (
	"fmt"
	"log/slog"

	"github.com/absmach/amqptap/dissect"
	"github.com/absmach/amqptap/session"
	"github.com/absmach/amqptap/wire"
)

// FrameFunc receives one complete frame.
type FrameFunc func(dir wire.Direction, frameID uint32, frame []byte) error

// Stream reassembles both directions of one connection.
type Stream struct {
	conn     *session.Conn
	maxFrame int
	log      *slog.Logger
	deliver  FrameFunc

	bufs    [2][]byte
	dead    [2]bool
	frameID uint32
}

// NewStream builds a reassembler for conn. maxFrame bounds the declared
// frame length; a declared length outside [MinPrefix, maxFrame] is
// treated as stream desynchronization.
func NewStream(conn *session.Conn, maxFrame int, log *slog.Logger, deliver FrameFunc) *Stream {
	if log == nil {
		log = slog.Default()
	}
	if maxFrame < dissect.MinPrefix {
		maxFrame = 1 << 20
	}
	return &Stream{conn: conn, maxFrame: maxFrame, log: log, deliver: deliver}
}

// Feed appends data to dir's buffer and delivers every complete frame
// now available. A direction that desynchronized stays dead for the
// rest of the connection; feeding it is a no-op.
func (s *Stream) Feed(dir wire.Direction, data []byte) error {
	if s.dead[dir] {
		return nil
	}
	s.bufs[dir] = append(s.bufs[dir], data...)

	for {
		buf := s.bufs[dir]
		if len(buf) < dissect.MinPrefix {
			return nil
		}
		if s.conn.Dialect() == wire.DialectUnknown {
			s.conn.SetDialect(dissect.DetectDialect(buf))
		}
		n := dissect.FrameLen(s.conn.Dialect(), buf)
		if n < dissect.MinPrefix || n > s.maxFrame {
			s.dead[dir] = true
			s.bufs[dir] = nil
			s.log.Warn("stream desynchronized, dropping direction",
				"dir", dir.String(), "declared_len", n)
			return fmt.Errorf("impossible frame length %d on %s", n, dir)
		}
		if len(buf) < n {
			return nil
		}

		s.frameID++
		frame := buf[:n]
		s.bufs[dir] = buf[n:]
		if err := s.deliver(dir, s.frameID, frame); err != nil {
			return err
		}
	}
}

// Pending reports how many buffered bytes dir still holds, for
// end-of-input diagnostics.
func (s *Stream) Pending(dir wire.Direction) int {
	return len(s.bufs[dir])
}
