// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package v091

import (
	"github.com/absmach/amqptap/session"
)

// Property flag bits of the basic-class content header.
const (
	FlagContentType     uint16 = 1 << 15
	FlagContentEncoding uint16 = 1 << 14
	FlagHeaders         uint16 = 1 << 13
	FlagDeliveryMode    uint16 = 1 << 12
	FlagPriority        uint16 = 1 << 11
	FlagCorrelationID   uint16 = 1 << 10
	FlagReplyTo         uint16 = 1 << 9
	FlagExpiration      uint16 = 1 << 8
	FlagMessageID       uint16 = 1 << 7
	FlagTimestamp       uint16 = 1 << 6
	FlagType            uint16 = 1 << 5
	FlagUserID          uint16 = 1 << 4
	FlagAppID           uint16 = 1 << 3
	FlagClusterID       uint16 = 1 << 2
)

// contentHeader decodes a content-header frame. The announced
// content-type and content-encoding are remembered on the channel so
// the next body frame can be routed to a payload decoder.
func (d *decoder) contentHeader(ch *session.Channel) error {
	if _, err := d.short("amqp.header.class-id"); err != nil {
		return err
	}
	if _, err := d.short("amqp.header.weight"); err != nil {
		return err
	}
	if _, err := d.longlong("amqp.header.body-size"); err != nil {
		return err
	}
	flags, err := d.short("amqp.header.property-flags")
	if err != nil {
		return err
	}

	// Recorded on the channel up front and filled in as the properties
	// decode, so a truncation later in the list cannot lose an
	// already-decoded content-type before the body frame needs it.
	params := &session.ContentParams{}
	ch.Content = params
	if flags&FlagContentType != 0 {
		if params.Type, err = d.shortstr("amqp.header.properties.content-type"); err != nil {
			return err
		}
	}
	if flags&FlagContentEncoding != 0 {
		if params.Encoding, err = d.shortstr("amqp.header.properties.content-encoding"); err != nil {
			return err
		}
	}
	if flags&FlagHeaders != 0 {
		if _, err := d.table("amqp.header.properties.headers"); err != nil {
			return err
		}
	}
	if flags&FlagDeliveryMode != 0 {
		if _, err := d.octet("amqp.header.properties.delivery-mode"); err != nil {
			return err
		}
	}
	if flags&FlagPriority != 0 {
		if _, err := d.octet("amqp.header.properties.priority"); err != nil {
			return err
		}
	}
	if flags&FlagCorrelationID != 0 {
		if _, err := d.shortstr("amqp.header.properties.correlation-id"); err != nil {
			return err
		}
	}
	if flags&FlagReplyTo != 0 {
		if _, err := d.shortstr("amqp.header.properties.reply-to"); err != nil {
			return err
		}
	}
	if flags&FlagExpiration != 0 {
		if _, err := d.shortstr("amqp.header.properties.expiration"); err != nil {
			return err
		}
	}
	if flags&FlagMessageID != 0 {
		if _, err := d.shortstr("amqp.header.properties.message-id"); err != nil {
			return err
		}
	}
	if flags&FlagTimestamp != 0 {
		if _, err := d.longlong("amqp.header.properties.timestamp"); err != nil {
			return err
		}
	}
	if flags&FlagType != 0 {
		if _, err := d.shortstr("amqp.header.properties.type"); err != nil {
			return err
		}
	}
	if flags&FlagUserID != 0 {
		if _, err := d.shortstr("amqp.header.properties.user-id"); err != nil {
			return err
		}
	}
	if flags&FlagAppID != 0 {
		if _, err := d.shortstr("amqp.header.properties.app-id"); err != nil {
			return err
		}
	}
	if flags&FlagClusterID != 0 {
		if _, err := d.shortstr("amqp.header.properties.cluster-id"); err != nil {
			return err
		}
	}
	return nil
}
