// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package v091

import (
	"fmt"

	"github.com/absmach/amqptap/session"
	"github.com/absmach/amqptap/wire"
)

// Class IDs.
const (
	ClassConnection = 10
	ClassChannel    = 20
	ClassAccess     = 30
	ClassExchange   = 40
	ClassQueue      = 50
	ClassBasic      = 60
	ClassConfirm    = 85
	ClassTx         = 90
)

// Connection methods.
const (
	MethodConnectionStart     = 10
	MethodConnectionStartOk   = 11
	MethodConnectionSecure    = 20
	MethodConnectionSecureOk  = 21
	MethodConnectionTune      = 30
	MethodConnectionTuneOk    = 31
	MethodConnectionOpen      = 40
	MethodConnectionOpenOk    = 41
	MethodConnectionClose     = 50
	MethodConnectionCloseOk   = 51
	MethodConnectionBlocked   = 60
	MethodConnectionUnblocked = 61
)

// Channel methods.
const (
	MethodChannelOpen    = 10
	MethodChannelOpenOk  = 11
	MethodChannelFlow    = 20
	MethodChannelFlowOk  = 21
	MethodChannelClose   = 40
	MethodChannelCloseOk = 41
)

// Access methods.
const (
	MethodAccessRequest   = 10
	MethodAccessRequestOk = 11
)

// Exchange methods.
const (
	MethodExchangeDeclare   = 10
	MethodExchangeDeclareOk = 11
	MethodExchangeDelete    = 20
	MethodExchangeDeleteOk  = 21
	MethodExchangeBind      = 30
	MethodExchangeBindOk    = 31
	MethodExchangeUnbind    = 40
	MethodExchangeUnbindOk  = 51
)

// Queue methods.
const (
	MethodQueueDeclare   = 10
	MethodQueueDeclareOk = 11
	MethodQueueBind      = 20
	MethodQueueBindOk    = 21
	MethodQueuePurge     = 30
	MethodQueuePurgeOk   = 31
	MethodQueueDelete    = 40
	MethodQueueDeleteOk  = 41
	MethodQueueUnbind    = 50
	MethodQueueUnbindOk  = 51
)

// Basic methods.
const (
	MethodBasicQos          = 10
	MethodBasicQosOk        = 11
	MethodBasicConsume      = 20
	MethodBasicConsumeOk    = 21
	MethodBasicCancel       = 30
	MethodBasicCancelOk     = 31
	MethodBasicPublish      = 40
	MethodBasicReturn       = 50
	MethodBasicDeliver      = 60
	MethodBasicGet          = 70
	MethodBasicGetOk        = 71
	MethodBasicGetEmpty     = 72
	MethodBasicAck          = 80
	MethodBasicReject       = 90
	MethodBasicRecoverAsync = 100
	MethodBasicRecover      = 110
	MethodBasicRecoverOk    = 111
	MethodBasicNack         = 120
)

// Confirm methods (RabbitMQ extension).
const (
	MethodConfirmSelect   = 10
	MethodConfirmSelectOk = 11
)

// Tx methods.
const (
	MethodTxSelect     = 10
	MethodTxSelectOk   = 11
	MethodTxCommit     = 20
	MethodTxCommitOk   = 21
	MethodTxRollback   = 30
	MethodTxRollbackOk = 31
)

func (d *decoder) method(ctx *Context, ch *session.Channel) error {
	class, err := d.short("amqp.method.class-id")
	if err != nil {
		return err
	}
	meth, err := d.short("amqp.method.method-id")
	if err != nil {
		return err
	}

	switch class {
	case ClassConnection:
		return d.connectionMethod(meth)
	case ClassChannel:
		return d.channelMethod(meth)
	case ClassAccess:
		return d.accessMethod(meth)
	case ClassExchange:
		return d.exchangeMethod(meth)
	case ClassQueue:
		return d.queueMethod(meth)
	case ClassBasic:
		return d.basicMethod(meth, ctx, ch)
	case ClassConfirm:
		return d.confirmMethod(meth, ch)
	case ClassTx:
		return d.txMethod(meth)
	default:
		return wire.NewErr(wire.KindUnknownType, 0, fmt.Sprintf("class %d", class))
	}
}

func (d *decoder) name(s string) {
	d.sink.Emit(wire.Field{ID: "amqp.method.name", Value: s})
}

func (d *decoder) connectionMethod(meth uint16) error {
	switch meth {
	case MethodConnectionStart:
		d.name("connection.start")
		if _, err := d.octet("amqp.method.arguments.version-major"); err != nil {
			return err
		}
		if _, err := d.octet("amqp.method.arguments.version-minor"); err != nil {
			return err
		}
		if _, err := d.table("amqp.method.arguments.server-properties"); err != nil {
			return err
		}
		if _, err := d.longstr("amqp.method.arguments.mechanisms"); err != nil {
			return err
		}
		_, err := d.longstr("amqp.method.arguments.locales")
		return err
	case MethodConnectionStartOk:
		d.name("connection.start-ok")
		if _, err := d.table("amqp.method.arguments.client-properties"); err != nil {
			return err
		}
		if _, err := d.shortstr("amqp.method.arguments.mechanism"); err != nil {
			return err
		}
		if _, err := d.longstr("amqp.method.arguments.response"); err != nil {
			return err
		}
		_, err := d.shortstr("amqp.method.arguments.locale")
		return err
	case MethodConnectionSecure:
		d.name("connection.secure")
		_, err := d.longstr("amqp.method.arguments.challenge")
		return err
	case MethodConnectionSecureOk:
		d.name("connection.secure-ok")
		_, err := d.longstr("amqp.method.arguments.response")
		return err
	case MethodConnectionTune:
		d.name("connection.tune")
		return d.tuneArgs()
	case MethodConnectionTuneOk:
		d.name("connection.tune-ok")
		return d.tuneArgs()
	case MethodConnectionOpen:
		d.name("connection.open")
		if _, err := d.shortstr("amqp.method.arguments.virtual-host"); err != nil {
			return err
		}
		if _, err := d.shortstr("amqp.method.arguments.capabilities"); err != nil {
			return err
		}
		_, err := d.bits("amqp.method.arguments.insist")
		return err
	case MethodConnectionOpenOk:
		d.name("connection.open-ok")
		_, err := d.shortstr("amqp.method.arguments.known-hosts")
		return err
	case MethodConnectionClose:
		d.name("connection.close")
		return d.closeArgs()
	case MethodConnectionCloseOk:
		d.name("connection.close-ok")
		return nil
	case MethodConnectionBlocked:
		d.name("connection.blocked")
		_, err := d.shortstr("amqp.method.arguments.reason")
		return err
	case MethodConnectionUnblocked:
		d.name("connection.unblocked")
		return nil
	default:
		return wire.NewErr(wire.KindUnknownType, 0, fmt.Sprintf("connection method %d", meth))
	}
}

func (d *decoder) tuneArgs() error {
	if _, err := d.short("amqp.method.arguments.channel-max"); err != nil {
		return err
	}
	if _, err := d.long("amqp.method.arguments.frame-max"); err != nil {
		return err
	}
	_, err := d.short("amqp.method.arguments.heartbeat")
	return err
}

func (d *decoder) closeArgs() error {
	if _, err := d.short("amqp.method.arguments.reply-code"); err != nil {
		return err
	}
	if _, err := d.shortstr("amqp.method.arguments.reply-text"); err != nil {
		return err
	}
	if _, err := d.short("amqp.method.arguments.class-id"); err != nil {
		return err
	}
	_, err := d.short("amqp.method.arguments.method-id")
	return err
}

func (d *decoder) channelMethod(meth uint16) error {
	switch meth {
	case MethodChannelOpen:
		d.name("channel.open")
		_, err := d.shortstr("amqp.method.arguments.out-of-band")
		return err
	case MethodChannelOpenOk:
		d.name("channel.open-ok")
		_, err := d.longstr("amqp.method.arguments.channel-id")
		return err
	case MethodChannelFlow:
		d.name("channel.flow")
		_, err := d.bits("amqp.method.arguments.active")
		return err
	case MethodChannelFlowOk:
		d.name("channel.flow-ok")
		_, err := d.bits("amqp.method.arguments.active")
		return err
	case MethodChannelClose:
		d.name("channel.close")
		return d.closeArgs()
	case MethodChannelCloseOk:
		d.name("channel.close-ok")
		return nil
	default:
		return wire.NewErr(wire.KindUnknownType, 0, fmt.Sprintf("channel method %d", meth))
	}
}

func (d *decoder) accessMethod(meth uint16) error {
	switch meth {
	case MethodAccessRequest:
		d.name("access.request")
		if _, err := d.shortstr("amqp.method.arguments.realm"); err != nil {
			return err
		}
		_, err := d.bits(
			"amqp.method.arguments.exclusive",
			"amqp.method.arguments.passive",
			"amqp.method.arguments.active",
			"amqp.method.arguments.write",
			"amqp.method.arguments.read",
		)
		return err
	case MethodAccessRequestOk:
		d.name("access.request-ok")
		_, err := d.short("amqp.method.arguments.ticket")
		return err
	default:
		return wire.NewErr(wire.KindUnknownType, 0, fmt.Sprintf("access method %d", meth))
	}
}

func (d *decoder) exchangeMethod(meth uint16) error {
	switch meth {
	case MethodExchangeDeclare:
		d.name("exchange.declare")
		if _, err := d.short("amqp.method.arguments.ticket"); err != nil {
			return err
		}
		if _, err := d.shortstr("amqp.method.arguments.exchange"); err != nil {
			return err
		}
		if _, err := d.shortstr("amqp.method.arguments.type"); err != nil {
			return err
		}
		if _, err := d.bits(
			"amqp.method.arguments.passive",
			"amqp.method.arguments.durable",
			"amqp.method.arguments.auto-delete",
			"amqp.method.arguments.internal",
			"amqp.method.arguments.no-wait",
		); err != nil {
			return err
		}
		_, err := d.table("amqp.method.arguments.arguments")
		return err
	case MethodExchangeDeclareOk:
		d.name("exchange.declare-ok")
		return nil
	case MethodExchangeDelete:
		d.name("exchange.delete")
		if _, err := d.short("amqp.method.arguments.ticket"); err != nil {
			return err
		}
		if _, err := d.shortstr("amqp.method.arguments.exchange"); err != nil {
			return err
		}
		_, err := d.bits(
			"amqp.method.arguments.if-unused",
			"amqp.method.arguments.no-wait",
		)
		return err
	case MethodExchangeDeleteOk:
		d.name("exchange.delete-ok")
		return nil
	case MethodExchangeBind:
		d.name("exchange.bind")
		return d.exchangeBindArgs()
	case MethodExchangeBindOk:
		d.name("exchange.bind-ok")
		return nil
	case MethodExchangeUnbind:
		d.name("exchange.unbind")
		return d.exchangeBindArgs()
	case MethodExchangeUnbindOk:
		d.name("exchange.unbind-ok")
		return nil
	default:
		return wire.NewErr(wire.KindUnknownType, 0, fmt.Sprintf("exchange method %d", meth))
	}
}

func (d *decoder) exchangeBindArgs() error {
	if _, err := d.short("amqp.method.arguments.ticket"); err != nil {
		return err
	}
	if _, err := d.shortstr("amqp.method.arguments.destination"); err != nil {
		return err
	}
	if _, err := d.shortstr("amqp.method.arguments.source"); err != nil {
		return err
	}
	if _, err := d.shortstr("amqp.method.arguments.routing-key"); err != nil {
		return err
	}
	if _, err := d.bits("amqp.method.arguments.no-wait"); err != nil {
		return err
	}
	_, err := d.table("amqp.method.arguments.arguments")
	return err
}

func (d *decoder) queueMethod(meth uint16) error {
	switch meth {
	case MethodQueueDeclare:
		d.name("queue.declare")
		if _, err := d.short("amqp.method.arguments.ticket"); err != nil {
			return err
		}
		if _, err := d.shortstr("amqp.method.arguments.queue"); err != nil {
			return err
		}
		if _, err := d.bits(
			"amqp.method.arguments.passive",
			"amqp.method.arguments.durable",
			"amqp.method.arguments.exclusive",
			"amqp.method.arguments.auto-delete",
			"amqp.method.arguments.no-wait",
		); err != nil {
			return err
		}
		_, err := d.table("amqp.method.arguments.arguments")
		return err
	case MethodQueueDeclareOk:
		d.name("queue.declare-ok")
		if _, err := d.shortstr("amqp.method.arguments.queue"); err != nil {
			return err
		}
		if _, err := d.long("amqp.method.arguments.message-count"); err != nil {
			return err
		}
		_, err := d.long("amqp.method.arguments.consumer-count")
		return err
	case MethodQueueBind:
		d.name("queue.bind")
		if _, err := d.short("amqp.method.arguments.ticket"); err != nil {
			return err
		}
		if _, err := d.shortstr("amqp.method.arguments.queue"); err != nil {
			return err
		}
		if _, err := d.shortstr("amqp.method.arguments.exchange"); err != nil {
			return err
		}
		if _, err := d.shortstr("amqp.method.arguments.routing-key"); err != nil {
			return err
		}
		if _, err := d.bits("amqp.method.arguments.no-wait"); err != nil {
			return err
		}
		_, err := d.table("amqp.method.arguments.arguments")
		return err
	case MethodQueueBindOk:
		d.name("queue.bind-ok")
		return nil
	case MethodQueuePurge:
		d.name("queue.purge")
		if _, err := d.short("amqp.method.arguments.ticket"); err != nil {
			return err
		}
		if _, err := d.shortstr("amqp.method.arguments.queue"); err != nil {
			return err
		}
		_, err := d.bits("amqp.method.arguments.no-wait")
		return err
	case MethodQueuePurgeOk:
		d.name("queue.purge-ok")
		_, err := d.long("amqp.method.arguments.message-count")
		return err
	case MethodQueueDelete:
		d.name("queue.delete")
		if _, err := d.short("amqp.method.arguments.ticket"); err != nil {
			return err
		}
		if _, err := d.shortstr("amqp.method.arguments.queue"); err != nil {
			return err
		}
		_, err := d.bits(
			"amqp.method.arguments.if-unused",
			"amqp.method.arguments.if-empty",
			"amqp.method.arguments.no-wait",
		)
		return err
	case MethodQueueDeleteOk:
		d.name("queue.delete-ok")
		_, err := d.long("amqp.method.arguments.message-count")
		return err
	case MethodQueueUnbind:
		d.name("queue.unbind")
		if _, err := d.short("amqp.method.arguments.ticket"); err != nil {
			return err
		}
		if _, err := d.shortstr("amqp.method.arguments.queue"); err != nil {
			return err
		}
		if _, err := d.shortstr("amqp.method.arguments.exchange"); err != nil {
			return err
		}
		if _, err := d.shortstr("amqp.method.arguments.routing-key"); err != nil {
			return err
		}
		_, err := d.table("amqp.method.arguments.arguments")
		return err
	case MethodQueueUnbindOk:
		d.name("queue.unbind-ok")
		return nil
	default:
		return wire.NewErr(wire.KindUnknownType, 0, fmt.Sprintf("queue method %d", meth))
	}
}

func (d *decoder) basicMethod(meth uint16, ctx *Context, ch *session.Channel) error {
	switch meth {
	case MethodBasicQos:
		d.name("basic.qos")
		if _, err := d.long("amqp.method.arguments.prefetch-size"); err != nil {
			return err
		}
		if _, err := d.short("amqp.method.arguments.prefetch-count"); err != nil {
			return err
		}
		_, err := d.bits("amqp.method.arguments.global")
		return err
	case MethodBasicQosOk:
		d.name("basic.qos-ok")
		return nil
	case MethodBasicConsume:
		d.name("basic.consume")
		if _, err := d.short("amqp.method.arguments.ticket"); err != nil {
			return err
		}
		if _, err := d.shortstr("amqp.method.arguments.queue"); err != nil {
			return err
		}
		if _, err := d.shortstr("amqp.method.arguments.consumer-tag"); err != nil {
			return err
		}
		if _, err := d.bits(
			"amqp.method.arguments.no-local",
			"amqp.method.arguments.no-ack",
			"amqp.method.arguments.exclusive",
			"amqp.method.arguments.no-wait",
		); err != nil {
			return err
		}
		_, err := d.table("amqp.method.arguments.filter")
		return err
	case MethodBasicConsumeOk:
		d.name("basic.consume-ok")
		_, err := d.shortstr("amqp.method.arguments.consumer-tag")
		return err
	case MethodBasicCancel:
		d.name("basic.cancel")
		if _, err := d.shortstr("amqp.method.arguments.consumer-tag"); err != nil {
			return err
		}
		_, err := d.bits("amqp.method.arguments.no-wait")
		return err
	case MethodBasicCancelOk:
		d.name("basic.cancel-ok")
		_, err := d.shortstr("amqp.method.arguments.consumer-tag")
		return err
	case MethodBasicPublish:
		d.name("basic.publish")
		ch.PublishCount++
		d.sink.Emit(wire.Field{ID: "amqp.method.arguments.publish-number", Value: ch.PublishCount})
		if ch.Confirms {
			// Confirm-mode brokers ack publishes by ordinal.
			ch.Record(ctx.Dir, ch.PublishCount, ctx.FrameID)
		}
		if _, err := d.short("amqp.method.arguments.ticket"); err != nil {
			return err
		}
		if _, err := d.shortstr("amqp.method.arguments.exchange"); err != nil {
			return err
		}
		if _, err := d.shortstr("amqp.method.arguments.routing-key"); err != nil {
			return err
		}
		_, err := d.bits(
			"amqp.method.arguments.mandatory",
			"amqp.method.arguments.immediate",
		)
		return err
	case MethodBasicReturn:
		d.name("basic.return")
		if _, err := d.short("amqp.method.arguments.reply-code"); err != nil {
			return err
		}
		if _, err := d.shortstr("amqp.method.arguments.reply-text"); err != nil {
			return err
		}
		if _, err := d.shortstr("amqp.method.arguments.exchange"); err != nil {
			return err
		}
		_, err := d.shortstr("amqp.method.arguments.routing-key")
		return err
	case MethodBasicDeliver:
		d.name("basic.deliver")
		if _, err := d.shortstr("amqp.method.arguments.consumer-tag"); err != nil {
			return err
		}
		tag, err := d.longlong("amqp.method.arguments.delivery-tag")
		if err != nil {
			return err
		}
		ch.Record(ctx.Dir, tag, ctx.FrameID)
		if _, err := d.bits("amqp.method.arguments.redelivered"); err != nil {
			return err
		}
		if _, err := d.shortstr("amqp.method.arguments.exchange"); err != nil {
			return err
		}
		_, err = d.shortstr("amqp.method.arguments.routing-key")
		return err
	case MethodBasicGet:
		d.name("basic.get")
		if _, err := d.short("amqp.method.arguments.ticket"); err != nil {
			return err
		}
		if _, err := d.shortstr("amqp.method.arguments.queue"); err != nil {
			return err
		}
		_, err := d.bits("amqp.method.arguments.no-ack")
		return err
	case MethodBasicGetOk:
		d.name("basic.get-ok")
		tag, err := d.longlong("amqp.method.arguments.delivery-tag")
		if err != nil {
			return err
		}
		ch.Record(ctx.Dir, tag, ctx.FrameID)
		if _, err := d.bits("amqp.method.arguments.redelivered"); err != nil {
			return err
		}
		if _, err := d.shortstr("amqp.method.arguments.exchange"); err != nil {
			return err
		}
		if _, err := d.shortstr("amqp.method.arguments.routing-key"); err != nil {
			return err
		}
		_, err = d.long("amqp.method.arguments.message-count")
		return err
	case MethodBasicGetEmpty:
		d.name("basic.get-empty")
		_, err := d.shortstr("amqp.method.arguments.cluster-id")
		return err
	case MethodBasicAck:
		d.name("basic.ack")
		tag, err := d.longlong("amqp.method.arguments.delivery-tag")
		if err != nil {
			return err
		}
		flags, err := d.bits("amqp.method.arguments.multiple")
		if err != nil {
			return err
		}
		d.settle(ctx, ch, tag, flags&0x01 != 0)
		return nil
	case MethodBasicReject:
		d.name("basic.reject")
		tag, err := d.longlong("amqp.method.arguments.delivery-tag")
		if err != nil {
			return err
		}
		if _, err := d.bits("amqp.method.arguments.requeue"); err != nil {
			return err
		}
		d.settle(ctx, ch, tag, false)
		return nil
	case MethodBasicRecoverAsync:
		d.name("basic.recover-async")
		_, err := d.bits("amqp.method.arguments.requeue")
		return err
	case MethodBasicRecover:
		d.name("basic.recover")
		_, err := d.bits("amqp.method.arguments.requeue")
		return err
	case MethodBasicRecoverOk:
		d.name("basic.recover-ok")
		return nil
	case MethodBasicNack:
		d.name("basic.nack")
		tag, err := d.longlong("amqp.method.arguments.delivery-tag")
		if err != nil {
			return err
		}
		flags, err := d.bits(
			"amqp.method.arguments.multiple",
			"amqp.method.arguments.requeue",
		)
		if err != nil {
			return err
		}
		d.settle(ctx, ch, tag, flags&0x01 != 0)
		return nil
	default:
		return wire.NewErr(wire.KindUnknownType, 0, fmt.Sprintf("basic method %d", meth))
	}
}

// settle runs the delivery tracker for an ack/nack/reject and emits the
// cross-reference back-pointers for the display layer.
func (d *decoder) settle(ctx *Context, ch *session.Channel, tag uint64, multiple bool) {
	for _, dl := range ch.Settle(ctx.Dir, tag, multiple, ctx.FrameID) {
		d.sink.Emit(wire.Field{ID: "amqp.delivery.settles-frame", Value: dl.PublishFrame})
	}
}

func (d *decoder) confirmMethod(meth uint16, ch *session.Channel) error {
	switch meth {
	case MethodConfirmSelect:
		d.name("confirm.select")
		// Covers the no-wait case too; the select-ok adds nothing.
		ch.Confirms = true
		_, err := d.bits("amqp.method.arguments.no-wait")
		return err
	case MethodConfirmSelectOk:
		d.name("confirm.select-ok")
		ch.Confirms = true
		return nil
	default:
		return wire.NewErr(wire.KindUnknownType, 0, fmt.Sprintf("confirm method %d", meth))
	}
}

func (d *decoder) txMethod(meth uint16) error {
	switch meth {
	case MethodTxSelect:
		d.name("tx.select")
	case MethodTxSelectOk:
		d.name("tx.select-ok")
	case MethodTxCommit:
		d.name("tx.commit")
	case MethodTxCommitOk:
		d.name("tx.commit-ok")
	case MethodTxRollback:
		d.name("tx.rollback")
	case MethodTxRollbackOk:
		d.name("tx.rollback-ok")
	default:
		return wire.NewErr(wire.KindUnknownType, 0, fmt.Sprintf("tx method %d", meth))
	}
	return nil
}
