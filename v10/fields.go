// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package v10

import "github.com/absmach/amqptap/wire"

// Descriptor codes for performatives, SASL frames, message sections and
// the composite types nested inside them.
const (
	DescOpen        uint64 = 0x10
	DescBegin       uint64 = 0x11
	DescAttach      uint64 = 0x12
	DescFlow        uint64 = 0x13
	DescTransfer    uint64 = 0x14
	DescDisposition uint64 = 0x15
	DescDetach      uint64 = 0x16
	DescEnd         uint64 = 0x17
	DescClose       uint64 = 0x18

	DescError    uint64 = 0x1d
	DescReceived uint64 = 0x23
	DescAccepted uint64 = 0x24
	DescRejected uint64 = 0x25
	DescReleased uint64 = 0x26
	DescModified uint64 = 0x27
	DescSource   uint64 = 0x28
	DescTarget   uint64 = 0x29

	DescSASLMechanisms uint64 = 0x40
	DescSASLInit       uint64 = 0x41
	DescSASLChallenge  uint64 = 0x42
	DescSASLResponse   uint64 = 0x43
	DescSASLOutcome    uint64 = 0x44

	DescHeader              uint64 = 0x70
	DescDeliveryAnnotations uint64 = 0x71
	DescMessageAnnotations  uint64 = 0x72
	DescProperties          uint64 = 0x73
	DescApplicationProps    uint64 = 0x74
	DescData                uint64 = 0x75
	DescAMQPSequence        uint64 = 0x76
	DescAMQPValue           uint64 = 0x77
	DescFooter              uint64 = 0x78
)

// descriptorSpec names a described type and, for list-bodied ones, its
// positional child fields.
type descriptorSpec struct {
	name   string
	fields []string
}

var descriptorSpecs = map[uint64]descriptorSpec{
	DescOpen: {"open", []string{
		"container-id", "hostname", "max-frame-size", "channel-max",
		"idle-time-out", "outgoing-locales", "incoming-locales",
		"offered-capabilities", "desired-capabilities", "properties",
	}},
	DescBegin: {"begin", []string{
		"remote-channel", "next-outgoing-id", "incoming-window",
		"outgoing-window", "handle-max", "offered-capabilities",
		"desired-capabilities", "properties",
	}},
	DescAttach: {"attach", []string{
		"name", "handle", "role", "snd-settle-mode", "rcv-settle-mode",
		"source", "target", "unsettled", "incomplete-unsettled",
		"initial-delivery-count", "max-message-size",
		"offered-capabilities", "desired-capabilities", "properties",
	}},
	DescFlow: {"flow", []string{
		"next-incoming-id", "incoming-window", "next-outgoing-id",
		"outgoing-window", "handle", "delivery-count", "link-credit",
		"available", "drain", "echo", "properties",
	}},
	DescTransfer: {"transfer", []string{
		"handle", "delivery-id", "delivery-tag", "message-format",
		"settled", "more", "rcv-settle-mode", "state", "resume",
		"aborted", "batchable",
	}},
	DescDisposition: {"disposition", []string{
		"role", "first", "last", "settled", "state", "batchable",
	}},
	DescDetach: {"detach", []string{"handle", "closed", "error"}},
	DescEnd:    {"end", []string{"error"}},
	DescClose:  {"close", []string{"error"}},

	DescError:    {"error", []string{"condition", "description", "info"}},
	DescReceived: {"received", []string{"section-number", "section-offset"}},
	DescAccepted: {"accepted", nil},
	DescRejected: {"rejected", []string{"error"}},
	DescReleased: {"released", nil},
	DescModified: {"modified", []string{
		"delivery-failed", "undeliverable-here", "message-annotations",
	}},
	DescSource: {"source", []string{
		"address", "durable", "expiry-policy", "timeout", "dynamic",
		"dynamic-node-properties", "distribution-mode", "filter",
		"default-outcome", "outcomes", "capabilities",
	}},
	DescTarget: {"target", []string{
		"address", "durable", "expiry-policy", "timeout", "dynamic",
		"dynamic-node-properties", "capabilities",
	}},

	DescSASLMechanisms: {"sasl.mechanisms", []string{"sasl-server-mechanisms"}},
	DescSASLInit:       {"sasl.init", []string{"mechanism", "initial-response", "hostname"}},
	DescSASLChallenge:  {"sasl.challenge", []string{"challenge"}},
	DescSASLResponse:   {"sasl.response", []string{"response"}},
	DescSASLOutcome:    {"sasl.outcome", []string{"code", "additional-data"}},

	DescHeader: {"header", []string{
		"durable", "priority", "ttl", "first-acquirer", "delivery-count",
	}},
	DescDeliveryAnnotations: {"delivery-annotations", nil},
	DescMessageAnnotations:  {"message-annotations", nil},
	DescProperties: {"properties", []string{
		"message-id", "user-id", "to", "subject", "reply-to",
		"correlation-id", "content-type", "content-encoding",
		"absolute-expiry-time", "creation-time", "group-id",
		"group-sequence", "reply-to-group-id",
	}},
	DescApplicationProps: {"application-properties", nil},
	DescData:             {"data", nil},
	DescAMQPSequence:     {"amqp-sequence", nil},
	DescAMQPValue:        {"amqp-value", nil},
	DescFooter:           {"footer", nil},
}

// synonymFields maps field names that admit several wire types to a
// per-kind suffix, so a message-id carried as a uuid and one carried as
// a string surface under distinct ids.
var synonymFields = map[string]map[Kind]string{
	"message-id": {
		KindUint:   "uint64",
		KindUUID:   "uuid",
		KindBinary: "binary",
		KindString: "string",
	},
	"correlation-id": {
		KindUint:   "uint64",
		KindUUID:   "uuid",
		KindBinary: "binary",
		KindString: "string",
	},
}

// fieldName resolves the emitted name for one positional field,
// applying the synonym table when the field admits several types.
func fieldName(base string, value any) string {
	byKind, ok := synonymFields[base]
	if !ok {
		return base
	}
	suffix, ok := byKind[KindOf(value)]
	if !ok {
		return base
	}
	return base + "." + suffix
}

// descriptorName returns the display name for a decoded descriptor,
// which arrives either as a ulong code or a symbol.
func descriptorName(desc any) (string, []string, bool) {
	switch d := desc.(type) {
	case uint64:
		if spec, ok := descriptorSpecs[d]; ok {
			return spec.name, spec.fields, true
		}
	case uint32:
		if spec, ok := descriptorSpecs[uint64(d)]; ok {
			return spec.name, spec.fields, true
		}
	case wire.Symbol:
		for _, spec := range descriptorSpecs {
			if "amqp:"+spec.name+":list" == string(d) || "amqp:"+spec.name+":map" == string(d) {
				return spec.name, spec.fields, true
			}
		}
	}
	return "", nil, false
}
