// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package payload routes decoded message bodies to sub-decoders: by
// topic pattern for 1.0 data sections and by MIME content type for 0-9
// content bodies, with content-encoding decompression in front.
package payload

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// MatchMode selects how a registered topic pattern is compared.
type MatchMode uint8

const (
	ModeEqual MatchMode = iota
	ModeContains
	ModePrefix
	ModeSuffix
	ModeRegex
)

// ParseMode maps a config string to a MatchMode.
func ParseMode(s string) (MatchMode, error) {
	switch s {
	case "equal":
		return ModeEqual, nil
	case "contains":
		return ModeContains, nil
	case "prefix":
		return ModePrefix, nil
	case "suffix":
		return ModeSuffix, nil
	case "regex":
		return ModeRegex, nil
	default:
		return 0, fmt.Errorf("unknown match mode %q", s)
	}
}

// String returns the config spelling of the mode.
func (m MatchMode) String() string {
	switch m {
	case ModeEqual:
		return "equal"
	case ModeContains:
		return "contains"
	case ModePrefix:
		return "prefix"
	case ModeSuffix:
		return "suffix"
	case ModeRegex:
		return "regex"
	default:
		return "unknown"
	}
}

// DecodeFunc turns a raw body into a display value.
type DecodeFunc func(body []byte) (any, error)

type topicRule struct {
	mode    MatchMode
	pattern string
	re      *regexp.Regexp
	name    string
	fn      DecodeFunc
}

// Registry holds topic rules in registration order plus a MIME
// content-type table. First matching topic rule wins; no match means
// the body stays raw.
type Registry struct {
	topics []topicRule
	mimes  map[string]namedDecoder
}

type namedDecoder struct {
	name string
	fn   DecodeFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{mimes: make(map[string]namedDecoder)}
}

// RegisterTopic appends a topic rule. Regex patterns are compiled here
// so a bad pattern fails at registration, not per frame.
func (r *Registry) RegisterTopic(pattern string, mode MatchMode, name string, fn DecodeFunc) error {
	rule := topicRule{mode: mode, pattern: pattern, name: name, fn: fn}
	if mode == ModeRegex {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("compile topic pattern %q: %w", pattern, err)
		}
		rule.re = re
	}
	r.topics = append(r.topics, rule)
	return nil
}

// RegisterContentType binds a MIME type to a decoder. The lookup key is
// the media type without parameters, lowercased.
func (r *Registry) RegisterContentType(mime, name string, fn DecodeFunc) {
	r.mimes[normalizeMIME(mime)] = namedDecoder{name: name, fn: fn}
}

// ForTopic finds the first rule matching topic in registration order.
func (r *Registry) ForTopic(topic string) (string, DecodeFunc, bool) {
	for _, rule := range r.topics {
		if rule.matches(topic) {
			return rule.name, rule.fn, true
		}
	}
	return "", nil, false
}

// ForContentType finds the decoder for a content-type string as seen on
// the wire, ignoring any parameters after a semicolon.
func (r *Registry) ForContentType(ct string) (string, DecodeFunc, bool) {
	d, ok := r.mimes[normalizeMIME(ct)]
	if !ok {
		return "", nil, false
	}
	return d.name, d.fn, true
}

func (t topicRule) matches(topic string) bool {
	switch t.mode {
	case ModeEqual:
		return topic == t.pattern
	case ModeContains:
		return strings.Contains(topic, t.pattern)
	case ModePrefix:
		return strings.HasPrefix(topic, t.pattern)
	case ModeSuffix:
		return strings.HasSuffix(topic, t.pattern)
	case ModeRegex:
		return t.re.MatchString(topic)
	default:
		return false
	}
}

func normalizeMIME(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// Builtin returns one of the named decoders usable from configuration.
func Builtin(name string) (DecodeFunc, bool) {
	switch name {
	case "json":
		return decodeJSON, true
	case "text":
		return decodeText, true
	case "raw":
		return decodeRaw, true
	default:
		return nil, false
	}
}

func decodeJSON(body []byte) (any, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("decode json body: %w", err)
	}
	return v, nil
}

func decodeText(body []byte) (any, error) {
	return string(body), nil
}

func decodeRaw(body []byte) (any, error) {
	return body, nil
}
