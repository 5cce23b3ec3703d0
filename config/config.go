// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package config loads and validates the YAML configuration for the
// dissection pipeline.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/absmach/amqptap/payload"
)

// Config holds all configuration for the dissection pipeline.
type Config struct {
	Log      LogConfig     `yaml:"log"`
	Limits   LimitsConfig  `yaml:"limits"`
	Payloads []PayloadRule `yaml:"payloads"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", or "error"
}

// LimitsConfig bounds resource use on malformed or adversarial input.
type LimitsConfig struct {
	// Maximum composite nesting depth per frame
	MaxDepth int `yaml:"max_depth"`

	// Maximum accepted declared frame length in bytes
	MaxFrameSize int `yaml:"max_frame_size"`
}

// PayloadRule maps message payloads to a named decoder, either by topic
// pattern or by MIME content type.
type PayloadRule struct {
	// Topic pattern; mutually exclusive with ContentType
	Pattern string `yaml:"pattern"`
	Mode    string `yaml:"mode"` // "equal", "contains", "prefix", "suffix", "regex"

	// MIME content type, e.g. "application/json"
	ContentType string `yaml:"content_type"`

	Decoder string `yaml:"decoder"` // "json", "text", or "raw"
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Log:    LogConfig{Level: "info"},
		Limits: LimitsConfig{MaxDepth: 32, MaxFrameSize: 1 << 20},
		Payloads: []PayloadRule{
			{ContentType: "application/json", Decoder: "json"},
			{ContentType: "text/plain", Decoder: "text"},
		},
	}
}

// Load reads configuration from a YAML file, applying defaults for
// missing fields.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	if c.Limits.MaxDepth <= 0 {
		return fmt.Errorf("limits.max_depth must be positive, got %d", c.Limits.MaxDepth)
	}
	if c.Limits.MaxFrameSize < 8 {
		return fmt.Errorf("limits.max_frame_size must be at least 8, got %d", c.Limits.MaxFrameSize)
	}
	for i, rule := range c.Payloads {
		if err := rule.validate(); err != nil {
			return fmt.Errorf("payloads[%d]: %w", i, err)
		}
	}
	return nil
}

func (r PayloadRule) validate() error {
	if (r.Pattern == "") == (r.ContentType == "") {
		return fmt.Errorf("exactly one of pattern or content_type must be set")
	}
	if _, ok := payload.Builtin(r.Decoder); !ok {
		return fmt.Errorf("unknown decoder %q", r.Decoder)
	}
	if r.Pattern != "" {
		mode, err := payload.ParseMode(r.Mode)
		if err != nil {
			return err
		}
		if mode == payload.ModeRegex {
			if _, err := regexp.Compile(r.Pattern); err != nil {
				return fmt.Errorf("compile pattern %q: %w", r.Pattern, err)
			}
		}
	}
	return nil
}

// SlogLevel maps the configured level string onto slog.
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// BuildRegistry converts the payload rules into a routing registry.
func (c *Config) BuildRegistry() (*payload.Registry, error) {
	reg := payload.NewRegistry()
	for i, rule := range c.Payloads {
		fn, ok := payload.Builtin(rule.Decoder)
		if !ok {
			return nil, fmt.Errorf("payloads[%d]: unknown decoder %q", i, rule.Decoder)
		}
		if rule.ContentType != "" {
			reg.RegisterContentType(rule.ContentType, rule.Decoder, fn)
			continue
		}
		mode, err := payload.ParseMode(rule.Mode)
		if err != nil {
			return nil, fmt.Errorf("payloads[%d]: %w", i, err)
		}
		if err := reg.RegisterTopic(rule.Pattern, mode, rule.Decoder, fn); err != nil {
			return nil, fmt.Errorf("payloads[%d]: %w", i, err)
		}
	}
	return reg, nil
}
