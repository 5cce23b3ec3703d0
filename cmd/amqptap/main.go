// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/absmach/amqptap/config"
	"github.com/absmach/amqptap/dissect"
	"github.com/absmach/amqptap/reassembly"
	"github.com/absmach/amqptap/wire"
)

func main() {
	// Parse command-line flags
	configFile := flag.String("config", "", "Path to configuration file")
	fileA := flag.String("a", "", "Raw stream dump, client-to-server direction")
	fileB := flag.String("b", "", "Raw stream dump, server-to-client direction (optional)")
	flag.Parse()

	if *fileA == "" {
		fmt.Fprintln(os.Stderr, "usage: amqptap -a stream-a.bin [-b stream-b.bin] [-config amqptap.yaml]")
		os.Exit(2)
	}

	// Load configuration
	cfg := config.DefaultConfig()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			slog.Error("Failed to load configuration", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Setup logging
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	registry, err := cfg.BuildRegistry()
	if err != nil {
		logger.Error("Failed to build payload registry", "error", err)
		os.Exit(1)
	}

	diss := dissect.New(dissect.Config{
		Logger:   logger,
		Payloads: registry,
		MaxDepth: cfg.Limits.MaxDepth,
	})
	conn := diss.Conn("cli")

	stream := reassembly.NewStream(conn, cfg.Limits.MaxFrameSize, logger,
		func(dir wire.Direction, frameID uint32, frame []byte) error {
			sink := wire.SinkFunc(func(f wire.Field) {
				fmt.Printf("frame=%d dir=%s %s=%v [%d:%d]\n",
					frameID, dir, f.ID, f.Value, f.Range.Off, f.Range.Len)
			})
			if err := diss.DecodeFrame(conn, dir, frameID, frame, sink); err != nil {
				logger.Warn("Frame decode failed", "frame", frameID, "dir", dir.String(), "error", err)
			}
			return nil
		})

	if err := feedFile(stream, wire.DirAToB, *fileA); err != nil {
		logger.Error("Failed to process stream", "file", *fileA, "error", err)
		os.Exit(1)
	}
	if *fileB != "" {
		if err := feedFile(stream, wire.DirBToA, *fileB); err != nil {
			logger.Error("Failed to process stream", "file", *fileB, "error", err)
			os.Exit(1)
		}
	}

	for _, dir := range []wire.Direction{wire.DirAToB, wire.DirBToA} {
		if n := stream.Pending(dir); n > 0 {
			logger.Warn("Trailing bytes without a complete frame", "dir", dir.String(), "bytes", n)
		}
	}
}

// feedFile pushes one direction's dump through the reassembler in
// chunks, the way a capture source would.
func feedFile(stream *reassembly.Stream, dir wire.Direction, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read stream dump: %w", err)
	}
	const chunk = 4096
	for off := 0; off < len(data); off += chunk {
		end := off + chunk
		if end > len(data) {
			end = len(data)
		}
		if err := stream.Feed(dir, data[off:end]); err != nil {
			return err
		}
	}
	return nil
}
