// Copyright (C) 2026 The DSTC Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads and validates the DSTC process configuration:
// a JSON document validated against an inline JSON Schema, decoded
// into a typed Config. A .env file, if present, is loaded into the
// process environment first; Config fields are taken only from the
// JSON file and Default(), never from environment variables.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/dstc-go/dstc/pkg/log"
)

// Config is the recognized configuration surface for a dstcd process.
type Config struct {
	// NodeID is the explicit node id, or 0 for random assignment.
	NodeID uint32 `json:"node_id"`
	// MaxConnections bounds the number of tracked peers (default 32).
	MaxConnections int `json:"max_connections"`

	MulticastGroup string `json:"multicast_group"`
	MulticastPort  int    `json:"multicast_port"`
	MulticastIface string `json:"multicast_iface"`
	MulticastTTL   int    `json:"multicast_ttl"`

	ControlListenIface string `json:"control_listen_iface"`
	ControlListenPort  int    `json:"control_listen_port"`

	// LogLevel is one of: none, fatal, error, warning, info, comment, debug.
	LogLevel string `json:"log_level"`

	// NATS holds the Transport Adapter's connection details — the
	// concrete stand-in for "reliable multicast" this repository
	// ships (see pkg/transport).
	NATS NATSConfig `json:"nats"`

	// DebugListenAddr, if non-empty, starts the read-only debug HTTP
	// surface (internal/debugapi) on this address.
	DebugListenAddr string `json:"debug_listen_addr"`
}

// NATSConfig configures the NATS connection backing the Transport
// Adapter.
type NATSConfig struct {
	Address       string `json:"address"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	CredsFilePath string `json:"creds-file-path"`
}

// Default returns the configuration used when no config file is
// supplied: immediate-mode call plane on the local "dstc" group with
// 32 tracked peers.
func Default() Config {
	return Config{
		MaxConnections: 32,
		MulticastGroup: "dstc",
		MulticastPort:  4223,
		MulticastTTL:   1,
		LogLevel:       "info",
		NATS: NATSConfig{
			Address: "nats://localhost:4222",
		},
	}
}

// Load reads a .env file (if present) to seed environment variables,
// then reads and validates the JSON config file at path, returning
// the decoded Config merged onto Default(). An absent path is not an
// error; Default() is returned unchanged.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("config: .env load failed: %v", err)
	}

	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: reading %q: %w", path, err)
	}

	if err := Validate(raw); err != nil {
		return Config{}, fmt.Errorf("config: %q failed schema validation: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decoding %q: %w", path, err)
	}
	return cfg, nil
}
