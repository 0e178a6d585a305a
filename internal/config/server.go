// Copyright (c) 2026 The Duplex Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package config loads the YAML configuration for the duplex-server and
// duplex-client entrypoints.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/duplexrt/duplex/internal/transport"
	"gopkg.in/yaml.v3"
)

// ServerConfig is the full configuration for cmd/duplex-server.
type ServerConfig struct {
	Listen   ListenInfo   `yaml:"listen"`
	Socket   SocketInfo   `yaml:"socket"`
	Logging  LoggingInfo  `yaml:"logging"`
	Metrics  MetricsInfo  `yaml:"metrics"`
	Shutdown ShutdownInfo `yaml:"shutdown"`
}

// ListenInfo is the server's listen address. The listener binds Port on
// all interfaces; Host is only reported in the startup log.
type ListenInfo struct {
	Host string `yaml:"host"` // default: "0.0.0.0"
	Port int    `yaml:"port"` // required
}

// SocketInfo carries per-connection socket tuning, mirroring
// transport.SocketOptions. NoDelay and KeepAlive follow YAML's normal
// bool zero-value (omitted means false); set them explicitly to enable.
type SocketInfo struct {
	NoDelay           bool          `yaml:"no_delay"`
	KeepAlive         bool          `yaml:"keep_alive"`
	KeepAliveTimeSec  int           `yaml:"keep_alive_time_seconds"`     // 0 = OS default
	KeepAliveIntvlSec int           `yaml:"keep_alive_interval_seconds"` // 0 = OS default
	SendTimeout       time.Duration `yaml:"send_timeout"`                // default: 5s, 0 = none
	ReceiveTimeout    time.Duration `yaml:"receive_timeout"`             // default: 0 (none)
}

// ToSocketOptions converts the YAML-facing struct into the transport
// package's runtime type.
func (s SocketInfo) ToSocketOptions() transport.SocketOptions {
	opts := transport.SocketOptions{
		NoDelay:          s.NoDelay,
		KeepAliveEnabled: s.KeepAlive,
		SendTimeout:      s.SendTimeout,
		ReceiveTimeout:   s.ReceiveTimeout,
	}
	if s.KeepAliveTimeSec > 0 {
		v := s.KeepAliveTimeSec
		opts.KeepAliveTimeSeconds = &v
	}
	if s.KeepAliveIntvlSec > 0 {
		v := s.KeepAliveIntvlSec
		opts.KeepAliveIntervalSeconds = &v
	}
	return opts
}

// LoggingInfo configures the shared slog.Logger.
type LoggingInfo struct {
	Level    string `yaml:"level"`     // default: "info"
	Format   string `yaml:"format"`    // default: "json"
	FilePath string `yaml:"file_path"` // default: "" (stdout only)
}

// MetricsInfo configures the Prometheus exporter's listen address.
type MetricsInfo struct {
	Enabled bool   `yaml:"enabled"` // default: false
	Listen  string `yaml:"listen"`  // default: "127.0.0.1:9847" (server), "127.0.0.1:9848" (client)
}

// ShutdownInfo bounds how long the server waits for in-flight
// server-clients to disconnect cleanly before forcing closure.
type ShutdownInfo struct {
	DrainTimeout time.Duration `yaml:"drain_timeout"` // default: 5s
}

// LoadServerConfig reads and validates the server's YAML configuration.
func LoadServerConfig(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading server config: %w", err)
	}

	var cfg ServerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating server config: %w", err)
	}

	return &cfg, nil
}

func (c *ServerConfig) validate() error {
	if c.Listen.Port <= 0 {
		return fmt.Errorf("listen.port is required")
	}
	if c.Listen.Host == "" {
		c.Listen.Host = "0.0.0.0"
	}

	c.Socket.setDefaults()
	if c.Socket.SendTimeout == 0 {
		c.Socket.SendTimeout = 5 * time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		c.Metrics.Listen = "127.0.0.1:9847"
	}

	if c.Shutdown.DrainTimeout <= 0 {
		c.Shutdown.DrainTimeout = 5 * time.Second
	}

	return nil
}

func (s *SocketInfo) setDefaults() {
	if s.KeepAlive {
		if s.KeepAliveTimeSec <= 0 {
			s.KeepAliveTimeSec = 30
		}
		if s.KeepAliveIntvlSec <= 0 {
			s.KeepAliveIntvlSec = 10
		}
	}
}
