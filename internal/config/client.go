// Copyright (c) 2026 The Duplex Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ClientConfig is the full configuration for cmd/duplex-client.
type ClientConfig struct {
	Server    ServerAddr    `yaml:"server"`
	Socket    SocketInfo    `yaml:"socket"`
	Ping      PingInfo      `yaml:"ping"`
	Reconnect ReconnectInfo `yaml:"reconnect"`
	Logging   LoggingInfo   `yaml:"logging"`
	Metrics   MetricsInfo   `yaml:"metrics"`
}

// ServerAddr is the endpoint the client dials.
type ServerAddr struct {
	Host string `yaml:"host"` // required
	Port int    `yaml:"port"` // required
}

// PingInfo configures the client's keep-alive ping timer.
type PingInfo struct {
	Interval       time.Duration `yaml:"interval"`        // default: 30s
	ConnectTimeout time.Duration `yaml:"connect_timeout"` // default: 15s
}

// ReconnectInfo configures the auxiliary Reconnector.
type ReconnectInfo struct {
	Enabled    bool          `yaml:"enabled"`     // default: true
	CheckEvery time.Duration `yaml:"check_every"` // default: 20s
}

// LoadClientConfig reads and validates the client's YAML configuration.
func LoadClientConfig(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading client config: %w", err)
	}

	var cfg ClientConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing client config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating client config: %w", err)
	}

	return &cfg, nil
}

func (c *ClientConfig) validate() error {
	if c.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port is required")
	}

	c.Socket.setDefaults()
	if c.Socket.SendTimeout == 0 {
		c.Socket.SendTimeout = 5 * time.Second
	}

	if c.Ping.Interval <= 0 {
		c.Ping.Interval = 30 * time.Second
	}
	if c.Ping.ConnectTimeout <= 0 {
		c.Ping.ConnectTimeout = 15 * time.Second
	}

	if !c.Reconnect.Enabled && c.Reconnect.CheckEvery == 0 {
		// Treated as absent from the YAML and enabled by default. An
		// explicit `enabled: false` only takes effect when check_every
		// is also set.
		c.Reconnect.Enabled = true
	}
	if c.Reconnect.CheckEvery <= 0 {
		c.Reconnect.CheckEvery = 20 * time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		c.Metrics.Listen = "127.0.0.1:9848"
	}

	return nil
}
