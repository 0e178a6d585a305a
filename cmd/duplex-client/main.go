// Copyright (c) 2026 The Duplex Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/duplexrt/duplex/internal/client"
	"github.com/duplexrt/duplex/internal/config"
	"github.com/duplexrt/duplex/internal/logging"
	"github.com/duplexrt/duplex/internal/metrics"
	"github.com/duplexrt/duplex/internal/rmi"
	"github.com/duplexrt/duplex/internal/transport"
	"github.com/duplexrt/duplex/internal/wire"
)

func main() {
	configPath := flag.String("config", "/etc/duplex/client.yaml", "path to client config file")
	flag.Parse()

	cfg, err := config.LoadClientConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, closer := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, "")
	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	c := client.New(
		transport.Endpoint{Host: cfg.Server.Host, Port: cfg.Server.Port},
		cfg.Socket.ToSocketOptions(),
		logger,
	)
	c.SetConnectTimeout(cfg.Ping.ConnectTimeout)
	c.SetPingInterval(cfg.Ping.Interval)

	invoker := rmi.NewInvoker(c)

	var reconnector *client.Reconnector
	if cfg.Reconnect.Enabled {
		reconnector = client.NewReconnector(c, logger)
		reconnector.SetReConnectCheckPeriod(cfg.Reconnect.CheckEvery)
	}

	var metricsReg *metrics.Registry
	var metricsSrv *metrics.Server
	if cfg.Metrics.Enabled {
		metricsReg = metrics.NewRegistry()
		metricsSrv = metrics.NewServer(cfg.Metrics.Listen, metricsReg)
		if err := metricsSrv.Start(); err != nil {
			logger.Error("starting metrics server", "error", err)
			os.Exit(1)
		}
		defer metricsSrv.Stop(context.Background())
	}

	c.OnConnected(func() { logger.Info("connected to server") })
	c.OnDisconnected(func() { logger.Info("disconnected from server") })
	c.OnPingCompleted(func(rtt time.Duration) {
		logger.Debug("ping completed", "rtt", rtt)
		if metricsReg != nil {
			metricsReg.ObservePingRTT(rtt)
		}
	})

	if err := c.Connect(); err != nil {
		logger.Error("initial connect failed", "error", err)
		os.Exit(1)
	}
	if reconnector != nil {
		reconnector.Start()
	}

	invokeCtx, invokeCancel := context.WithTimeout(ctx, 5*time.Second)
	result, err := invoker.Call(invokeCtx, "Echo", "Echo", wire.StringValue("hello from duplex-client"))
	invokeCancel()
	if err != nil {
		logger.Warn("Echo invocation failed", "error", err)
	} else {
		logger.Info("Echo invocation succeeded", "result", result.Str)
	}

	<-ctx.Done()

	if reconnector != nil {
		reconnector.Dispose()
	}
	c.Disconnect()
}
