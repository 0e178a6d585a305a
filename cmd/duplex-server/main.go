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

	"github.com/duplexrt/duplex/internal/config"
	"github.com/duplexrt/duplex/internal/logging"
	"github.com/duplexrt/duplex/internal/metrics"
	"github.com/duplexrt/duplex/internal/rmi"
	"github.com/duplexrt/duplex/internal/server"
	"github.com/duplexrt/duplex/internal/transport"
	"github.com/duplexrt/duplex/internal/wire"
)

// echoService is the demo RMI service registered on every server
// instance: a single method returning whatever string it was given,
// giving the launcher something concrete to host.
type echoService struct{}

func (echoService) Echo(s wire.Value) (wire.Value, error) {
	return s, nil
}

func main() {
	configPath := flag.String("config", "/etc/duplex/server.yaml", "path to server config file")
	flag.Parse()

	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, closer := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.FilePath)
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

	srv := server.New(
		transport.Endpoint{Host: cfg.Listen.Host, Port: cfg.Listen.Port},
		cfg.Socket.ToSocketOptions(),
		logger,
	)

	registry := rmi.NewRegistry(logger)
	registry.Register("Echo", echoService{})
	registry.Attach(srv)

	var metricsReg *metrics.Registry
	var metricsSrv *metrics.Server
	if cfg.Metrics.Enabled {
		metricsReg = metrics.NewRegistry()
		srv.OnClientConnected(func(sc *server.ServerClient) {
			metricsReg.ConnectedClients.Inc()
			metricsReg.ClientConnects.Inc()
		})
		srv.OnClientDisconnected(func(sc *server.ServerClient) {
			metricsReg.ConnectedClients.Dec()
			metricsReg.ClientDisconnects.Inc()
		})

		metricsSrv = metrics.NewServer(cfg.Metrics.Listen, metricsReg)
		if err := metricsSrv.Start(); err != nil {
			logger.Error("starting metrics server", "error", err)
			os.Exit(1)
		}
		defer metricsSrv.Stop(context.Background())
	}

	if err := srv.Start(); err != nil {
		logger.Error("starting server", "error", err)
		os.Exit(1)
	}
	logger.Info("duplex-server listening", "host", cfg.Listen.Host, "port", cfg.Listen.Port)

	<-ctx.Done()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Shutdown.DrainTimeout)
	defer drainCancel()

	stopped := make(chan struct{})
	go func() {
		srv.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		logger.Info("duplex-server stopped cleanly")
	case <-drainCtx.Done():
		logger.Warn("duplex-server drain timeout exceeded, exiting anyway")
	}
}
