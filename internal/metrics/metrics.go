// Copyright (c) 2026 The Duplex Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package metrics exposes the runtime's Prometheus instrumentation: the
// server's connected-client count and the client's ping RTT distribution.
package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the metrics this runtime publishes, all registered
// against a private prometheus.Registry so multiple Servers in the same
// process never collide on metric names.
type Registry struct {
	reg *prometheus.Registry

	ConnectedClients  prometheus.Gauge
	ClientConnects    prometheus.Counter
	ClientDisconnects prometheus.Counter
	PingRTT           prometheus.Histogram
}

// NewRegistry builds and registers the metric set.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "duplex",
			Subsystem: "server",
			Name:      "connected_clients",
			Help:      "Number of server-clients currently connected.",
		}),
		ClientConnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "duplex",
			Subsystem: "server",
			Name:      "client_connects_total",
			Help:      "Total number of accepted client connections.",
		}),
		ClientDisconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "duplex",
			Subsystem: "server",
			Name:      "client_disconnects_total",
			Help:      "Total number of client disconnections.",
		}),
		PingRTT: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "duplex",
			Subsystem: "client",
			Name:      "ping_rtt_seconds",
			Help:      "Observed ping round-trip time.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
		}),
	}

	reg.MustRegister(r.ConnectedClients, r.ClientConnects, r.ClientDisconnects, r.PingRTT)
	return r
}

// ObservePingRTT records a completed ping's round-trip time.
func (r *Registry) ObservePingRTT(d time.Duration) {
	r.PingRTT.Observe(d.Seconds())
}

// Server serves /metrics on a dedicated listener, independent of the
// duplex protocol's own listener.
type Server struct {
	httpSrv *http.Server
	ln      net.Listener
}

// NewServer builds an HTTP server exposing reg at /metrics on addr.
func NewServer(addr string, reg *Registry) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg.reg, promhttp.HandlerOpts{}))
	return &Server{
		httpSrv: &http.Server{Addr: addr, Handler: mux},
	}
}

// Start binds the listener and serves in the background. Errors returned
// by Serve, including http.ErrServerClosed after shutdown, are not
// reported.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpSrv.Addr)
	if err != nil {
		return err
	}
	s.ln = ln

	go func() {
		_ = s.httpSrv.Serve(ln)
	}()
	return nil
}

// Stop gracefully shuts the metrics HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
