// Copyright (c) 2026 The Duplex Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package server implements the server side of the runtime: a listener
// owner that tracks connected server-clients and exposes connect/
// disconnect events.
package server

import (
	"log/slog"
	"net"
	"sync"

	"github.com/duplexrt/duplex/internal/channel"
	"github.com/duplexrt/duplex/internal/transport"
)

// ClientConnectedHandler is invoked when a new ServerClient is accepted.
type ClientConnectedHandler func(sc *ServerClient)

// ClientDisconnectedHandler is invoked when a ServerClient disconnects.
type ClientDisconnectedHandler func(sc *ServerClient)

// Server owns a Listener and a thread-safe mapping from server-client
// identifier to ServerClient.
type Server struct {
	endpoint transport.Endpoint
	options  transport.SocketOptions
	logger   *slog.Logger

	listener *transport.Listener

	clientsMu sync.RWMutex
	clients   map[string]*ServerClient

	eventsMu          sync.Mutex
	onClientConnected []ClientConnectedHandler
	onClientDisconn   []ClientDisconnectedHandler
}

// New creates a Server bound to endpoint, not yet started.
func New(endpoint transport.Endpoint, options transport.SocketOptions, logger *slog.Logger) *Server {
	return &Server{
		endpoint: endpoint,
		options:  options,
		logger:   logger,
		clients:  make(map[string]*ServerClient),
	}
}

// OnClientConnected registers a handler invoked on every accept.
func (s *Server) OnClientConnected(h ClientConnectedHandler) {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	s.onClientConnected = append(s.onClientConnected, h)
}

// OnClientDisconnected registers a handler invoked when a tracked
// server-client disconnects.
func (s *Server) OnClientDisconnected(h ClientDisconnectedHandler) {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	s.onClientDisconn = append(s.onClientDisconn, h)
}

// Start creates and starts the listener.
func (s *Server) Start() error {
	s.listener = transport.NewListener(s.endpoint, s.options, s.logger)
	s.listener.OnChannelConnected(s.handleAccepted)
	return s.listener.Start()
}

// Stop stops the listener and disconnects every tracked server-client.
func (s *Server) Stop() {
	if s.listener != nil {
		s.listener.Stop()
	}

	s.clientsMu.RLock()
	snapshot := make([]*ServerClient, 0, len(s.clients))
	for _, sc := range s.clients {
		snapshot = append(snapshot, sc)
	}
	s.clientsMu.RUnlock()

	for _, sc := range snapshot {
		sc.Disconnect()
	}
}

// Clients returns a snapshot enumeration of currently connected
// server-clients.
func (s *Server) Clients() []*ServerClient {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	out := make([]*ServerClient, 0, len(s.clients))
	for _, sc := range s.clients {
		out = append(out, sc)
	}
	return out
}

func (s *Server) handleAccepted(conn net.Conn) {
	ch := channel.New(conn, s.options, s.logger)
	sc := newServerClient(ch)

	s.clientsMu.Lock()
	s.clients[sc.ClientID()] = sc
	s.clientsMu.Unlock()

	ch.OnDisconnected(func() {
		s.clientsMu.Lock()
		delete(s.clients, sc.ClientID())
		s.clientsMu.Unlock()

		s.eventsMu.Lock()
		handlers := append([]ClientDisconnectedHandler(nil), s.onClientDisconn...)
		s.eventsMu.Unlock()
		for _, h := range handlers {
			h(sc)
		}
	})

	// Auto-reply to pings is a server-client responsibility, wired
	// before Start so no ping can race ahead of it.
	sc.wireAutoPingReply()

	ch.Start()

	s.eventsMu.Lock()
	handlers := append([]ClientConnectedHandler(nil), s.onClientConnected...)
	s.eventsMu.Unlock()
	for _, h := range handlers {
		h(sc)
	}
}
