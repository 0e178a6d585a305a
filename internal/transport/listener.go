// Copyright (c) 2026 The Duplex Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// acceptErrorBackoff is the pause between accept retries after an error.
const acceptErrorBackoff = 1 * time.Second

// ChannelConnectedHandler is invoked with a freshly accepted, option-tuned
// connection.
type ChannelConnectedHandler func(conn net.Conn)

// Listener binds a port, accepts connections on a dedicated worker, applies
// socket options, and hands each accepted socket to the registered
// handler.
type Listener struct {
	endpoint Endpoint
	options  SocketOptions
	logger   *slog.Logger

	mu               sync.Mutex
	connectedHandler ChannelConnectedHandler

	ln       net.Listener
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewListener creates a Listener bound to nothing yet; call Start to bind
// and begin accepting.
func NewListener(endpoint Endpoint, options SocketOptions, logger *slog.Logger) *Listener {
	return &Listener{
		endpoint: endpoint,
		options:  options,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// OnChannelConnected registers the handler invoked per accepted
// connection. Must be called before Start.
func (l *Listener) OnChannelConnected(h ChannelConnectedHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connectedHandler = h
}

// Start binds the listening socket on all interfaces and launches the
// accept loop in the background.
func (l *Listener) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", l.endpoint.Port))
	if err != nil {
		return fmt.Errorf("transport: listening on port %d: %w", l.endpoint.Port, err)
	}
	l.ln = ln

	l.wg.Add(1)
	go l.acceptLoop()
	return nil
}

// Stop closes the listening socket and waits for the accept loop to exit.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		if l.ln != nil {
			l.ln.Close()
		}
	})
	l.wg.Wait()
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()

	consecutiveErrors := 0
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.stopCh:
				return
			default:
			}

			consecutiveErrors++
			if l.logger != nil {
				l.logger.Error("accepting connection", "error", err, "consecutive_errors", consecutiveErrors)
			}
			if !errors.Is(err, net.ErrClosed) {
				time.Sleep(acceptErrorBackoff)
			}
			continue
		}

		consecutiveErrors = 0

		if err := l.options.Apply(conn); err != nil {
			if l.logger != nil {
				l.logger.Warn("applying socket options", "error", err)
			}
		}

		l.mu.Lock()
		handler := l.connectedHandler
		l.mu.Unlock()

		if handler != nil {
			handler(conn)
		} else {
			conn.Close()
		}
	}
}

// RunUntil blocks until ctx is cancelled, then stops the listener. Useful
// for wiring a Listener's lifetime to a process-level context.
func (l *Listener) RunUntil(ctx context.Context) {
	<-ctx.Done()
	l.Stop()
}
