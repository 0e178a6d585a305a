// Copyright (c) 2026 The Duplex Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package transport provides the TCP reference endpoint: dialing,
// listening, and the socket-option tuning applied to every connection.
package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Endpoint identifies a TCP address: host (IPv4/IPv6 literal or name) and
// port (1-65535).
type Endpoint struct {
	Host string
	Port int
}

// String renders the endpoint as host:port.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Dial connects to the endpoint, applying opts once connected, and fails
// if the attempt does not complete within the context's deadline.
func Dial(ctx context.Context, e Endpoint, opts SocketOptions) (net.Conn, error) {
	dialer := &net.Dialer{}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	conn, err := dialer.DialContext(ctx, "tcp", e.String())
	if err != nil {
		return nil, fmt.Errorf("transport: dialing %s: %w", e, err)
	}

	if err := opts.Apply(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: applying socket options: %w", err)
	}

	return conn, nil
}

// DialTimeout is a convenience wrapper around Dial using a plain timeout
// rather than a caller-supplied context.
func DialTimeout(e Endpoint, opts SocketOptions, timeout time.Duration) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return Dial(ctx, e, opts)
}
