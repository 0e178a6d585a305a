// Copyright (c) 2026 The Duplex Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package transport

import (
	"fmt"
	"net"
	"time"
)

// SocketOptions configures the transport tuning applied to every socket,
// client-originating or server-accepted.
type SocketOptions struct {
	// NoDelay disables Nagle batching when true.
	NoDelay bool

	// KeepAliveEnabled turns on OS-level TCP keep-alive probes.
	KeepAliveEnabled bool

	// KeepAliveTimeSeconds is the idle time before the first probe; nil
	// means "use the OS default" and is applied best-effort per OS.
	KeepAliveTimeSeconds *int

	// KeepAliveIntervalSeconds is the interval between probes; nil means
	// "use the OS default" and is applied best-effort per OS.
	KeepAliveIntervalSeconds *int

	// SendTimeout bounds individual write operations; 0 means infinite.
	SendTimeout time.Duration

	// ReceiveTimeout bounds individual read operations; 0 means infinite.
	ReceiveTimeout time.Duration
}

// DefaultSocketOptions returns the baseline tuning used when the caller
// has no specific requirements.
func DefaultSocketOptions() SocketOptions {
	return SocketOptions{
		NoDelay:          true,
		KeepAliveEnabled: false,
		SendTimeout:      5000 * time.Millisecond,
		ReceiveTimeout:   0,
	}
}

// Apply configures conn according to the options. Where the host OS does
// not expose a particular knob, the option is silently ignored — see
// socketoptions_linux.go and socketoptions_other.go for the keep-alive
// idle/interval tuning, which is platform-specific.
func (o SocketOptions) Apply(conn net.Conn) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		// Not a TCP socket (e.g. net.Pipe in tests); nothing to tune.
		return nil
	}

	if err := tcpConn.SetNoDelay(o.NoDelay); err != nil {
		return fmt.Errorf("setting no-delay: %w", err)
	}

	if err := tcpConn.SetKeepAlive(o.KeepAliveEnabled); err != nil {
		return fmt.Errorf("setting keep-alive: %w", err)
	}

	if o.KeepAliveEnabled {
		applyKeepAliveTuning(tcpConn, o.KeepAliveTimeSeconds, o.KeepAliveIntervalSeconds)
	}

	return nil
}

// SendDeadline returns the deadline to set on a write given now, or the
// zero time if SendTimeout is 0 (infinite).
func (o SocketOptions) SendDeadline(now time.Time) time.Time {
	if o.SendTimeout <= 0 {
		return time.Time{}
	}
	return now.Add(o.SendTimeout)
}

// ReceiveDeadline returns the deadline to set on a read given now, or the
// zero time if ReceiveTimeout is 0 (infinite).
func (o SocketOptions) ReceiveDeadline(now time.Time) time.Time {
	if o.ReceiveTimeout <= 0 {
		return time.Time{}
	}
	return now.Add(o.ReceiveTimeout)
}
