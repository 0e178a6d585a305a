// Copyright (c) 2026 The Duplex Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build linux

package transport

import (
	"net"

	"golang.org/x/sys/unix"
)

// applyKeepAliveTuning sets TCP_KEEPIDLE/TCP_KEEPINTVL directly via
// golang.org/x/sys/unix, since the stdlib net package exposes only a
// single combined keep-alive period, not independent idle-time and
// interval knobs (grounded in the pack's go-tcpinfo family, whose whole
// purpose is raw socket introspection and tuning via golang.org/x/sys).
func applyKeepAliveTuning(conn *net.TCPConn, idleSeconds, intervalSeconds *int) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return
	}

	_ = raw.Control(func(fd uintptr) {
		if idleSeconds != nil {
			_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, *idleSeconds)
		}
		if intervalSeconds != nil {
			_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, *intervalSeconds)
		}
	})
}
