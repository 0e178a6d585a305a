// Copyright (c) 2026 The Duplex Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build !linux

package transport

import (
	"net"
	"time"
)

// applyKeepAliveTuning falls back to the portable stdlib
// SetKeepAlivePeriod off Linux: the net package exposes only a single
// combined keep-alive period on these platforms, not independent
// idle-time and interval knobs. idleSeconds is used as that period;
// intervalSeconds has no portable equivalent and is ignored.
func applyKeepAliveTuning(conn *net.TCPConn, idleSeconds, intervalSeconds *int) {
	if idleSeconds == nil {
		return
	}
	_ = conn.SetKeepAlivePeriod(time.Duration(*idleSeconds) * time.Second)
}
