// Copyright (c) 2026 The Duplex Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package channel implements the per-connection communication channel: it
// owns one connected byte-stream socket, the wire protocol accumulator and
// the send lock, and drives the receive pump that turns bytes into
// messages.
package channel

// State is the communication state of a Channel.
type State int32

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}
