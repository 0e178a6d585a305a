// Copyright (c) 2026 The Duplex Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package server

import (
	"sync"

	"github.com/duplexrt/duplex/internal/channel"
	"github.com/duplexrt/duplex/internal/wire"
	"github.com/rs/xid"
)

// ServerClient is the server-side peer object representing one connected
// remote client: identity, channel access, and the sole mechanism the
// client's RTT subsystem relies on — auto-replying to pings.
type ServerClient struct {
	id string
	ch *channel.Channel

	mu        sync.Mutex
	onMessage []channel.MessageHandler
}

func newServerClient(ch *channel.Channel) *ServerClient {
	return &ServerClient{
		id: xid.New().String(),
		ch: ch,
	}
}

// ClientID returns the opaque identifier assigned at accept time.
func (sc *ServerClient) ClientID() string { return sc.id }

// SendMessage delegates to the underlying channel.
func (sc *ServerClient) SendMessage(m wire.Message) error {
	return sc.ch.SendMessage(m)
}

// Disconnect tears down the underlying channel.
func (sc *ServerClient) Disconnect() {
	sc.ch.Disconnect()
}

// OnMessageReceived registers a handler invoked for every non-ping
// message this server-client receives. Ping messages are intercepted by
// the auto-reply logic and never reach application handlers, matching
// the client-side convention in internal/client.
func (sc *ServerClient) OnMessageReceived(h channel.MessageHandler) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.onMessage = append(sc.onMessage, h)
}

// wireAutoPingReply installs the channel-level handler that answers every
// ping lacking a RepliedMessageID with a pong, drops reply-carrying pings,
// and forwards every non-ping message to the registered application
// handlers.
func (sc *ServerClient) wireAutoPingReply() {
	sc.ch.OnMessageReceived(func(m wire.Message) {
		if ping, ok := m.(*wire.PingMessage); ok {
			if ping.RepliedMessageID == "" {
				_ = sc.ch.SendMessage(wire.NewPingReply(ping))
				return
			}
			// A reply-bearing ping arriving at the server has no
			// consumer here; drop it silently like the client does
			// for unmatched replies.
			return
		}

		sc.mu.Lock()
		handlers := append([]channel.MessageHandler(nil), sc.onMessage...)
		sc.mu.Unlock()
		for _, h := range handlers {
			h(m)
		}
	})
}
