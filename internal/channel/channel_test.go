// Copyright (c) 2026 The Duplex Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package channel

import (
	"net"
	"testing"
	"time"

	"github.com/duplexrt/duplex/internal/transport"
	"github.com/duplexrt/duplex/internal/wire"
)

func TestSendMessageRoundTrip(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	ca := New(a, transport.DefaultSocketOptions(), nil)
	cb := New(b, transport.DefaultSocketOptions(), nil)

	received := make(chan wire.Message, 1)
	cb.OnMessageReceived(func(m wire.Message) { received <- m })

	ca.Start()
	cb.Start()

	if err := ca.SendMessage(wire.NewTextMessage("hello")); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	select {
	case m := <-received:
		tm, ok := m.(*wire.TextMessage)
		if !ok || tm.Text == nil || *tm.Text != "hello" {
			t.Fatalf("received = %+v, want TextMessage(\"hello\")", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestSendMessageEnforcesSendTimeout(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	opts := transport.DefaultSocketOptions()
	opts.SendTimeout = 20 * time.Millisecond

	ca := New(a, opts, nil)
	ca.Start()

	// b is never read from, so the net.Pipe write blocks until the send
	// deadline fires.
	err := ca.SendMessage(wire.NewTextMessage("blocked"))
	if err == nil {
		t.Fatal("expected SendMessage to fail once SendTimeout elapses")
	}
	if ca.State() != Disconnected {
		t.Errorf("State() = %v, want Disconnected after a send timeout", ca.State())
	}
}

func TestReceivePumpEnforcesReceiveTimeout(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	opts := transport.DefaultSocketOptions()
	opts.ReceiveTimeout = 20 * time.Millisecond

	cb := New(b, opts, nil)

	disconnected := make(chan struct{})
	cb.OnDisconnected(func() { close(disconnected) })

	cb.Start()

	// a never sends anything, so the receive pump's read deadline must
	// fire and disconnect the channel on its own.
	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the channel to disconnect after ReceiveTimeout elapsed")
	}
}
