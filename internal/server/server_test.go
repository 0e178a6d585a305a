// Copyright (c) 2026 The Duplex Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package server

import (
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/duplexrt/duplex/internal/client"
	"github.com/duplexrt/duplex/internal/transport"
	"github.com/duplexrt/duplex/internal/wire"
)

// probeFreePort asks the OS for an ephemeral port by binding and
// immediately releasing a throwaway listener, favoring real loopback
// sockets over mocks.
func probeFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("probing free port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func startTestServer(t *testing.T) (*Server, int) {
	t.Helper()

	port := probeFreePort(t)
	srv := New(transport.Endpoint{Host: "127.0.0.1", Port: port}, transport.DefaultSocketOptions(), nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(srv.Stop)
	return srv, port
}

func TestServerClientConnectedCount(t *testing.T) {
	srv, port := startTestServer(t)

	var connected, disconnected atomic.Int32
	srv.OnClientConnected(func(sc *ServerClient) { connected.Add(1) })
	srv.OnClientDisconnected(func(sc *ServerClient) { disconnected.Add(1) })

	const n = 3
	clients := make([]*client.Client, n)
	for i := 0; i < n; i++ {
		c := client.New(transport.Endpoint{Host: "127.0.0.1", Port: port}, transport.DefaultSocketOptions(), nil)
		if err := c.Connect(); err != nil {
			t.Fatalf("client %d Connect: %v", i, err)
		}
		clients[i] = c
	}

	deadline := time.Now().Add(2 * time.Second)
	for connected.Load() != n && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := connected.Load(); got != n {
		t.Fatalf("connected count = %d, want %d", got, n)
	}
	if got := len(srv.Clients()); got != n {
		t.Fatalf("Clients() snapshot len = %d, want %d", got, n)
	}

	for _, c := range clients {
		c.Disconnect()
	}

	deadline = time.Now().Add(2 * time.Second)
	for disconnected.Load() != n && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	// Testable property 7: connected clients == connects - disconnects.
	if got := connected.Load() - disconnected.Load(); got != 0 {
		t.Fatalf("connected-disconnected = %d, want 0", got)
	}

	deadline = time.Now().Add(2 * time.Second)
	for len(srv.Clients()) != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := len(srv.Clients()); got != 0 {
		t.Fatalf("Clients() after disconnect = %d, want 0", got)
	}
}

func TestEchoServerToClient(t *testing.T) {
	srv, port := startTestServer(t)

	srv.OnClientConnected(func(sc *ServerClient) {
		sc.SendMessage(wire.NewTextMessage("from server"))
	})

	c := client.New(transport.Endpoint{Host: "127.0.0.1", Port: port}, transport.DefaultSocketOptions(), nil)

	received := make(chan string, 1)
	c.OnMessageReceived(func(m wire.Message) {
		if tm, ok := m.(*wire.TextMessage); ok && tm.Text != nil {
			received <- *tm.Text
		}
	})

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	select {
	case text := <-received:
		if text != "from server" {
			t.Errorf("text = %q, want %q", text, "from server")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server->client message")
	}
}

func TestClientToServerEcho(t *testing.T) {
	srv, port := startTestServer(t)

	received := make(chan string, 1)
	srv.OnClientConnected(func(sc *ServerClient) {
		sc.OnMessageReceived(func(m wire.Message) {
			if tm, ok := m.(*wire.TextMessage); ok && tm.Text != nil {
				received <- *tm.Text
			}
		})
	})

	c := client.New(transport.Endpoint{Host: "127.0.0.1", Port: port}, transport.DefaultSocketOptions(), nil)
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	if err := c.SendMessage(wire.NewTextMessage("hello")); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	select {
	case text := <-received:
		if text != "hello" {
			t.Errorf("text = %q, want %q", text, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client->server message")
	}
}

func TestThreeConcurrentClientsIndependentEcho(t *testing.T) {
	srv, port := startTestServer(t)

	srv.OnClientConnected(func(sc *ServerClient) {
		sc.OnMessageReceived(func(m wire.Message) {
			if tm, ok := m.(*wire.TextMessage); ok && tm.Text != nil {
				sc.SendMessage(wire.NewTextMessage("echo:" + *tm.Text))
			}
		})
	})

	const n = 3
	clients := make([]*client.Client, n)
	replies := make([]chan string, n)
	for i := 0; i < n; i++ {
		c := client.New(transport.Endpoint{Host: "127.0.0.1", Port: port}, transport.DefaultSocketOptions(), nil)
		ch := make(chan string, 1)
		c.OnMessageReceived(func(m wire.Message) {
			if tm, ok := m.(*wire.TextMessage); ok && tm.Text != nil {
				ch <- *tm.Text
			}
		})
		if err := c.Connect(); err != nil {
			t.Fatalf("client %d Connect: %v", i, err)
		}
		defer c.Disconnect()
		clients[i] = c
		replies[i] = ch
	}

	for i, c := range clients {
		if err := c.SendMessage(wire.NewTextMessage("hi")); err != nil {
			t.Fatalf("client %d SendMessage: %v", i, err)
		}
	}

	for i, ch := range replies {
		select {
		case text := <-ch:
			if text != "echo:hi" {
				t.Errorf("client %d reply = %q, want %q", i, text, "echo:hi")
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("client %d timed out waiting for echo", i)
		}
	}
}
