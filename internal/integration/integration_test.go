// Copyright (c) 2026 The Duplex Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package integration exercises the client, server, wire and rmi packages
// together end to end over real loopback TCP sockets.
package integration

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/duplexrt/duplex/internal/channel"
	"github.com/duplexrt/duplex/internal/client"
	"github.com/duplexrt/duplex/internal/rmi"
	"github.com/duplexrt/duplex/internal/server"
	"github.com/duplexrt/duplex/internal/transport"
	"github.com/duplexrt/duplex/internal/wire"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("probing free port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func newEndpoint(t *testing.T) (transport.Endpoint, int) {
	port := freePort(t)
	return transport.Endpoint{Host: "127.0.0.1", Port: port}, port
}

// S1 Echo: server started on loopback; client connects; client sends a
// TextMessage "hello"; server-side MessageReceived observes it.
func TestS1Echo(t *testing.T) {
	ep, _ := newEndpoint(t)
	srv := server.New(ep, transport.DefaultSocketOptions(), nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	received := make(chan string, 1)
	srv.OnClientConnected(func(sc *server.ServerClient) {
		sc.OnMessageReceived(func(m wire.Message) {
			if tm, ok := m.(*wire.TextMessage); ok && tm.Text != nil {
				received <- *tm.Text
			}
		})
	})

	c := client.New(ep, transport.DefaultSocketOptions(), nil)
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
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for server to observe the message")
	}
}

// S2 Server -> client: upon ClientConnected, server-client sends TextMessage
// "from server"; client's MessageReceived observes it.
func TestS2ServerToClient(t *testing.T) {
	ep, _ := newEndpoint(t)
	srv := server.New(ep, transport.DefaultSocketOptions(), nil)
	srv.OnClientConnected(func(sc *server.ServerClient) {
		sc.SendMessage(wire.NewTextMessage("from server"))
	})
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	received := make(chan string, 1)
	c := client.New(ep, transport.DefaultSocketOptions(), nil)
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
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for client to observe the message")
	}
}

// S3 Three concurrent clients: 3 clients connect in parallel; server emits
// 3 ClientConnected events; Clients snapshot has 3 entries.
func TestS3ThreeConcurrentClients(t *testing.T) {
	ep, _ := newEndpoint(t)
	srv := server.New(ep, transport.DefaultSocketOptions(), nil)

	var connected atomic.Int32
	srv.OnClientConnected(func(sc *server.ServerClient) { connected.Add(1) })
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	const n = 3
	clients := make([]*client.Client, n)
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			c := client.New(ep, transport.DefaultSocketOptions(), nil)
			errCh <- c.Connect()
			clients[i] = c
		}(i)
	}
	for i := 0; i < n; i++ {
		if err := <-errCh; err != nil {
			t.Fatalf("client Connect: %v", err)
		}
	}
	defer func() {
		for _, c := range clients {
			if c != nil {
				c.Disconnect()
			}
		}
	}()

	deadline := time.Now().Add(5 * time.Second)
	for connected.Load() != n && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := connected.Load(); got != n {
		t.Fatalf("ClientConnected count = %d, want %d", got, n)
	}
	if got := len(srv.Clients()); got != n {
		t.Fatalf("Clients() snapshot len = %d, want %d", got, n)
	}
}

// S4 Reconnect: connect, stop server, restart server on same port,
// reconnector with period 500ms brings the client back to Connected
// within 5s.
func TestS4Reconnect(t *testing.T) {
	ep, port := newEndpoint(t)

	srv := server.New(ep, transport.DefaultSocketOptions(), nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	c := client.New(ep, transport.DefaultSocketOptions(), nil)
	if err := c.Connect(); err != nil {
		t.Fatalf("initial Connect: %v", err)
	}

	reconnector := client.NewReconnector(c, nil)
	reconnector.SetReConnectCheckPeriod(500 * time.Millisecond)
	reconnector.Start()
	defer reconnector.Dispose()

	srv.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for c.CommunicationState() != channel.Disconnected && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	srv2 := server.New(transport.Endpoint{Host: "127.0.0.1", Port: port}, transport.DefaultSocketOptions(), nil)
	if err := srv2.Start(); err != nil {
		t.Fatalf("restarting server: %v", err)
	}
	defer srv2.Stop()

	deadline = time.Now().Add(5 * time.Second)
	for c.CommunicationState() != channel.Connected && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if c.CommunicationState() != channel.Connected {
		t.Fatalf("client did not reconnect within 5s, state = %v", c.CommunicationState())
	}
	c.Disconnect()
}

// S5 Ping-reply RTT: client sends a fresh PingMessage; within 5s the
// PingCompleted event fires with RoundTripTime >= 0, and LastPingRtt
// matches the event's value.
func TestS5PingRTT(t *testing.T) {
	ep, _ := newEndpoint(t)
	srv := server.New(ep, transport.DefaultSocketOptions(), nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	c := client.New(ep, transport.DefaultSocketOptions(), nil)
	completed := make(chan time.Duration, 1)
	c.OnPingCompleted(func(rtt time.Duration) { completed <- rtt })

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	if err := c.SendMessage(wire.NewPingMessage()); err != nil {
		t.Fatalf("SendMessage(ping): %v", err)
	}

	select {
	case rtt := <-completed:
		if rtt < 0 {
			t.Errorf("rtt = %v, want >= 0", rtt)
		}
		last, ok := c.LastPingRtt()
		if !ok || last != rtt {
			t.Errorf("LastPingRtt = (%v, %v), want (%v, true)", last, ok, rtt)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for PingCompleted")
	}
}

// S7 Large payload round-trip: RawDataMessage with 65536 deterministic
// bytes round-trips exactly over a live connection.
func TestS7LargePayloadRoundTrip(t *testing.T) {
	ep, _ := newEndpoint(t)
	srv := server.New(ep, transport.DefaultSocketOptions(), nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	payload := make([]byte, 65536)
	rand.New(rand.NewSource(42)).Read(payload)

	received := make(chan []byte, 1)
	srv.OnClientConnected(func(sc *server.ServerClient) {
		sc.OnMessageReceived(func(m wire.Message) {
			if rd, ok := m.(*wire.RawDataMessage); ok {
				received <- rd.Data
			}
		})
	})

	c := client.New(ep, transport.DefaultSocketOptions(), nil)
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	if err := c.SendMessage(wire.NewRawDataMessage(payload)); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	select {
	case got := <-received:
		if len(got) != len(payload) {
			t.Fatalf("len(got) = %d, want %d", len(got), len(payload))
		}
		for i := range payload {
			if got[i] != payload[i] {
				t.Fatalf("byte %d mismatch: got %x, want %x", i, got[i], payload[i])
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the large payload")
	}
}

type echoService struct{}

func (echoService) Echo(s wire.Value) (wire.Value, error) { return s, nil }

type failingService struct{}

func (failingService) Fail() (wire.Value, error) {
	return wire.Value{}, errors.New("Deliberate test failure")
}

// S8 RMI exception: invoking a service method that throws with message
// "Deliberate test failure" surfaces a remote-exception at the client
// whose message contains that text.
func TestS8RMIException(t *testing.T) {
	ep, _ := newEndpoint(t)
	srv := server.New(ep, transport.DefaultSocketOptions(), nil)

	registry := rmi.NewRegistry(nil)
	registry.Register("Echo", echoService{})
	registry.Register("Failing", failingService{})
	registry.Attach(srv)

	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	c := client.New(ep, transport.DefaultSocketOptions(), nil)
	invoker := rmi.NewInvoker(c)

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := invoker.Call(ctx, "Failing", "Fail")
	if err == nil {
		t.Fatal("expected an error from the failing remote method")
	}
	var remoteErr *rmi.RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("error = %v (%T), want *rmi.RemoteError", err, err)
	}
	if remoteErr.Message != "Deliberate test failure" {
		t.Errorf("remoteErr.Message = %q, want %q", remoteErr.Message, "Deliberate test failure")
	}
}

// TestS8RMIEchoSucceeds exercises the happy path of the same RMI service
// the exception scenario above uses, confirming normal calls still work.
func TestS8RMIEchoSucceeds(t *testing.T) {
	ep, _ := newEndpoint(t)
	srv := server.New(ep, transport.DefaultSocketOptions(), nil)

	registry := rmi.NewRegistry(nil)
	registry.Register("Echo", echoService{})
	registry.Attach(srv)

	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	c := client.New(ep, transport.DefaultSocketOptions(), nil)
	invoker := rmi.NewInvoker(c)

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := invoker.Call(ctx, "Echo", "Echo", wire.StringValue("ping"))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.Str != "ping" {
		t.Errorf("result.Str = %q, want %q", result.Str, "ping")
	}
}
