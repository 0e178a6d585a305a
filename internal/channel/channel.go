// Copyright (c) 2026 The Duplex Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package channel

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/duplexrt/duplex/internal/transport"
	"github.com/duplexrt/duplex/internal/wire"
)

// DefaultReadBufferSize is the default size of a single receive read.
// Callers may raise it; CreateMessages must still be able to assemble a
// single 128 MiB message from many chunks regardless of read size.
const DefaultReadBufferSize = 4 * 1024

// MessageHandler is invoked once per message the receive pump yields.
type MessageHandler func(Message wire.Message)

// Channel wraps one connected socket: send lock, wire protocol, state and
// timestamps. Receive and send paths may run concurrently; they share
// only the timestamp fields.
type Channel struct {
	conn     net.Conn
	protocol *wire.Protocol
	logger   *slog.Logger
	options  transport.SocketOptions

	state atomic.Int32

	lastReceivedNanos atomic.Int64
	lastSentNanos     atomic.Int64

	sendMu sync.Mutex

	readBufferSize int

	mu                sync.Mutex
	messageReceived   []MessageHandler
	messageSent       []MessageHandler
	disconnected      []func()
	disconnectedOnce  sync.Once
	stopCh            chan struct{}
}

// New wraps conn in a new, not-yet-started Channel. options bounds every
// individual read and write the channel issues on conn via deadlines.
func New(conn net.Conn, options transport.SocketOptions, logger *slog.Logger) *Channel {
	c := &Channel{
		conn:           conn,
		protocol:       wire.NewProtocol(),
		logger:         logger,
		options:        options,
		readBufferSize: DefaultReadBufferSize,
		stopCh:         make(chan struct{}),
	}
	c.state.Store(int32(Disconnected))
	return c
}

// SetReadBufferSize overrides DefaultReadBufferSize; must be called before
// Start.
func (c *Channel) SetReadBufferSize(n int) {
	if n > 0 {
		c.readBufferSize = n
	}
}

// OnMessageReceived registers a handler invoked for every received
// message. May be called before or after Start, and from inside another
// handler.
func (c *Channel) OnMessageReceived(h MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messageReceived = append(c.messageReceived, h)
}

// OnMessageSent registers a handler invoked after every successful send.
func (c *Channel) OnMessageSent(h MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messageSent = append(c.messageSent, h)
}

// OnDisconnected registers a handler invoked exactly once when the
// channel transitions to Disconnected.
func (c *Channel) OnDisconnected(h func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = append(c.disconnected, h)
}

// State returns the current communication state.
func (c *Channel) State() State {
	return State(c.state.Load())
}

// LastReceivedMessageTime returns the wall-clock time of the last
// successful receive, or the zero time if none yet.
func (c *Channel) LastReceivedMessageTime() time.Time {
	n := c.lastReceivedNanos.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// LastSentMessageTime returns the wall-clock time of the last successful
// send, or the zero time if none yet.
func (c *Channel) LastSentMessageTime() time.Time {
	n := c.lastSentNanos.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Start transitions the channel to Connected and spawns the receive pump.
func (c *Channel) Start() {
	c.state.Store(int32(Connected))
	go c.receivePump()
}

// SendMessage serializes m and writes the framed bytes out in a loop
// until fully drained. Synchronous from the caller's viewpoint; a
// per-channel send lock serializes concurrent callers.
func (c *Channel) SendMessage(m wire.Message) error {
	framed, err := wire.GetBytes(m)
	if err != nil {
		return fmt.Errorf("channel: encoding message: %w", err)
	}

	c.sendMu.Lock()
	err = c.writeAll(framed)
	c.sendMu.Unlock()

	if err != nil {
		c.fail("send failed", err)
		return fmt.Errorf("channel: communication error: %w", err)
	}

	c.lastSentNanos.Store(time.Now().UnixNano())
	c.dispatchMessageSent(m)
	return nil
}

func (c *Channel) writeAll(b []byte) error {
	for len(b) > 0 {
		if err := c.conn.SetWriteDeadline(c.options.SendDeadline(time.Now())); err != nil {
			return err
		}
		n, err := c.conn.Write(b)
		if err != nil {
			return err
		}
		if n <= 0 {
			return fmt.Errorf("channel: write returned non-positive byte count")
		}
		b = b[n:]
	}
	return nil
}

// Disconnect sets running=false, closes the socket, transitions to
// Disconnected and emits the Disconnected event exactly once. Idempotent.
func (c *Channel) Disconnect() {
	c.disconnectedOnce.Do(func() {
		close(c.stopCh)
		c.conn.Close()
		c.state.Store(int32(Disconnected))
		c.dispatchDisconnected()
	})
}

func (c *Channel) fail(reason string, err error) {
	if c.logger != nil {
		c.logger.Warn("channel failure", "reason", reason, "error", err)
	}
	c.Disconnect()
}

func (c *Channel) receivePump() {
	buf := make([]byte, c.readBufferSize)
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		if err := c.conn.SetReadDeadline(c.options.ReceiveDeadline(time.Now())); err != nil {
			c.fail("set read deadline", err)
			return
		}

		n, err := c.conn.Read(buf)
		if n > 0 {
			c.lastReceivedNanos.Store(time.Now().UnixNano())
			messages, decodeErr := c.protocol.CreateMessages(buf[:n])
			if decodeErr != nil {
				c.fail("deserialization error", decodeErr)
				return
			}
			for _, m := range messages {
				c.dispatchMessageReceived(m)
			}
		}
		if err != nil {
			c.fail("read error", err)
			return
		}
	}
}

func (c *Channel) dispatchMessageReceived(m wire.Message) {
	c.mu.Lock()
	handlers := append([]MessageHandler(nil), c.messageReceived...)
	c.mu.Unlock()
	for _, h := range handlers {
		c.safeCall(func() { h(m) })
	}
}

func (c *Channel) dispatchMessageSent(m wire.Message) {
	c.mu.Lock()
	handlers := append([]MessageHandler(nil), c.messageSent...)
	c.mu.Unlock()
	for _, h := range handlers {
		c.safeCall(func() { h(m) })
	}
}

func (c *Channel) dispatchDisconnected() {
	c.mu.Lock()
	handlers := append([]func(){}, c.disconnected...)
	c.mu.Unlock()
	for _, h := range handlers {
		c.safeCall(h)
	}
}

// safeCall traces and swallows a panicking handler rather than letting it
// crash the receive worker.
func (c *Channel) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil && c.logger != nil {
			c.logger.Error("channel handler panic recovered", "panic", r)
		}
	}()
	fn()
}
