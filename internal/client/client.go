// Copyright (c) 2026 The Duplex Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package client implements the client-side connection lifecycle: Connect/
// Disconnect/SendMessage, the ping timer and RTT tracking, and the
// auto-reconnector.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/duplexrt/duplex/internal/channel"
	"github.com/duplexrt/duplex/internal/transport"
	"github.com/duplexrt/duplex/internal/wire"
)

const (
	DefaultConnectTimeout = 15000 * time.Millisecond
	DefaultPingInterval   = 30000 * time.Millisecond
)

// quiescenceThreshold is the hard-coded "no recent traffic" gate: pings
// never fire on a channel with fresher traffic than this, piggybacking
// liveness on user traffic.
const quiescenceThreshold = 60 * time.Second

// ErrNotConnected is returned by SendMessage when the client is not
// Connected.
var ErrNotConnected = errors.New("client: not connected")

// ErrAlreadyConnected is returned by Connect when the client is already
// Connected.
var ErrAlreadyConnected = errors.New("client: already connected")

// Client drives one channel to a single server endpoint.
type Client struct {
	endpoint       transport.Endpoint
	socketOptions  transport.SocketOptions
	connectTimeout time.Duration
	logger         *slog.Logger

	pingIntervalNanos atomic.Int64

	stateMu sync.Mutex
	state   channel.State
	ch      *channel.Channel

	pendingMu sync.Mutex
	pending   map[string]time.Time

	rtt           rttBuffer
	lastPingNanos atomic.Int64 // 0 = none yet
	hasLastPing   atomic.Bool

	pingStop chan struct{}
	pingDone chan struct{}

	eventsMu        sync.Mutex
	onConnected     []func()
	onDisconnected  []func()
	onMessage       []channel.MessageHandler
	onMessageSent   []channel.MessageHandler
	onPingCompleted []func(rtt time.Duration)
}

// New creates a Client targeting endpoint with the given socket options.
func New(endpoint transport.Endpoint, opts transport.SocketOptions, logger *slog.Logger) *Client {
	c := &Client{
		endpoint:       endpoint,
		socketOptions:  opts,
		connectTimeout: DefaultConnectTimeout,
		logger:         logger,
		state:          channel.Disconnected,
		pending:        make(map[string]time.Time),
	}
	c.pingIntervalNanos.Store(int64(DefaultPingInterval))
	return c
}

// SetConnectTimeout overrides DefaultConnectTimeout.
func (c *Client) SetConnectTimeout(d time.Duration) { c.connectTimeout = d }

// PingInterval returns the current ping period.
func (c *Client) PingInterval() time.Duration {
	return time.Duration(c.pingIntervalNanos.Load())
}

// SetPingInterval changes the ping period. May be called at any time,
// including while connected; the new period is observed on the timer's
// next tick.
func (c *Client) SetPingInterval(d time.Duration) {
	c.pingIntervalNanos.Store(int64(d))
}

// CommunicationState returns the client's current state.
func (c *Client) CommunicationState() channel.State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// LastPingRtt returns the most recently observed RTT and whether any ping
// has completed yet. Invariant 4: both are either absent or present.
func (c *Client) LastPingRtt() (time.Duration, bool) {
	if !c.hasLastPing.Load() {
		return 0, false
	}
	return time.Duration(c.lastPingNanos.Load()), true
}

// AveragePingRtt returns the arithmetic mean of the last 10 completed
// pings and whether any have completed yet.
func (c *Client) AveragePingRtt() (time.Duration, bool) {
	return c.rtt.average()
}

// OnConnected registers a handler invoked when Connect succeeds.
func (c *Client) OnConnected(h func()) {
	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()
	c.onConnected = append(c.onConnected, h)
}

// OnDisconnected registers a handler invoked when the client transitions
// to Disconnected.
func (c *Client) OnDisconnected(h func()) {
	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()
	c.onDisconnected = append(c.onDisconnected, h)
}

// OnMessageReceived registers a handler invoked for every non-ping
// message received.
func (c *Client) OnMessageReceived(h channel.MessageHandler) {
	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()
	c.onMessage = append(c.onMessage, h)
}

// OnMessageSent registers a handler invoked after every successful send.
func (c *Client) OnMessageSent(h channel.MessageHandler) {
	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()
	c.onMessageSent = append(c.onMessageSent, h)
}

// OnPingCompleted registers a handler invoked when a fresh ping this
// client sent receives its matching pong.
func (c *Client) OnPingCompleted(h func(rtt time.Duration)) {
	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()
	c.onPingCompleted = append(c.onPingCompleted, h)
}

// Connect is only valid when Disconnected. It resets the wire protocol
// (implicitly, by building a fresh channel), dials a fresh channel,
// wires channel events, starts the ping timer and emits Connected. A
// connect attempt failing within ConnectTimeout returns a connection
// error; the client stays Disconnected.
func (c *Client) Connect() error {
	c.stateMu.Lock()
	if c.state == channel.Connected {
		c.stateMu.Unlock()
		return ErrAlreadyConnected
	}
	c.stateMu.Unlock()

	conn, err := transport.DialTimeout(c.endpoint, c.socketOptions, c.connectTimeout)
	if err != nil {
		return fmt.Errorf("client: connect: %w", err)
	}

	ch := channel.New(conn, c.socketOptions, c.logger)
	ch.OnMessageReceived(c.handleMessageReceived)
	ch.OnDisconnected(c.handleChannelDisconnected)

	c.stateMu.Lock()
	c.ch = ch
	c.state = channel.Connected
	c.stateMu.Unlock()

	ch.Start()

	c.pendingMu.Lock()
	c.pending = make(map[string]time.Time)
	c.pendingMu.Unlock()

	c.pingStop = make(chan struct{})
	c.pingDone = make(chan struct{})
	go c.pingLoop(ch, c.pingStop, c.pingDone)

	c.fireConnected()
	return nil
}

// Disconnect is a no-op if not Connected; otherwise it asks the channel to
// disconnect, which in turn stops the ping timer, clears the pending-ping
// map, and emits the client's Disconnected event.
func (c *Client) Disconnect() {
	c.stateMu.Lock()
	ch := c.ch
	if c.state != channel.Connected {
		c.stateMu.Unlock()
		return
	}
	c.stateMu.Unlock()

	if ch != nil {
		ch.Disconnect()
	}
}

// SendMessage fails with a state error if not Connected; otherwise it
// delegates to the channel, handling the ping-specific pending-map
// bookkeeping before the underlying write.
func (c *Client) SendMessage(m wire.Message) error {
	c.stateMu.Lock()
	ch := c.ch
	connected := c.state == channel.Connected
	c.stateMu.Unlock()

	if !connected || ch == nil {
		return ErrNotConnected
	}

	if ping, ok := m.(*wire.PingMessage); ok && ping.RepliedMessageID == "" {
		c.pendingMu.Lock()
		c.pending[ping.MessageID] = time.Now()
		c.pendingMu.Unlock()
	}

	if err := ch.SendMessage(m); err != nil {
		return err
	}

	c.eventsMu.Lock()
	handlers := append([]channel.MessageHandler(nil), c.onMessageSent...)
	c.eventsMu.Unlock()
	for _, h := range handlers {
		h(m)
	}
	return nil
}

func (c *Client) handleMessageReceived(m wire.Message) {
	if ping, ok := m.(*wire.PingMessage); ok {
		c.handlePingReceived(ping)
		return
	}

	c.eventsMu.Lock()
	handlers := append([]channel.MessageHandler(nil), c.onMessage...)
	c.eventsMu.Unlock()
	for _, h := range handlers {
		h(m)
	}
}

func (c *Client) handlePingReceived(ping *wire.PingMessage) {
	if ping.RepliedMessageID == "" {
		return
	}

	c.pendingMu.Lock()
	sentAt, ok := c.pending[ping.RepliedMessageID]
	if ok {
		delete(c.pending, ping.RepliedMessageID)
	}
	c.pendingMu.Unlock()

	if !ok {
		return
	}

	rtt := time.Since(sentAt)
	if rtt < 0 {
		rtt = 0
	}

	c.lastPingNanos.Store(int64(rtt))
	c.hasLastPing.Store(true)
	c.rtt.push(rtt)

	c.eventsMu.Lock()
	handlers := append([]func(time.Duration){}, c.onPingCompleted...)
	c.eventsMu.Unlock()
	for _, h := range handlers {
		h(rtt)
	}
}

func (c *Client) handleChannelDisconnected() {
	c.stateMu.Lock()
	c.state = channel.Disconnected
	c.stateMu.Unlock()

	if c.pingStop != nil {
		close(c.pingStop)
	}

	c.pendingMu.Lock()
	c.pending = make(map[string]time.Time)
	c.pendingMu.Unlock()

	c.fireDisconnected()
}

// pingLoop fires a fresh PingMessage every PingInterval, unless the
// channel has seen traffic more recently than quiescenceThreshold in
// either direction. Transport failures are traced and swallowed — ping
// failures never propagate out of the timer.
func (c *Client) pingLoop(ch *channel.Channel, stop, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(c.PingInterval())
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
			c.maybeSendPing(ch)
			timer.Reset(c.PingInterval())
		}
	}
}

func (c *Client) maybeSendPing(ch *channel.Channel) {
	now := time.Now()
	lastRecv := ch.LastReceivedMessageTime()
	lastSent := ch.LastSentMessageTime()

	if !lastRecv.IsZero() && now.Sub(lastRecv) < quiescenceThreshold {
		return
	}
	if !lastSent.IsZero() && now.Sub(lastSent) < quiescenceThreshold {
		return
	}

	if err := c.SendMessage(wire.NewPingMessage()); err != nil && c.logger != nil {
		c.logger.Warn("client: ping send failed", "error", err)
	}
}

func (c *Client) fireConnected() {
	c.eventsMu.Lock()
	handlers := append([]func(){}, c.onConnected...)
	c.eventsMu.Unlock()
	for _, h := range handlers {
		h()
	}
}

func (c *Client) fireDisconnected() {
	c.eventsMu.Lock()
	handlers := append([]func(){}, c.onDisconnected...)
	c.eventsMu.Unlock()
	for _, h := range handlers {
		h()
	}
}

// ConnectCtx is a context-aware convenience wrapper honoring ctx's
// deadline in place of ConnectTimeout.
func (c *Client) ConnectCtx(ctx context.Context) error {
	if deadline, ok := ctx.Deadline(); ok {
		saved := c.connectTimeout
		c.connectTimeout = time.Until(deadline)
		defer func() { c.connectTimeout = saved }()
	}
	return c.Connect()
}
