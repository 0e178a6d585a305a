// Copyright (c) 2026 The Duplex Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package client

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/duplexrt/duplex/internal/channel"
)

// DefaultReConnectCheckPeriod is used outside of tests; tests typically
// use a much shorter period to keep runtime down.
const DefaultReConnectCheckPeriod = 20 * time.Second

// Reconnector is an auxiliary component, owned by the application, that
// periodically checks a Client's state and calls Connect while it is
// Disconnected. It has an independent lifecycle from the Client it
// watches.
type Reconnector struct {
	client *Client
	logger *slog.Logger

	periodNanos atomic.Int64

	mu       sync.Mutex
	stopCh   chan struct{}
	wg       sync.WaitGroup
	disposed bool
}

// NewReconnector creates a Reconnector watching client.
func NewReconnector(c *Client, logger *slog.Logger) *Reconnector {
	r := &Reconnector{client: c, logger: logger}
	r.periodNanos.Store(int64(DefaultReConnectCheckPeriod))
	return r
}

// ReConnectCheckPeriod returns the current check period.
func (r *Reconnector) ReConnectCheckPeriod() time.Duration {
	return time.Duration(r.periodNanos.Load())
}

// SetReConnectCheckPeriod changes the check period; observed on the next
// tick.
func (r *Reconnector) SetReConnectCheckPeriod(d time.Duration) {
	r.periodNanos.Store(int64(d))
}

// Start begins the periodic check loop.
func (r *Reconnector) Start() {
	r.mu.Lock()
	if r.disposed || r.stopCh != nil {
		r.mu.Unlock()
		return
	}
	r.stopCh = make(chan struct{})
	stopCh := r.stopCh
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(stopCh)
}

func (r *Reconnector) run(stopCh chan struct{}) {
	defer r.wg.Done()

	timer := time.NewTimer(r.ReConnectCheckPeriod())
	defer timer.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-timer.C:
			if r.client.CommunicationState() == channel.Disconnected {
				if err := r.client.Connect(); err != nil && r.logger != nil {
					r.logger.Debug("reconnector: connect attempt failed", "error", err)
				}
			}
			timer.Reset(r.ReConnectCheckPeriod())
		}
	}
}

// Stop halts the check loop without touching the client. Safe to call
// multiple times.
func (r *Reconnector) Stop() {
	r.mu.Lock()
	stopCh := r.stopCh
	r.stopCh = nil
	r.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
	}
	r.wg.Wait()
}

// Dispose stops the timer permanently; the Reconnector may not be
// restarted afterward.
func (r *Reconnector) Dispose() {
	r.Stop()
	r.mu.Lock()
	r.disposed = true
	r.mu.Unlock()
}
