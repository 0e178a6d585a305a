// Copyright (c) 2026 The Duplex Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package rmi

import (
	"context"
	"fmt"
	"sync"

	"github.com/duplexrt/duplex/internal/client"
	"github.com/duplexrt/duplex/internal/wire"
)

// RemoteError is the client-side representation of a service method that
// raised an exception, preserving at least the message string and the
// service version string.
type RemoteError struct {
	Message        string
	ServiceVersion string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error (service v%s): %s", e.ServiceVersion, e.Message)
}

// Invoker drives synchronous RemoteInvokeMessage calls over a Client,
// mirroring the client package's own pending-ping bookkeeping pattern: a
// pending-calls map keyed by MessageID, resolved from the channel's
// receive pump and delivered to the blocked caller through a channel.
type Invoker struct {
	c *client.Client

	mu      sync.Mutex
	pending map[string]chan *wire.RemoteInvokeReturnMessage
}

// NewInvoker wires an Invoker onto c. Call before c.Connect so no reply
// can race ahead of the handler registration.
func NewInvoker(c *client.Client) *Invoker {
	inv := &Invoker{c: c, pending: make(map[string]chan *wire.RemoteInvokeReturnMessage)}
	c.OnMessageReceived(inv.handleMessage)
	return inv
}

func (inv *Invoker) handleMessage(m wire.Message) {
	ret, ok := m.(*wire.RemoteInvokeReturnMessage)
	if !ok {
		return
	}

	inv.mu.Lock()
	ch, found := inv.pending[ret.RepliedMessageID]
	if found {
		delete(inv.pending, ret.RepliedMessageID)
	}
	inv.mu.Unlock()

	if found {
		ch <- ret
	}
}

// Call invokes method on serviceClass with params, blocking until the
// matching RemoteInvokeReturnMessage arrives or ctx is done. A remote
// exception is returned as *RemoteError.
func (inv *Invoker) Call(ctx context.Context, serviceClass, method string, params ...wire.Value) (wire.Value, error) {
	req := wire.NewRemoteInvokeMessage(serviceClass, method, params)

	replyCh := make(chan *wire.RemoteInvokeReturnMessage, 1)
	inv.mu.Lock()
	inv.pending[req.MessageID] = replyCh
	inv.mu.Unlock()

	if err := inv.c.SendMessage(req); err != nil {
		inv.mu.Lock()
		delete(inv.pending, req.MessageID)
		inv.mu.Unlock()
		return wire.Value{}, fmt.Errorf("rmi: sending invoke: %w", err)
	}

	select {
	case ret := <-replyCh:
		if ret.Exception != nil {
			return wire.Value{}, &RemoteError{
				Message:        ret.Exception.Message,
				ServiceVersion: ret.Exception.ServiceVersion,
			}
		}
		if ret.Value != nil {
			return *ret.Value, nil
		}
		return wire.NullValue(), nil
	case <-ctx.Done():
		inv.mu.Lock()
		delete(inv.pending, req.MessageID)
		inv.mu.Unlock()
		return wire.Value{}, ctx.Err()
	}
}
