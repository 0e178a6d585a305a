// Copyright (c) 2026 The Duplex Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package rmi is the optional synchronous remote-method-invocation layer
// built entirely on top of internal/wire's RemoteInvokeMessage and
// RemoteInvokeReturnMessage. It is a minimal reflection-based registry
// and dispatcher, not a proxy code generator — no stub source is
// produced for either side.
package rmi

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/duplexrt/duplex/internal/server"
	"github.com/duplexrt/duplex/internal/wire"
)

// ServiceVersion is reported back on every remote exception; the client
// preserves it verbatim.
const ServiceVersion = "1"

// Registry is the server-side collection of named service objects,
// dispatched to by reflection on (ServiceClass, Method).
type Registry struct {
	logger   *slog.Logger
	services map[string]reflect.Value
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger, services: make(map[string]reflect.Value)}
}

// Register exposes svc under serviceClass. Exported methods whose
// signature is func(wire.Value...) (wire.Value, error) or
// func() (wire.Value, error) become callable; see convert.go for the
// exact parameter/return conversion rules.
func (r *Registry) Register(serviceClass string, svc any) {
	r.services[serviceClass] = reflect.ValueOf(svc)
}

// Attach wires the registry into srv: every accepted server-client gets a
// RemoteInvokeMessage handler that dispatches through this registry and
// replies with a RemoteInvokeReturnMessage.
func (r *Registry) Attach(srv *server.Server) {
	srv.OnClientConnected(func(sc *server.ServerClient) {
		sc.OnMessageReceived(func(m wire.Message) {
			invoke, ok := m.(*wire.RemoteInvokeMessage)
			if !ok {
				return
			}
			reply := r.Dispatch(invoke)
			if err := sc.SendMessage(reply); err != nil && r.logger != nil {
				r.logger.Warn("rmi: sending invoke reply failed", "error", err)
			}
		})
	})
}

// Dispatch invokes the requested method and builds the reply message,
// recovering from any panic raised by the service method and surfacing it
// as a remote exception rather than crashing the receive pump.
func (r *Registry) Dispatch(invoke *wire.RemoteInvokeMessage) (reply *wire.RemoteInvokeReturnMessage) {
	defer func() {
		if p := recover(); p != nil {
			reply = wire.NewRemoteInvokeException(invoke.MessageID, &wire.RemoteException{
				Message:        fmt.Sprintf("panic in %s.%s: %v", invoke.ServiceClass, invoke.Method, p),
				ServiceVersion: ServiceVersion,
			})
		}
	}()

	svc, ok := r.services[invoke.ServiceClass]
	if !ok {
		return wire.NewRemoteInvokeException(invoke.MessageID, &wire.RemoteException{
			Message:        fmt.Sprintf("no such service: %q", invoke.ServiceClass),
			ServiceVersion: ServiceVersion,
		})
	}

	method := svc.MethodByName(invoke.Method)
	if !method.IsValid() {
		return wire.NewRemoteInvokeException(invoke.MessageID, &wire.RemoteException{
			Message:        fmt.Sprintf("no such method: %s.%s", invoke.ServiceClass, invoke.Method),
			ServiceVersion: ServiceVersion,
		})
	}

	args, err := convertParams(method.Type(), invoke.Params)
	if err != nil {
		return wire.NewRemoteInvokeException(invoke.MessageID, &wire.RemoteException{
			Message:        err.Error(),
			ServiceVersion: ServiceVersion,
		})
	}

	results := method.Call(args)

	if errVal, hasErr := lastReturnedError(method.Type(), results); hasErr && errVal != nil {
		return wire.NewRemoteInvokeException(invoke.MessageID, &wire.RemoteException{
			Message:        errVal.Error(),
			ServiceVersion: ServiceVersion,
		})
	}

	ret, err := firstReturnedValue(method.Type(), results)
	if err != nil {
		return wire.NewRemoteInvokeException(invoke.MessageID, &wire.RemoteException{
			Message:        err.Error(),
			ServiceVersion: ServiceVersion,
		})
	}

	return wire.NewRemoteInvokeReturn(invoke.MessageID, ret)
}
