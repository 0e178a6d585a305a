// Copyright (c) 2026 The Duplex Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package wire implements the duplex binary protocol: a closed set of
// tagged-union messages and the length-prefixed framing used to move them
// over a byte-stream transport.
package wire

import "github.com/rs/xid"

// Tag identifies which Message variant a frame's payload decodes to.
type Tag byte

const (
	TagBase Tag = iota
	TagText
	TagRawData
	TagPing
	TagRemoteInvoke
	TagRemoteInvokeReturn
)

// Message is the sealed variant type every wire frame carries. Concrete
// variants are BaseMessage, TextMessage, RawDataMessage, PingMessage,
// RemoteInvokeMessage and RemoteInvokeReturnMessage.
type Message interface {
	Tag() Tag
	Common() *Common
}

// Common holds the two fields every variant carries.
type Common struct {
	MessageID        string
	RepliedMessageID string
}

// NewMessageID returns a unique identifier suitable for MessageId.
func NewMessageID() string {
	return xid.New().String()
}

// Common implementations satisfy the Message interface's Common() accessor.

func (m *BaseMessage) Tag() Tag                  { return TagBase }
func (m *BaseMessage) Common() *Common           { return &m.Common }
func (m *TextMessage) Tag() Tag                  { return TagText }
func (m *TextMessage) Common() *Common           { return &m.Common }
func (m *RawDataMessage) Tag() Tag               { return TagRawData }
func (m *RawDataMessage) Common() *Common        { return &m.Common }
func (m *PingMessage) Tag() Tag                  { return TagPing }
func (m *PingMessage) Common() *Common           { return &m.Common }
func (m *RemoteInvokeMessage) Tag() Tag          { return TagRemoteInvoke }
func (m *RemoteInvokeMessage) Common() *Common   { return &m.Common }
func (m *RemoteInvokeReturnMessage) Tag() Tag        { return TagRemoteInvokeReturn }
func (m *RemoteInvokeReturnMessage) Common() *Common { return &m.Common }

// BaseMessage carries only the common fields.
type BaseMessage struct {
	Common
}

// TextMessage carries an optional UTF-8 string payload.
type TextMessage struct {
	Common
	Text *string
}

// RawDataMessage carries an optional raw byte payload.
type RawDataMessage struct {
	Common
	Data []byte // nil means "absent", distinct from a zero-length slice
}

// PingMessage is a liveness probe. A pong is a PingMessage whose
// RepliedMessageID equals the original ping's MessageID.
type PingMessage struct {
	Common
}

// RemoteInvokeMessage asks the server to invoke Method on the service
// named ServiceClass, with Params in the closed primitive union.
type RemoteInvokeMessage struct {
	Common
	ServiceClass string
	Method       string
	Params       []Value
}

// RemoteException is a faithfully propagated remote-side failure.
type RemoteException struct {
	Message        string
	ServiceVersion string
}

func (e *RemoteException) Error() string { return e.Message }

// RemoteInvokeReturnMessage carries either a return Value or a
// RemoteException, never both.
type RemoteInvokeReturnMessage struct {
	Common
	Value     *Value
	Exception *RemoteException
}

// NewTextMessage builds a TextMessage with a fresh MessageID.
func NewTextMessage(text string) *TextMessage {
	return &TextMessage{Common: Common{MessageID: NewMessageID()}, Text: &text}
}

// NewRawDataMessage builds a RawDataMessage with a fresh MessageID.
func NewRawDataMessage(data []byte) *RawDataMessage {
	return &RawDataMessage{Common: Common{MessageID: NewMessageID()}, Data: data}
}

// NewPingMessage builds a fresh (non-reply) PingMessage.
func NewPingMessage() *PingMessage {
	return &PingMessage{Common: Common{MessageID: NewMessageID()}}
}

// NewPingReply builds a PingMessage replying to original.
func NewPingReply(original *PingMessage) *PingMessage {
	return &PingMessage{Common: Common{
		MessageID:        NewMessageID(),
		RepliedMessageID: original.MessageID,
	}}
}

// NewRemoteInvokeMessage builds a RemoteInvokeMessage with a fresh MessageID.
func NewRemoteInvokeMessage(serviceClass, method string, params []Value) *RemoteInvokeMessage {
	return &RemoteInvokeMessage{
		Common:       Common{MessageID: NewMessageID()},
		ServiceClass: serviceClass,
		Method:       method,
		Params:       params,
	}
}

// NewRemoteInvokeReturn builds a reply carrying a return value.
func NewRemoteInvokeReturn(repliedTo string, value Value) *RemoteInvokeReturnMessage {
	return &RemoteInvokeReturnMessage{
		Common: Common{MessageID: NewMessageID(), RepliedMessageID: repliedTo},
		Value:  &value,
	}
}

// NewRemoteInvokeException builds a reply carrying a remote exception.
func NewRemoteInvokeException(repliedTo string, exc *RemoteException) *RemoteInvokeReturnMessage {
	return &RemoteInvokeReturnMessage{
		Common:    Common{MessageID: NewMessageID(), RepliedMessageID: repliedTo},
		Exception: exc,
	}
}
