// Copyright (c) 2026 The Duplex Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ProtocolVersion is the version byte written after the length prefix of
// every frame. A reimplementation MUST NOT interoperate with mismatched
// version bytes.
const ProtocolVersion byte = 0x01

// MaxPayloadLen is the largest payload a single frame may carry (128 MiB).
const MaxPayloadLen = 128 * 1024 * 1024

// frameHeaderLen is the 4-byte length prefix plus the 1-byte version.
const frameHeaderLen = 5

// Protocol errors.
var (
	ErrPayloadTooLarge  = errors.New("wire: payload exceeds max frame length")
	ErrInvalidVersion   = errors.New("wire: unsupported protocol version byte")
	ErrUnknownTag       = errors.New("wire: unknown message tag")
	ErrTruncatedMessage = errors.New("wire: truncated message payload")
)

// Protocol frames and serializes/deserializes messages for one connection.
// It is restartable via Reset and is not safe for concurrent use — a
// channel uses it only from its single receive pump.
type Protocol struct {
	accumulator bytes.Buffer
}

// NewProtocol returns a fresh Protocol instance.
func NewProtocol() *Protocol {
	return &Protocol{}
}

// Reset discards the accumulator. The channel package does not call it: a
// (re)connect builds a new channel with a fresh Protocol instead.
func (p *Protocol) Reset() {
	p.accumulator.Reset()
}

// GetBytes serializes message, prepends the 4-byte big-endian length and
// the version byte, and returns a single contiguous byte sequence.
func GetBytes(m Message) ([]byte, error) {
	payload, err := encodeMessage(m)
	if err != nil {
		return nil, fmt.Errorf("wire: encoding message: %w", err)
	}
	if len(payload) > MaxPayloadLen {
		return nil, ErrPayloadTooLarge
	}

	out := make([]byte, frameHeaderLen+len(payload))
	binary.BigEndian.PutUint32(out[0:4], uint32(len(payload)))
	out[4] = ProtocolVersion
	copy(out[frameHeaderLen:], payload)
	return out, nil
}

// CreateMessages appends chunk to the internal accumulator, then
// repeatedly extracts whole frames, returning a (possibly empty) ordered
// sequence of deserialized messages. Remaining bytes stay in the
// accumulator for the next call. Never blocks; not thread-safe.
func (p *Protocol) CreateMessages(chunk []byte) ([]Message, error) {
	if len(chunk) > 0 {
		p.accumulator.Write(chunk)
	}

	var messages []Message
	buf := p.accumulator.Bytes()
	consumed := 0

	for {
		remaining := buf[consumed:]
		if len(remaining) < frameHeaderLen {
			break
		}

		payloadLen := binary.BigEndian.Uint32(remaining[0:4])
		if payloadLen > MaxPayloadLen {
			p.accumulator.Reset()
			return nil, ErrPayloadTooLarge
		}

		version := remaining[4]
		if version != ProtocolVersion {
			p.accumulator.Reset()
			return nil, ErrInvalidVersion
		}

		frameLen := frameHeaderLen + int(payloadLen)
		if len(remaining) < frameLen {
			break // wait for more bytes
		}

		payload := remaining[frameHeaderLen:frameLen]
		msg, err := decodeMessage(payload)
		if err != nil {
			p.accumulator.Reset()
			return nil, fmt.Errorf("wire: decoding message: %w", err)
		}

		messages = append(messages, msg)
		consumed += frameLen
	}

	// Keep only the unconsumed tail (invariant 6).
	tail := append([]byte(nil), buf[consumed:]...)
	p.accumulator.Reset()
	p.accumulator.Write(tail)

	return messages, nil
}
