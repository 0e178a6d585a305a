// Copyright (c) 2026 The Duplex Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// encodeMessage serializes m as: [1B tag][common fields][variant fields].
func encodeMessage(m Message) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(m.Tag()))

	c := m.Common()
	writeString(&buf, c.MessageID)
	writeString(&buf, c.RepliedMessageID)

	switch v := m.(type) {
	case *BaseMessage:
		// no variant fields

	case *TextMessage:
		writeOptString(&buf, v.Text)

	case *RawDataMessage:
		writeOptBytes(&buf, v.Data)

	case *PingMessage:
		// no variant fields

	case *RemoteInvokeMessage:
		writeString(&buf, v.ServiceClass)
		writeString(&buf, v.Method)
		if err := writeParams(&buf, v.Params); err != nil {
			return nil, err
		}

	case *RemoteInvokeReturnMessage:
		if v.Value != nil {
			buf.WriteByte(1)
			if err := writeValue(&buf, *v.Value); err != nil {
				return nil, err
			}
		} else {
			buf.WriteByte(0)
		}
		if v.Exception != nil {
			buf.WriteByte(1)
			writeString(&buf, v.Exception.Message)
			writeString(&buf, v.Exception.ServiceVersion)
		} else {
			buf.WriteByte(0)
		}

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownTag, m)
	}

	return buf.Bytes(), nil
}

func writeString(buf *bytes.Buffer, s string) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	buf.Write(lenBuf[:])
	buf.WriteString(s)
}

// writeOptString encodes a nullable string as [bool present][len][bytes].
func writeOptString(buf *bytes.Buffer, s *string) {
	if s == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	writeString(buf, *s)
}

// writeOptBytes encodes a nullable byte sequence. nil means absent,
// distinct from a present zero-length slice.
func writeOptBytes(buf *bytes.Buffer, b []byte) {
	if b == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf.Write(lenBuf[:])
	buf.Write(b)
}

// writeParams encodes a parameter array as [i32 length, -1 for null][element...].
func writeParams(buf *bytes.Buffer, params []Value) error {
	var lenBuf [4]byte
	if params == nil {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(int32(-1)))
		buf.Write(lenBuf[:])
		return nil
	}
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(params)))
	buf.Write(lenBuf[:])
	for _, p := range params {
		if err := writeValue(buf, p); err != nil {
			return err
		}
	}
	return nil
}

// writeValue encodes a single tagged primitive: [u8 type tag][value].
func writeValue(buf *bytes.Buffer, v Value) error {
	buf.WriteByte(byte(v.Kind))
	switch v.Kind {
	case KindNull:
		// nothing more
	case KindInt32:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(v.I32))
		buf.Write(b[:])
	case KindInt64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(v.I64))
		buf.Write(b[:])
	case KindFloat64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(v.F64))
		buf.Write(b[:])
	case KindBool:
		if v.B {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case KindString:
		writeString(buf, v.Str)
	case KindBytes:
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v.Bin)))
		buf.Write(lenBuf[:])
		buf.Write(v.Bin)
	default:
		return fmt.Errorf("wire: unknown value kind %d", v.Kind)
	}
	return nil
}
