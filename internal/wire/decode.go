// Copyright (c) 2026 The Duplex Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// byteReader walks a payload slice field by field, erroring on truncation.
type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) readByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, ErrTruncatedMessage
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *byteReader) readN(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, ErrTruncatedMessage
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *byteReader) readUint32() (uint32, error) {
	b, err := r.readN(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *byteReader) readUint64() (uint64, error) {
	b, err := r.readN(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *byteReader) readString() (string, error) {
	n, err := r.readUint32()
	if err != nil {
		return "", err
	}
	b, err := r.readN(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *byteReader) readOptString() (*string, error) {
	present, err := r.readByte()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	s, err := r.readString()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *byteReader) readOptBytes() ([]byte, error) {
	present, err := r.readByte()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	n, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	b, err := r.readN(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (r *byteReader) readParams() ([]Value, error) {
	rawLen, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	length := int32(rawLen)
	if length < 0 {
		return nil, nil
	}
	params := make([]Value, length)
	for i := range params {
		v, err := r.readValue()
		if err != nil {
			return nil, err
		}
		params[i] = v
	}
	return params, nil
}

func (r *byteReader) readValue() (Value, error) {
	tag, err := r.readByte()
	if err != nil {
		return Value{}, err
	}
	switch ValueKind(tag) {
	case KindNull:
		return NullValue(), nil
	case KindInt32:
		u, err := r.readUint32()
		if err != nil {
			return Value{}, err
		}
		return Int32Value(int32(u)), nil
	case KindInt64:
		u, err := r.readUint64()
		if err != nil {
			return Value{}, err
		}
		return Int64Value(int64(u)), nil
	case KindFloat64:
		u, err := r.readUint64()
		if err != nil {
			return Value{}, err
		}
		return Float64Value(math.Float64frombits(u)), nil
	case KindBool:
		b, err := r.readByte()
		if err != nil {
			return Value{}, err
		}
		return BoolValue(b != 0), nil
	case KindString:
		s, err := r.readString()
		if err != nil {
			return Value{}, err
		}
		return StringValue(s), nil
	case KindBytes:
		n, err := r.readUint32()
		if err != nil {
			return Value{}, err
		}
		b, err := r.readN(int(n))
		if err != nil {
			return Value{}, err
		}
		return BytesValue(append([]byte(nil), b...)), nil
	default:
		return Value{}, fmt.Errorf("wire: unknown value kind %d", tag)
	}
}

// decodeMessage parses payload into a Message, dispatching on its tag byte.
func decodeMessage(payload []byte) (Message, error) {
	r := &byteReader{buf: payload}

	tagByte, err := r.readByte()
	if err != nil {
		return nil, err
	}

	messageID, err := r.readString()
	if err != nil {
		return nil, err
	}
	repliedID, err := r.readString()
	if err != nil {
		return nil, err
	}
	common := Common{MessageID: messageID, RepliedMessageID: repliedID}

	switch Tag(tagByte) {
	case TagBase:
		return &BaseMessage{Common: common}, nil

	case TagText:
		text, err := r.readOptString()
		if err != nil {
			return nil, err
		}
		return &TextMessage{Common: common, Text: text}, nil

	case TagRawData:
		data, err := r.readOptBytes()
		if err != nil {
			return nil, err
		}
		return &RawDataMessage{Common: common, Data: data}, nil

	case TagPing:
		return &PingMessage{Common: common}, nil

	case TagRemoteInvoke:
		serviceClass, err := r.readString()
		if err != nil {
			return nil, err
		}
		method, err := r.readString()
		if err != nil {
			return nil, err
		}
		params, err := r.readParams()
		if err != nil {
			return nil, err
		}
		return &RemoteInvokeMessage{
			Common:       common,
			ServiceClass: serviceClass,
			Method:       method,
			Params:       params,
		}, nil

	case TagRemoteInvokeReturn:
		hasValue, err := r.readByte()
		if err != nil {
			return nil, err
		}
		var value *Value
		if hasValue != 0 {
			v, err := r.readValue()
			if err != nil {
				return nil, err
			}
			value = &v
		}

		hasExc, err := r.readByte()
		if err != nil {
			return nil, err
		}
		var exc *RemoteException
		if hasExc != 0 {
			msg, err := r.readString()
			if err != nil {
				return nil, err
			}
			ver, err := r.readString()
			if err != nil {
				return nil, err
			}
			exc = &RemoteException{Message: msg, ServiceVersion: ver}
		}

		return &RemoteInvokeReturnMessage{Common: common, Value: value, Exception: exc}, nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownTag, tagByte)
	}
}
