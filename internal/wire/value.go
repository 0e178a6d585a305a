// Copyright (c) 2026 The Duplex Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package wire

// ValueKind discriminates the primitive parameter union. A richer object
// graph is not supported — this is a conscious constraint of the wire
// format.
type ValueKind byte

const (
	KindNull ValueKind = iota
	KindInt32
	KindString
	KindInt64
	KindFloat64
	KindBool
	KindBytes
)

// Value is a tagged primitive: null, i32, i64, float64, bool, string or
// raw bytes. Exactly one of the typed fields is meaningful, selected by
// Kind.
type Value struct {
	Kind ValueKind
	I32  int32
	I64  int64
	F64  float64
	B    bool
	Str  string
	Bin  []byte
}

// NullValue returns the null member of the union.
func NullValue() Value { return Value{Kind: KindNull} }

// Int32Value wraps a 32-bit integer.
func Int32Value(v int32) Value { return Value{Kind: KindInt32, I32: v} }

// Int64Value wraps a 64-bit integer.
func Int64Value(v int64) Value { return Value{Kind: KindInt64, I64: v} }

// Float64Value wraps a double.
func Float64Value(v float64) Value { return Value{Kind: KindFloat64, F64: v} }

// BoolValue wraps a boolean.
func BoolValue(v bool) Value { return Value{Kind: KindBool, B: v} }

// StringValue wraps a UTF-8 string.
func StringValue(v string) Value { return Value{Kind: KindString, Str: v} }

// BytesValue wraps a raw byte sequence.
func BytesValue(v []byte) Value { return Value{Kind: KindBytes, Bin: v} }

// Equal reports whether two values carry the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindInt32:
		return v.I32 == o.I32
	case KindInt64:
		return v.I64 == o.I64
	case KindFloat64:
		return v.F64 == o.F64
	case KindBool:
		return v.B == o.B
	case KindString:
		return v.Str == o.Str
	case KindBytes:
		if len(v.Bin) != len(o.Bin) {
			return false
		}
		for i := range v.Bin {
			if v.Bin[i] != o.Bin[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}
