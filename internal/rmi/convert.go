// Copyright (c) 2026 The Duplex Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package rmi

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/duplexrt/duplex/internal/wire"
)

var errType = reflect.TypeOf((*error)(nil)).Elem()

var valueType = reflect.TypeOf(wire.Value{})

// convertParams maps the closed wire.Value union onto a method's declared
// parameter types. The number of parameters must match exactly; a richer
// object graph is not supported.
func convertParams(fn reflect.Type, params []wire.Value) ([]reflect.Value, error) {
	if fn.NumIn() != len(params) {
		return nil, fmt.Errorf("rmi: method expects %d parameters, got %d", fn.NumIn(), len(params))
	}

	args := make([]reflect.Value, len(params))
	for i, p := range params {
		want := fn.In(i)
		v, err := valueToReflect(p, want)
		if err != nil {
			return nil, fmt.Errorf("rmi: parameter %d: %w", i, err)
		}
		args[i] = v
	}
	return args, nil
}

func valueToReflect(v wire.Value, want reflect.Type) (reflect.Value, error) {
	if want == valueType {
		return reflect.ValueOf(v), nil
	}
	switch v.Kind {
	case wire.KindNull:
		return reflect.Zero(want), nil
	case wire.KindInt32:
		return reflect.ValueOf(v.I32).Convert(want), nil
	case wire.KindInt64:
		return reflect.ValueOf(v.I64).Convert(want), nil
	case wire.KindFloat64:
		return reflect.ValueOf(v.F64).Convert(want), nil
	case wire.KindBool:
		return reflect.ValueOf(v.B).Convert(want), nil
	case wire.KindString:
		return reflect.ValueOf(v.Str).Convert(want), nil
	case wire.KindBytes:
		return reflect.ValueOf(v.Bin).Convert(want), nil
	default:
		return reflect.Value{}, fmt.Errorf("unknown value kind %d", v.Kind)
	}
}

// lastReturnedError reports whether fn's final return value is an error
// and, if so, extracts it (nil if the call succeeded).
func lastReturnedError(fn reflect.Type, results []reflect.Value) (error, bool) {
	n := fn.NumOut()
	if n == 0 || fn.Out(n-1) != errType {
		return nil, false
	}
	errVal := results[n-1]
	if errVal.IsNil() {
		return nil, true
	}
	return errVal.Interface().(error), true
}

// firstReturnedValue converts a method's first non-error return value
// into the wire.Value union. A method with only an error return yields
// wire.NullValue().
func firstReturnedValue(fn reflect.Type, results []reflect.Value) (wire.Value, error) {
	n := fn.NumOut()
	hasTrailingError := n > 0 && fn.Out(n-1) == errType
	valueCount := n
	if hasTrailingError {
		valueCount--
	}

	if valueCount == 0 {
		return wire.NullValue(), nil
	}
	if valueCount > 1 {
		return wire.Value{}, errors.New("rmi: methods may return at most one value plus an error")
	}

	return reflectToValue(results[0])
}

func reflectToValue(rv reflect.Value) (wire.Value, error) {
	if rv.IsValid() && rv.Type() == valueType {
		return rv.Interface().(wire.Value), nil
	}
	switch rv.Kind() {
	case reflect.Invalid:
		return wire.NullValue(), nil
	case reflect.Int32, reflect.Int, reflect.Int16, reflect.Int8:
		return wire.Int32Value(int32(rv.Int())), nil
	case reflect.Int64:
		return wire.Int64Value(rv.Int()), nil
	case reflect.Float32, reflect.Float64:
		return wire.Float64Value(rv.Float()), nil
	case reflect.Bool:
		return wire.BoolValue(rv.Bool()), nil
	case reflect.String:
		return wire.StringValue(rv.String()), nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return wire.BytesValue(rv.Bytes()), nil
		}
		return wire.Value{}, fmt.Errorf("rmi: unsupported slice element type %s", rv.Type().Elem())
	default:
		return wire.Value{}, fmt.Errorf("rmi: unsupported return type %s", rv.Type())
	}
}
