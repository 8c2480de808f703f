// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package submission

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Sentinel is the type of NotImplemented.
type Sentinel struct{}

// String implements fmt.Stringer.
func (Sentinel) String() string { return "NotImplemented" }

// NotImplemented is the value a stub returns instead of a real result.
var NotImplemented = Sentinel{}

// IsNotImplemented reports whether v is the not-implemented sentinel.
func IsNotImplemented(v any) bool {
	switch v.(type) {
	case Sentinel, *Sentinel:
		return true
	}
	return false
}

// Opaque is a return value JSON cannot carry, such as a set or an object
// with its own __bool__. Truth is the truthiness the interpreter computed.
type Opaque struct {
	// Repr is the interpreter's printable form of the value.
	Repr string

	// Truth is bool(value) as evaluated by the interpreter.
	Truth bool

	// Value is the decoded form when the value did survive JSON but its
	// truthiness differs from the decoded form's, otherwise nil.
	Value any
}

// String implements fmt.Stringer.
func (o Opaque) String() string { return o.Repr }

// Result is the outcome of one call into submission code.
type Result struct {
	// Function is the callable that was invoked.
	Function string

	// Args are the positional arguments passed.
	Args []any

	// Value is the decoded return value.
	Value any

	// NotImplemented is true when the callable signalled a stub.
	NotImplemented bool
}

// Call formats the invocation, e.g. "function2(0)".
func (r Result) Call() string {
	return fmt.Sprintf("%s(%s)", r.Function, formatArgs(r.Args))
}

// Truthy reports the value's truthiness under Python rules: nil, false,
// zero numbers and empty strings or collections are false. An Opaque value
// reports the truthiness the interpreter computed.
func (r Result) Truthy() bool {
	return truthy(r.Value)
}

// Equal compares the value with want. Numbers compare by value regardless
// of Go type, so an int64 result equals an int expectation.
func (r Result) Equal(want any) bool {
	return valuesEqual(r.Value, want)
}

// String formats the value for feedback messages.
func (r Result) String() string {
	if r.NotImplemented {
		return "NotImplemented"
	}
	return formatValue(r.Value)
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case Opaque:
		return t.Truth
	case *Opaque:
		return t != nil && t.Truth
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

func valuesEqual(got, want any) bool {
	if o, ok := got.(Opaque); ok {
		if w, ok := want.(Opaque); ok {
			return o.Repr == w.Repr
		}
		return o.Value != nil && valuesEqual(o.Value, want)
	}
	if gf, ok := toFloat(got); ok {
		if wf, ok := toFloat(want); ok {
			return gf == wf
		}
		return false
	}
	gs, gok := got.([]any)
	ws, wok := want.([]any)
	if gok && wok {
		if len(gs) != len(ws) {
			return false
		}
		for i := range gs {
			if !valuesEqual(gs[i], ws[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(got, want)
}

// toFloat converts numeric values. Booleans count as 0 and 1, matching the
// comparison rules of the Python submissions being graded.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case bool:
		if t {
			return "True"
		}
		return "False"
	case string:
		return strconv.Quote(t)
	case Opaque:
		return t.Repr
	case float64:
		switch {
		case math.IsNaN(t):
			return "nan"
		case math.IsInf(t, 1):
			return "inf"
		case math.IsInf(t, -1):
			return "-inf"
		}
		if math.Trunc(t) == t {
			return strconv.FormatFloat(t, 'f', 1, 64)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = formatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprint(v)
}

// normalizeJSON converts values decoded with UseNumber into int64 or
// float64 and recurses into containers. Tagged objects from the harness
// become non-finite floats or Opaque values.
func normalizeJSON(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		for i := range t {
			t[i] = normalizeJSON(t[i])
		}
		return t
	case map[string]any:
		if f, ok := taggedFloat(t); ok {
			return f
		}
		if o, ok := taggedOpaque(t); ok {
			return o
		}
		for k := range t {
			t[k] = normalizeJSON(t[k])
		}
		return t
	}
	return v
}

func taggedFloat(m map[string]any) (float64, bool) {
	s, ok := m["__float__"].(string)
	if !ok || len(m) != 1 {
		return 0, false
	}
	switch s {
	case "nan":
		return math.NaN(), true
	case "inf":
		return math.Inf(1), true
	case "-inf":
		return math.Inf(-1), true
	}
	return 0, false
}

func taggedOpaque(m map[string]any) (Opaque, bool) {
	repr, ok := m["__repr__"].(string)
	if !ok || len(m) != 2 {
		return Opaque{}, false
	}
	truth, ok := m["__bool__"].(bool)
	if !ok {
		return Opaque{}, false
	}
	return Opaque{Repr: repr, Truth: truth}, true
}
