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
	"context"
	"errors"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not installed")
	}
}

func writeSubmission(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "submission.py"), []byte(src), 0o644))
	return dir
}

var hw0Manifest = Manifest{
	{Name: "function1", Arity: 0},
	{Name: "function2", Arity: 1},
}

func TestPythonLoader_LoadErrors(t *testing.T) {
	loader := NewPythonLoader(PythonConfig{})
	ctx := context.Background()

	t.Run("missing entry file", func(t *testing.T) {
		_, err := loader.Load(ctx, t.TempDir(), hw0Manifest)
		var loadErr *LoadError
		require.ErrorAs(t, err, &loadErr)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("missing capability", func(t *testing.T) {
		dir := writeSubmission(t, "def function1():\n    return True\n")
		_, err := loader.Load(ctx, dir, hw0Manifest)
		var loadErr *LoadError
		require.ErrorAs(t, err, &loadErr)
		assert.Equal(t, []string{"function2"}, loadErr.Missing)
	})

	t.Run("syntax error", func(t *testing.T) {
		dir := writeSubmission(t, "def function1(:\n")
		_, err := loader.Load(ctx, dir, hw0Manifest)
		assert.ErrorIs(t, err, ErrSyntax)
	})
}

func TestPythonSubmission_Call(t *testing.T) {
	requirePython(t)
	dir := writeSubmission(t, `
def function1():
    print("noise on stdout")
    return True

def function2(x):
    return x + 1

def stub(x):
    return NotImplemented

def raises_stub():
    raise NotImplementedError()

def boom(x):
    return 1 / x

def spin():
    while True:
        pass

def odd():
    return {1, 2}
`)
	manifest := append(Manifest{}, hw0Manifest...)
	manifest = append(manifest,
		Capability{Name: "stub", Arity: 1},
		Capability{Name: "raises_stub", Arity: 0},
		Capability{Name: "boom", Arity: 1},
		Capability{Name: "spin", Arity: 0},
		Capability{Name: "odd", Arity: 0},
	)

	sub, err := NewPythonLoader(PythonConfig{}).Load(context.Background(), dir, manifest)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("value with stdout noise", func(t *testing.T) {
		v, err := sub.Call(ctx, "function1")
		require.NoError(t, err)
		assert.Equal(t, true, v)
	})

	t.Run("integer result", func(t *testing.T) {
		v, err := sub.Call(ctx, "function2", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), v)
	})

	t.Run("NotImplemented value", func(t *testing.T) {
		v, err := sub.Call(ctx, "stub", 0)
		require.NoError(t, err)
		assert.True(t, IsNotImplemented(v))
	})

	t.Run("NotImplementedError", func(t *testing.T) {
		v, err := sub.Call(ctx, "raises_stub")
		require.NoError(t, err)
		assert.True(t, IsNotImplemented(v))
	})

	t.Run("exception", func(t *testing.T) {
		_, err := sub.Call(ctx, "boom", 0)
		var execErr *ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, "ZeroDivisionError", execErr.Type)
		assert.Equal(t, "boom", execErr.Function)
	})

	t.Run("unserializable value", func(t *testing.T) {
		v, err := sub.Call(ctx, "odd")
		require.NoError(t, err)
		assert.Equal(t, Opaque{Repr: "{1, 2}", Truth: true}, v)
	})

	t.Run("timeout kills the process", func(t *testing.T) {
		cctx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
		defer cancel()
		start := time.Now()
		_, err := sub.Call(cctx, "spin")
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("undeclared function", func(t *testing.T) {
		_, err := sub.Call(ctx, "missing")
		assert.ErrorIs(t, err, ErrUnknownCapability)
	})
}

func TestPythonSubmission_NonJSONValues(t *testing.T) {
	requirePython(t)
	dir := writeSubmission(t, `
from decimal import Decimal

class Falsy:
    def __bool__(self):
        return False
    def __repr__(self):
        return "Falsy()"

class EmptyList(list):
    def __bool__(self):
        return True

def empty_set():
    return set()

def empty_frozenset():
    return frozenset()

def empty_range():
    return range(0)

def zero_complex():
    return 0j

def zero_decimal():
    return Decimal(0)

def falsy_object():
    return Falsy()

def truthy_list():
    return EmptyList()

def fraction():
    from fractions import Fraction
    return Fraction(1, 2)

def nan():
    return float("nan")

def inf():
    return float("inf")

def nested():
    return [1.5, float("-inf"), {"k": set()}]
`)
	names := []string{"empty_set", "empty_frozenset", "empty_range", "zero_complex",
		"zero_decimal", "fraction", "falsy_object", "truthy_list", "nan", "inf", "nested"}
	var manifest Manifest
	for _, n := range names {
		manifest = append(manifest, Capability{Name: n, Arity: 0})
	}
	sub, err := NewPythonLoader(PythonConfig{}).Load(context.Background(), dir, manifest)
	require.NoError(t, err)

	call := func(t *testing.T, name string) Result {
		t.Helper()
		v, err := sub.Call(context.Background(), name)
		require.NoError(t, err)
		return Result{Function: name, Value: v}
	}

	falsy := []struct {
		function string
		repr     string
	}{
		{"empty_set", "set()"},
		{"empty_frozenset", "frozenset()"},
		{"empty_range", "range(0, 0)"},
		{"zero_complex", "0j"},
		{"zero_decimal", "Decimal('0')"},
		{"falsy_object", "Falsy()"},
	}
	for _, tt := range falsy {
		t.Run(tt.function, func(t *testing.T) {
			res := call(t, tt.function)
			assert.False(t, res.Truthy())
			assert.False(t, res.Equal(1))
			assert.Equal(t, tt.repr, res.String())
		})
	}

	t.Run("decimal arrives as a number", func(t *testing.T) {
		res := call(t, "zero_decimal")
		assert.Equal(t, int64(0), res.Value)
		assert.False(t, res.Truthy())
	})

	t.Run("fraction arrives as a float", func(t *testing.T) {
		assert.Equal(t, 0.5, call(t, "fraction").Value)
	})

	t.Run("list with custom truthiness", func(t *testing.T) {
		res := call(t, "truthy_list")
		assert.True(t, res.Truthy())
		assert.True(t, res.Equal([]any{}))
	})

	t.Run("nan", func(t *testing.T) {
		res := call(t, "nan")
		f, ok := res.Value.(float64)
		require.True(t, ok)
		assert.True(t, math.IsNaN(f))
		assert.False(t, res.Equal(1))
		assert.True(t, res.Truthy())
		assert.Equal(t, "nan", res.String())
	})

	t.Run("inf", func(t *testing.T) {
		res := call(t, "inf")
		assert.Equal(t, math.Inf(1), res.Value)
		assert.False(t, res.Equal(1))
		assert.Equal(t, "inf", res.String())
	})

	t.Run("nested values", func(t *testing.T) {
		res := call(t, "nested")
		list, ok := res.Value.([]any)
		require.True(t, ok)
		require.Len(t, list, 3)
		assert.Equal(t, 1.5, list[0])
		assert.Equal(t, math.Inf(-1), list[1])
		assert.Equal(t, map[string]any{"k": Opaque{Repr: "set()", Truth: false}}, list[2])
	})
}

func TestCappedBuffer(t *testing.T) {
	b := &cappedBuffer{limit: 4}
	n, err := b.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = b.Write([]byte("def"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "abcd", b.String())
	assert.True(t, b.overflow)
}

func TestDecodeResponse(t *testing.T) {
	_, err := decodeResponse("f", nil, nil)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "ProcessError", execErr.Type)

	v, err := decodeResponse("f", []byte(`{"ok": true, "value": [1, 2.5, "x"]}`), nil)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), 2.5, "x"}, v)

	tests := []struct {
		name   string
		body   string
		truthy bool
		equal1 bool
	}{
		{"tagged nan", `{"ok": true, "value": {"__float__": "nan"}, "truthy": true}`, true, false},
		{"tagged opaque", `{"ok": true, "value": {"__repr__": "set()", "__bool__": false}, "truthy": false}`, false, false},
		{"truthiness override", `{"ok": true, "value": [], "truthy": true}`, true, false},
		{"plain one", `{"ok": true, "value": 1, "truthy": true}`, true, true},
		{"no truthy field", `{"ok": true, "value": 0}`, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := decodeResponse("f", []byte(tt.body), nil)
			require.NoError(t, err)
			res := Result{Value: v}
			assert.Equal(t, tt.truthy, res.Truthy())
			assert.Equal(t, tt.equal1, res.Equal(1))
		})
	}
}
