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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverPython(t *testing.T) {
	src := []byte(`
import functools

def function1():
    return True

def function2(a, b=2, *, key=None):
    return a

@functools.cache
def cached(x: int, y: int = 0):
    return x

def spread(first, *rest, **kw):
    return first

def typed_spread(*args: int):
    return args

class Helper:
    def method(self, x):
        return x

def outer():
    def inner(z):
        return z
    return inner

square = lambda n: n * n
`)

	sigs, err := discoverPython(context.Background(), src)
	require.NoError(t, err)

	byName := make(map[string]Signature)
	for _, s := range sigs {
		byName[s.Name] = s
	}

	assert.Len(t, byName, 6)
	assert.Equal(t, Signature{Name: "function1", MinArgs: 0, MaxArgs: 0}, byName["function1"])
	assert.Equal(t, Signature{Name: "function2", MinArgs: 1, MaxArgs: 2}, byName["function2"])
	assert.Equal(t, Signature{Name: "cached", MinArgs: 1, MaxArgs: 2}, byName["cached"])
	assert.Equal(t, Signature{Name: "spread", MinArgs: 1, MaxArgs: -1}, byName["spread"])
	assert.Equal(t, Signature{Name: "typed_spread", MinArgs: 0, MaxArgs: -1}, byName["typed_spread"])
	assert.Equal(t, Signature{Name: "outer", MinArgs: 0, MaxArgs: 0}, byName["outer"])
	assert.NotContains(t, byName, "method")
	assert.NotContains(t, byName, "inner")
	assert.NotContains(t, byName, "square")
}

func TestDiscoverPython_Redefinition(t *testing.T) {
	src := []byte("def f(a):\n    pass\n\ndef f(a, b):\n    pass\n")
	sigs, err := discoverPython(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, 2, sigs[0].MinArgs)
}

func TestDiscoverPython_SyntaxError(t *testing.T) {
	src := []byte("def function1():\n    return True\n\ndef function2(x:\n    return 1\n")
	_, err := discoverPython(context.Background(), src)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSyntax)
}
