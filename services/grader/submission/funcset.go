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
	"fmt"
	"sync"
)

// Func is an in-process callable.
type Func func(ctx context.Context, args ...any) (any, error)

type funcEntry struct {
	sig Signature
	fn  Func
}

// FuncSet is a Submission backed by Go functions.
//
// Description:
//
//	Used for reference solutions written in Go and for tests. Define is
//	meant for construction time; once the set is handed to a grader it is
//	only read.
//
// Thread Safety: safe for concurrent use.
type FuncSet struct {
	dir   string
	mu    sync.RWMutex
	funcs map[string]funcEntry
}

// NewFuncSet creates an empty set whose SourceDir is dir.
func NewFuncSet(dir string) *FuncSet {
	return &FuncSet{dir: dir, funcs: make(map[string]funcEntry)}
}

// Define registers fn under name with a fixed arity, or AnyArity for a
// variadic callable. It returns the set for chaining.
func (s *FuncSet) Define(name string, arity int, fn Func) *FuncSet {
	sig := Signature{Name: name, MinArgs: arity, MaxArgs: arity}
	if arity < 0 {
		sig.MinArgs, sig.MaxArgs = 0, -1
	}
	s.mu.Lock()
	s.funcs[name] = funcEntry{sig: sig, fn: fn}
	s.mu.Unlock()
	return s
}

// Stub registers a callable that returns NotImplemented.
func (s *FuncSet) Stub(name string, arity int) *FuncSet {
	return s.Define(name, arity, func(context.Context, ...any) (any, error) {
		return NotImplemented, nil
	})
}

// Call implements Submission.
func (s *FuncSet) Call(ctx context.Context, name string, args ...any) (any, error) {
	s.mu.RLock()
	entry, ok := s.funcs[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, name)
	}
	if !entry.sig.Accepts(len(args)) {
		return nil, fmt.Errorf("%w: %s accepts %s, got %d", ErrArity, name, entry.sig, len(args))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return entry.fn(ctx, args...)
}

// Signatures implements Submission.
func (s *FuncSet) Signatures() []Signature {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byName := make(map[string]Signature, len(s.funcs))
	for name, e := range s.funcs {
		byName[name] = e.sig
	}
	return sortedSignatures(byName)
}

// SourceDir implements Submission.
func (s *FuncSet) SourceDir() string {
	return s.dir
}

// StaticLoader serves pre-built submissions keyed by source.
type StaticLoader map[string]Submission

// Load implements Loader.
func (l StaticLoader) Load(_ context.Context, source string, manifest Manifest) (Submission, error) {
	sub, ok := l[source]
	if !ok {
		return nil, &LoadError{Source: source, Err: fmt.Errorf("no submission registered for %q", source)}
	}
	return Validate(sub, source, manifest)
}
