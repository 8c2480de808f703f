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
	"sort"
	"strings"
)

// AnyArity disables the argument count check for a capability.
const AnyArity = -1

// Submission is the read-only capability set extracted from one student's
// code.
//
// Thread Safety: implementations must be safe for sequential use by one
// grading run. They are never mutated during scoring.
type Submission interface {
	// Call invokes the named callable with positional arguments.
	Call(ctx context.Context, name string, args ...any) (any, error)

	// Signatures lists every callable the submission exposes.
	Signatures() []Signature

	// SourceDir is the directory the submission was loaded from.
	SourceDir() string
}

// Loader produces a validated Submission from a source artifact.
type Loader interface {
	// Load returns a *LoadError when the artifact cannot satisfy manifest.
	Load(ctx context.Context, source string, manifest Manifest) (Submission, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, source string, manifest Manifest) (Submission, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context, source string, manifest Manifest) (Submission, error) {
	return f(ctx, source, manifest)
}

// Signature describes a callable's positional parameters.
type Signature struct {
	Name    string `json:"name"`
	MinArgs int    `json:"min_args"`

	// MaxArgs is negative for variadic callables.
	MaxArgs int `json:"max_args"`
}

// Accepts reports whether n positional arguments are valid.
func (s Signature) Accepts(n int) bool {
	if n < s.MinArgs {
		return false
	}
	return s.MaxArgs < 0 || n <= s.MaxArgs
}

// String formats the accepted range, e.g. "1", "0-2" or "1+".
func (s Signature) String() string {
	switch {
	case s.MaxArgs < 0:
		return fmt.Sprintf("%d+", s.MinArgs)
	case s.MinArgs == s.MaxArgs:
		return fmt.Sprintf("%d", s.MinArgs)
	default:
		return fmt.Sprintf("%d-%d", s.MinArgs, s.MaxArgs)
	}
}

// Capability is one callable a rubric requires.
type Capability struct {
	Name string `json:"name" yaml:"name" validate:"required"`

	// Arity is the number of positional arguments the rubric will pass,
	// or AnyArity.
	Arity int `json:"arity" yaml:"arity" validate:"min=-1"`
}

// Manifest is the full set of capabilities a rubric requires.
type Manifest []Capability

// Names returns the required names in declaration order.
func (m Manifest) Names() []string {
	names := make([]string, len(m))
	for i, c := range m {
		names[i] = c.Name
	}
	return names
}

// Lookup returns the capability with the given name.
func (m Manifest) Lookup(name string) (Capability, bool) {
	for _, c := range m {
		if c.Name == name {
			return c, true
		}
	}
	return Capability{}, false
}

// Check validates exposed signatures against the manifest.
//
// Description:
//
//	Every required capability is checked. The returned error lists all
//	missing names and all arity mismatches, not just the first.
//
// Inputs:
//
//	source - Artifact name used in the error message.
//	sigs - Signatures the submission exposes.
//
// Outputs:
//
//	error - nil or a *LoadError.
func (m Manifest) Check(source string, sigs []Signature) error {
	byName := make(map[string]Signature, len(sigs))
	for _, s := range sigs {
		byName[s.Name] = s
	}

	var loadErr LoadError
	for _, c := range m {
		sig, ok := byName[c.Name]
		if !ok {
			loadErr.Missing = append(loadErr.Missing, c.Name)
			continue
		}
		if c.Arity != AnyArity && !sig.Accepts(c.Arity) {
			loadErr.Mismatched = append(loadErr.Mismatched, ArityMismatch{
				Name:     c.Name,
				Expected: c.Arity,
				Accepts:  sig.String(),
			})
		}
	}
	if len(loadErr.Missing) == 0 && len(loadErr.Mismatched) == 0 {
		return nil
	}
	loadErr.Source = source
	return &loadErr
}

// Validate checks an already constructed submission against manifest.
// Providers without their own discovery step use it to implement Load.
func Validate(sub Submission, source string, manifest Manifest) (Submission, error) {
	if err := manifest.Check(source, sub.Signatures()); err != nil {
		return nil, err
	}
	return sub, nil
}

func sortedSignatures(byName map[string]Signature) []Signature {
	out := make([]Signature, 0, len(byName))
	for _, s := range byName {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func formatArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = formatValue(a)
	}
	return strings.Join(parts, ", ")
}
