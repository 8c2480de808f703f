// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rubrics

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/mod/semver"

	"github.com/AleutianAI/AleutianGrade/services/grader/assignment"
	"github.com/AleutianAI/AleutianGrade/services/grader/submission"
)

// Sentinel errors for the registry.
var (
	// ErrAlreadyRegistered indicates a name@version that is already taken.
	ErrAlreadyRegistered = errors.New("rubric already registered")

	// ErrInvalidVersion indicates a version that is not canonical semver.
	ErrInvalidVersion = errors.New("invalid rubric version")

	// ErrInvalidDefinition indicates a definition missing its name or
	// builder.
	ErrInvalidDefinition = errors.New("invalid rubric definition")

	// ErrNotFound indicates no definition matches a reference.
	ErrNotFound = errors.New("rubric not found")
)

// BuildFunc constructs a fresh assignment. It is called once per grading
// run so no state is shared between runs.
type BuildFunc func(opts assignment.Options) (*assignment.Assignment, error)

// Definition is one versioned rubric.
type Definition struct {
	Name     string              `json:"name"`
	Version  string              `json:"version"`
	Manifest submission.Manifest `json:"manifest"`

	// Description is shown by listings.
	Description string `json:"description,omitempty"`

	Build BuildFunc `json:"-"`
}

// Ref returns "name@version".
func (d Definition) Ref() string {
	return d.Name + "@" + d.Version
}

// New builds a fresh assignment with the definition's name and manifest
// filled into opts.
func (d Definition) New(opts assignment.Options) (*assignment.Assignment, error) {
	if opts.Name == "" {
		opts.Name = d.Name
	}
	opts.Manifest = d.Manifest
	return d.Build(opts)
}

// Registry maps rubric references to definitions.
//
// Thread Safety: safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]map[string]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]map[string]Definition)}
}

// Register adds a definition.
//
// Outputs:
//
//	error - ErrInvalidDefinition, ErrInvalidVersion or ErrAlreadyRegistered.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" || strings.ContainsAny(def.Name, "@/ ") || def.Build == nil {
		return fmt.Errorf("%w: %q", ErrInvalidDefinition, def.Name)
	}
	if !semver.IsValid(def.Version) || semver.Canonical(def.Version) != def.Version {
		return fmt.Errorf("%w: %q must look like v1.2.3", ErrInvalidVersion, def.Version)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	versions, ok := r.defs[def.Name]
	if !ok {
		versions = make(map[string]Definition)
		r.defs[def.Name] = versions
	}
	if _, dup := versions[def.Version]; dup {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, def.Ref())
	}
	versions[def.Version] = def
	return nil
}

// MustRegister is Register for package init code. It panics on error.
func (r *Registry) MustRegister(def Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Lookup resolves "name" or "name@version".
//
// Description:
//
//	A bare name resolves to the highest version by semver precedence.
//	A version may be abbreviated ("v1" or "v1.2"); it then resolves to
//	the highest registered version with that prefix.
func (r *Registry) Lookup(ref string) (Definition, error) {
	name, version, _ := strings.Cut(ref, "@")

	r.mu.RLock()
	defer r.mu.RUnlock()
	versions, ok := r.defs[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if version != "" {
		if def, ok := versions[version]; ok {
			return def, nil
		}
		if !semver.IsValid(version) {
			return Definition{}, fmt.Errorf("%w: %q", ErrInvalidVersion, version)
		}
	}

	var best Definition
	for v, def := range versions {
		if version != "" && !versionMatches(v, version) {
			continue
		}
		if best.Version == "" || semver.Compare(v, best.Version) > 0 {
			best = def
		}
	}
	if best.Version == "" {
		return Definition{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return best, nil
}

// versionMatches reports whether v falls under an abbreviated version.
func versionMatches(v, prefix string) bool {
	switch strings.Count(prefix, ".") {
	case 0:
		return semver.Major(v) == prefix
	case 1:
		return semver.MajorMinor(v) == prefix
	default:
		return v == prefix
	}
}

// List returns all definitions sorted by name then descending version.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Definition
	for _, versions := range r.defs {
		for _, def := range versions {
			out = append(out, def)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return semver.Compare(out[i].Version, out[j].Version) > 0
	})
	return out
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry with the built-in rubrics.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = NewRegistry()
		defaultReg.MustRegister(HW0())
	})
	return defaultReg
}
