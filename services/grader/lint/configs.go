// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lint

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// LinterConfig describes how to invoke a linter on a directory.
type LinterConfig struct {
	// Language is the key, e.g. "python".
	Language string

	// Command is the executable name.
	Command string

	// Args precede the target directory argument.
	Args []string

	// TargetArgs replace the directory argument when set, for linters that
	// take package patterns and run inside the directory.
	TargetArgs []string

	// Extensions select which files belong to the language.
	Extensions []string

	// Timeout bounds one run. Zero means 30s.
	Timeout time.Duration
}

// Clone returns a deep copy.
func (c *LinterConfig) Clone() *LinterConfig {
	clone := *c
	clone.Args = append([]string(nil), c.Args...)
	clone.TargetArgs = append([]string(nil), c.TargetArgs...)
	clone.Extensions = append([]string(nil), c.Extensions...)
	return &clone
}

// DefaultPythonConfig lints Python submissions with ruff.
var DefaultPythonConfig = LinterConfig{
	Language:   "python",
	Command:    "ruff",
	Args:       []string{"check", "--output-format=json", "--exit-zero", "--no-cache"},
	Extensions: []string{".py"},
	Timeout:    10 * time.Second,
}

// DefaultGoConfig lints Go submissions with golangci-lint.
var DefaultGoConfig = LinterConfig{
	Language:   "go",
	Command:    "golangci-lint",
	Args:       []string{"run", "--out-format=json", "--issues-exit-code=0", "--timeout=30s"},
	TargetArgs: []string{"./..."},
	Extensions: []string{".go"},
	Timeout:    30 * time.Second,
}

// ConfigRegistry holds linter configurations keyed by language.
//
// Thread Safety: safe for concurrent use.
type ConfigRegistry struct {
	mu           sync.RWMutex
	configs      map[string]*LinterConfig
	extensionMap map[string]string
}

// NewConfigRegistry creates a registry with the python and go defaults.
func NewConfigRegistry() *ConfigRegistry {
	r := &ConfigRegistry{
		configs:      make(map[string]*LinterConfig),
		extensionMap: make(map[string]string),
	}
	r.Register(&DefaultPythonConfig)
	r.Register(&DefaultGoConfig)
	return r
}

// Register adds or replaces a configuration.
func (r *ConfigRegistry) Register(config *LinterConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[config.Language] = config.Clone()
	for _, ext := range config.Extensions {
		r.extensionMap[ext] = config.Language
	}
}

// Get returns a copy of the configuration for language, or nil.
func (r *ConfigRegistry) Get(language string) *LinterConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	config, ok := r.configs[language]
	if !ok {
		return nil
	}
	return config.Clone()
}

// LanguageFor returns the language that owns path's extension, or "".
func (r *ConfigRegistry) LanguageFor(path string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.extensionMap[strings.ToLower(filepath.Ext(path))]
}

// Languages returns registered languages in sorted order.
func (r *ConfigRegistry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	langs := make([]string, 0, len(r.configs))
	for lang := range r.configs {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}
