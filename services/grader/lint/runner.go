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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Option configures a Runner.
type Option func(*Runner)

// WithConfigs replaces the linter configuration registry.
func WithConfigs(configs *ConfigRegistry) Option {
	return func(r *Runner) {
		r.configs = configs
	}
}

// WithPolicies replaces the rule policy registry.
func WithPolicies(policies *PolicyRegistry) Option {
	return func(r *Runner) {
		r.policies = policies
	}
}

// WithLogger sets the logger. Default slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Runner lints submission directories with external linters.
//
// Description:
//
//	Runner finds which registered languages a directory contains and runs
//	each language's linter once over the whole directory. A linter that is
//	not installed is skipped; when none can run the result is marked
//	unavailable rather than failing.
//
// Thread Safety: safe for concurrent use.
type Runner struct {
	configs  *ConfigRegistry
	policies *PolicyRegistry
	logger   *slog.Logger

	mu        sync.Mutex
	available map[string]bool
}

// NewRunner creates a Runner with the default python and go linters.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		configs:   NewConfigRegistry(),
		policies:  NewPolicyRegistry(),
		logger:    slog.Default(),
		available: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsAvailable reports whether the linter for language is installed. The
// answer is cached per language.
func (r *Runner) IsAvailable(language string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok, seen := r.available[language]; seen {
		return ok
	}
	config := r.configs.Get(language)
	ok := false
	if config != nil {
		_, err := exec.LookPath(config.Command)
		ok = err == nil
	}
	r.available[language] = ok
	return ok
}

// Languages returns the registered languages that have files under dir,
// sorted.
func (r *Runner) Languages(dir string) ([]string, error) {
	found := make(map[string]bool)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if lang := r.configs.LanguageFor(path); lang != "" {
			found[lang] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	langs := make([]string, 0, len(found))
	for lang := range found {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs, nil
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || name == "__pycache__" || name == "vendor" || name == "node_modules"
}

// LintDir lints every supported language found under dir.
//
// Description:
//
//	Each available linter runs with dir as its working directory, so
//	reported paths are relative to dir. Findings are split by the
//	language's rule policy. A failing linter does not stop the others;
//	its error is joined into the returned error alongside the partial
//	result.
//
// Inputs:
//
//	ctx - Cancels all linter processes.
//	dir - Directory to lint.
//
// Outputs:
//
//	*Result - Never nil unless dir cannot be scanned.
//	error - Scan failure, cancellation, or joined linter failures.
func (r *Runner) LintDir(ctx context.Context, dir string) (*Result, error) {
	start := time.Now()
	ctx, span := startLintSpan(ctx, dir)
	defer span.End()

	langs, err := r.Languages(dir)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Blocking: []Issue{},
		Warnings: []Issue{},
		Infos:    []Issue{},
		Linters:  []string{},
	}
	var errs []error
	for _, lang := range langs {
		if !r.IsAvailable(lang) {
			r.logger.Debug("linter not installed",
				slog.String("language", lang),
				slog.String("dir", dir),
			)
			continue
		}
		config := r.configs.Get(lang)
		issues, err := r.lintLanguage(ctx, config, dir)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			errs = append(errs, err)
			recordLintMetrics(ctx, lang, time.Since(start), 0, 0, false)
			continue
		}
		result.Available = true
		result.Linters = append(result.Linters, config.Command)

		blocking, warnings, infos := ApplyPolicy(issues, r.policies.Get(lang))
		result.Blocking = append(result.Blocking, blocking...)
		result.Warnings = append(result.Warnings, warnings...)
		result.Infos = append(result.Infos, infos...)
		recordLintMetrics(ctx, lang, time.Since(start), len(blocking), len(warnings), true)
	}

	result.Duration = time.Since(start)
	setLintSpanResult(span, len(result.Blocking), len(result.Warnings), result.Available)
	return result, errors.Join(errs...)
}

func (r *Runner) lintLanguage(ctx context.Context, config *LinterConfig, dir string) ([]Issue, error) {
	output, err := r.executeLinter(ctx, config, dir)
	if err != nil {
		return nil, err
	}
	parser := GetParser(config.Language)
	if parser == nil {
		return nil, &LinterError{Linter: config.Command, Language: config.Language, Err: ErrUnsupportedLanguage}
	}
	issues, err := parser(output)
	if err != nil {
		return nil, &LinterError{
			Linter:   config.Command,
			Language: config.Language,
			Err:      fmt.Errorf("%w: %v", ErrParseOutput, err),
		}
	}
	for i := range issues {
		issues[i].File = relativeTo(dir, issues[i].File)
	}
	return issues, nil
}

func (r *Runner) executeLinter(ctx context.Context, config *LinterConfig, dir string) ([]byte, error) {
	args := append([]string(nil), config.Args...)
	if len(config.TargetArgs) > 0 {
		args = append(args, config.TargetArgs...)
	} else {
		args = append(args, ".")
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, config.Command, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
		return nil, &LinterError{
			Linter:   config.Command,
			Language: config.Language,
			Err:      ErrLinterTimeout,
			Output:   strings.TrimSpace(stderr.String()),
		}
	}
	// Linters may exit non-zero when they find issues; only a run with no
	// report is a failure.
	if err != nil && stdout.Len() == 0 {
		return nil, &LinterError{
			Linter:   config.Command,
			Language: config.Language,
			Err:      fmt.Errorf("%w: %v", ErrLinterFailed, err),
			Output:   strings.TrimSpace(stderr.String()),
		}
	}
	return stdout.Bytes(), nil
}

func relativeTo(dir, path string) string {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(filepath.Clean(path))
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(absDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}
