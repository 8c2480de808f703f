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
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the lint package.
var (
	// ErrLinterTimeout indicates the linter exceeded its configured timeout.
	ErrLinterTimeout = errors.New("linter timeout")

	// ErrLinterFailed indicates the linter process failed without output.
	ErrLinterFailed = errors.New("linter execution failed")

	// ErrUnsupportedLanguage indicates no linter configuration exists.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrParseOutput indicates the linter's JSON could not be parsed.
	ErrParseOutput = errors.New("failed to parse linter output")
)

// LinterError wraps a failure of one linter with its stderr.
type LinterError struct {
	Linter   string
	Language string
	Err      error
	Output   string
}

// Error implements the error interface.
func (e *LinterError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s (%s): %v: %s", e.Linter, e.Language, e.Err, e.Output)
	}
	return fmt.Sprintf("%s (%s): %v", e.Linter, e.Language, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *LinterError) Unwrap() error {
	return e.Err
}

// Severity ranks a finding.
type Severity int

const (
	// SeverityInfo findings are reported but never block.
	SeverityInfo Severity = iota

	// SeverityWarning findings are reported as style feedback.
	SeverityWarning

	// SeverityError findings block when the policy says so.
	SeverityError
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Issue is one normalized linter finding.
type Issue struct {
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Column   int      `json:"column"`
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Linter   string   `json:"linter"`
}

// String formats the issue as "file:line:col: RULE message".
func (i Issue) String() string {
	return fmt.Sprintf("%s:%d:%d: %s %s", i.File, i.Line, i.Column, i.Rule, i.Message)
}

// Result is the outcome of linting one directory.
type Result struct {
	// Available is false when no linter for the directory's languages is
	// installed. Findings are then empty.
	Available bool `json:"available"`

	// Blocking findings matched the policy's BlockOn list.
	Blocking []Issue `json:"blocking"`

	// Warnings are reportable style findings.
	Warnings []Issue `json:"warnings"`

	// Infos matched the policy's Ignore list or are informational.
	Infos []Issue `json:"infos"`

	// Linters names the linters that ran.
	Linters []string `json:"linters"`

	Duration time.Duration `json:"duration_ns"`
}

// Findings returns blocking findings followed by warnings, the ones shown
// to students.
func (r *Result) Findings() []Issue {
	out := make([]Issue, 0, len(r.Blocking)+len(r.Warnings))
	out = append(out, r.Blocking...)
	return append(out, r.Warnings...)
}
