// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package style

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/AleutianAI/AleutianGrade/services/grader/guard"
	"github.com/AleutianAI/AleutianGrade/services/grader/lint"
	"github.com/AleutianAI/AleutianGrade/services/grader/rubric"
	"github.com/AleutianAI/AleutianGrade/services/grader/submission"
)

// Label is the report label of the style component.
const Label = "Style"

// Defaults for Style.
const (
	DefaultTimeout     = 60 * time.Second
	DefaultMaxFindings = 50
)

// Feedback and diagnostic messages.
const (
	MsgUnavailable = "style check unavailable"
	MsgNoSource    = "no source directory to lint"
	MsgClean       = "no style issues found"
)

// ErrNoSource indicates neither an input dir nor a submission source dir
// was available.
var ErrNoSource = errors.New("no source directory")

// Linter lints a directory. *lint.Runner satisfies it.
type Linter interface {
	LintDir(ctx context.Context, dir string) (*lint.Result, error)
}

// Option configures a Style.
type Option func(*Style)

// WithMaxPoints overrides the default weight of 0.
func WithMaxPoints(points float64) Option {
	return func(s *Style) {
		s.maxPoints = points
	}
}

// WithLinter replaces the default lint.Runner.
func WithLinter(l Linter) Option {
	return func(s *Style) {
		s.linter = l
	}
}

// WithTimeout bounds one style run. Default 60s.
func WithTimeout(d time.Duration) Option {
	return func(s *Style) {
		s.timeout = d
	}
}

// WithMaxFindings caps the findings copied into feedback. Default 50.
func WithMaxFindings(n int) Option {
	return func(s *Style) {
		s.maxFindings = n
	}
}

// WithLogger sets the logger. Default slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Style) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Style is the informational lint component.
//
// Thread Safety: Score is safe for concurrent use; a Style holds no
// per-run state.
type Style struct {
	inputDir    string
	maxPoints   float64
	linter      Linter
	timeout     time.Duration
	maxFindings int
	logger      *slog.Logger
}

// New creates a Style component for inputDir.
//
// Inputs:
//
//	inputDir - Directory to lint. When empty, Score uses the submission's
//	  SourceDir.
//	opts - Options. WithMaxPoints sets the weight.
//
// Outputs:
//
//	*Style - The component.
//	error - Non-nil when the max points are negative or not finite.
func New(inputDir string, opts ...Option) (*Style, error) {
	s := &Style{
		inputDir:    inputDir,
		timeout:     DefaultTimeout,
		maxFindings: DefaultMaxFindings,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := validatePoints(s.maxPoints); err != nil {
		return nil, err
	}
	if s.linter == nil {
		s.linter = lint.NewRunner(lint.WithLogger(s.logger))
	}
	return s, nil
}

// Label implements rubric.Component.
func (s *Style) Label() string { return Label }

// MaxPoints implements rubric.Component.
func (s *Style) MaxPoints() float64 { return s.maxPoints }

// Score lints the source directory and reports findings.
//
// Description:
//
//	Findings become feedback lines, blocking ones first. When a finding
//	matches the policy's blocking rules and the component carries points,
//	the outcome is FAILED with 0 points. With no points at stake it is
//	always PASSED. A missing linter, timeout, parse failure or panic
//	yields a diagnostic and no credit: PASSED when no points are at
//	stake, ERRORED with 0 points otherwise.
func (s *Style) Score(ctx context.Context, sub submission.Submission) rubric.Outcome {
	dir := s.inputDir
	if dir == "" && sub != nil {
		dir = sub.SourceDir()
	}
	if dir == "" {
		return s.degraded(ErrNoSource)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var result *lint.Result
	err := guard.Safely(Label, func() error {
		var lintErr error
		result, lintErr = s.linter.LintDir(ctx, dir)
		return lintErr
	})
	if err != nil && (result == nil || !result.Available) {
		return s.degraded(err)
	}
	if err != nil {
		s.logger.Warn("style linting partially failed",
			slog.String("dir", dir),
			slog.String("error", err.Error()),
		)
	}
	if result == nil || !result.Available {
		return s.degraded(errors.New("no linter installed for this submission"))
	}

	out := rubric.Outcome{
		Label:        Label,
		MaxPoints:    s.maxPoints,
		EarnedPoints: s.maxPoints,
		Status:       rubric.StatusPassed,
		Feedback:     s.feedback(result.Findings()),
	}
	if err != nil {
		out.Diagnostics = []string{guard.Summarize(err)}
	}
	if len(result.Blocking) > 0 && s.maxPoints > 0 {
		out.Status = rubric.StatusFailed
		out.EarnedPoints = 0
	}
	return out
}

func (s *Style) feedback(findings []lint.Issue) []string {
	if len(findings) == 0 {
		return []string{MsgClean}
	}
	shown := findings
	if s.maxFindings > 0 && len(shown) > s.maxFindings {
		shown = shown[:s.maxFindings]
	}
	lines := make([]string, 0, len(shown)+1)
	for _, f := range shown {
		lines = append(lines, f.String())
	}
	if rest := len(findings) - len(shown); rest > 0 {
		lines = append(lines, fmt.Sprintf("... and %d more", rest))
	}
	return lines
}

func (s *Style) degraded(err error) rubric.Outcome {
	s.logger.Info("style check degraded",
		slog.String("input_dir", s.inputDir),
		slog.String("reason", err.Error()),
	)
	diag := MsgUnavailable + ": " + guard.Summarize(err)
	if s.maxPoints > 0 {
		return rubric.Errored(Label, s.maxPoints, MsgUnavailable, diag)
	}
	return rubric.Outcome{
		Label:       Label,
		Status:      rubric.StatusPassed,
		Feedback:    []string{},
		Diagnostics: []string{diag},
	}
}

func validatePoints(v float64) error {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %v", rubric.ErrInvalidMaxPoints, v)
	}
	return nil
}
