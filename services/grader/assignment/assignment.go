// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package assignment runs an ordered list of graded components against one
// submission and aggregates the outcomes into a Report.
//
// Components run one at a time in declaration order. Each is isolated: a
// component that panics, returns an outcome that breaks its invariants, or
// reports a different maximum than it declared is replaced by a
// zero-point ERRORED outcome, and grading moves on to the next component.
//
// A submission that cannot be loaded still produces a Report, with every
// component at zero and the load failure as a top-level diagnostic.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/AleutianAI/AleutianGrade/services/grader/guard"
	"github.com/AleutianAI/AleutianGrade/services/grader/rubric"
	"github.com/AleutianAI/AleutianGrade/services/grader/submission"
	"github.com/google/uuid"
)

// Student-facing messages for outcomes the assignment creates itself.
const (
	MsgInvalidOutcome = "component produced an invalid result"
	MsgLoadFailed     = "submission could not be loaded"
)

// Assignment is an ordered composition of components.
//
// Thread Safety: immutable after New. Grade may be called concurrently
// provided the components are safe for concurrent use, which Question is.
type Assignment struct {
	opts       Options
	components []rubric.Component
	totalMax   float64
	logger     *slog.Logger
}

// New creates an assignment.
//
// Inputs:
//
//	opts - Validated options. Name defaults to "assignment".
//	components - In report order. Labels must be unique.
//
// Outputs:
//
//	*Assignment - Ready to grade.
//	error - ErrInvalidOptions, ErrNoComponents, ErrNilComponent,
//	        ErrDuplicateLabel or rubric.ErrInvalidMaxPoints.
func New(opts Options, components ...rubric.Component) (*Assignment, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(components) == 0 {
		return nil, ErrNoComponents
	}
	if opts.Name == "" {
		opts.Name = "assignment"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	seen := make(map[string]bool, len(components))
	var total float64
	for i, c := range components {
		if c == nil {
			return nil, fmt.Errorf("%w: position %d", ErrNilComponent, i)
		}
		label := c.Label()
		if label == "" {
			return nil, fmt.Errorf("position %d: %w", i, rubric.ErrEmptyLabel)
		}
		if seen[label] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLabel, label)
		}
		seen[label] = true
		if pts := c.MaxPoints(); pts < 0 || math.IsNaN(pts) || math.IsInf(pts, 0) {
			return nil, fmt.Errorf("%w: %s has %v", rubric.ErrInvalidMaxPoints, label, pts)
		}
		total += c.MaxPoints()
	}

	return &Assignment{
		opts:       opts,
		components: append([]rubric.Component(nil), components...),
		totalMax:   total,
		logger:     logger.With(slog.String("assignment", opts.Name)),
	}, nil
}

// Name returns the assignment name.
func (a *Assignment) Name() string {
	return a.opts.Name
}

// Options returns the options the assignment was built with.
func (a *Assignment) Options() Options {
	return a.opts
}

// Manifest returns the callables submissions must expose.
func (a *Assignment) Manifest() submission.Manifest {
	return a.opts.Manifest
}

// TotalMax is the sum of the components' maximum points.
func (a *Assignment) TotalMax() float64 {
	return a.totalMax
}

// Labels returns component labels in report order.
func (a *Assignment) Labels() []string {
	labels := make([]string, len(a.components))
	for i, c := range a.components {
		labels[i] = c.Label()
	}
	return labels
}

// Grade scores sub against every component.
//
// Description:
//
//	Never panics. The returned report always holds one outcome per
//	component, in declaration order, and TotalEarned is their sum.
//
// Inputs:
//
//	ctx - Cancellation marks the remaining components ERRORED.
//	sub - The loaded submission.
//
// Outputs:
//
//	*Report - The scoring report.
func (a *Assignment) Grade(ctx context.Context, sub submission.Submission) *Report {
	return a.GradeStream(ctx, sub, nil)
}

// GradeStream is Grade with a callback invoked after each component. A
// panicking callback is logged and otherwise ignored.
func (a *Assignment) GradeStream(ctx context.Context, sub submission.Submission, onOutcome func(rubric.Outcome)) *Report {
	report := a.newReport()
	logger := a.logger.With(slog.String("run_id", report.RunID))

	for _, c := range a.components {
		out := a.scoreComponent(ctx, logger, c, sub)
		report.add(out)
		if onOutcome != nil {
			if err := guard.Safely("outcome callback", func() error { onOutcome(out); return nil }); err != nil {
				logger.Warn("outcome callback failed", slog.String("error", err.Error()))
			}
		}
	}

	a.finish(logger, report, "graded")
	return report
}

// GradeSource loads a submission and grades it.
//
// Description:
//
//	A load failure, including a panicking loader, produces a report with
//	every component ERRORED at zero points and Report.LoadError naming the
//	problem, for example every missing capability.
//
// Inputs:
//
//	ctx - Passed to the loader and to Grade.
//	loader - Produces the submission.
//	source - Loader-specific location, normally a directory.
//
// Outputs:
//
//	*Report - Never nil.
func (a *Assignment) GradeSource(ctx context.Context, loader submission.Loader, source string) *Report {
	return a.GradeSourceStream(ctx, loader, source, nil)
}

// GradeSourceStream is GradeSource with a per-component callback. On a
// load failure the callback still sees every ERRORED outcome.
func (a *Assignment) GradeSourceStream(ctx context.Context, loader submission.Loader, source string, onOutcome func(rubric.Outcome)) *Report {
	var sub submission.Submission
	err := guard.Safely("load "+source, func() error {
		var loadErr error
		sub, loadErr = loader.Load(ctx, source, a.opts.Manifest)
		return loadErr
	})
	if err != nil {
		report := a.loadFailure(source, err)
		if onOutcome != nil {
			for _, out := range report.Outcomes {
				_ = guard.Safely("outcome callback", func() error { onOutcome(out); return nil })
			}
		}
		return report
	}

	report := a.GradeStream(ctx, sub, onOutcome)
	report.Submission = source
	return report
}

func (a *Assignment) scoreComponent(ctx context.Context, logger *slog.Logger, c rubric.Component, sub submission.Submission) rubric.Outcome {
	label, maxPts := c.Label(), c.MaxPoints()

	if err := ctx.Err(); err != nil {
		componentFaults.WithLabelValues(a.opts.Name, "cancelled").Inc()
		return rubric.Errored(label, maxPts, guard.ErrCancelled.Error(), err.Error())
	}

	var out rubric.Outcome
	err := guard.Safely(label, func() error {
		out = c.Score(ctx, sub)
		return nil
	})
	if err != nil {
		componentFaults.WithLabelValues(a.opts.Name, "panic").Inc()
		logger.Error("component panicked",
			slog.String("component", label),
			slog.String("error", err.Error()))
		return rubric.Errored(label, maxPts, guard.Summarize(err), err.Error())
	}

	if out.Label == "" {
		out.Label = label
	}
	if err := a.checkOutcome(label, maxPts, out); err != nil {
		componentFaults.WithLabelValues(a.opts.Name, "invalid").Inc()
		logger.Warn("component returned an invalid outcome",
			slog.String("component", label),
			slog.String("fault", string(rubric.FaultRubric)),
			slog.String("error", err.Error()))
		return rubric.Errored(label, maxPts, MsgInvalidOutcome, append(out.Diagnostics, err.Error())...)
	}
	if out.Feedback == nil {
		out.Feedback = []string{}
	}
	return out
}

func (a *Assignment) checkOutcome(label string, maxPts float64, out rubric.Outcome) error {
	if out.Label != label {
		return fmt.Errorf("%w: label %q, component is %q", rubric.ErrInvalidOutcome, out.Label, label)
	}
	if out.MaxPoints != maxPts {
		return fmt.Errorf("%w: max_points %v, component declares %v", rubric.ErrInvalidOutcome, out.MaxPoints, maxPts)
	}
	return out.Validate()
}

func (a *Assignment) loadFailure(source string, err error) *Report {
	var loadErr *submission.LoadError
	if !errors.As(err, &loadErr) {
		loadErr = &submission.LoadError{Source: source, Err: err}
	}

	report := a.newReport()
	report.Submission = source
	report.LoadError = loadErr.Error()
	logger := a.logger.With(slog.String("run_id", report.RunID))
	logger.Warn("submission failed to load",
		slog.String("source", source),
		slog.String("fault", string(rubric.FaultSubmission)),
		slog.String("error", report.LoadError))

	for _, c := range a.components {
		report.add(rubric.Errored(c.Label(), c.MaxPoints(), MsgLoadFailed))
	}
	a.finish(logger, report, "load_error")
	return report
}

func (a *Assignment) newReport() *Report {
	return &Report{
		RunID:      uuid.NewString(),
		Assignment: a.opts.Name,
		Outcomes:   make([]rubric.Outcome, 0, len(a.components)),
		TotalMax:   a.totalMax,
		StartedAt:  time.Now().UTC(),
	}
}

func (a *Assignment) finish(logger *slog.Logger, report *Report, result string) {
	report.Duration = time.Since(report.StartedAt)
	reportsTotal.WithLabelValues(a.opts.Name, result).Inc()
	if report.TotalMax > 0 {
		scorePercent.WithLabelValues(a.opts.Name).Observe(report.Percent())
	}
	logger.Info("assignment graded",
		slog.String("result", result),
		slog.Float64("earned", report.TotalEarned),
		slog.Float64("max", report.TotalMax),
		slog.Duration("duration", report.Duration))
}
