// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rubric

import (
	"context"
	"fmt"
	"math"

	"github.com/AleutianAI/AleutianGrade/services/grader/submission"
)

// Component is one graded unit of an assignment.
type Component interface {
	// Label names the component in reports.
	Label() string

	// MaxPoints is the component's weight, always >= 0.
	MaxPoints() float64

	// Score runs the component once. It must not panic and must return a
	// terminal Outcome; the assignment guards against both anyway.
	Score(ctx context.Context, sub submission.Submission) Outcome
}

// Outcome is the immutable result of one component run.
type Outcome struct {
	Label        string   `json:"label"`
	MaxPoints    float64  `json:"max_points"`
	EarnedPoints float64  `json:"earned_points"`
	Status       Status   `json:"status"`
	Feedback     []string `json:"feedback"`

	// Diagnostics are notes for rubric authors, kept apart from student
	// feedback.
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// Validate checks the outcome invariants.
//
// Outputs:
//
//	error - Wraps ErrInvalidOutcome naming the first violation, or nil.
func (o Outcome) Validate() error {
	switch {
	case math.IsNaN(o.MaxPoints) || math.IsInf(o.MaxPoints, 0):
		return fmt.Errorf("%w: max_points is %v", ErrInvalidOutcome, o.MaxPoints)
	case o.MaxPoints < 0:
		return fmt.Errorf("%w: max_points %v is negative", ErrInvalidOutcome, o.MaxPoints)
	case math.IsNaN(o.EarnedPoints) || math.IsInf(o.EarnedPoints, 0):
		return fmt.Errorf("%w: earned_points is %v", ErrInvalidOutcome, o.EarnedPoints)
	case o.EarnedPoints < 0 || o.EarnedPoints > o.MaxPoints:
		return fmt.Errorf("%w: earned_points %v outside [0, %v]", ErrInvalidOutcome, o.EarnedPoints, o.MaxPoints)
	case !o.Status.IsTerminal():
		return fmt.Errorf("%w: status %s is not terminal", ErrInvalidOutcome, o.Status)
	}
	return nil
}

// Errored builds a zero-point ERRORED outcome.
func Errored(label string, maxPoints float64, feedback string, diagnostics ...string) Outcome {
	return Outcome{
		Label:       label,
		MaxPoints:   maxPoints,
		Status:      StatusErrored,
		Feedback:    []string{feedback},
		Diagnostics: diagnostics,
	}
}

// clampPoints bounds v to [0, max]. NaN becomes 0.
func clampPoints(v, max float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > max:
		return max
	}
	return v
}

func validMaxPoints(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
