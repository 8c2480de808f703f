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
	"errors"
	"fmt"
)

// Feedback messages with fixed wording.
const (
	// MsgNoVerdict is the feedback when a scorer assigns no credit.
	MsgNoVerdict = "question did not assign credit"

	// notImplementedFormat takes the function name.
	notImplementedFormat = "%s() appears to not be implemented."
)

// Sentinel errors for the rubric package.
var (
	// ErrInvalidOutcome indicates an outcome that breaks its invariants.
	ErrInvalidOutcome = errors.New("invalid outcome")

	// ErrEmptyLabel indicates a component without a label.
	ErrEmptyLabel = errors.New("label must not be empty")

	// ErrInvalidMaxPoints indicates a negative or non-finite max.
	ErrInvalidMaxPoints = errors.New("max points must be a finite number >= 0")

	// ErrNilScorer indicates a question without scoring logic.
	ErrNilScorer = errors.New("scorer must not be nil")

	// ErrNoVerdict indicates a scorer that called no terminal action.
	ErrNoVerdict = errors.New("no credit action called")

	// ErrMultipleVerdicts indicates a second terminal action in one run.
	ErrMultipleVerdicts = errors.New("more than one credit action called")

	// ErrFractionOutOfRange indicates partial credit outside [0, 1].
	ErrFractionOutOfRange = errors.New("partial credit fraction outside [0, 1]")

	// ErrUndeclaredCall indicates a call the submission cannot serve
	// because the rubric never declared it in its manifest.
	ErrUndeclaredCall = errors.New("call not covered by the manifest")
)

// Fault classifies who is to blame for a problem, for logs and metrics.
type Fault string

const (
	// FaultSubmission is the student's code misbehaving.
	FaultSubmission Fault = "submission"

	// FaultRubric is a defect in the rubric itself.
	FaultRubric Fault = "rubric"

	// FaultSystem is the grader or its environment, e.g. cancellation.
	FaultSystem Fault = "system"
)

// RubricError reports a defect in rubric code. It never ends up in
// student feedback; it is logged and added to Outcome.Diagnostics.
type RubricError struct {
	Question string
	Err      error
	Detail   string
}

// Error implements the error interface.
func (e *RubricError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("rubric error in %s: %v", e.Question, e.Err)
	}
	return fmt.Sprintf("rubric error in %s: %v: %s", e.Question, e.Err, e.Detail)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RubricError) Unwrap() error {
	return e.Err
}

// NotImplementedMessage is the feedback for a stubbed function.
func NotImplementedMessage(function string) string {
	return fmt.Sprintf(notImplementedFormat, function)
}
