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
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/AleutianAI/AleutianGrade/services/grader/guard"
	"github.com/AleutianAI/AleutianGrade/services/grader/submission"
)

// Credit is the scoring state of one question run.
//
// Description:
//
//	A Credit is created for each Score call and sealed when the run
//	finishes. Scorers call exactly one terminal action on it. Writes after
//	sealing come from an abandoned scorer goroutine and are dropped.
//
// Thread Safety: safe for concurrent use.
type Credit struct {
	question  string
	maxPoints float64
	sub       submission.Submission
	calls     *guard.Guard
	logger    *slog.Logger

	mu          sync.Mutex
	status      Status
	earned      float64
	verdictBy   string
	sealed      bool
	feedback    []string
	diagnostics []string
}

func newCredit(q *Question, sub submission.Submission) *Credit {
	return &Credit{
		question:  q.label,
		maxPoints: q.maxPoints,
		sub:       sub,
		calls:     q.calls,
		logger:    q.logger,
		status:    StatusPending,
	}
}

// =============================================================================
// Terminal Credit Actions
// =============================================================================

// FullCredit awards all points and marks the question PASSED.
func (c *Credit) FullCredit() {
	c.decide("FullCredit", StatusPassed, c.maxPoints, "")
}

// PartialCredit awards maxPoints*fraction.
//
// Description:
//
//	A fraction outside [0, 1] is clamped and reported as a rubric error;
//	NaN counts as 0. The status is PASSED only for a fraction of exactly
//	1, otherwise FAILED with the partial points kept.
func (c *Credit) PartialCredit(fraction float64) {
	f := fraction
	switch {
	case math.IsNaN(f):
		c.rubricError(ErrFractionOutOfRange, "NaN treated as 0")
		f = 0
	case f < 0 || f > 1:
		f = math.Max(0, math.Min(1, f))
		c.rubricError(ErrFractionOutOfRange, fmt.Sprintf("%v clamped to %v", fraction, f))
	}
	status := StatusFailed
	if f == 1 {
		status = StatusPassed
	}
	c.decide("PartialCredit", status, c.maxPoints*f, "")
}

// Fail awards no points, marks the question FAILED and records message as
// feedback.
func (c *Credit) Fail(message string) {
	c.decide("Fail", StatusFailed, 0, message)
}

// CheckNotImplemented detects a stubbed function.
//
// Description:
//
//	When result carries the not-implemented sentinel, fails the question
//	with a standard message, marks it NOT_IMPLEMENTED and returns true.
//	The scorer must then return without further checks. Otherwise returns
//	false and changes nothing.
//
// Inputs:
//
//	result - A result from Call.
//
// Outputs:
//
//	bool - True when the function is a stub.
func (c *Credit) CheckNotImplemented(result submission.Result) bool {
	if !result.NotImplemented && !submission.IsNotImplemented(result.Value) {
		return false
	}
	c.decide("CheckNotImplemented", StatusNotImplemented, 0, NotImplementedMessage(result.Function))
	return true
}

// AddFeedback appends a non-terminal note for the student.
func (c *Credit) AddFeedback(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sealed {
		c.feedback = append(c.feedback, message)
	}
}

// Status returns the current status. It stays StatusPending until a
// terminal action is called.
func (c *Credit) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// EarnedPoints returns the points committed so far.
func (c *Credit) EarnedPoints() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.earned
}

// MaxPoints returns the question's maximum.
func (c *Credit) MaxPoints() float64 {
	return c.maxPoints
}

func (c *Credit) decide(action string, status Status, earned float64, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sealed {
		c.logger.Debug("credit action after run finished ignored",
			slog.String("question", c.question),
			slog.String("action", action))
		return
	}
	if c.status != StatusPending {
		c.rubricErrorLocked(ErrMultipleVerdicts,
			fmt.Sprintf("%s ignored, %s already decided the question", action, c.verdictBy))
		return
	}
	c.status = status
	c.earned = clampPoints(earned, c.maxPoints)
	c.verdictBy = action
	if message != "" {
		c.feedback = append(c.feedback, message)
	}
}

// =============================================================================
// Submission Calls
// =============================================================================

// Call invokes a submission function under the per-call timeout.
//
// Description:
//
//	The not-implemented signal is folded into the returned Result rather
//	than reported as an error, so scorers only need CheckNotImplemented.
//	Calls to names the submission does not expose are rubric errors.
//
// Inputs:
//
//	ctx - The scorer's context.
//	name - Function name from the rubric's manifest.
//	args - Positional arguments.
//
// Outputs:
//
//	submission.Result - Populated even when err is non-nil.
//	error - Execution errors, *guard.TimeoutError or *guard.PanicError.
//	        Scorers should return it unchanged.
func (c *Credit) Call(ctx context.Context, name string, args ...any) (submission.Result, error) {
	res := submission.Result{Function: name, Args: args}
	out := make(chan any, 1)

	err := c.calls.Run(ctx, c.question+"/"+name, func(ctx context.Context) error {
		v, err := c.sub.Call(ctx, name, args...)
		out <- v
		return err
	})

	switch {
	case errors.Is(err, submission.ErrNotImplemented):
		res.NotImplemented = true
		return res, nil
	case errors.Is(err, submission.ErrUnknownCapability), errors.Is(err, submission.ErrArity):
		c.rubricError(ErrUndeclaredCall, err.Error())
		return res, err
	case err != nil:
		return res, err
	}

	res.Value = <-out
	res.NotImplemented = submission.IsNotImplemented(res.Value)
	return res, nil
}

// =============================================================================
// Finalization
// =============================================================================

func (c *Credit) rubricError(err error, detail string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rubricErrorLocked(err, detail)
}

func (c *Credit) rubricErrorLocked(err error, detail string) {
	re := &RubricError{Question: c.question, Err: err, Detail: detail}
	c.diagnostics = append(c.diagnostics, re.Error())
	recordRubricError(c.question, err)
	c.logger.Warn("rubric error",
		slog.String("question", c.question),
		slog.String("fault", string(FaultRubric)),
		slog.String("error", re.Error()))
}

// finalize seals the credit and builds the outcome for a run that ended
// with runErr.
func (c *Credit) finalize(runErr error) Outcome {
	if runErr == nil && c.Status() == StatusPending {
		c.rubricError(ErrNoVerdict, "")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealed = true

	status := c.status
	earned := clampPoints(c.earned, c.maxPoints)
	feedback := append([]string(nil), c.feedback...)

	switch {
	case runErr != nil && errors.Is(runErr, guard.ErrTimeout):
		status = StatusFailed
		feedback = append(feedback, guard.MsgTimedOut)
		c.logFault(FaultSubmission, runErr)
	case runErr != nil:
		status = StatusErrored
		feedback = append(feedback, guard.Summarize(runErr))
		c.logFault(classify(runErr), runErr)
	case status == StatusPending:
		status = StatusFailed
		earned = 0
		feedback = append(feedback, MsgNoVerdict)
	}

	if feedback == nil {
		feedback = []string{}
	}
	return Outcome{
		Label:        c.question,
		MaxPoints:    c.maxPoints,
		EarnedPoints: earned,
		Status:       status,
		Feedback:     feedback,
		Diagnostics:  append([]string(nil), c.diagnostics...),
	}
}

func (c *Credit) logFault(fault Fault, err error) {
	level := slog.LevelInfo
	if fault != FaultSubmission {
		level = slog.LevelWarn
	}
	c.logger.Log(context.Background(), level, "question faulted",
		slog.String("question", c.question),
		slog.String("fault", string(fault)),
		slog.String("error", err.Error()))
}

// classify decides who caused a scorer error.
func classify(err error) Fault {
	var execErr *submission.ExecutionError
	var rubricErr *RubricError
	switch {
	case errors.As(err, &execErr), errors.Is(err, guard.ErrTimeout):
		return FaultSubmission
	case guard.IsCancelled(err):
		return FaultSystem
	case errors.As(err, &rubricErr), errors.Is(err, submission.ErrUnknownCapability),
		errors.Is(err, submission.ErrArity):
		return FaultRubric
	case errors.Is(err, guard.ErrPanic):
		// In-process submissions panic too; without a stack walk the
		// origin is unknown.
		return FaultSubmission
	default:
		return FaultRubric
	}
}
