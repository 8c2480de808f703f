// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package guard

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// MsgTimedOut is the feedback for a call that exceeded its deadline.
const MsgTimedOut = "execution timed out"

// Sentinel errors for the guard package.
var (
	// ErrTimeout matches any *TimeoutError via errors.Is.
	ErrTimeout = errors.New("execution timed out")

	// ErrPanic matches any *PanicError via errors.Is.
	ErrPanic = errors.New("panic")

	// ErrCancelled indicates the caller's own context ended before the call.
	ErrCancelled = errors.New("grading cancelled")
)

// TimeoutError reports a call that did not finish within its budget.
type TimeoutError struct {
	Label   string
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: execution timed out after %s", e.Label, e.Timeout)
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// PanicError carries a recovered panic.
type PanicError struct {
	Label string
	Value any

	// Stack is kept for logs. It never reaches Summarize.
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("%s panicked: %v", e.Label, e.Value)
}

// Is reports whether target is ErrPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrPanic
}

// Summary is the student-facing form.
func (e *PanicError) Summary() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func cancelled(label string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrCancelled, label, cause)
}

// IsCancelled reports whether err came from the caller's own context
// ending rather than from a timeout or the callee.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) ||
		(errors.Is(err, context.Canceled) && !errors.Is(err, ErrTimeout))
}
