// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package submission

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the submission package.
var (
	// ErrNotImplemented signals a stub the student left unwritten. It is an
	// expected condition, not a fault.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnknownCapability indicates a call to a name the submission does
	// not expose.
	ErrUnknownCapability = errors.New("unknown capability")

	// ErrArity indicates a call with an argument count the callable rejects.
	ErrArity = errors.New("wrong number of arguments")

	// ErrSyntax indicates the source could not be parsed.
	ErrSyntax = errors.New("syntax error")

	// ErrOutputTooLarge indicates a call produced more output than allowed.
	ErrOutputTooLarge = errors.New("output too large")
)

// ArityMismatch describes a capability whose signature cannot accept the
// argument count the rubric uses.
type ArityMismatch struct {
	Name     string `json:"name"`
	Expected int    `json:"expected"`
	Accepts  string `json:"accepts"`
}

// LoadError reports a submission that cannot satisfy a rubric's manifest.
// It is scoped to the whole assignment.
type LoadError struct {
	// Source is the artifact that failed to load.
	Source string `json:"source"`

	// Missing lists required capabilities the submission does not define.
	Missing []string `json:"missing,omitempty"`

	// Mismatched lists capabilities with incompatible signatures.
	Mismatched []ArityMismatch `json:"mismatched,omitempty"`

	// Err is an underlying failure such as ErrSyntax or an I/O error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	var parts []string
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	if len(e.Missing) > 0 {
		parts = append(parts, "missing capabilities: "+strings.Join(e.Missing, ", "))
	}
	for _, m := range e.Mismatched {
		parts = append(parts, fmt.Sprintf("%s is called with %d argument(s) but accepts %s",
			m.Name, m.Expected, m.Accepts))
	}
	if len(parts) == 0 {
		parts = append(parts, "unknown failure")
	}
	return fmt.Sprintf("load submission %s: %s", e.Source, strings.Join(parts, "; "))
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// ExecutionError reports an exception raised by submission code.
type ExecutionError struct {
	// Function is the callable that raised.
	Function string

	// Type is the exception class, e.g. "ZeroDivisionError".
	Type string

	// Message is the exception text.
	Message string
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s raised %s", e.Function, e.Summary())
}

// Summary is the student-facing form: the exception type and message only.
func (e *ExecutionError) Summary() string {
	if e.Message == "" {
		return e.Type
	}
	return e.Type + ": " + e.Message
}
