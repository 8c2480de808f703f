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
	"errors"
	"strings"
	"unicode/utf8"
)

// maxSummaryLen bounds a student-facing summary in bytes.
const maxSummaryLen = 200

// summarizer is implemented by errors with their own student-facing form,
// such as submission.ExecutionError.
type summarizer interface {
	Summary() string
}

// Summarize reduces err to a single line fit for student feedback.
//
// Description:
//
//	Timeouts become MsgTimedOut. Errors that provide a Summary method use
//	it, which keeps only the exception type and message of a student
//	exception. Anything else is reduced to the innermost error's first
//	line so wrapped framework context never leaks. The result is
//	truncated to maxSummaryLen bytes on a rune boundary.
//
// Inputs:
//
//	err - Any error. nil yields "".
//
// Outputs:
//
//	string - One line, possibly truncated with "...".
func Summarize(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrTimeout) {
		return MsgTimedOut
	}
	if errors.Is(err, ErrCancelled) {
		return ErrCancelled.Error()
	}

	var s summarizer
	var msg string
	if errors.As(err, &s) {
		msg = s.Summary()
	} else {
		msg = innermost(err).Error()
	}
	return truncate(firstLine(msg), maxSummaryLen)
}

func innermost(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
