// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rubric defines graded components and the question credit
// protocol.
//
// # Components
//
// A Component has a label and a maximum point value, and produces exactly
// one Outcome per run. Question is the functional-correctness variant; the
// style package provides the informational variant.
//
// # Question Protocol
//
// A Question wraps a Scorer. Every run gets a fresh *Credit, and the scorer
// calls exactly one terminal action on it:
//
//	FullCredit()           earned = max, PASSED
//	PartialCredit(f)       earned = max*f, PASSED only when f == 1
//	Fail(msg)              earned = 0, FAILED, msg in feedback
//	CheckNotImplemented(r) when r is a stub: earned = 0, NOT_IMPLEMENTED
//
// The status moves from PENDING to a terminal status exactly once. Extra
// terminal actions are ignored (the first one wins) and reported as rubric
// errors, as are out-of-range fractions and scorers that never decide.
//
// A typical scorer:
//
//	func(ctx context.Context, c *rubric.Credit, _ submission.Submission) error {
//	    res, err := c.Call(ctx, "function2", 0)
//	    if err != nil {
//	        return err
//	    }
//	    if c.CheckNotImplemented(res) {
//	        return nil
//	    }
//	    if !res.Equal(1) {
//	        c.Fail("function2(0) should return 1.")
//	        return nil
//	    }
//	    c.FullCredit()
//	    return nil
//	}
//
// # Fault Handling
//
// Score never panics and never returns an error. A scorer error or panic
// makes the outcome ERRORED with a sanitized summary. A timeout makes it
// FAILED with "execution timed out". In both cases points committed before
// the fault are kept, capped at the maximum.
package rubric
