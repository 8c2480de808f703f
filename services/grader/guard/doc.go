// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package guard isolates calls that may hang or panic.
//
// # Overview
//
// Every call from a question into student code, and every question's
// scoring logic as a whole, runs through a Guard. The guard gives the call
// its own goroutine and a deadline, converts panics into *PanicError, and
// turns an exceeded deadline into *TimeoutError. The caller always regains
// control, whatever the callee does.
//
// # Cancellation Protocol
//
//	T+0        deadline passes, the call's context is cancelled
//	T+grace    the guard stops waiting and returns *TimeoutError
//
// A callee that honours ctx.Done() (the Python provider kills its process
// group) returns within the grace period. One that does not is abandoned:
// its goroutine keeps running but its result is discarded and it is
// counted in the grader_guard_abandoned_total metric.
//
// # Student-Facing Summaries
//
// Summarize reduces any error to one line safe to show a student. It never
// includes stack traces or wrapped framework context.
package guard
