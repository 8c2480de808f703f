// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package style provides the informational style component of an
// assignment.
//
// Style lints the submission's source directory and reports findings as
// feedback. It carries zero points by default, so it never changes a
// student's total unless an assignment gives it weight. Linting failures
// of any kind degrade to an outcome with no findings; they never abort
// grading.
package style
