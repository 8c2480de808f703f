// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package batch grades many submissions concurrently.
//
// Each job builds its own assignment from the rubric registry, so no
// scoring state is shared between jobs. Concurrency is bounded by a worker
// limit and a process spawn rate; jobs for the same assignment and user
// never overlap. A failing job is reported in its Result and never stops
// the others.
package batch
