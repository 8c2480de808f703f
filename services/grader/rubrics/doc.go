// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rubrics holds versioned assignment definitions.
//
// A definition is registered under "name@vMAJOR.MINOR.PATCH". Looking up a
// bare name resolves to its highest registered version, so a course can
// publish a fixed rubric without breaking runs pinned to an older one.
package rubrics
