// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lint runs external linters over a submission directory and
// normalizes their findings.
//
// Supported linters:
//
//	python  ruff check --output-format=json
//	go      golangci-lint run --out-format=json
//
// A linter that is not installed is not an error: the result comes back
// with Available=false and no findings, so style checks degrade instead of
// failing a grading run. A RulePolicy decides which rules block, which
// warn, and which are ignored.
package lint
