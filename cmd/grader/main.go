// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command grader scores student submissions against versioned rubrics.
//
// Usage:
//
//	grader grade --assignment hw0 --input-dir ./submission
//	grader batch --assignment hw0 --root ./submissions --output-dir ./out
//	grader regrade --assignment hw0 alice bob
//	grader watch --assignment hw0 --root ./submissions
//	grader serve --config grader.yaml
//	grader rubrics
//
// Output is JSON when stdout is not a terminal or --json is set.
package main

import (
	"os"
)

func main() {
	os.Exit(execute(os.Args[1:]))
}

// execute runs the CLI and returns the process exit code.
func execute(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		renderer := newRenderer(root.ErrOrStderr(), root.PersistentFlags())
		_ = renderer.Error(err)
		return 1
	}
	return 0
}
