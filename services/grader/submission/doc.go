// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package submission exposes a student's code to the grader as a fixed set
// of named callables.
//
// A rubric declares the callables it needs as a Manifest. A Loader turns a
// source artifact (normally a directory) into a Submission and checks it
// against the manifest exactly once. Anything missing or with an
// incompatible signature fails the load with a *LoadError that names every
// offending capability, so questions never discover a missing function at
// call time.
//
// Two providers ship with the package:
//
//   - FuncSet holds in-process Go functions. Tests and examples use it.
//   - PythonLoader discovers top-level functions in a Python file with
//     tree-sitter and runs each call in its own python3 process with
//     resource limits.
//
// Stub detection: a callable signals "not implemented" either by returning
// the NotImplemented value or by failing with ErrNotImplemented. Python
// submissions do this by returning NotImplemented or raising
// NotImplementedError.
package submission
