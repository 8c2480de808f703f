// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Mode controls how results are rendered.
type Mode string

const (
	// ModeRich uses colors, icons and boxes.
	ModeRich Mode = "rich"

	// ModePlain is tab-separated text suitable for grep and awk.
	ModePlain Mode = "plain"

	// ModeJSON writes machine-readable JSON.
	ModeJSON Mode = "json"
)

// ParseMode converts a flag or env value to a Mode. Unknown values and the
// empty string map to "" so callers can fall back to DetectMode.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rich", "color", "full":
		return ModeRich
	case "plain", "text", "machine":
		return ModePlain
	case "json":
		return ModeJSON
	default:
		return ""
	}
}

// DetectMode picks a mode for w.
//
// Description:
//
//	GRADER_OUTPUT overrides detection. Otherwise anything that is not a
//	terminal (pipes, files, CI logs) gets ModeJSON. A terminal gets ModeRich
//	unless NO_COLOR is set.
func DetectMode(w io.Writer) Mode {
	if m := ParseMode(os.Getenv("GRADER_OUTPUT")); m != "" {
		return m
	}
	if !isTerminal(w) {
		return ModeJSON
	}
	if os.Getenv("NO_COLOR") != "" {
		return ModePlain
	}
	return ModeRich
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
