// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rubric

import (
	"fmt"
)

// Status is the lifecycle state of a component run.
type Status int

const (
	// StatusPending is the only non-terminal status.
	StatusPending Status = iota

	// StatusPassed means full marks.
	StatusPassed

	// StatusFailed means the submission did not meet the check, or ran out
	// of time.
	StatusFailed

	// StatusNotImplemented means the submission left the function as a stub.
	StatusNotImplemented

	// StatusErrored means the run raised or panicked.
	StatusErrored
)

var statusNames = map[Status]string{
	StatusPending:        "pending",
	StatusPassed:         "passed",
	StatusFailed:         "failed",
	StatusNotImplemented: "not_implemented",
	StatusErrored:        "errored",
}

// String returns the wire name of the status.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// IsTerminal reports whether no transition leaves this status.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusNotImplemented, StatusErrored:
		return true
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if _, ok := statusNames[s]; !ok {
		return nil, fmt.Errorf("invalid status %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	for status, name := range statusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}
