// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package assignment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AleutianAI/AleutianGrade/services/grader/rubric"
)

// SummaryFile is the file WriteSummary creates.
const SummaryFile = "summary.json"

// Report is the scoring result for one submission.
type Report struct {
	// RunID uniquely identifies this grading run.
	RunID string `json:"run_id"`

	// Assignment is the assignment name.
	Assignment string `json:"assignment"`

	// User identifies the student when grading runs in a batch or server.
	User string `json:"user,omitempty"`

	// Submission is the source the submission was loaded from, if any.
	Submission string `json:"submission,omitempty"`

	// Outcomes are in component declaration order.
	Outcomes []rubric.Outcome `json:"outcomes"`

	TotalEarned float64 `json:"total_earned"`
	TotalMax    float64 `json:"total_max"`

	// LoadError is the top-level diagnostic when the submission could not
	// be loaded. All outcomes are then zero.
	LoadError string `json:"load_error,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// Outcome returns the outcome with the given label.
func (r *Report) Outcome(label string) (rubric.Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Label == label {
			return o, true
		}
	}
	return rubric.Outcome{}, false
}

// Percent returns the score as a percentage, or 0 when nothing is at stake.
func (r *Report) Percent() float64 {
	if r.TotalMax == 0 {
		return 0
	}
	return 100 * r.TotalEarned / r.TotalMax
}

// StatusCounts tallies outcomes by status.
func (r *Report) StatusCounts() map[rubric.Status]int {
	counts := make(map[rubric.Status]int)
	for _, o := range r.Outcomes {
		counts[o.Status]++
	}
	return counts
}

// WriteSummary writes the report as indented JSON to dir/summary.json.
//
// Outputs:
//
//	string - The written path.
//	error - Non-nil if the directory or file cannot be written.
func (r *Report) WriteSummary(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	path := filepath.Join(dir, SummaryFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	return path, nil
}

func (r *Report) add(o rubric.Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	r.TotalEarned += o.EarnedPoints
}
