// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Summary aggregates a batch.
type Summary struct {
	Total  int `json:"total"`
	Graded int `json:"graded"`

	// Failed counts jobs with no report.
	Failed int `json:"failed"`

	// LoadErrors counts reports whose submission could not be loaded.
	LoadErrors int `json:"load_errors"`

	MeanPercent float64 `json:"mean_percent"`
}

// Summarize tallies results.
func Summarize(results []Result) Summary {
	var s Summary
	var pct float64
	for _, res := range results {
		s.Total++
		if res.Report == nil {
			s.Failed++
			continue
		}
		s.Graded++
		if res.Report.LoadError != "" {
			s.LoadErrors++
		}
		pct += res.Report.Percent()
	}
	if s.Graded > 0 {
		s.MeanPercent = pct / float64(s.Graded)
	}
	return s
}

// WriteResults writes all results plus their summary to dir/batch.json.
func WriteResults(dir string, results []Result) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	doc := struct {
		Summary Summary  `json:"summary"`
		Results []Result `json:"results"`
	}{Summarize(results), results}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return "", fmt.Errorf("encode results: %w", err)
	}
	path := filepath.Join(dir, "batch.json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write results: %w", err)
	}
	return path, nil
}
