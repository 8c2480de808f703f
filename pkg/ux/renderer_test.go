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
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGrade/services/grader/assignment"
	"github.com/AleutianAI/AleutianGrade/services/grader/batch"
	"github.com/AleutianAI/AleutianGrade/services/grader/rubric"
	"github.com/AleutianAI/AleutianGrade/services/grader/rubrics"
)

func sampleReport() *assignment.Report {
	return &assignment.Report{
		RunID:      "run-1",
		Assignment: "hw0",
		User:       "alice",
		Outcomes: []rubric.Outcome{
			{Label: "Q1", MaxPoints: 1, EarnedPoints: 1, Status: rubric.StatusPassed, Feedback: []string{}},
			{Label: "Q2", MaxPoints: 1, Status: rubric.StatusFailed, Feedback: []string{"function2(0) should return 1."}},
			{Label: "Style", MaxPoints: 0, Status: rubric.StatusPassed, Feedback: []string{}},
		},
		TotalEarned: 1,
		TotalMax:    2,
	}
}

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"json":    ModeJSON,
		"JSON":    ModeJSON,
		"plain":   ModePlain,
		"machine": ModePlain,
		"rich":    ModeRich,
		"":        "",
		"bogus":   "",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, ParseMode(in))
		})
	}
}

func TestDetectMode(t *testing.T) {
	t.Run("buffer is not a terminal", func(t *testing.T) {
		t.Setenv("GRADER_OUTPUT", "")
		assert.Equal(t, ModeJSON, DetectMode(&bytes.Buffer{}))
	})
	t.Run("env override", func(t *testing.T) {
		t.Setenv("GRADER_OUTPUT", "plain")
		assert.Equal(t, ModePlain, DetectMode(&bytes.Buffer{}))
	})
}

func TestRenderer_ReportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(&buf, ModeJSON).Report(sampleReport()))

	var got assignment.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "hw0", got.Assignment)
	require.Len(t, got.Outcomes, 3)
	assert.Equal(t, rubric.StatusFailed, got.Outcomes[1].Status)
	assert.Contains(t, buf.String(), `"status": "failed"`)
}

func TestRenderer_ReportPlain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(&buf, ModePlain).Report(sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "assignment\thw0\n")
	assert.Contains(t, out, "user\talice\n")
	assert.Contains(t, out, "Q1\tpassed\t1/1\n")
	assert.Contains(t, out, "Q2\tfailed\t0/1\n\t- function2(0) should return 1.\n")
	assert.Contains(t, out, "Style\tpassed\t0/0\n")
	assert.Contains(t, out, "total\t1/2\t50.0%\n")
}

func TestRenderer_ReportRich(t *testing.T) {
	var buf bytes.Buffer
	rep := sampleReport()
	rep.LoadError = "missing capabilities: function2"
	require.NoError(t, NewRenderer(&buf, ModeRich).Report(rep))

	out := buf.String()
	assert.Contains(t, out, "hw0")
	assert.Contains(t, out, "Q2")
	assert.Contains(t, out, "function2(0) should return 1.")
	assert.Contains(t, out, "missing capabilities: function2")
	assert.Contains(t, out, "1 / 2")
}

func TestRenderer_OutcomeJSONLines(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, ModeJSON)
	for _, o := range sampleReport().Outcomes {
		require.NoError(t, r.Outcome(o))
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	var o rubric.Outcome
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &o))
	assert.Equal(t, "Q1", o.Label)
}

func TestRenderer_Batch(t *testing.T) {
	results := []batch.Result{
		{Job: batch.Job{Assignment: "hw0", User: "alice"}, Report: sampleReport()},
		{Job: batch.Job{Assignment: "hw0", User: "bob"}, Err: errors.New("boom"), Error: "boom"},
	}

	t.Run("plain", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewRenderer(&buf, ModePlain).Batch(results))
		out := buf.String()
		assert.Contains(t, out, "alice\thw0\tgraded\t1/2\n")
		assert.Contains(t, out, "bob\thw0\terror\tboom\n")
		assert.Contains(t, out, "summary\ttotal=2\tgraded=1\tfailed=1\tload_errors=0\tmean=50.0%\n")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewRenderer(&buf, ModeJSON).Batch(results))
		var got struct {
			Summary batch.Summary `json:"summary"`
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, 2, got.Summary.Total)
		assert.Equal(t, 1, got.Summary.Failed)
	})

	t.Run("rich", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewRenderer(&buf, ModeRich).Batch(results))
		assert.Contains(t, buf.String(), "alice")
		assert.Contains(t, buf.String(), "boom")
	})
}

func TestRenderer_Rubrics(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(&buf, ModePlain).Rubrics([]rubrics.Definition{rubrics.HW0()}))
	assert.Contains(t, buf.String(), "hw0\tv1.0.0\tfunction1,function2\t")
}

func TestRenderer_Error(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(&buf, ModePlain).Error(errors.New("no such rubric")))
	assert.Equal(t, "ERROR: no such rubric\n", buf.String())
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "", ProgressBar(1, 2, 0))
	bar := ProgressBar(1, 2, 10)
	assert.Equal(t, 5, strings.Count(bar, "█"))
	assert.Equal(t, 5, strings.Count(bar, "░"))
	assert.Equal(t, 10, strings.Count(ProgressBar(0, 0, 10), "░"))
	assert.Equal(t, 10, strings.Count(ProgressBar(5, 2, 10), "█"))
}

func TestStatusIcon(t *testing.T) {
	assert.Equal(t, IconPassed, StatusIcon(rubric.StatusPassed))
	assert.Equal(t, IconFailed, StatusIcon(rubric.StatusFailed))
	assert.Equal(t, IconErrored, StatusIcon(rubric.StatusErrored))
	assert.Equal(t, IconNotImplemented, StatusIcon(rubric.StatusNotImplemented))
}
