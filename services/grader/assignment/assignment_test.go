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
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianGrade/services/grader/rubric"
	"github.com/AleutianAI/AleutianGrade/services/grader/submission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeComponent returns whatever score produces.
type fakeComponent struct {
	label string
	max   float64
	score func(ctx context.Context, sub submission.Submission) rubric.Outcome
}

func (f *fakeComponent) Label() string      { return f.label }
func (f *fakeComponent) MaxPoints() float64 { return f.max }
func (f *fakeComponent) Score(ctx context.Context, sub submission.Submission) rubric.Outcome {
	return f.score(ctx, sub)
}

func fixed(label string, max float64, out rubric.Outcome) *fakeComponent {
	return &fakeComponent{label: label, max: max, score: func(context.Context, submission.Submission) rubric.Outcome {
		return out
	}}
}

func passing(label string, max float64) *fakeComponent {
	return fixed(label, max, rubric.Outcome{Label: label, MaxPoints: max, EarnedPoints: max, Status: rubric.StatusPassed})
}

func question(t *testing.T, label string, fn rubric.ScorerFunc) *rubric.Question {
	t.Helper()
	q, err := rubric.NewQuestion(label, 1, fn, rubric.WithLogger(quiet))
	require.NoError(t, err)
	return q
}

func newAssignment(t *testing.T, components ...rubric.Component) *Assignment {
	t.Helper()
	a, err := New(Options{Name: "hw", Logger: quiet}, components...)
	require.NoError(t, err)
	return a
}

// =============================================================================
// Construction Tests
// =============================================================================

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrNoComponents)

	_, err = New(Options{}, passing("Q1", 1), nil)
	assert.ErrorIs(t, err, ErrNilComponent)

	_, err = New(Options{}, passing("Q1", 1), passing("Q1", 2))
	assert.ErrorIs(t, err, ErrDuplicateLabel)

	_, err = New(Options{}, passing("Q1", -1))
	assert.ErrorIs(t, err, rubric.ErrInvalidMaxPoints)

	_, err = New(Options{}, passing("", 1))
	assert.ErrorIs(t, err, rubric.ErrEmptyLabel)

	_, err = New(Options{StyleMaxPoints: -1}, passing("Q1", 1))
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = New(Options{InputDir: "/does/not/exist", Logger: quiet}, passing("Q1", 1))
	assert.NoError(t, err, "a missing input dir is reported at load time")

	a, err := New(Options{Logger: quiet}, passing("Q1", 1), passing("Q2", 2.5))
	require.NoError(t, err)
	assert.Equal(t, "assignment", a.Name())
	assert.Equal(t, 3.5, a.TotalMax())
	assert.Equal(t, []string{"Q1", "Q2"}, a.Labels())
}

func TestOptionsFromMap(t *testing.T) {
	dir := t.TempDir()

	t.Run("recognized keys", func(t *testing.T) {
		opts, err := OptionsFromMap(map[string]any{
			"name":             "hw0",
			"input_dir":        dir,
			"style_max_points": 2,
			"call_timeout":     "250ms",
		})
		require.NoError(t, err)
		assert.Equal(t, "hw0", opts.Name)
		assert.Equal(t, dir, opts.InputDir)
		assert.Equal(t, 2.0, opts.StyleMaxPoints)
		assert.Equal(t, 250*time.Millisecond, opts.CallTimeout)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := OptionsFromMap(map[string]any{"input_dir": dir, "max_point": 3})
		assert.ErrorIs(t, err, ErrInvalidOptions)
		assert.Contains(t, err.Error(), "max_point")
	})

	t.Run("invalid value", func(t *testing.T) {
		_, err := OptionsFromMap(map[string]any{"style_max_points": -2})
		assert.ErrorIs(t, err, ErrInvalidOptions)
	})

	t.Run("empty", func(t *testing.T) {
		opts, err := OptionsFromMap(nil)
		require.NoError(t, err)
		assert.Equal(t, Options{}, opts)
	})
}

// =============================================================================
// Grading Tests
// =============================================================================

func TestGrade_OrderAndTotals(t *testing.T) {
	a := newAssignment(t,
		passing("Q1", 1),
		fixed("Q2", 2, rubric.Outcome{Label: "Q2", MaxPoints: 2, EarnedPoints: 0.5, Status: rubric.StatusFailed}),
		passing("Style", 0),
	)

	report := a.Grade(context.Background(), submission.NewFuncSet(""))
	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, "Q1", report.Outcomes[0].Label)
	assert.Equal(t, "Q2", report.Outcomes[1].Label)
	assert.Equal(t, "Style", report.Outcomes[2].Label)
	assert.Equal(t, 1.5, report.TotalEarned)
	assert.Equal(t, 3.0, report.TotalMax)
	assert.Equal(t, "hw", report.Assignment)
	assert.NotEmpty(t, report.RunID)
	assert.InDelta(t, 50.0, report.Percent(), 1e-9)
}

func TestGrade_ComponentIsolation(t *testing.T) {
	panics := &fakeComponent{label: "panics", max: 1, score: func(context.Context, submission.Submission) rubric.Outcome {
		panic("rubric bug")
	}}

	tests := []struct {
		name      string
		component rubric.Component
		feedback  string
	}{
		{"panic", panics, "panic: rubric bug"},
		{"earned above max", fixed("over", 1, rubric.Outcome{Label: "over", MaxPoints: 1, EarnedPoints: 5, Status: rubric.StatusPassed}), MsgInvalidOutcome},
		{"negative earned", fixed("neg", 1, rubric.Outcome{Label: "neg", MaxPoints: 1, EarnedPoints: -1, Status: rubric.StatusFailed}), MsgInvalidOutcome},
		{"NaN earned", fixed("nan", 1, rubric.Outcome{Label: "nan", MaxPoints: 1, EarnedPoints: math.NaN(), Status: rubric.StatusFailed}), MsgInvalidOutcome},
		{"pending", fixed("pending", 1, rubric.Outcome{Label: "pending", MaxPoints: 1}), MsgInvalidOutcome},
		{"max mismatch", fixed("mismatch", 1, rubric.Outcome{Label: "mismatch", MaxPoints: 10, EarnedPoints: 10, Status: rubric.StatusPassed}), MsgInvalidOutcome},
		{"label mismatch", fixed("label", 1, rubric.Outcome{Label: "other", MaxPoints: 1, EarnedPoints: 1, Status: rubric.StatusPassed}), MsgInvalidOutcome},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAssignment(t, passing("first", 1), tt.component, passing("last", 1))
			report := a.Grade(context.Background(), submission.NewFuncSet(""))

			require.Len(t, report.Outcomes, 3)
			bad := report.Outcomes[1]
			assert.Equal(t, tt.component.Label(), bad.Label)
			assert.Equal(t, rubric.StatusErrored, bad.Status)
			assert.Equal(t, 0.0, bad.EarnedPoints)
			assert.Equal(t, tt.component.MaxPoints(), bad.MaxPoints)
			assert.Equal(t, []string{tt.feedback}, bad.Feedback)
			assert.NotEmpty(t, bad.Diagnostics)

			assert.Equal(t, rubric.StatusPassed, report.Outcomes[2].Status)
			assert.Equal(t, 2.0, report.TotalEarned)
			assert.Equal(t, 3.0, report.TotalMax)
		})
	}
}

func TestGrade_EmptyLabelFilledIn(t *testing.T) {
	a := newAssignment(t, fixed("Q1", 1, rubric.Outcome{MaxPoints: 1, EarnedPoints: 1, Status: rubric.StatusPassed}))
	report := a.Grade(context.Background(), submission.NewFuncSet(""))
	assert.Equal(t, "Q1", report.Outcomes[0].Label)
	assert.Equal(t, rubric.StatusPassed, report.Outcomes[0].Status)
	assert.Equal(t, []string{}, report.Outcomes[0].Feedback)
}

func TestGrade_QuestionErrorDoesNotStopLaterComponents(t *testing.T) {
	sub := submission.NewFuncSet("").
		Define("function2", 1, func(context.Context, ...any) (any, error) {
			return nil, &submission.ExecutionError{Function: "function2", Type: "TypeError", Message: "bad operand"}
		})
	q2 := question(t, "Q2", func(ctx context.Context, c *rubric.Credit, _ submission.Submission) error {
		res, err := c.Call(ctx, "function2", 0)
		if err != nil {
			return err
		}
		if c.CheckNotImplemented(res) {
			return nil
		}
		c.FullCredit()
		return nil
	})
	a := newAssignment(t, q2, passing("Style", 0))

	report := a.Grade(context.Background(), sub)
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, rubric.StatusErrored, report.Outcomes[0].Status)
	assert.Equal(t, []string{"TypeError: bad operand"}, report.Outcomes[0].Feedback)
	assert.Equal(t, "Style", report.Outcomes[1].Label)
	assert.Equal(t, 0.0, report.TotalEarned)
	assert.Equal(t, 1.0, report.TotalMax)
}

func TestGrade_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := &fakeComponent{label: "Q1", max: 1, score: func(context.Context, submission.Submission) rubric.Outcome {
		cancel()
		return rubric.Outcome{Label: "Q1", MaxPoints: 1, EarnedPoints: 1, Status: rubric.StatusPassed}
	}}
	a := newAssignment(t, first, passing("Q2", 1), passing("Q3", 1))

	report := a.Grade(ctx, submission.NewFuncSet(""))
	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, rubric.StatusPassed, report.Outcomes[0].Status)
	for _, o := range report.Outcomes[1:] {
		assert.Equal(t, rubric.StatusErrored, o.Status)
		assert.Equal(t, []string{"grading cancelled"}, o.Feedback)
	}
	assert.Equal(t, 1.0, report.TotalEarned)
}

func TestGradeStream(t *testing.T) {
	a := newAssignment(t, passing("Q1", 1), passing("Q2", 1))

	var seen []string
	report := a.GradeStream(context.Background(), submission.NewFuncSet(""), func(o rubric.Outcome) {
		seen = append(seen, o.Label)
		if o.Label == "Q1" {
			panic("callback bug")
		}
	})
	assert.Equal(t, []string{"Q1", "Q2"}, seen)
	assert.Equal(t, 2.0, report.TotalEarned)
}

func TestTotalEarnedIsSumOfOutcomes(t *testing.T) {
	a := newAssignment(t,
		passing("a", 1.25),
		fixed("b", 3, rubric.Outcome{Label: "b", MaxPoints: 3, EarnedPoints: 1.5, Status: rubric.StatusFailed}),
		fixed("c", 2, rubric.Outcome{Label: "c", MaxPoints: 2, EarnedPoints: 9, Status: rubric.StatusPassed}),
		fixed("d", 4, rubric.Outcome{Label: "d", MaxPoints: 4, Status: rubric.StatusNotImplemented}),
	)
	report := a.Grade(context.Background(), submission.NewFuncSet(""))

	var sum float64
	for _, o := range report.Outcomes {
		sum += o.EarnedPoints
		assert.GreaterOrEqual(t, o.EarnedPoints, 0.0)
		assert.LessOrEqual(t, o.EarnedPoints, o.MaxPoints)
	}
	assert.Equal(t, sum, report.TotalEarned)
	assert.Equal(t, 2.75, report.TotalEarned)
	assert.Equal(t, 10.25, report.TotalMax)
}

// =============================================================================
// Load Tests
// =============================================================================

func TestGradeSource(t *testing.T) {
	manifest := submission.Manifest{{Name: "function1", Arity: 0}, {Name: "function2", Arity: 1}}
	a, err := New(Options{Name: "hw0", Manifest: manifest, Logger: quiet}, passing("Q1", 1), passing("Q2", 1), passing("Style", 0))
	require.NoError(t, err)

	t.Run("loads and grades", func(t *testing.T) {
		loader := submission.StaticLoader{"alice": submission.NewFuncSet("").Stub("function1", 0).Stub("function2", 1)}
		report := a.GradeSource(context.Background(), loader, "alice")
		assert.Empty(t, report.LoadError)
		assert.Equal(t, "alice", report.Submission)
		assert.Equal(t, 2.0, report.TotalEarned)
	})

	t.Run("missing capabilities", func(t *testing.T) {
		loader := submission.StaticLoader{"bob": submission.NewFuncSet("")}
		report := a.GradeSource(context.Background(), loader, "bob")

		assert.Contains(t, report.LoadError, "missing capabilities: function1, function2")
		assert.Equal(t, 0.0, report.TotalEarned)
		assert.Equal(t, 2.0, report.TotalMax)
		require.Len(t, report.Outcomes, 3)
		for _, o := range report.Outcomes {
			assert.Equal(t, rubric.StatusErrored, o.Status)
			assert.Equal(t, 0.0, o.EarnedPoints)
			assert.Equal(t, []string{MsgLoadFailed}, o.Feedback)
		}
	})

	t.Run("panicking loader", func(t *testing.T) {
		loader := submission.LoaderFunc(func(context.Context, string, submission.Manifest) (submission.Submission, error) {
			panic("loader bug")
		})
		report := a.GradeSource(context.Background(), loader, "carol")
		assert.Contains(t, report.LoadError, "loader bug")
		assert.Len(t, report.Outcomes, 3)
	})
}

// =============================================================================
// Report Tests
// =============================================================================

func TestReport_WriteSummary(t *testing.T) {
	a := newAssignment(t, passing("Q1", 1), passing("Style", 0))
	report := a.Grade(context.Background(), submission.NewFuncSet(""))

	dir := filepath.Join(t.TempDir(), "out")
	path, err := report.WriteSummary(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, SummaryFile), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded struct {
		Outcomes []struct {
			Label        string   `json:"label"`
			MaxPoints    float64  `json:"max_points"`
			EarnedPoints float64  `json:"earned_points"`
			Status       string   `json:"status"`
			Feedback     []string `json:"feedback"`
		} `json:"outcomes"`
		TotalEarned float64 `json:"total_earned"`
		TotalMax    float64 `json:"total_max"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Outcomes, 2)
	assert.Equal(t, "Q1", decoded.Outcomes[0].Label)
	assert.Equal(t, "passed", decoded.Outcomes[0].Status)
	assert.Equal(t, 1.0, decoded.TotalEarned)
	assert.Equal(t, 1.0, decoded.TotalMax)
}

func TestReport_Helpers(t *testing.T) {
	r := &Report{Outcomes: []rubric.Outcome{
		{Label: "Q1", Status: rubric.StatusPassed},
		{Label: "Q2", Status: rubric.StatusFailed},
		{Label: "Q3", Status: rubric.StatusFailed},
	}}
	o, ok := r.Outcome("Q2")
	assert.True(t, ok)
	assert.Equal(t, rubric.StatusFailed, o.Status)
	_, ok = r.Outcome("Q9")
	assert.False(t, ok)
	assert.Equal(t, map[rubric.Status]int{rubric.StatusPassed: 1, rubric.StatusFailed: 2}, r.StatusCounts())
	assert.Equal(t, 0.0, r.Percent())
}
