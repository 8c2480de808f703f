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
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianGrade/services/grader/submission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestQuestion(t *testing.T, max float64, fn ScorerFunc, opts ...QuestionOption) *Question {
	t.Helper()
	opts = append([]QuestionOption{WithLogger(quiet)}, opts...)
	q, err := NewQuestion("Q", max, fn, opts...)
	require.NoError(t, err)
	return q
}

func testSubmission() *submission.FuncSet {
	return submission.NewFuncSet("").
		Define("yes", 0, func(context.Context, ...any) (any, error) { return true, nil }).
		Define("boom", 0, func(context.Context, ...any) (any, error) {
			return nil, &submission.ExecutionError{Function: "boom", Type: "ZeroDivisionError", Message: "division by zero"}
		}).
		Define("spin", 0, func(ctx context.Context, _ ...any) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}).
		Define("raise_stub", 0, func(context.Context, ...any) (any, error) {
			return nil, submission.ErrNotImplemented
		}).
		Define("panics", 0, func(context.Context, ...any) (any, error) { panic("segfault") }).
		Stub("stub", 1)
}

// =============================================================================
// Terminal Action Tests
// =============================================================================

func TestQuestion_TerminalActions(t *testing.T) {
	ctx := context.Background()
	sub := testSubmission()

	tests := []struct {
		name         string
		max          float64
		scorer       ScorerFunc
		wantStatus   Status
		wantEarned   float64
		wantFeedback []string
		wantDiag     error
	}{
		{
			name:         "full credit",
			max:          3,
			scorer:       func(_ context.Context, c *Credit, _ submission.Submission) error { c.FullCredit(); return nil },
			wantStatus:   StatusPassed,
			wantEarned:   3,
			wantFeedback: []string{},
		},
		{
			name:         "fail",
			max:          3,
			scorer:       func(_ context.Context, c *Credit, _ submission.Submission) error { c.Fail("nope"); return nil },
			wantStatus:   StatusFailed,
			wantEarned:   0,
			wantFeedback: []string{"nope"},
		},
		{
			name:         "partial",
			max:          4,
			scorer:       func(_ context.Context, c *Credit, _ submission.Submission) error { c.PartialCredit(0.25); return nil },
			wantStatus:   StatusFailed,
			wantEarned:   1,
			wantFeedback: []string{},
		},
		{
			name:         "partial of one passes",
			max:          4,
			scorer:       func(_ context.Context, c *Credit, _ submission.Submission) error { c.PartialCredit(1); return nil },
			wantStatus:   StatusPassed,
			wantEarned:   4,
			wantFeedback: []string{},
		},
		{
			name:         "partial above one is clamped",
			max:          2,
			scorer:       func(_ context.Context, c *Credit, _ submission.Submission) error { c.PartialCredit(1.5); return nil },
			wantStatus:   StatusPassed,
			wantEarned:   2,
			wantFeedback: []string{},
			wantDiag:     ErrFractionOutOfRange,
		},
		{
			name:         "partial below zero is clamped",
			max:          2,
			scorer:       func(_ context.Context, c *Credit, _ submission.Submission) error { c.PartialCredit(-1); return nil },
			wantStatus:   StatusFailed,
			wantEarned:   0,
			wantFeedback: []string{},
			wantDiag:     ErrFractionOutOfRange,
		},
		{
			name:         "partial NaN",
			max:          2,
			scorer:       func(_ context.Context, c *Credit, _ submission.Submission) error { c.PartialCredit(math.NaN()); return nil },
			wantStatus:   StatusFailed,
			wantEarned:   0,
			wantFeedback: []string{},
			wantDiag:     ErrFractionOutOfRange,
		},
		{
			name:         "no verdict",
			max:          1,
			scorer:       func(context.Context, *Credit, submission.Submission) error { return nil },
			wantStatus:   StatusFailed,
			wantEarned:   0,
			wantFeedback: []string{MsgNoVerdict},
			wantDiag:     ErrNoVerdict,
		},
		{
			name: "first call wins",
			max:  1,
			scorer: func(_ context.Context, c *Credit, _ submission.Submission) error {
				c.FullCredit()
				c.Fail("too late")
				return nil
			},
			wantStatus:   StatusPassed,
			wantEarned:   1,
			wantFeedback: []string{},
			wantDiag:     ErrMultipleVerdicts,
		},
		{
			name: "feedback notes accumulate",
			max:  1,
			scorer: func(_ context.Context, c *Credit, _ submission.Submission) error {
				c.AddFeedback("checked 3 cases")
				c.Fail("case 2 wrong")
				return nil
			},
			wantStatus:   StatusFailed,
			wantFeedback: []string{"checked 3 cases", "case 2 wrong"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := newTestQuestion(t, tt.max, tt.scorer).Score(ctx, sub)
			assert.Equal(t, "Q", out.Label)
			assert.Equal(t, tt.max, out.MaxPoints)
			assert.Equal(t, tt.wantStatus, out.Status)
			assert.Equal(t, tt.wantEarned, out.EarnedPoints)
			assert.Equal(t, tt.wantFeedback, out.Feedback)
			assert.NoError(t, out.Validate())
			if tt.wantDiag != nil {
				require.Len(t, out.Diagnostics, 1)
				assert.Contains(t, out.Diagnostics[0], tt.wantDiag.Error())
			} else {
				assert.Empty(t, out.Diagnostics)
			}
		})
	}
}

// =============================================================================
// Not-Implemented Tests
// =============================================================================

func TestCredit_CheckNotImplemented(t *testing.T) {
	ctx := context.Background()
	sub := testSubmission()

	t.Run("sentinel value", func(t *testing.T) {
		reached := false
		q := newTestQuestion(t, 1, func(ctx context.Context, c *Credit, _ submission.Submission) error {
			res, err := c.Call(ctx, "stub", 0)
			if err != nil {
				return err
			}
			if c.CheckNotImplemented(res) {
				return nil
			}
			reached = true
			c.FullCredit()
			return nil
		})

		out := q.Score(ctx, sub)
		assert.False(t, reached)
		assert.Equal(t, StatusNotImplemented, out.Status)
		assert.Equal(t, 0.0, out.EarnedPoints)
		assert.Equal(t, []string{"stub() appears to not be implemented."}, out.Feedback)
	})

	t.Run("NotImplementedError", func(t *testing.T) {
		q := newTestQuestion(t, 1, func(ctx context.Context, c *Credit, _ submission.Submission) error {
			res, err := c.Call(ctx, "raise_stub")
			if err != nil {
				return err
			}
			if !c.CheckNotImplemented(res) {
				c.FullCredit()
			}
			return nil
		})
		out := q.Score(ctx, sub)
		assert.Equal(t, StatusNotImplemented, out.Status)
	})

	t.Run("real value leaves state unchanged", func(t *testing.T) {
		var before, after Status
		var earned float64
		var detected bool
		q := newTestQuestion(t, 1, func(ctx context.Context, c *Credit, _ submission.Submission) error {
			res, err := c.Call(ctx, "yes")
			if err != nil {
				return err
			}
			before = c.Status()
			detected = c.CheckNotImplemented(res)
			after = c.Status()
			earned = c.EarnedPoints()
			c.FullCredit()
			return nil
		})
		out := q.Score(ctx, sub)
		assert.False(t, detected)
		assert.Equal(t, StatusPending, before)
		assert.Equal(t, StatusPending, after)
		assert.Equal(t, 0.0, earned)
		assert.Equal(t, StatusPassed, out.Status)
		assert.Empty(t, out.Feedback)
	})
}

// =============================================================================
// Fault Isolation Tests
// =============================================================================

func TestQuestion_Faults(t *testing.T) {
	ctx := context.Background()
	sub := testSubmission()

	callThenPass := func(name string) ScorerFunc {
		return func(ctx context.Context, c *Credit, _ submission.Submission) error {
			if _, err := c.Call(ctx, name); err != nil {
				return err
			}
			c.FullCredit()
			return nil
		}
	}

	t.Run("submission exception", func(t *testing.T) {
		out := newTestQuestion(t, 1, callThenPass("boom")).Score(ctx, sub)
		assert.Equal(t, StatusErrored, out.Status)
		assert.Equal(t, 0.0, out.EarnedPoints)
		assert.Equal(t, []string{"ZeroDivisionError: division by zero"}, out.Feedback)
	})

	t.Run("submission panic", func(t *testing.T) {
		out := newTestQuestion(t, 1, callThenPass("panics")).Score(ctx, sub)
		assert.Equal(t, StatusErrored, out.Status)
		assert.Equal(t, []string{"panic: segfault"}, out.Feedback)
	})

	t.Run("scorer panic", func(t *testing.T) {
		out := newTestQuestion(t, 2, func(context.Context, *Credit, submission.Submission) error {
			var s []int
			_ = s[3]
			return nil
		}).Score(ctx, sub)
		assert.Equal(t, StatusErrored, out.Status)
		assert.Equal(t, 0.0, out.EarnedPoints)
		require.Len(t, out.Feedback, 1)
		assert.Contains(t, out.Feedback[0], "panic:")
		assert.NotContains(t, out.Feedback[0], "goroutine")
	})

	t.Run("scorer error", func(t *testing.T) {
		out := newTestQuestion(t, 1, func(context.Context, *Credit, submission.Submission) error {
			return errors.New("expected file missing")
		}).Score(ctx, sub)
		assert.Equal(t, StatusErrored, out.Status)
		assert.Equal(t, []string{"expected file missing"}, out.Feedback)
	})

	t.Run("partial credit preserved on error", func(t *testing.T) {
		out := newTestQuestion(t, 4, func(ctx context.Context, c *Credit, _ submission.Submission) error {
			c.PartialCredit(0.5)
			_, err := c.Call(ctx, "boom")
			return err
		}).Score(ctx, sub)
		assert.Equal(t, StatusErrored, out.Status)
		assert.Equal(t, 2.0, out.EarnedPoints)
	})

	t.Run("call timeout", func(t *testing.T) {
		q := newTestQuestion(t, 1, callThenPass("spin"),
			WithCallTimeout(50*time.Millisecond), WithGracePeriod(20*time.Millisecond))
		out := q.Score(ctx, sub)
		assert.Equal(t, StatusFailed, out.Status)
		assert.Equal(t, 0.0, out.EarnedPoints)
		assert.Equal(t, []string{"execution timed out"}, out.Feedback)
	})

	t.Run("question budget exceeded by uncooperative scorer", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		q := newTestQuestion(t, 1, func(_ context.Context, c *Credit, _ submission.Submission) error {
			<-release
			c.FullCredit()
			return nil
		}, WithQuestionTimeout(50*time.Millisecond), WithGracePeriod(10*time.Millisecond))

		start := time.Now()
		out := q.Score(ctx, sub)
		assert.Less(t, time.Since(start), time.Second)
		assert.Equal(t, StatusFailed, out.Status)
		assert.Equal(t, []string{"execution timed out"}, out.Feedback)
	})

	t.Run("undeclared call is a rubric error", func(t *testing.T) {
		out := newTestQuestion(t, 1, callThenPass("function9")).Score(ctx, sub)
		assert.Equal(t, StatusErrored, out.Status)
		require.NotEmpty(t, out.Diagnostics)
		assert.Contains(t, out.Diagnostics[0], ErrUndeclaredCall.Error())
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		out := newTestQuestion(t, 1, callThenPass("yes")).Score(cctx, sub)
		assert.Equal(t, StatusErrored, out.Status)
		assert.Equal(t, []string{"grading cancelled"}, out.Feedback)
	})
}

func TestCredit_SealedIgnoresLateWrites(t *testing.T) {
	q := newTestQuestion(t, 1, func(context.Context, *Credit, submission.Submission) error { return nil })
	c := newCredit(q, testSubmission())
	c.Fail("early")
	out := c.finalize(nil)

	c.FullCredit()
	c.AddFeedback("late")
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, StatusFailed, c.Status())
	assert.Equal(t, []string{"early"}, out.Feedback)
}

func TestQuestion_FreshStatePerRun(t *testing.T) {
	calls := 0
	q := newTestQuestion(t, 1, func(_ context.Context, c *Credit, _ submission.Submission) error {
		calls++
		assert.Equal(t, StatusPending, c.Status())
		if calls == 1 {
			c.FullCredit()
		}
		return nil
	})
	sub := testSubmission()
	first := q.Score(context.Background(), sub)
	second := q.Score(context.Background(), sub)
	assert.Equal(t, StatusPassed, first.Status)
	assert.Equal(t, StatusFailed, second.Status)
	assert.Equal(t, []string{MsgNoVerdict}, second.Feedback)
}

func TestQuestion_ConcurrentScoring(t *testing.T) {
	q := newTestQuestion(t, 2, func(ctx context.Context, c *Credit, _ submission.Submission) error {
		res, err := c.Call(ctx, "yes")
		if err != nil {
			return err
		}
		if res.Truthy() {
			c.FullCredit()
		}
		return nil
	})

	var wg sync.WaitGroup
	outs := make([]Outcome, 16)
	for i := range outs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outs[i] = q.Score(context.Background(), testSubmission())
		}(i)
	}
	wg.Wait()
	for _, out := range outs {
		assert.Equal(t, StatusPassed, out.Status)
		assert.Equal(t, 2.0, out.EarnedPoints)
	}
}

func TestQuestion_EarnedWithinBounds(t *testing.T) {
	fractions := []float64{-3, -0.1, 0, 0.1, 0.333, 0.5, 0.99, 1, 1.01, 7, math.Inf(1), math.Inf(-1), math.NaN()}
	for _, max := range []float64{0, 1, 2.5, 10} {
		for _, f := range fractions {
			f := f
			out := newTestQuestion(t, max, func(_ context.Context, c *Credit, _ submission.Submission) error {
				c.PartialCredit(f)
				return nil
			}).Score(context.Background(), testSubmission())
			assert.GreaterOrEqual(t, out.EarnedPoints, 0.0)
			assert.LessOrEqual(t, out.EarnedPoints, max)
			assert.NoError(t, out.Validate())
		}
	}
}

// =============================================================================
// Construction and Data Tests
// =============================================================================

func TestNewQuestion_Validation(t *testing.T) {
	noop := ScorerFunc(func(context.Context, *Credit, submission.Submission) error { return nil })

	_, err := NewQuestion("", 1, noop)
	assert.ErrorIs(t, err, ErrEmptyLabel)

	_, err = NewQuestion("Q", -1, noop)
	assert.ErrorIs(t, err, ErrInvalidMaxPoints)

	_, err = NewQuestion("Q", math.Inf(1), noop)
	assert.ErrorIs(t, err, ErrInvalidMaxPoints)

	_, err = NewQuestion("Q", 1, nil)
	assert.ErrorIs(t, err, ErrNilScorer)

	q, err := NewQuestion("Q1", 1, noop)
	require.NoError(t, err)
	assert.Equal(t, "Q1", q.Label())
	assert.Equal(t, 1.0, q.MaxPoints())
}

func TestOutcome_Validate(t *testing.T) {
	tests := []struct {
		name  string
		out   Outcome
		valid bool
	}{
		{"ok", Outcome{MaxPoints: 1, EarnedPoints: 1, Status: StatusPassed}, true},
		{"zero max", Outcome{MaxPoints: 0, Status: StatusPassed}, true},
		{"over max", Outcome{MaxPoints: 1, EarnedPoints: 2, Status: StatusPassed}, false},
		{"negative earned", Outcome{MaxPoints: 1, EarnedPoints: -1, Status: StatusFailed}, false},
		{"negative max", Outcome{MaxPoints: -1, Status: StatusFailed}, false},
		{"NaN earned", Outcome{MaxPoints: 1, EarnedPoints: math.NaN(), Status: StatusFailed}, false},
		{"pending", Outcome{MaxPoints: 1, Status: StatusPending}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.out.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidOutcome)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	for _, s := range []Status{StatusPassed, StatusFailed, StatusNotImplemented, StatusErrored} {
		assert.True(t, s.IsTerminal(), s.String())
	}
	assert.Equal(t, "status(42)", Status(42).String())

	data, err := json.Marshal(Outcome{Label: "Q2", MaxPoints: 1, Status: StatusNotImplemented, Feedback: []string{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"label":"Q2","max_points":1,"earned_points":0,"status":"not_implemented","feedback":[]}`, string(data))

	var back Outcome
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, StatusNotImplemented, back.Status)

	var s Status
	assert.Error(t, s.UnmarshalText([]byte("partial")))
}

func TestErrored(t *testing.T) {
	out := Errored("Style", 0, "linter crashed", "exit status 2")
	assert.Equal(t, StatusErrored, out.Status)
	assert.Equal(t, []string{"linter crashed"}, out.Feedback)
	assert.Equal(t, []string{"exit status 2"}, out.Diagnostics)
	assert.NoError(t, out.Validate())
}
