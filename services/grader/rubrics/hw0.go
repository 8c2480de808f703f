// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rubrics

import (
	"context"

	"github.com/AleutianAI/AleutianGrade/services/grader/assignment"
	"github.com/AleutianAI/AleutianGrade/services/grader/rubric"
	"github.com/AleutianAI/AleutianGrade/services/grader/style"
	"github.com/AleutianAI/AleutianGrade/services/grader/submission"
)

// HW0Manifest lists the callables hw0 submissions must define.
var HW0Manifest = submission.Manifest{
	{Name: "function1", Arity: 0},
	{Name: "function2", Arity: 1},
}

// HW0 returns the introductory assignment: two one-point questions and an
// informational style check.
func HW0() Definition {
	return Definition{
		Name:        "hw0",
		Version:     "v1.0.0",
		Manifest:    HW0Manifest,
		Description: "function1() returns a truthy value; function2(0) returns 1",
		Build:       buildHW0,
	}
}

func buildHW0(opts assignment.Options) (*assignment.Assignment, error) {
	qopts := QuestionOptions(opts)

	q1, err := rubric.NewQuestion("Q1", 1, rubric.ScorerFunc(scoreFunction1), qopts...)
	if err != nil {
		return nil, err
	}
	q2, err := rubric.NewQuestion("Q2", 1, rubric.ScorerFunc(scoreFunction2), qopts...)
	if err != nil {
		return nil, err
	}
	st, err := style.New(opts.InputDir,
		style.WithMaxPoints(opts.StyleMaxPoints),
		style.WithLogger(opts.Logger),
	)
	if err != nil {
		return nil, err
	}
	return assignment.New(opts, q1, q2, st)
}

// QuestionOptions maps assignment budgets onto question options.
func QuestionOptions(opts assignment.Options) []rubric.QuestionOption {
	var qopts []rubric.QuestionOption
	if opts.CallTimeout > 0 {
		qopts = append(qopts, rubric.WithCallTimeout(opts.CallTimeout))
	}
	if opts.QuestionTimeout > 0 {
		qopts = append(qopts, rubric.WithQuestionTimeout(opts.QuestionTimeout))
	}
	if opts.Logger != nil {
		qopts = append(qopts, rubric.WithLogger(opts.Logger))
	}
	return qopts
}

func scoreFunction1(ctx context.Context, c *rubric.Credit, _ submission.Submission) error {
	result, err := c.Call(ctx, "function1")
	if err != nil {
		return err
	}
	if c.CheckNotImplemented(result) {
		return nil
	}
	if !result.Truthy() {
		c.Fail("function1() should return True.")
		return nil
	}
	c.FullCredit()
	return nil
}

func scoreFunction2(ctx context.Context, c *rubric.Credit, _ submission.Submission) error {
	result, err := c.Call(ctx, "function2", 0)
	if err != nil {
		return err
	}
	if c.CheckNotImplemented(result) {
		return nil
	}
	if !result.Equal(1) {
		c.Fail("function2(0) should return 1.")
		return nil
	}
	c.FullCredit()
	return nil
}
