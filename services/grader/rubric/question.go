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
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianGrade/services/grader/guard"
	"github.com/AleutianAI/AleutianGrade/services/grader/submission"
)

// Default budgets for questions.
const (
	DefaultCallTimeout     = 5 * time.Second
	DefaultQuestionTimeout = 30 * time.Second
)

// Scorer is the implementer-supplied logic of a question.
type Scorer interface {
	// ScoreQuestion inspects the submission and calls one terminal action
	// on c. Returning an error marks the question ERRORED.
	ScoreQuestion(ctx context.Context, c *Credit, sub submission.Submission) error
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(ctx context.Context, c *Credit, sub submission.Submission) error

// ScoreQuestion implements Scorer.
func (f ScorerFunc) ScoreQuestion(ctx context.Context, c *Credit, sub submission.Submission) error {
	return f(ctx, c, sub)
}

// QuestionOption configures a Question.
type QuestionOption func(*questionConfig)

type questionConfig struct {
	callTimeout     time.Duration
	questionTimeout time.Duration
	grace           time.Duration
	logger          *slog.Logger
}

// WithCallTimeout bounds each call into the submission.
func WithCallTimeout(d time.Duration) QuestionOption {
	return func(c *questionConfig) {
		c.callTimeout = d
	}
}

// WithQuestionTimeout bounds the whole scorer, including all its calls.
func WithQuestionTimeout(d time.Duration) QuestionOption {
	return func(c *questionConfig) {
		c.questionTimeout = d
	}
}

// WithGracePeriod sets how long a cancelled call may take to return.
func WithGracePeriod(d time.Duration) QuestionOption {
	return func(c *questionConfig) {
		c.grace = d
	}
}

// WithLogger sets the logger. Default slog.Default().
func WithLogger(logger *slog.Logger) QuestionOption {
	return func(c *questionConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Question is a functional-correctness component.
//
// Thread Safety: a Question holds no per-run state and may score many
// submissions concurrently.
type Question struct {
	label     string
	maxPoints float64
	scorer    Scorer
	calls     *guard.Guard
	budget    *guard.Guard
	logger    *slog.Logger
}

// NewQuestion creates a question.
//
// Inputs:
//
//	label - Name shown in reports, e.g. "Q1".
//	maxPoints - Weight, finite and >= 0.
//	scorer - The scoring logic.
//	opts - Timeouts and logger.
//
// Outputs:
//
//	*Question - Ready to score.
//	error - ErrEmptyLabel, ErrInvalidMaxPoints or ErrNilScorer.
func NewQuestion(label string, maxPoints float64, scorer Scorer, opts ...QuestionOption) (*Question, error) {
	if label == "" {
		return nil, ErrEmptyLabel
	}
	if !validMaxPoints(maxPoints) {
		return nil, fmt.Errorf("%w: %s has %v", ErrInvalidMaxPoints, label, maxPoints)
	}
	if scorer == nil {
		return nil, fmt.Errorf("%w: %s", ErrNilScorer, label)
	}

	cfg := questionConfig{
		callTimeout:     DefaultCallTimeout,
		questionTimeout: DefaultQuestionTimeout,
		grace:           guard.DefaultGracePeriod,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger.With(slog.String("component", label))

	return &Question{
		label:     label,
		maxPoints: maxPoints,
		scorer:    scorer,
		calls: guard.New(guard.WithTimeout(cfg.callTimeout),
			guard.WithGracePeriod(cfg.grace), guard.WithLogger(logger)),
		budget: guard.New(guard.WithTimeout(cfg.questionTimeout),
			guard.WithGracePeriod(cfg.grace), guard.WithLogger(logger)),
		logger: logger,
	}, nil
}

// Label implements Component.
func (q *Question) Label() string {
	return q.label
}

// MaxPoints implements Component.
func (q *Question) MaxPoints() float64 {
	return q.maxPoints
}

// Score implements Component.
//
// Description:
//
//	Runs the scorer against sub with a fresh Credit under the question
//	budget and converts whatever happens into a terminal Outcome.
//
// Thread Safety: safe for concurrent use.
func (q *Question) Score(ctx context.Context, sub submission.Submission) Outcome {
	start := time.Now()
	ctx, span := startScoreSpan(ctx, q.label, q.maxPoints)
	defer span.End()

	credit := newCredit(q, sub)
	err := q.budget.Run(ctx, q.label, func(ctx context.Context) error {
		return q.scorer.ScoreQuestion(ctx, credit, sub)
	})
	out := credit.finalize(err)

	setScoreSpanResult(span, out)
	recordOutcome(ctx, out, time.Since(start))
	q.logger.Debug("question scored",
		slog.String("status", out.Status.String()),
		slog.Float64("earned", out.EarnedPoints),
		slog.Float64("max", out.MaxPoints))
	return out
}
