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
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for scoring.
var (
	tracer = otel.Tracer("aleutian.grader.rubric")
	meter  = otel.Meter("aleutian.grader.rubric")
)

// Metrics for question scoring.
var (
	scoreLatency   metric.Float64Histogram
	outcomesTotal  metric.Int64Counter
	rubricErrTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		scoreLatency, err = meter.Float64Histogram(
			"grader_question_duration_seconds",
			metric.WithDescription("Duration of question scoring"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		outcomesTotal, err = meter.Int64Counter(
			"grader_question_outcomes_total",
			metric.WithDescription("Question outcomes by status"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		rubricErrTotal, err = meter.Int64Counter(
			"grader_rubric_errors_total",
			metric.WithDescription("Rubric authoring errors by kind"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startScoreSpan(ctx context.Context, label string, maxPoints float64) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Question.Score",
		trace.WithAttributes(
			attribute.String("grader.component", label),
			attribute.Float64("grader.max_points", maxPoints),
		),
	)
}

func setScoreSpanResult(span trace.Span, out Outcome) {
	span.SetAttributes(
		attribute.String("grader.status", out.Status.String()),
		attribute.Float64("grader.earned_points", out.EarnedPoints),
	)
}

func recordOutcome(ctx context.Context, out Outcome, d time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", out.Status.String()))
	scoreLatency.Record(ctx, d.Seconds(), attrs)
	outcomesTotal.Add(ctx, 1, attrs)
}

func recordRubricError(question string, err error) {
	if initMetrics() != nil {
		return
	}
	kind := "other"
	switch {
	case errors.Is(err, ErrNoVerdict):
		kind = "no_verdict"
	case errors.Is(err, ErrMultipleVerdicts):
		kind = "multiple_verdicts"
	case errors.Is(err, ErrFractionOutOfRange):
		kind = "fraction_out_of_range"
	case errors.Is(err, ErrUndeclaredCall):
		kind = "undeclared_call"
	}
	rubricErrTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("question", question),
		attribute.String("kind", kind),
	))
}
