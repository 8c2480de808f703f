// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lint

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for lint operations.
var (
	tracer = otel.Tracer("aleutian.grader.lint")
	meter  = otel.Meter("aleutian.grader.lint")
)

// Metrics for lint operations.
var (
	lintLatency   metric.Float64Histogram
	lintTotal     metric.Int64Counter
	blockingFound metric.Int64Counter
	warningsFound metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		lintLatency, err = meter.Float64Histogram(
			"grader_lint_duration_seconds",
			metric.WithDescription("Duration of style lint runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		lintTotal, err = meter.Int64Counter(
			"grader_lint_total",
			metric.WithDescription("Total number of linter invocations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		blockingFound, err = meter.Int64Counter(
			"grader_lint_blocking_found_total",
			metric.WithDescription("Findings that matched a blocking rule"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		warningsFound, err = meter.Int64Counter(
			"grader_lint_warnings_found_total",
			metric.WithDescription("Findings reported as style warnings"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startLintSpan(ctx context.Context, dir string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Runner.LintDir",
		trace.WithAttributes(attribute.String("lint.dir", dir)),
	)
}

func setLintSpanResult(span trace.Span, blocking, warnings int, available bool) {
	span.SetAttributes(
		attribute.Int("lint.blocking_count", blocking),
		attribute.Int("lint.warning_count", warnings),
		attribute.Bool("lint.linter_available", available),
	)
}

func recordLintMetrics(ctx context.Context, language string, d time.Duration, blocking, warnings int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("language", language),
		attribute.Bool("success", success),
	)
	lintLatency.Record(ctx, d.Seconds(), attrs)
	lintTotal.Add(ctx, 1, attrs)
	if success {
		langAttr := metric.WithAttributes(attribute.String("language", language))
		blockingFound.Add(ctx, int64(blocking), langAttr)
		warningsFound.Add(ctx, int64(warnings), langAttr)
	}
}
