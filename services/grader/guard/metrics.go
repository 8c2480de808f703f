// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package guard

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Guarded Calls
// =============================================================================

const (
	outcomeOK        = "ok"
	outcomeError     = "error"
	outcomeTimeout   = "timeout"
	outcomePanic     = "panic"
	outcomeCancelled = "cancelled"
)

var (
	// guardCalls counts guarded calls.
	// Labels: outcome (ok, error, timeout, panic, cancelled)
	guardCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grader",
		Subsystem: "guard",
		Name:      "calls_total",
		Help:      "Total guarded calls by outcome",
	}, []string{"outcome"})

	// guardDuration measures guarded call latency.
	// Labels: outcome
	guardDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "grader",
		Subsystem: "guard",
		Name:      "duration_seconds",
		Help:      "Guarded call duration in seconds",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"outcome"})

	// guardAbandoned counts calls still running after their grace period.
	guardAbandoned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "grader",
		Subsystem: "guard",
		Name:      "abandoned_total",
		Help:      "Guarded calls abandoned after the grace period",
	})
)

func recordCall(outcome string, d time.Duration) {
	guardCalls.WithLabelValues(outcome).Inc()
	guardDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func recordAbandoned() {
	guardAbandoned.Inc()
}
