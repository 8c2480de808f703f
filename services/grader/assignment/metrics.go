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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// reportsTotal counts finished grading runs.
	// Labels: assignment, result (graded, load_error)
	reportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grader",
		Subsystem: "assignment",
		Name:      "reports_total",
		Help:      "Total grading runs by result",
	}, []string{"assignment", "result"})

	// componentFaults counts outcomes replaced by the isolation layer.
	// Labels: assignment, reason (panic, invalid, cancelled)
	componentFaults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grader",
		Subsystem: "assignment",
		Name:      "component_faults_total",
		Help:      "Component outcomes replaced with ERRORED by the assignment",
	}, []string{"assignment", "reason"})

	// scorePercent tracks the distribution of final scores.
	// Labels: assignment
	scorePercent = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "grader",
		Subsystem: "assignment",
		Name:      "score_percent",
		Help:      "Distribution of final scores in percent",
		Buckets:   []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	}, []string{"assignment"})
)
