// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package glyph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// tracerName is the shared OTel tracer name for pipeline stages.
const tracerName = "glyph.pipeline"

// Package-level Prometheus metrics for the pipeline stages.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// stageDuration measures per-stage latency.
	//
	// Labels:
	//   - stage: "analyze", "search", "filter", or "query".
	//   - outcome: "ok", "degraded", or "error".
	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "glyph",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of glyph pipeline stages in seconds.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"stage", "outcome"},
	)

	// stageTotal counts stage executions by outcome.
	stageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "glyph",
			Subsystem: "pipeline",
			Name:      "stage_total",
			Help:      "Total glyph pipeline stage executions by outcome.",
		},
		[]string{"stage", "outcome"},
	)

	// degradedTotal counts fallback activations per stage. A sustained
	// nonzero rate means the model service is unhealthy even though the
	// API keeps returning 200s.
	degradedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "glyph",
			Subsystem: "pipeline",
			Name:      "degraded_total",
			Help:      "Total glyph pipeline fallback activations by stage.",
		},
		[]string{"stage"},
	)

	// rankStrategyTotal counts which ranking path produced results.
	//
	// Labels:
	//   - strategy: "visual", "text", "recommend", "heuristic", "static".
	rankStrategyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "glyph",
			Subsystem: "pipeline",
			Name:      "rank_strategy_total",
			Help:      "Total ranked responses by ranking strategy.",
		},
		[]string{"strategy"},
	)
)

// recordStage records metrics for one stage execution.
//
// Inputs:
//   - stage: Stage name.
//   - start: Stage start time.
//   - degraded: True if the stage used its fallback.
//   - err: Non-nil only if the stage failed outright.
//
// Thread Safety: Safe for concurrent use.
func recordStage(stage string, start time.Time, degraded bool, err error) {
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case degraded:
		outcome = "degraded"
		degradedTotal.WithLabelValues(stage).Inc()
	}
	stageDuration.WithLabelValues(stage, outcome).Observe(time.Since(start).Seconds())
	stageTotal.WithLabelValues(stage, outcome).Inc()
}
