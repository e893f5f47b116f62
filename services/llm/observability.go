// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// chatTracerName is the shared OTel tracer name for model client calls.
const chatTracerName = "glyph.llm"

// Package-level Prometheus metrics for model client operations.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// chatCallDuration measures the duration of chat completion calls.
	//
	// Labels:
	//   - model: The model identifier (e.g., "qwen-turbo-latest").
	//   - status: "success" or "error"
	chatCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "glyph",
			Subsystem: "chat",
			Name:      "call_duration_seconds",
			Help:      "Duration of model chat completion calls in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model", "status"},
	)

	// chatCallsTotal counts the total number of chat completion calls.
	chatCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "glyph",
			Subsystem: "chat",
			Name:      "calls_total",
			Help:      "Total number of model chat completion calls.",
		},
		[]string{"model", "status"},
	)

	// chatErrorsTotal counts chat completion errors by type.
	//
	// Labels:
	//   - model: The model identifier.
	//   - error_type: "timeout", "auth", "rate_limit", "server", "parse", "unknown"
	chatErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "glyph",
			Subsystem: "chat",
			Name:      "errors_total",
			Help:      "Total model chat completion errors by type.",
		},
		[]string{"model", "error_type"},
	)
)

// classifyChatError maps an error to a label-safe error type string.
//
// Description:
//
//	Inspects the error message to categorize it into one of the predefined
//	error types. Used for Prometheus labels to avoid high cardinality.
//
// Inputs:
//
//	err - The error to classify. May be nil.
//
// Outputs:
//
//	string - One of: "timeout", "auth", "rate_limit", "server", "parse",
//	         "unknown". Returns empty string for nil error.
//
// Thread Safety: Safe for concurrent use.
func classifyChatError(err error) string {
	if err == nil {
		return ""
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "context canceled") ||
		strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "status 401") ||
		strings.Contains(msg, "status 403") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "api key"):
		return "auth"
	case strings.Contains(msg, "status 429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests"):
		return "rate_limit"
	case strings.Contains(msg, "status 500") ||
		strings.Contains(msg, "status 502") ||
		strings.Contains(msg, "status 503") ||
		strings.Contains(msg, "server error") ||
		strings.Contains(msg, "internal error"):
		return "server"
	case strings.Contains(msg, "parsing response") ||
		strings.Contains(msg, "no choices"):
		return "parse"
	default:
		return "unknown"
	}
}

// recordChatMetrics records Prometheus metrics for a completed chat call.
//
// Description:
//
//	One-shot metric recording for both success and error paths.
//
// Inputs:
//
//	model - The model identifier.
//	duration - How long the call took.
//	err - The error, if any. Nil means success.
//
// Thread Safety: Safe for concurrent use.
func recordChatMetrics(model string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		errType := classifyChatError(err)
		chatErrorsTotal.WithLabelValues(model, errType).Inc()
	}

	chatCallDuration.WithLabelValues(model, status).Observe(duration.Seconds())
	chatCallsTotal.WithLabelValues(model, status).Inc()
}
