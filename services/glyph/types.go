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
	"errors"
	"strings"
	"unicode/utf8"
)

// Pipeline limits. Applied after every stage regardless of what the model
// returned, so a misbehaving upstream can never inflate a response.
const (
	// MaxKeywordsPerCriterion caps the keyword list of each criterion.
	MaxKeywordsPerCriterion = 3

	// MaxCandidates caps the candidate set produced by the gatherer.
	MaxCandidates = 50

	// MaxResults caps the ranked result set produced by the ranker.
	MaxResults = 10

	// MinPrimaryConfidence is the floor applied to the primary criterion.
	MinPrimaryConfidence = 0.7

	// NonPrimaryConfidenceCap replaces any non-primary confidence above
	// NonPrimaryConfidenceTrigger. Secondary dimensions must never
	// dominate the primary one.
	NonPrimaryConfidenceCap     = 0.8
	NonPrimaryConfidenceTrigger = 0.9

	// VisualShapeThreshold is the shape confidence above which the ranker
	// selects visual analysis even when shape is not primary.
	VisualShapeThreshold = 0.6

	// DegradedScore is the base score for results produced without any
	// model assistance. The local scorer adds name-overlap and shape
	// bonuses on top of it.
	DegradedScore = 0.5
)

// Sentinel errors for the pipeline stages.
var (
	// ErrInvalidInput reports a request the pipeline refuses to process,
	// such as an empty query. Maps to HTTP 400.
	ErrInvalidInput = errors.New("glyph: invalid input")

	// ErrUpstream reports a model service failure. Stages normally absorb
	// this via their fallbacks; it only escapes when no fallback exists.
	ErrUpstream = errors.New("glyph: upstream model failure")
)

// Criterion is one scored dimension of a query interpretation.
//
// Description:
//
//	Type is an open tag, not an enum. Known tags resolve to curated
//	tables downstream; unknown tags degrade to keyword search. Keywords
//	hold at most MaxKeywordsPerCriterion entries after normalization.
//
// Thread Safety: Criterion values are plain data with no interior mutability.
type Criterion struct {
	// Type is the category tag (e.g., "circle", "emoji", "math").
	Type string `json:"type"`

	// Keywords are search terms derived from the query.
	Keywords []string `json:"keywords"`

	// Confidence is on [0,1] after normalization.
	Confidence float64 `json:"confidence"`
}

// Criteria groups the four interpretation dimensions. Absent dimensions
// are nil.
type Criteria struct {
	Range    *Criterion `json:"range,omitempty"`
	Shape    *Criterion `json:"shape,omitempty"`
	Function *Criterion `json:"function,omitempty"`
	Name     *Criterion `json:"name,omitempty"`
}

// CriteriaSet is the analyzer's structured interpretation of a query.
type CriteriaSet struct {
	// PrimaryCriterion names the dominant dimension: "range", "shape",
	// "function", or "name".
	PrimaryCriterion string `json:"primary_criterion"`

	// Criteria holds the per-dimension details.
	Criteria Criteria `json:"criteria"`
}

// dimensionNames is the fixed iteration order for the criteria dimensions.
var dimensionNames = []string{"range", "shape", "function", "name"}

// Dimension returns the criterion for a named dimension, or nil.
func (cs *CriteriaSet) Dimension(name string) *Criterion {
	switch name {
	case "range":
		return cs.Criteria.Range
	case "shape":
		return cs.Criteria.Shape
	case "function":
		return cs.Criteria.Function
	case "name":
		return cs.Criteria.Name
	default:
		return nil
	}
}

// Primary returns the criterion named by PrimaryCriterion, or nil if the
// primary names an absent dimension.
func (cs *CriteriaSet) Primary() *Criterion {
	return cs.Dimension(cs.PrimaryCriterion)
}

// AllKeywords returns every keyword across all present dimensions, in
// dimension order, deduplicated case-insensitively.
func (cs *CriteriaSet) AllKeywords() []string {
	var out []string
	seen := make(map[string]bool)
	for _, name := range dimensionNames {
		cr := cs.Dimension(name)
		if cr == nil {
			continue
		}
		for _, kw := range cr.Keywords {
			key := strings.ToLower(strings.TrimSpace(kw))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, kw)
		}
	}
	return out
}

// Normalize enforces the criteria invariants in place.
//
// Description:
//
//	Clamps every confidence to [0,1], truncates keyword lists to
//	MaxKeywordsPerCriterion, raises the primary criterion's confidence to
//	at least MinPrimaryConfidence, and caps any non-primary confidence
//	above NonPrimaryConfidenceTrigger down to NonPrimaryConfidenceCap.
//	If PrimaryCriterion names an absent dimension, it is reassigned to
//	the present dimension with the highest confidence.
//
// Thread Safety: Mutates the receiver; not safe for concurrent use on the
// same value.
func (cs *CriteriaSet) Normalize() {
	for _, name := range dimensionNames {
		cr := cs.Dimension(name)
		if cr == nil {
			continue
		}
		cr.Confidence = clampScore(cr.Confidence)
		if len(cr.Keywords) > MaxKeywordsPerCriterion {
			cr.Keywords = cr.Keywords[:MaxKeywordsPerCriterion]
		}
	}

	if cs.Primary() == nil {
		best := ""
		bestConf := -1.0
		for _, name := range dimensionNames {
			if cr := cs.Dimension(name); cr != nil && cr.Confidence > bestConf {
				best = name
				bestConf = cr.Confidence
			}
		}
		cs.PrimaryCriterion = best
	}

	for _, name := range dimensionNames {
		cr := cs.Dimension(name)
		if cr == nil {
			continue
		}
		if name == cs.PrimaryCriterion {
			if cr.Confidence < MinPrimaryConfidence {
				cr.Confidence = MinPrimaryConfidence
			}
		} else if cr.Confidence > NonPrimaryConfidenceTrigger {
			cr.Confidence = NonPrimaryConfidenceCap
		}
	}
}

// clampScore clamps a score to the canonical [0,1] scale.
func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// Candidate is one character produced by the gatherer, prior to ranking.
//
// Thread Safety: Candidate values are plain data with no interior mutability.
type Candidate struct {
	// Char is the character itself, exactly one Unicode code point.
	Char string `json:"char"`

	// Code is the code point in "U+XXXX" notation.
	Code string `json:"code"`

	// Name is the Unicode character name.
	Name string `json:"name"`
}

// Valid reports whether the candidate satisfies the single-code-point
// invariant and has a non-empty code.
func (c Candidate) Valid() bool {
	return utf8.RuneCountInString(c.Char) == 1 && strings.TrimSpace(c.Code) != ""
}

// RankedResult is one character with its relevance judgment.
type RankedResult struct {
	Char string `json:"char"`
	Code string `json:"code"`
	Name string `json:"name"`

	// Score is relevance on [0,1], non-increasing across a result list.
	Score float64 `json:"score"`

	// Reason is a short human-readable justification. Never empty after
	// normalization.
	Reason string `json:"reason"`
}

// =============================================================================
// HTTP Request / Response Types
// =============================================================================

// AnalyzeRequest is the body of POST /v1/glyph/analyze.
type AnalyzeRequest struct {
	// Query is the natural-language character description.
	Query string `json:"query" binding:"required"`
}

// AnalyzeResponse is the body of a successful analyze call.
type AnalyzeResponse struct {
	CriteriaSet

	// Degraded is true when the interpretation came from the keyword
	// heuristic rather than the model.
	Degraded bool `json:"degraded,omitempty"`
}

// SearchRequest is the body of POST /v1/glyph/search.
type SearchRequest struct {
	// Criteria is the analyzer's output. Required as a field, but an
	// empty criteria object is valid: gathering then relies on model
	// suggestions alone.
	Criteria *CriteriaSet `json:"criteria" binding:"required"`

	// Query is the original description, used for the open-ended model
	// suggestion call.
	Query string `json:"query"`
}

// SearchResponse is the body of a successful search call.
type SearchResponse struct {
	Results []Candidate `json:"results"`
	Total   int         `json:"total"`
}

// FilterRequest is the body of POST /v1/glyph/filter.
type FilterRequest struct {
	// Query is the original natural-language description.
	Query string `json:"query" binding:"required"`

	// Candidates is the set to rank. May be empty, which switches the
	// ranker into recommendation mode.
	Candidates []Candidate `json:"candidates"`

	// Criteria optionally carries the analyze output so the visual
	// decision can see shape confidence, not just query keywords.
	Criteria *CriteriaSet `json:"criteria"`
}

// FilterResponse is the body of a successful filter call.
type FilterResponse struct {
	Results []RankedResult `json:"results"`
	Total   int            `json:"total"`

	// Strategy records which ranking path produced the results:
	// "visual", "text", "recommend", "heuristic", or "static".
	Strategy string `json:"strategy"`

	// VisualAnalysis is true when the vision model produced the ranking.
	VisualAnalysis bool `json:"visual_analysis"`
}

// QueryRequest is the body of POST /v1/glyph/query, the full pipeline in
// one call.
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
}

// QueryResponse is the body of a successful full-pipeline call.
type QueryResponse struct {
	Results  []RankedResult `json:"results"`
	Total    int            `json:"total"`
	Criteria CriteriaSet    `json:"criteria"`
	Strategy string         `json:"strategy"`

	// VisualAnalysis is true when the vision model produced the ranking.
	VisualAnalysis bool `json:"visual_analysis"`

	// Degraded is true if any stage used its fallback.
	Degraded bool `json:"degraded,omitempty"`
}

// ErrorResponse is the uniform error body for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`

	// Details carries optional diagnostic text. Secrets are redacted
	// before it is populated.
	Details string `json:"details,omitempty"`
}
