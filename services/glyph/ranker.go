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
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianGlyph/services/glyph/refdata"
	"github.com/AleutianAI/AleutianGlyph/services/llm"
)

// Ranking strategies, recorded in responses and metrics.
const (
	StrategyVisual    = "visual"
	StrategyText      = "text"
	StrategyRecommend = "recommend"
	StrategyHeuristic = "heuristic"
	StrategyStatic    = "static"
)

// Ranker scores candidates against the original query.
//
// Description:
//
//	Strategies form an ordered chain. With candidates present: visual
//	analysis (vision model) when the query looks appearance-driven,
//	otherwise text analysis; a visual failure retries as text; a text
//	failure degrades to the heuristic, which returns the leading
//	candidates at DegradedScore. With no candidates: recommendation mode
//	asks the model to propose characters outright, degrading to the
//	static fallback set. Rank therefore never returns an empty result
//	for a valid query.
//
// Thread Safety: Ranker is safe for concurrent use after construction.
type Ranker struct {
	chat        llm.ChatClient
	tables      *refdata.Tables
	textModel   string
	visionModel string
}

// NewRanker creates a Ranker.
//
// Inputs:
//   - chat: Model client. May be nil; ranking then uses only the
//     heuristic and static paths.
//   - tables: Loaded reference tables. Must not be nil.
//   - textModel: Model for text analysis and recommendation mode.
//   - visionModel: Vision-capable model for visual analysis.
func NewRanker(chat llm.ChatClient, tables *refdata.Tables, textModel, visionModel string) *Ranker {
	return &Ranker{chat: chat, tables: tables, textModel: textModel, visionModel: visionModel}
}

// Rank scores candidates and returns the ordered result list.
//
// Inputs:
//   - ctx: Context for cancellation and timeout.
//   - query: The original natural-language description.
//   - candidates: Candidate set. Empty switches to recommendation mode.
//   - cs: Criteria from the analyze stage, used for the visual decision.
//     May be nil when the stage is called standalone.
//
// Outputs:
//   - []RankedResult: At most MaxResults entries, scores non-increasing.
//     Never empty for a valid query.
//   - string: The strategy that produced the results.
//   - bool: True if any fallback in the chain was used.
//   - error: ErrInvalidInput for a blank query; nil otherwise.
//
// Thread Safety: This method is safe for concurrent use.
func (r *Ranker) Rank(ctx context.Context, query string, candidates []Candidate, cs *CriteriaSet) ([]RankedResult, string, bool, error) {
	start := time.Now()
	query = strings.TrimSpace(query)
	if query == "" {
		err := fmt.Errorf("%w: query must not be blank", ErrInvalidInput)
		recordStage("filter", start, false, err)
		return nil, "", false, err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "glyph.Ranker.Rank",
		oteltrace.WithAttributes(attribute.Int("candidates", len(candidates))),
	)
	defer span.End()

	results, strategy, degraded := r.rank(ctx, query, candidates, cs)

	span.SetAttributes(
		attribute.String("strategy", strategy),
		attribute.Bool("degraded", degraded),
		attribute.Int("results", len(results)),
	)
	rankStrategyTotal.WithLabelValues(strategy).Inc()
	recordStage("filter", start, degraded, nil)
	return results, strategy, degraded, nil
}

func (r *Ranker) rank(ctx context.Context, query string, candidates []Candidate, cs *CriteriaSet) ([]RankedResult, string, bool) {
	if len(candidates) == 0 {
		results, err := r.recommend(ctx, query)
		if err == nil {
			return results, StrategyRecommend, false
		}
		slog.Warn("Recommendation mode degraded to static fallback",
			slog.String("error", llm.SafeLogString(err.Error())),
		)
		return r.staticResults(), StrategyStatic, true
	}

	degraded := false
	if r.needsVisualAnalysis(query, cs) {
		results, err := r.rankViaModel(ctx, query, candidates, r.visionModel, filterVisualSystemPrompt)
		if err == nil {
			return results, StrategyVisual, false
		}
		slog.Warn("Visual analysis failed, retrying as text",
			slog.String("error", llm.SafeLogString(err.Error())),
		)
		degraded = true
	}

	results, err := r.rankViaModel(ctx, query, candidates, r.textModel, filterTextSystemPrompt)
	if err == nil {
		return results, StrategyText, degraded
	}
	slog.Warn("Text analysis failed, degrading to heuristic ranking",
		slog.String("error", llm.SafeLogString(err.Error())),
	)

	return r.heuristicRank(query, candidates), StrategyHeuristic, true
}

// needsVisualAnalysis decides whether the query is appearance-driven.
//
// Description:
//
//	True when the criteria make shape primary, when the shape confidence
//	exceeds VisualShapeThreshold, or when the query contains one of the
//	visual keywords from the reference tables.
func (r *Ranker) needsVisualAnalysis(query string, cs *CriteriaSet) bool {
	if cs != nil {
		if cs.PrimaryCriterion == "shape" && cs.Criteria.Shape != nil {
			return true
		}
		if cs.Criteria.Shape != nil && cs.Criteria.Shape.Confidence > VisualShapeThreshold {
			return true
		}
	}
	lower := strings.ToLower(query)
	for _, kw := range r.tables.KeywordList("visual") {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// rankViaModel runs one model ranking attempt and normalizes the output.
func (r *Ranker) rankViaModel(ctx context.Context, query string, candidates []Candidate, model, systemPrompt string) ([]RankedResult, error) {
	if r.chat == nil {
		return nil, fmt.Errorf("%w: no model client configured", ErrUpstream)
	}

	temperature := float32(0.2)
	response, err := r.chat.Chat(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: buildFilterUserPrompt(query, candidates)},
	}, llm.GenerationParams{Model: model, Temperature: &temperature})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	var raw []RankedResult
	if err := decodeModelJSON(response, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	allowed := make(map[string]Candidate, len(candidates))
	for _, c := range candidates {
		allowed[c.Code] = c
	}
	results := normalizeRanked(raw, allowed)
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: model ranked no known candidates", ErrUpstream)
	}
	return results, nil
}

// recommend asks the model to propose characters with no candidate set.
func (r *Ranker) recommend(ctx context.Context, query string) ([]RankedResult, error) {
	if r.chat == nil {
		return nil, fmt.Errorf("%w: no model client configured", ErrUpstream)
	}

	temperature := float32(0.4)
	response, err := r.chat.Chat(ctx, []llm.Message{
		{Role: "system", Content: recommendSystemPrompt},
		{Role: "user", Content: buildRecommendUserPrompt(query)},
	}, llm.GenerationParams{Model: r.textModel, Temperature: &temperature})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	var raw []RankedResult
	if err := decodeModelJSON(response, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	results := normalizeRanked(raw, nil)
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: model recommended no valid characters", ErrUpstream)
	}
	return results, nil
}

// Heuristic scorer weights, added on top of DegradedScore.
const (
	heuristicOverlapWeight = 0.4
	heuristicShapeBonus    = 0.1
)

// heuristicRank scores candidates locally from substring overlap between
// the query terms and the character name, with a fixed bonus when a
// shape keyword appears in both. Ties keep gatherer order, which already
// puts curated table hits first.
func (r *Ranker) heuristicRank(query string, candidates []Candidate) []RankedResult {
	lowerQuery := strings.ToLower(query)
	terms := significantTerms(lowerQuery)

	out := make([]RankedResult, 0, len(candidates))
	for _, c := range candidates {
		lowerName := strings.ToLower(c.Name)

		matched := 0
		for _, term := range terms {
			if strings.Contains(lowerName, term) {
				matched++
			}
		}
		score := DegradedScore
		if len(terms) > 0 {
			score += heuristicOverlapWeight * float64(matched) / float64(len(terms))
		}
		for _, kw := range r.tables.KeywordList("shape") {
			if strings.Contains(lowerQuery, kw) && strings.Contains(lowerName, kw) {
				score += heuristicShapeBonus
				break
			}
		}

		reason := "Candidate match (ranking unavailable)"
		if matched > 0 {
			reason = "Name matches the description"
		}
		out = append(out, RankedResult{
			Char:   c.Char,
			Code:   c.Code,
			Name:   c.Name,
			Score:  clampScore(score),
			Reason: reason,
		})
	}
	sortRanked(out)
	if len(out) > MaxResults {
		out = out[:MaxResults]
	}
	return out
}

// significantTerms splits a lowercased query into scoring terms, skipping
// stopwords and punctuation.
func significantTerms(lowerQuery string) []string {
	var terms []string
	for _, word := range strings.Fields(lowerQuery) {
		word = strings.Trim(word, ".,!?\"'")
		if word == "" || heuristicStopwords[word] {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}

// staticResults converts the embedded fallback set to ranked results.
func (r *Ranker) staticResults() []RankedResult {
	fb := r.tables.StaticFallback()
	out := make([]RankedResult, 0, len(fb))
	for _, f := range fb {
		out = append(out, RankedResult{
			Char:   f.Char,
			Code:   f.Code,
			Name:   f.Name,
			Score:  clampScore(f.Score),
			Reason: f.Reason,
		})
	}
	sortRanked(out)
	return out
}

// normalizeRanked enforces the result invariants on model output.
//
// Description:
//
//	Drops entries that fail the single-code-point check or, when allowed
//	is non-nil, name codes outside the candidate set. Char, code, and
//	name are rewritten from the candidate set where available so model
//	typos cannot corrupt them. Scores are clamped to [0,1], blank names
//	and reasons replaced with safe defaults, the list sorted by score
//	descending, and capped at MaxResults.
func normalizeRanked(raw []RankedResult, allowed map[string]Candidate) []RankedResult {
	out := make([]RankedResult, 0, len(raw))
	seen := make(map[string]bool)
	for _, r := range raw {
		if allowed != nil {
			c, ok := allowed[r.Code]
			if !ok {
				continue
			}
			r.Char = c.Char
			r.Code = c.Code
			r.Name = c.Name
		}
		cand := Candidate{Char: r.Char, Code: r.Code, Name: r.Name}
		if !cand.Valid() || seen[r.Code] {
			continue
		}
		seen[r.Code] = true
		r.Score = clampScore(r.Score)
		if strings.TrimSpace(r.Name) == "" {
			r.Name = "UNKNOWN"
		}
		if strings.TrimSpace(r.Reason) == "" {
			r.Reason = "Matched the description"
		}
		out = append(out, r)
	}
	sortRanked(out)
	if len(out) > MaxResults {
		out = out[:MaxResults]
	}
	return out
}

// sortRanked orders results by score descending, stably.
func sortRanked(results []RankedResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
