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
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianGlyph/services/glyph/refdata"
	"github.com/AleutianAI/AleutianGlyph/services/llm"
)

// Analyzer interprets a natural-language character description into a
// structured criteria set.
//
// Description:
//
//	The primary path asks the text model for a criteria JSON object and
//	normalizes it. Any model failure (transport, parse, empty output)
//	degrades to a keyword heuristic built on the embedded reference
//	tables, so Analyze never fails for a non-empty query.
//
// Thread Safety: Analyzer is safe for concurrent use after construction.
type Analyzer struct {
	chat   llm.ChatClient
	tables *refdata.Tables
	model  string
}

// NewAnalyzer creates an Analyzer.
//
// Inputs:
//   - chat: Model client. May be nil, in which case every call degrades
//     straight to the heuristic.
//   - tables: Loaded reference tables. Must not be nil.
//   - model: Text model identifier passed through to the client.
func NewAnalyzer(chat llm.ChatClient, tables *refdata.Tables, model string) *Analyzer {
	return &Analyzer{chat: chat, tables: tables, model: model}
}

// Analyze interprets a query into a normalized criteria set.
//
// Description:
//
//	Rejects blank queries before any external call. On the happy path
//	the model's JSON is parsed and normalized; on any model failure the
//	keyword heuristic produces the criteria instead and degraded is true.
//
// Inputs:
//   - ctx: Context for cancellation and timeout.
//   - query: Natural-language character description.
//
// Outputs:
//   - *CriteriaSet: Normalized criteria. Always has a resolvable primary.
//   - bool: True if the heuristic fallback produced the result.
//   - error: ErrInvalidInput for a blank query; nil otherwise.
//
// Thread Safety: This method is safe for concurrent use.
func (a *Analyzer) Analyze(ctx context.Context, query string) (*CriteriaSet, bool, error) {
	start := time.Now()
	query = strings.TrimSpace(query)
	if query == "" {
		err := fmt.Errorf("%w: query must not be blank", ErrInvalidInput)
		recordStage("analyze", start, false, err)
		return nil, false, err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "glyph.Analyzer.Analyze",
		oteltrace.WithAttributes(attribute.Int("query_len", len(query))),
	)
	defer span.End()

	cs, err := a.analyzeViaModel(ctx, query)
	if err == nil {
		span.SetAttributes(attribute.String("primary", cs.PrimaryCriterion))
		recordStage("analyze", start, false, nil)
		return cs, false, nil
	}

	slog.Warn("Analyze degraded to keyword heuristic",
		slog.String("error", llm.SafeLogString(err.Error())),
	)
	span.SetAttributes(attribute.Bool("degraded", true))

	cs = a.heuristicAnalyze(query)
	recordStage("analyze", start, true, nil)
	return cs, true, nil
}

// analyzeViaModel runs the model path and validates the result.
func (a *Analyzer) analyzeViaModel(ctx context.Context, query string) (*CriteriaSet, error) {
	if a.chat == nil {
		return nil, fmt.Errorf("%w: no model client configured", ErrUpstream)
	}

	temperature := float32(0.1)
	response, err := a.chat.Chat(ctx, []llm.Message{
		{Role: "system", Content: analyzeSystemPrompt},
		{Role: "user", Content: buildAnalyzeUserPrompt(query)},
	}, llm.GenerationParams{Model: a.model, Temperature: &temperature})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	var cs CriteriaSet
	if err := decodeModelJSON(response, &cs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	cs.Normalize()
	if cs.Primary() == nil {
		return nil, fmt.Errorf("%w: model returned no usable criteria", ErrUpstream)
	}
	return &cs, nil
}

// heuristicKeywordMap routes a matched keyword list to a criteria
// dimension and category tag. Checked in order; first hit wins.
var heuristicKeywordMap = []struct {
	list      string
	dimension string
}{
	{list: "shape", dimension: "shape"},
	{list: "emoji", dimension: "range"},
	{list: "math", dimension: "function"},
	{list: "arrows", dimension: "function"},
	{list: "punctuation", dimension: "function"},
	{list: "currency", dimension: "function"},
}

// heuristicStopwords are query words skipped when deriving name keywords.
var heuristicStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "that": true, "this": true,
	"of": true, "for": true, "with": true, "like": true, "looks": true,
	"looking": true, "symbol": true, "character": true, "sign": true,
	"i": true, "want": true, "need": true, "find": true, "me": true,
}

// heuristicAnalyze derives criteria from keyword matching alone.
//
// Description:
//
//	Scans the query against the embedded keyword lists in a fixed order.
//	A shape word produces a shape-primary criteria set tagged with that
//	word; emoji and functional words produce range or function primaries
//	tagged with the list's category. When nothing matches, the
//	significant query words become a name-primary criterion so the
//	gatherer can still run a name search.
func (a *Analyzer) heuristicAnalyze(query string) *CriteriaSet {
	lower := strings.ToLower(query)

	for _, entry := range heuristicKeywordMap {
		for _, kw := range a.tables.KeywordList(entry.list) {
			if !strings.Contains(lower, kw) {
				continue
			}
			tag := kw
			if entry.dimension != "shape" {
				// Functional and range matches tag the whole category,
				// not the matched word.
				tag = entry.list
			}
			cr := &Criterion{
				Type:       tag,
				Keywords:   []string{kw},
				Confidence: MinPrimaryConfidence,
			}
			cs := &CriteriaSet{PrimaryCriterion: entry.dimension}
			switch entry.dimension {
			case "shape":
				cs.Criteria.Shape = cr
			case "range":
				cs.Criteria.Range = cr
			case "function":
				cs.Criteria.Function = cr
			}
			cs.Normalize()
			return cs
		}
	}

	var keywords []string
	for _, word := range strings.Fields(lower) {
		word = strings.Trim(word, ".,!?\"'")
		if word == "" || heuristicStopwords[word] {
			continue
		}
		keywords = append(keywords, word)
		if len(keywords) == MaxKeywordsPerCriterion {
			break
		}
	}
	if len(keywords) == 0 {
		keywords = []string{lower}
	}

	cs := &CriteriaSet{
		PrimaryCriterion: "name",
		Criteria: Criteria{
			Name: &Criterion{
				Type:       "name",
				Keywords:   keywords,
				Confidence: MinPrimaryConfidence,
			},
		},
	}
	cs.Normalize()
	return cs
}
