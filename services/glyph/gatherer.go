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
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianGlyph/services/glyph/refdata"
	"github.com/AleutianAI/AleutianGlyph/services/llm"
)

// Gatherer collects candidate characters for a criteria set.
//
// Description:
//
//	Two sources run concurrently: the embedded category tables (exact
//	tag lookup with name-search degradation for unknown tags) and the
//	text model, asked for open-ended suggestions from the raw query to
//	cover gaps in the static tables. Table results always come first in
//	the merged output; model suggestions fill the remainder up to
//	MaxCandidates. A model failure degrades to table-only results and is
//	never an error.
//
// Thread Safety: Gatherer is safe for concurrent use after construction.
type Gatherer struct {
	chat   llm.ChatClient
	tables *refdata.Tables
	model  string
}

// NewGatherer creates a Gatherer.
//
// Inputs:
//   - chat: Model client. May be nil; gathering is then table-only.
//   - tables: Loaded reference tables. Must not be nil.
//   - model: Text model identifier passed through to the client.
func NewGatherer(chat llm.ChatClient, tables *refdata.Tables, model string) *Gatherer {
	return &Gatherer{chat: chat, tables: tables, model: model}
}

// Gather produces the candidate set for a criteria set.
//
// Description:
//
//	Candidates are deduplicated by code point with first occurrence
//	winning, which keeps curated table entries ahead of model
//	suggestions for the same character. Criteria with no active
//	dimensions are valid; gathering then rests on the suggestion call
//	alone. An empty result is a valid outcome, not an error; the
//	ranker's recommendation mode handles it.
//
// Inputs:
//   - ctx: Context for cancellation and timeout.
//   - cs: Normalized criteria. Must not be nil; may have no active
//     dimensions.
//   - query: The original description, passed to the suggestion call.
//
// Outputs:
//   - []Candidate: At most MaxCandidates entries, each one code point.
//   - bool: True if the model source failed and was skipped.
//   - error: ErrInvalidInput if cs is nil.
//
// Thread Safety: This method is safe for concurrent use.
func (g *Gatherer) Gather(ctx context.Context, cs *CriteriaSet, query string) ([]Candidate, bool, error) {
	start := time.Now()
	if cs == nil {
		err := fmt.Errorf("%w: criteria must be present", ErrInvalidInput)
		recordStage("search", start, false, err)
		return nil, false, err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "glyph.Gatherer.Gather")
	defer span.End()

	var (
		tableResults []Candidate
		modelResults []Candidate
		modelErr     error
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		tableResults = g.gatherFromTables(cs)
		return nil
	})
	eg.Go(func() error {
		// Model errors degrade rather than abort, so they are captured
		// instead of returned through the group.
		modelResults, modelErr = g.gatherFromModel(egCtx, query)
		return nil
	})
	// Both goroutines always return nil.
	_ = eg.Wait()

	degraded := false
	if modelErr != nil {
		degraded = true
		slog.Warn("Gather degraded to table-only results",
			slog.String("error", llm.SafeLogString(modelErr.Error())),
		)
	}

	merged := mergeCandidates(tableResults, modelResults, MaxCandidates)
	span.SetAttributes(
		attribute.Int("table_results", len(tableResults)),
		attribute.Int("model_results", len(modelResults)),
		attribute.Int("merged", len(merged)),
		attribute.Bool("degraded", degraded),
	)
	recordStage("search", start, degraded, nil)
	return merged, degraded, nil
}

// gatherFromTables resolves every present dimension against the embedded
// tables, primary dimension first.
func (g *Gatherer) gatherFromTables(cs *CriteriaSet) []Candidate {
	order := []string{cs.PrimaryCriterion}
	for _, name := range dimensionNames {
		if name != cs.PrimaryCriterion {
			order = append(order, name)
		}
	}

	var out []Candidate
	for _, name := range order {
		cr := cs.Dimension(name)
		if cr == nil {
			continue
		}
		chars, ok := g.tables.LookupCategory(cr.Type)
		if !ok {
			// Unknown tag: degrade this dimension to a name search over
			// its keywords.
			chars = g.tables.SearchNames(cr.Keywords, MaxCandidates)
		}
		for _, ch := range chars {
			out = append(out, Candidate{Char: ch.Char, Code: ch.Code, Name: ch.Name})
		}
	}
	return out
}

// gatherFromModel asks the text model for additional suggestions. The
// prompt carries only the raw query: the structured criteria already
// drive the table lookups, and an unconstrained description lets the
// model surface characters the tables miss.
func (g *Gatherer) gatherFromModel(ctx context.Context, query string) ([]Candidate, error) {
	if g.chat == nil {
		return nil, fmt.Errorf("%w: no model client configured", ErrUpstream)
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: no query for the suggestion call", ErrUpstream)
	}

	temperature := float32(0.3)
	response, err := g.chat.Chat(ctx, []llm.Message{
		{Role: "system", Content: searchSystemPrompt},
		{Role: "user", Content: buildSearchUserPrompt(query)},
	}, llm.GenerationParams{Model: g.model, Temperature: &temperature})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	var suggestions []Candidate
	if err := decodeModelJSON(response, &suggestions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return suggestions, nil
}

// mergeCandidates concatenates the sources in order, drops invalid
// entries, deduplicates by code point, and applies the cap.
func mergeCandidates(primary, secondary []Candidate, limit int) []Candidate {
	out := make([]Candidate, 0, limit)
	seen := make(map[string]bool)
	for _, src := range [][]Candidate{primary, secondary} {
		for _, c := range src {
			if !c.Valid() || seen[c.Code] {
				continue
			}
			seen[c.Code] = true
			out = append(out, c)
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}
