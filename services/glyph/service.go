// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package glyph implements the character search pipeline: analyze a
// natural-language description into structured criteria, gather
// candidate characters, and rank them against the description. Every
// stage degrades to a local fallback when the external model service is
// unavailable, so the API stays responsive end to end.
package glyph

import (
	"context"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianGlyph/services/glyph/refdata"
	"github.com/AleutianAI/AleutianGlyph/services/llm"
)

// ServiceConfig holds the pipeline configuration.
//
// Thread Safety: ServiceConfig is a value type; copy freely.
type ServiceConfig struct {
	// TextModel handles analyze, search, text ranking, and
	// recommendation calls.
	TextModel string

	// VisionModel handles visual ranking calls.
	VisionModel string

	// Chat is the model client shared by all stages. Nil is valid and
	// forces every stage onto its fallback path.
	Chat llm.ChatClient
}

// DefaultServiceConfig builds a config from environment variables.
//
// Description:
//
//	Reads GLYPH_TEXT_MODEL and GLYPH_VISION_MODEL, defaulting to
//	"qwen-turbo-latest" and "qwen-vl-plus-latest". The Chat client is
//	left nil; main() wires it after constructing the DashScope client.
func DefaultServiceConfig() ServiceConfig {
	cfg := ServiceConfig{
		TextModel:   os.Getenv("GLYPH_TEXT_MODEL"),
		VisionModel: os.Getenv("GLYPH_VISION_MODEL"),
	}
	if cfg.TextModel == "" {
		cfg.TextModel = "qwen-turbo-latest"
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = "qwen-vl-plus-latest"
	}
	return cfg
}

// Service is the glyph pipeline facade consumed by the HTTP handlers and
// the CLI.
//
// Thread Safety: Service is safe for concurrent use after construction.
type Service struct {
	analyzer *Analyzer
	gatherer *Gatherer
	ranker   *Ranker
	tables   *refdata.Tables
}

// NewService creates a Service with all three stages wired.
//
// Inputs:
//   - cfg: Pipeline configuration.
//   - tables: Loaded reference tables. Must not be nil.
//
// Outputs:
//   - *Service: The assembled service.
func NewService(cfg ServiceConfig, tables *refdata.Tables) *Service {
	return &Service{
		analyzer: NewAnalyzer(cfg.Chat, tables, cfg.TextModel),
		gatherer: NewGatherer(cfg.Chat, tables, cfg.TextModel),
		ranker:   NewRanker(cfg.Chat, tables, cfg.TextModel, cfg.VisionModel),
		tables:   tables,
	}
}

// Analyze runs the analyze stage.
func (s *Service) Analyze(ctx context.Context, query string) (*CriteriaSet, bool, error) {
	return s.analyzer.Analyze(ctx, query)
}

// Search runs the gather stage.
func (s *Service) Search(ctx context.Context, cs *CriteriaSet, query string) ([]Candidate, bool, error) {
	return s.gatherer.Gather(ctx, cs, query)
}

// Filter runs the rank stage.
func (s *Service) Filter(ctx context.Context, query string, candidates []Candidate, cs *CriteriaSet) ([]RankedResult, string, bool, error) {
	return s.ranker.Rank(ctx, query, candidates, cs)
}

// Tables exposes the reference data for diagnostics.
func (s *Service) Tables() *refdata.Tables {
	return s.tables
}

// Query runs the full pipeline in one call.
//
// Description:
//
//	analyze, gather, and rank in sequence, threading the criteria into
//	the ranker's visual decision. Degradation in any stage is reported
//	in the response, never as an error. The only error surface is
//	ErrInvalidInput for a blank query.
//
// Inputs:
//   - ctx: Context for cancellation and timeout.
//   - query: Natural-language character description.
//
// Outputs:
//   - *QueryResponse: Ranked results, criteria, strategy, degradation.
//   - error: ErrInvalidInput for a blank query; nil otherwise.
//
// Thread Safety: This method is safe for concurrent use.
func (s *Service) Query(ctx context.Context, query string) (*QueryResponse, error) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "glyph.Service.Query")
	defer span.End()

	cs, analyzeDegraded, err := s.analyzer.Analyze(ctx, query)
	if err != nil {
		recordStage("query", start, false, err)
		return nil, err
	}

	candidates, gatherDegraded, err := s.gatherer.Gather(ctx, cs, query)
	if err != nil {
		recordStage("query", start, false, err)
		return nil, err
	}

	results, strategy, rankDegraded, err := s.ranker.Rank(ctx, query, candidates, cs)
	if err != nil {
		recordStage("query", start, false, err)
		return nil, err
	}

	degraded := analyzeDegraded || gatherDegraded || rankDegraded
	span.SetAttributes(
		attribute.String("strategy", strategy),
		attribute.Bool("degraded", degraded),
		attribute.Int("results", len(results)),
	)
	recordStage("query", start, degraded, nil)

	return &QueryResponse{
		Results:        results,
		Total:          len(results),
		Criteria:       *cs,
		Strategy:       strategy,
		VisualAnalysis: strategy == StrategyVisual,
		Degraded:       degraded,
	}, nil
}
