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
	"errors"
	"strings"
	"testing"
)

func shapeCriteria(tag string) *CriteriaSet {
	cs := &CriteriaSet{
		PrimaryCriterion: "shape",
		Criteria: Criteria{
			Shape: &Criterion{Type: tag, Keywords: []string{tag}, Confidence: 0.9},
		},
	}
	cs.Normalize()
	return cs
}

func TestGatherer_NilCriteriaRejected(t *testing.T) {
	g := NewGatherer(nil, testTables(t), "qwen-turbo-latest")

	if _, _, err := g.Gather(context.Background(), nil, "a circle"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Gather(nil) error = %v, want ErrInvalidInput", err)
	}
}

func TestGatherer_EmptyCriteriaValid(t *testing.T) {
	// Criteria with no active dimensions are not an error: gathering
	// rests on the model suggestion call alone.
	chat := &fakeChat{response: `[
		{"char": "●", "code": "U+25CF", "name": "BLACK CIRCLE"}
	]`}
	g := NewGatherer(chat, testTables(t), "qwen-turbo-latest")

	candidates, degraded, err := g.Gather(context.Background(), &CriteriaSet{}, "a filled dot")
	if err != nil {
		t.Fatalf("Gather(empty criteria) error = %v", err)
	}
	if degraded {
		t.Error("degraded = true on the model path")
	}
	if len(candidates) != 1 || candidates[0].Code != "U+25CF" {
		t.Errorf("candidates = %+v, want the model suggestion", candidates)
	}
}

func TestGatherer_EmptyCriteriaNoModelYieldsEmpty(t *testing.T) {
	// Empty criteria and an unavailable model produce an empty list,
	// which is a valid outcome, not an error.
	g := NewGatherer(nil, testTables(t), "qwen-turbo-latest")

	candidates, degraded, err := g.Gather(context.Background(), &CriteriaSet{}, "a filled dot")
	if err != nil {
		t.Fatalf("Gather(empty criteria) error = %v", err)
	}
	if !degraded {
		t.Error("degraded = false with nil model client")
	}
	if len(candidates) != 0 {
		t.Errorf("candidates = %+v, want empty", candidates)
	}
}

func TestGatherer_TableDispatch(t *testing.T) {
	g := NewGatherer(nil, testTables(t), "qwen-turbo-latest")

	candidates, degraded, err := g.Gather(context.Background(), shapeCriteria("circle"), "a circle")
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if !degraded {
		t.Error("degraded = false with nil model client")
	}
	if len(candidates) == 0 {
		t.Fatal("no candidates from the circle table")
	}
	if candidates[0].Char != "●" {
		t.Errorf("first candidate = %q, want BLACK CIRCLE first", candidates[0].Char)
	}
	for _, c := range candidates {
		if !c.Valid() {
			t.Errorf("invalid candidate in output: %+v", c)
		}
	}
}

func TestGatherer_UnknownTagDegradesToNameSearch(t *testing.T) {
	g := NewGatherer(nil, testTables(t), "qwen-turbo-latest")

	cs := &CriteriaSet{
		PrimaryCriterion: "name",
		Criteria: Criteria{
			Name: &Criterion{Type: "no such category", Keywords: []string{"heart"}, Confidence: 0.9},
		},
	}
	cs.Normalize()

	candidates, _, err := g.Gather(context.Background(), cs, "heart")
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(candidates) == 0 {
		t.Fatal("name search produced no candidates for 'heart'")
	}
}

func TestGatherer_ModelSuggestionsMergedAfterTables(t *testing.T) {
	chat := &fakeChat{response: `[
		{"char": "⊚", "code": "U+229A", "name": "CIRCLED RING OPERATOR"},
		{"char": "●", "code": "U+25CF", "name": "BLACK CIRCLE"}
	]`}
	g := NewGatherer(chat, testTables(t), "qwen-turbo-latest")

	candidates, degraded, err := g.Gather(context.Background(), shapeCriteria("circle"), "a circle")
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if degraded {
		t.Error("degraded = true on the model path")
	}

	seen := make(map[string]int)
	for i, c := range candidates {
		if _, dup := seen[c.Code]; dup {
			t.Errorf("duplicate code %s in output", c.Code)
		}
		seen[c.Code] = i
	}

	// The model's new suggestion is present, after the table block.
	idx, ok := seen["U+229A"]
	if !ok {
		t.Fatal("model suggestion U+229A missing from output")
	}
	if idx == 0 {
		t.Error("model suggestion ordered before table results")
	}
	// The duplicate BLACK CIRCLE kept its table position.
	if seen["U+25CF"] != 0 {
		t.Errorf("U+25CF at index %d, want 0 (table first, first seen wins)", seen["U+25CF"])
	}
}

func TestGatherer_InvalidModelEntriesDropped(t *testing.T) {
	chat := &fakeChat{response: `[
		{"char": "❤️", "code": "U+2764", "name": "TWO CODE POINTS"},
		{"char": "", "code": "U+0000", "name": "EMPTY"},
		{"char": "⊚", "code": "", "name": "NO CODE"},
		{"char": "⊛", "code": "U+229B", "name": "CIRCLED ASTERISK OPERATOR"}
	]`}
	g := NewGatherer(chat, testTables(t), "qwen-turbo-latest")

	candidates, _, err := g.Gather(context.Background(), shapeCriteria("circle"), "a circle")
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, c := range candidates {
		if !c.Valid() {
			t.Errorf("invalid candidate survived merge: %+v", c)
		}
	}
	found := false
	for _, c := range candidates {
		if c.Code == "U+229B" {
			found = true
		}
	}
	if !found {
		t.Error("valid model suggestion U+229B was dropped")
	}
}

func TestGatherer_SuggestionPromptUsesRawQueryOnly(t *testing.T) {
	chat := &fakeChat{response: `[]`}
	g := NewGatherer(chat, testTables(t), "qwen-turbo-latest")

	query := "a hollow ring used as a bullet"
	if _, _, err := g.Gather(context.Background(), shapeCriteria("circle"), query); err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(chat.lastMessages) != 2 {
		t.Fatalf("message count = %d, want system + user", len(chat.lastMessages))
	}
	user := chat.lastMessages[1].Content
	if !strings.Contains(user, query) {
		t.Errorf("user prompt %q does not carry the raw query", user)
	}
	// The structured criteria stay out of the suggestion prompt.
	if strings.Contains(user, "confidence") || strings.Contains(user, "primary") {
		t.Errorf("user prompt %q leaks structured criteria", user)
	}
}

func TestGatherer_ModelErrorDegrades(t *testing.T) {
	chat := &fakeChat{err: errors.New("dashscope: API returned status 429")}
	g := NewGatherer(chat, testTables(t), "qwen-turbo-latest")

	candidates, degraded, err := g.Gather(context.Background(), shapeCriteria("circle"), "a circle")
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if !degraded {
		t.Error("degraded = false after model error")
	}
	if len(candidates) == 0 {
		t.Error("table results lost when model failed")
	}
}

func TestGatherer_CapEnforced(t *testing.T) {
	// Criteria hitting several tables plus a large model response must
	// still respect the candidate cap.
	var entries string
	for i := 0; i < 60; i++ {
		if i > 0 {
			entries += ","
		}
		entries += `{"char": "●", "code": "U+F` + string(rune('A'+i%26)) + `00", "name": "SYNTHETIC"}`
	}
	chat := &fakeChat{response: "[" + entries + "]"}
	g := NewGatherer(chat, testTables(t), "qwen-turbo-latest")

	cs := &CriteriaSet{
		PrimaryCriterion: "function",
		Criteria: Criteria{
			Function: &Criterion{Type: "math", Keywords: []string{"math"}, Confidence: 0.9},
			Range:    &Criterion{Type: "emoji", Keywords: []string{"emoji"}, Confidence: 0.6},
			Shape:    &Criterion{Type: "circle", Keywords: []string{"circle"}, Confidence: 0.6},
		},
	}
	cs.Normalize()

	candidates, _, err := g.Gather(context.Background(), cs, "math symbols and emoji")
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(candidates) > MaxCandidates {
		t.Errorf("candidate count = %d, exceeds cap %d", len(candidates), MaxCandidates)
	}
}

func TestGatherer_Deterministic(t *testing.T) {
	g := NewGatherer(nil, testTables(t), "qwen-turbo-latest")

	first, _, err := g.Gather(context.Background(), shapeCriteria("star"), "a star")
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	second, _, err := g.Gather(context.Background(), shapeCriteria("star"), "a star")
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("result sizes differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("result %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}
