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
	"reflect"
	"testing"
)

func TestCriteriaSetNormalize_ClampsConfidence(t *testing.T) {
	cs := &CriteriaSet{
		PrimaryCriterion: "shape",
		Criteria: Criteria{
			Shape: &Criterion{Type: "circle", Confidence: 1.7},
			Name:  &Criterion{Type: "name", Confidence: -0.4},
		},
	}
	cs.Normalize()

	if cs.Criteria.Shape.Confidence != 1.0 {
		t.Errorf("shape confidence = %v, want 1.0", cs.Criteria.Shape.Confidence)
	}
	if cs.Criteria.Name.Confidence != 0.0 {
		t.Errorf("name confidence = %v, want 0.0", cs.Criteria.Name.Confidence)
	}
}

func TestCriteriaSetNormalize_TruncatesKeywords(t *testing.T) {
	cs := &CriteriaSet{
		PrimaryCriterion: "name",
		Criteria: Criteria{
			Name: &Criterion{
				Type:       "name",
				Keywords:   []string{"a", "b", "c", "d", "e"},
				Confidence: 0.9,
			},
		},
	}
	cs.Normalize()

	if got := len(cs.Criteria.Name.Keywords); got != MaxKeywordsPerCriterion {
		t.Errorf("keyword count = %d, want %d", got, MaxKeywordsPerCriterion)
	}
}

func TestCriteriaSetNormalize_RaisesPrimaryFloor(t *testing.T) {
	cs := &CriteriaSet{
		PrimaryCriterion: "shape",
		Criteria: Criteria{
			Shape: &Criterion{Type: "circle", Confidence: 0.3},
		},
	}
	cs.Normalize()

	if cs.Criteria.Shape.Confidence != MinPrimaryConfidence {
		t.Errorf("primary confidence = %v, want %v", cs.Criteria.Shape.Confidence, MinPrimaryConfidence)
	}
}

func TestCriteriaSetNormalize_CapsNonPrimary(t *testing.T) {
	cs := &CriteriaSet{
		PrimaryCriterion: "shape",
		Criteria: Criteria{
			Shape: &Criterion{Type: "circle", Confidence: 0.8},
			Name:  &Criterion{Type: "name", Confidence: 0.95},
			Range: &Criterion{Type: "emoji", Confidence: 0.85},
		},
	}
	cs.Normalize()

	if cs.Criteria.Name.Confidence != NonPrimaryConfidenceCap {
		t.Errorf("name confidence = %v, want capped to %v", cs.Criteria.Name.Confidence, NonPrimaryConfidenceCap)
	}
	// 0.85 is below the trigger and must survive untouched.
	if cs.Criteria.Range.Confidence != 0.85 {
		t.Errorf("range confidence = %v, want 0.85", cs.Criteria.Range.Confidence)
	}
}

func TestCriteriaSetNormalize_ReassignsAbsentPrimary(t *testing.T) {
	cs := &CriteriaSet{
		PrimaryCriterion: "range",
		Criteria: Criteria{
			Shape: &Criterion{Type: "circle", Confidence: 0.5},
			Name:  &Criterion{Type: "name", Confidence: 0.8},
		},
	}
	cs.Normalize()

	if cs.PrimaryCriterion != "name" {
		t.Errorf("primary = %q, want reassigned to name", cs.PrimaryCriterion)
	}
	if cs.Primary() == nil {
		t.Fatal("Primary() is nil after normalization")
	}
}

func TestCriteriaSetNormalize_Idempotent(t *testing.T) {
	cs := &CriteriaSet{
		PrimaryCriterion: "shape",
		Criteria: Criteria{
			Shape: &Criterion{Type: "circle", Keywords: []string{"round", "circle"}, Confidence: 0.4},
			Name:  &Criterion{Type: "name", Confidence: 0.95},
		},
	}
	cs.Normalize()
	first := *cs
	firstShape := *cs.Criteria.Shape
	firstName := *cs.Criteria.Name

	cs.Normalize()
	if first.PrimaryCriterion != cs.PrimaryCriterion ||
		!reflect.DeepEqual(firstShape, *cs.Criteria.Shape) ||
		!reflect.DeepEqual(firstName, *cs.Criteria.Name) {
		t.Error("second Normalize() changed an already normalized set")
	}
}

func TestCriteriaSetAllKeywords(t *testing.T) {
	cs := &CriteriaSet{
		PrimaryCriterion: "shape",
		Criteria: Criteria{
			Shape: &Criterion{Keywords: []string{"circle", "round"}},
			Name:  &Criterion{Keywords: []string{"Circle", "hollow", " "}},
		},
	}
	got := cs.AllKeywords()
	want := []string{"circle", "round", "hollow"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AllKeywords() = %v, want %v", got, want)
	}
}

func TestCandidateValid(t *testing.T) {
	tests := []struct {
		name string
		c    Candidate
		want bool
	}{
		{"single code point", Candidate{Char: "●", Code: "U+25CF", Name: "BLACK CIRCLE"}, true},
		{"astral code point", Candidate{Char: "😀", Code: "U+1F600", Name: "GRINNING FACE"}, true},
		{"two code points", Candidate{Char: "❤️", Code: "U+2764", Name: "HEAVY BLACK HEART"}, false},
		{"empty char", Candidate{Char: "", Code: "U+0000", Name: "NULL"}, false},
		{"missing code", Candidate{Char: "●", Code: " ", Name: "BLACK CIRCLE"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClampScore(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-1, 0},
		{0, 0},
		{0.5, 0.5},
		{1, 1},
		{42, 1},
	}
	for _, tt := range tests {
		if got := clampScore(tt.in); got != tt.want {
			t.Errorf("clampScore(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
