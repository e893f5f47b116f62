// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package refdata

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestLoad(t *testing.T) {
	tables, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if tables.Version < 1 {
		t.Errorf("Version = %d, want >= 1", tables.Version)
	}
	if len(tables.Categories()) == 0 {
		t.Error("Categories() is empty")
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	a, err := Load()
	if err != nil {
		t.Fatalf("first Load() error = %v", err)
	}
	b, err := Load()
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if a != b {
		t.Error("Load() returned different instances")
	}
}

func TestAllEntriesAreSingleCodePoints(t *testing.T) {
	tables := MustLoad()
	for _, tag := range tables.Categories() {
		chars, ok := tables.LookupCategory(tag)
		if !ok {
			t.Fatalf("LookupCategory(%q) not found for listed category", tag)
		}
		for _, ch := range chars {
			if utf8.RuneCountInString(ch.Char) != 1 {
				t.Errorf("category %q: char %q is %d code points, want 1",
					tag, ch.Char, utf8.RuneCountInString(ch.Char))
			}
		}
	}
	for _, fb := range tables.StaticFallback() {
		if utf8.RuneCountInString(fb.Char) != 1 {
			t.Errorf("fallback char %q is not a single code point", fb.Char)
		}
	}
}

func TestNormalizeTag(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Circle", "circle"},
		{"  ARROWS  ", "arrows"},
		{"geometric_shapes", "geometric shapes"},
		{"geometric-shapes", "geometric shapes"},
		{"general   punctuation", "general punctuation"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeTag(tt.in); got != tt.want {
			t.Errorf("NormalizeTag(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLookupCategory(t *testing.T) {
	tables := MustLoad()

	chars, ok := tables.LookupCategory("circle")
	if !ok {
		t.Fatal("LookupCategory(circle) not found")
	}
	if len(chars) == 0 {
		t.Fatal("circle table is empty")
	}
	if chars[0].Char != "●" {
		t.Errorf("first circle entry = %q, want BLACK CIRCLE", chars[0].Char)
	}
}

func TestLookupCategoryResolvesAliases(t *testing.T) {
	tables := MustLoad()

	direct, ok := tables.LookupCategory("circle")
	if !ok {
		t.Fatal("LookupCategory(circle) not found")
	}
	viaAlias, ok := tables.LookupCategory("Round")
	if !ok {
		t.Fatal("LookupCategory(Round) did not resolve alias")
	}
	if len(direct) != len(viaAlias) {
		t.Errorf("alias result size = %d, direct = %d", len(viaAlias), len(direct))
	}
}

func TestLookupCategoryUnknownTag(t *testing.T) {
	tables := MustLoad()
	if _, ok := tables.LookupCategory("runic sigils"); ok {
		t.Error("LookupCategory returned a table for an unknown tag")
	}
}

func TestLookupCategoryReturnsCopy(t *testing.T) {
	tables := MustLoad()
	first, _ := tables.LookupCategory("star")
	first[0].Name = "MUTATED"
	second, _ := tables.LookupCategory("star")
	if second[0].Name == "MUTATED" {
		t.Error("LookupCategory exposed internal state")
	}
}

func TestSearchNames(t *testing.T) {
	tables := MustLoad()

	results := tables.SearchNames([]string{"heart"}, 0)
	if len(results) == 0 {
		t.Fatal("SearchNames(heart) returned nothing")
	}
	for _, ch := range results {
		if !strings.Contains(ch.Name, "HEART") {
			t.Errorf("result %q (%s) does not contain HEART", ch.Name, ch.Char)
		}
	}
}

func TestSearchNamesDeduplicatesAndLimits(t *testing.T) {
	tables := MustLoad()

	// "circle" matches both the circle table and CIRCLED entries elsewhere;
	// duplicate keywords must not duplicate results.
	results := tables.SearchNames([]string{"circle", "circle"}, 0)
	seen := make(map[string]bool)
	for _, ch := range results {
		if seen[ch.Code] {
			t.Errorf("duplicate result %s", ch.Code)
		}
		seen[ch.Code] = true
	}

	limited := tables.SearchNames([]string{"circle"}, 3)
	if len(limited) != 3 {
		t.Errorf("limited search returned %d results, want 3", len(limited))
	}
}

func TestSearchNamesEmptyKeywords(t *testing.T) {
	tables := MustLoad()
	if got := tables.SearchNames(nil, 0); got != nil {
		t.Errorf("SearchNames(nil) = %v, want nil", got)
	}
	if got := tables.SearchNames([]string{"", "  "}, 0); got != nil {
		t.Errorf("SearchNames(blank terms) = %v, want nil", got)
	}
}

func TestKeywordList(t *testing.T) {
	tables := MustLoad()

	visual := tables.KeywordList("visual")
	if len(visual) == 0 {
		t.Fatal("KeywordList(visual) is empty")
	}
	found := false
	for _, kw := range visual {
		if kw == "looks" {
			found = true
		}
	}
	if !found {
		t.Error("visual keyword list missing 'looks'")
	}

	if tables.KeywordList("no such list") != nil {
		t.Error("KeywordList returned entries for an undefined list")
	}
}

func TestStaticFallback(t *testing.T) {
	tables := MustLoad()

	fb := tables.StaticFallback()
	if len(fb) != 10 {
		t.Errorf("StaticFallback() has %d entries, want 10", len(fb))
	}
	for _, r := range fb {
		if r.Score < 0 || r.Score > 1 {
			t.Errorf("fallback %s score %v outside [0,1]", r.Code, r.Score)
		}
		if r.Reason == "" {
			t.Errorf("fallback %s has empty reason", r.Code)
		}
	}
}
