// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package refdata holds the embedded character reference tables shared by
// the pipeline stages: curated category tables for the gatherer, keyword
// lists for the analyzer fallback and the ranker's visual decision, and
// the static last-resort result set.
//
// The data ships inside the binary via go:embed and is parsed once on
// first use. There is no runtime mutation; every accessor returns copies
// or read-only views of immutable data.
package refdata

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var tablesYAML []byte

// Character is one entry in a category table.
//
// Thread Safety: This type is immutable after construction.
type Character struct {
	// Char is the character itself, exactly one Unicode code point.
	Char string `yaml:"char" json:"char"`

	// Code is the code point in "U+XXXX" notation.
	Code string `yaml:"code" json:"code"`

	// Name is the Unicode character name, upper case.
	Name string `yaml:"name" json:"name"`
}

// FallbackResult is one entry of the static last-resort result set.
//
// Thread Safety: This type is immutable after construction.
type FallbackResult struct {
	Char   string  `yaml:"char" json:"char"`
	Code   string  `yaml:"code" json:"code"`
	Name   string  `yaml:"name" json:"name"`
	Score  float64 `yaml:"score" json:"score"`
	Reason string  `yaml:"reason" json:"reason"`
}

// Tables is the parsed, validated reference data set.
//
// Thread Safety: Tables is immutable after Load and safe for concurrent use.
type Tables struct {
	// Version identifies the data revision for logging and diagnostics.
	Version int

	categories map[string][]Character
	aliases    map[string]string
	keywords   map[string][]string
	fallback   []FallbackResult

	// categoryNames is the sorted list of canonical category tags.
	categoryNames []string
}

// tablesFile mirrors the YAML document structure.
type tablesFile struct {
	Version    int                    `yaml:"version"`
	Categories map[string][]Character `yaml:"categories"`
	Aliases    map[string]string      `yaml:"aliases"`
	Keywords   map[string][]string    `yaml:"keywords"`
	Fallback   []FallbackResult       `yaml:"fallback"`
}

var (
	loadOnce   sync.Once
	loadResult *Tables
	loadErr    error
)

// Load parses and validates the embedded reference tables.
//
// Description:
//
//	Parses the embedded YAML exactly once; subsequent calls return the
//	cached result. Validation rejects entries whose char is not exactly
//	one code point and aliases that point at unknown categories, so a bad
//	data edit fails loudly at startup rather than surfacing as missing
//	search results.
//
// Outputs:
//   - *Tables: The parsed data set. Nil if parsing or validation failed.
//   - error: Non-nil if the embedded data is malformed.
//
// Thread Safety: Safe for concurrent use.
func Load() (*Tables, error) {
	loadOnce.Do(func() {
		loadResult, loadErr = parse(tablesYAML)
		if loadErr == nil {
			slog.Info("Loaded glyph reference tables",
				slog.Int("version", loadResult.Version),
				slog.Int("categories", len(loadResult.categories)),
			)
		}
	})
	return loadResult, loadErr
}

// MustLoad is Load but panics on error. Intended for main() wiring where
// malformed embedded data is unrecoverable.
func MustLoad() *Tables {
	t, err := Load()
	if err != nil {
		panic(fmt.Sprintf("refdata: %v", err))
	}
	return t
}

func parse(raw []byte) (*Tables, error) {
	var f tablesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("refdata: parsing tables: %w", err)
	}
	if f.Version < 1 {
		return nil, fmt.Errorf("refdata: missing or invalid version: %d", f.Version)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("refdata: no categories defined")
	}
	if len(f.Fallback) == 0 {
		return nil, fmt.Errorf("refdata: no fallback results defined")
	}

	t := &Tables{
		Version:    f.Version,
		categories: make(map[string][]Character, len(f.Categories)),
		aliases:    make(map[string]string, len(f.Aliases)),
		keywords:   make(map[string][]string, len(f.Keywords)),
		fallback:   f.Fallback,
	}

	for tag, chars := range f.Categories {
		key := NormalizeTag(tag)
		for _, ch := range chars {
			if utf8.RuneCountInString(ch.Char) != 1 {
				return nil, fmt.Errorf("refdata: category %q entry %q is not a single code point", tag, ch.Char)
			}
		}
		t.categories[key] = chars
		t.categoryNames = append(t.categoryNames, key)
	}
	sort.Strings(t.categoryNames)

	for alias, target := range f.Aliases {
		targetKey := NormalizeTag(target)
		if _, ok := t.categories[targetKey]; !ok {
			return nil, fmt.Errorf("refdata: alias %q points at unknown category %q", alias, target)
		}
		t.aliases[NormalizeTag(alias)] = targetKey
	}

	for name, words := range f.Keywords {
		t.keywords[NormalizeTag(name)] = words
	}

	for _, fb := range f.Fallback {
		if utf8.RuneCountInString(fb.Char) != 1 {
			return nil, fmt.Errorf("refdata: fallback entry %q is not a single code point", fb.Char)
		}
	}

	return t, nil
}

// NormalizeTag canonicalizes a category tag for lookup.
//
// Inputs:
//   - tag: Raw tag text, possibly from a model response.
//
// Outputs:
//   - string: Lower case, trimmed, with underscores and hyphens collapsed
//     to single spaces.
//
// Thread Safety: Safe for concurrent use.
func NormalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	tag = strings.ReplaceAll(tag, "_", " ")
	tag = strings.ReplaceAll(tag, "-", " ")
	return strings.Join(strings.Fields(tag), " ")
}

// LookupCategory returns the table for a category tag, resolving aliases.
//
// Description:
//
//	Tags are open strings; model responses may produce tags this data set
//	has never seen. An unknown tag returns (nil, false) and the caller is
//	expected to fall back to name search.
//
// Inputs:
//   - tag: Category tag, any spelling accepted by NormalizeTag.
//
// Outputs:
//   - []Character: A copy of the table, in curated order.
//   - bool: True if the tag (or an alias) matched a table.
//
// Thread Safety: Safe for concurrent use.
func (t *Tables) LookupCategory(tag string) ([]Character, bool) {
	key := NormalizeTag(tag)
	if target, ok := t.aliases[key]; ok {
		key = target
	}
	chars, ok := t.categories[key]
	if !ok {
		return nil, false
	}
	out := make([]Character, len(chars))
	copy(out, chars)
	return out, true
}

// SearchNames returns characters whose Unicode name contains any of the
// given keywords, case-insensitively.
//
// Description:
//
//	Scans every category table in sorted category order so results are
//	deterministic. A character matching several keywords is returned once.
//
// Inputs:
//   - keywords: Search terms. Empty terms are skipped.
//   - limit: Maximum results to return. Zero or negative means no limit.
//
// Outputs:
//   - []Character: Matching characters, deduplicated by code point.
//
// Thread Safety: Safe for concurrent use.
func (t *Tables) SearchNames(keywords []string, limit int) []Character {
	terms := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToUpper(strings.TrimSpace(kw))
		if kw != "" {
			terms = append(terms, kw)
		}
	}
	if len(terms) == 0 {
		return nil
	}

	var out []Character
	seen := make(map[string]bool)
	for _, tag := range t.categoryNames {
		for _, ch := range t.categories[tag] {
			if seen[ch.Code] {
				continue
			}
			for _, term := range terms {
				if strings.Contains(ch.Name, term) {
					seen[ch.Code] = true
					out = append(out, ch)
					break
				}
			}
			if limit > 0 && len(out) >= limit {
				return out
			}
		}
	}
	return out
}

// KeywordList returns the named keyword list, or nil if undefined.
//
// Thread Safety: Safe for concurrent use.
func (t *Tables) KeywordList(name string) []string {
	words, ok := t.keywords[NormalizeTag(name)]
	if !ok {
		return nil
	}
	out := make([]string, len(words))
	copy(out, words)
	return out
}

// StaticFallback returns a copy of the last-resort result set.
//
// Thread Safety: Safe for concurrent use.
func (t *Tables) StaticFallback() []FallbackResult {
	out := make([]FallbackResult, len(t.fallback))
	copy(out, t.fallback)
	return out
}

// Categories returns the sorted canonical category tags.
//
// Thread Safety: Safe for concurrent use.
func (t *Tables) Categories() []string {
	out := make([]string, len(t.categoryNames))
	copy(out, t.categoryNames)
	return out
}
