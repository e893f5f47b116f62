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
	"fmt"
	"strings"
)

// analyzeSystemPrompt instructs the model to interpret a character
// description into the structured criteria format. The response contract
// (bare JSON, fixed keys, confidence on [0,1]) is load-bearing: the
// analyzer parses exactly this shape and falls back on any deviation.
const analyzeSystemPrompt = `You are a Unicode character search assistant. Analyze the user's natural language description of a character and extract structured search criteria.

Respond with ONLY a JSON object in this exact format, no other text:
{
  "primary_criterion": "range" | "shape" | "function" | "name",
  "criteria": {
    "range": {"type": "<unicode block or category>", "keywords": ["..."], "confidence": 0.0-1.0},
    "shape": {"type": "<shape category like circle, square, triangle, star, heart, diamond>", "keywords": ["..."], "confidence": 0.0-1.0},
    "function": {"type": "<functional category like math, punctuation, currency, arrows>", "keywords": ["..."], "confidence": 0.0-1.0},
    "name": {"type": "name", "keywords": ["<words likely in the official Unicode name>"], "confidence": 0.0-1.0}
  }
}

Rules:
- primary_criterion names the single most important dimension for this query.
- Omit a dimension entirely if it does not apply.
- Each keywords list has at most 3 entries.
- confidence reflects how certain you are that the dimension captures the user's intent.`

// searchSystemPrompt instructs the model to suggest concrete characters
// for a description.
const searchSystemPrompt = `You are a Unicode character search assistant. Given a user's description of a character, suggest actual Unicode characters that match.

Respond with ONLY a JSON array in this exact format, no other text:
[
  {"char": "<the character>", "code": "U+XXXX", "name": "<OFFICIAL UNICODE NAME>"}
]

Rules:
- Every char must be exactly one Unicode code point.
- code uses U+ hexadecimal notation.
- name is the official Unicode character name in upper case.
- Suggest up to 20 characters, most relevant first.
- Only include characters you are certain exist.`

// filterTextSystemPrompt instructs the model to rank candidates by name
// and code semantics.
const filterTextSystemPrompt = `You are a Unicode character relevance judge. Given a user's description and a list of candidate characters, score how well each candidate matches the description.

Respond with ONLY a JSON array in this exact format, no other text:
[
  {"char": "<the character>", "code": "U+XXXX", "name": "<NAME>", "score": 0.0-1.0, "reason": "<short justification>"}
]

Rules:
- score is relevance on a 0.0 to 1.0 scale.
- Order the array from highest score to lowest.
- Return at most 10 entries.
- Only include candidates from the provided list; never invent characters.`

// filterVisualSystemPrompt is the vision-model variant. The candidates
// are rendered inline so the model judges their actual appearance.
const filterVisualSystemPrompt = `You are a Unicode character relevance judge with visual understanding. Given a user's description and a list of candidate characters, look at each character's visual appearance and score how well it matches the described look.

Respond with ONLY a JSON array in this exact format, no other text:
[
  {"char": "<the character>", "code": "U+XXXX", "name": "<NAME>", "score": 0.0-1.0, "reason": "<short visual justification>"}
]

Rules:
- Judge primarily by visual shape and appearance, not by name.
- score is relevance on a 0.0 to 1.0 scale.
- Order the array from highest score to lowest.
- Return at most 10 entries.
- Only include candidates from the provided list; never invent characters.`

// recommendSystemPrompt handles the empty-candidate case: the model
// proposes characters directly from the description.
const recommendSystemPrompt = `You are a Unicode character recommendation assistant. The user describes a character they are looking for. Recommend 10 to 15 real Unicode characters that best match the description.

Respond with ONLY a JSON array in this exact format, no other text:
[
  {"char": "<the character>", "code": "U+XXXX", "name": "<OFFICIAL UNICODE NAME>", "score": 0.0-1.0, "reason": "<short justification>"}
]

Rules:
- Every char must be exactly one Unicode code point.
- Order the array from highest score to lowest.
- Only include characters you are certain exist.`

// buildAnalyzeUserPrompt formats the analyze-stage user message.
func buildAnalyzeUserPrompt(query string) string {
	return fmt.Sprintf("Description: %s", query)
}

// buildSearchUserPrompt formats the search-stage user message. Only the
// raw query goes in; the structured criteria stay with the table lookups.
func buildSearchUserPrompt(query string) string {
	return fmt.Sprintf("Description: %s", query)
}

// buildFilterUserPrompt formats the filter-stage user message. The same
// rendering serves both the text and visual variants; the vision model
// sees the characters inline.
func buildFilterUserPrompt(query string, candidates []Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Description: %s\n\nCandidates:\n", query)
	for _, c := range candidates {
		fmt.Fprintf(&b, "%s (%s) %s\n", c.Char, c.Code, c.Name)
	}
	return b.String()
}

// buildRecommendUserPrompt formats the recommendation-mode user message.
func buildRecommendUserPrompt(query string) string {
	return fmt.Sprintf("Description: %s", query)
}
