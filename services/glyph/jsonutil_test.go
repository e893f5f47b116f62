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

import "testing"

func TestDecodeModelJSON_PlainObject(t *testing.T) {
	var got map[string]string
	err := decodeModelJSON(`{"key": "value"}`, &got)
	if err != nil {
		t.Fatalf("decodeModelJSON() error = %v", err)
	}
	if got["key"] != "value" {
		t.Errorf("got %v", got)
	}
}

func TestDecodeModelJSON_MarkdownFences(t *testing.T) {
	var got map[string]string
	err := decodeModelJSON("```json\n{\"key\": \"value\"}\n```", &got)
	if err != nil {
		t.Fatalf("decodeModelJSON() error = %v", err)
	}
	if got["key"] != "value" {
		t.Errorf("got %v", got)
	}
}

func TestDecodeModelJSON_SurroundingProse(t *testing.T) {
	var got map[string]string
	err := decodeModelJSON(`Here is the result you asked for: {"key": "value"} hope it helps!`, &got)
	if err != nil {
		t.Fatalf("decodeModelJSON() error = %v", err)
	}
	if got["key"] != "value" {
		t.Errorf("got %v", got)
	}
}

func TestDecodeModelJSON_Array(t *testing.T) {
	var got []Candidate
	err := decodeModelJSON("Sure:\n```json\n[{\"char\": \"●\", \"code\": \"U+25CF\", \"name\": \"BLACK CIRCLE\"}]\n```", &got)
	if err != nil {
		t.Fatalf("decodeModelJSON() error = %v", err)
	}
	if len(got) != 1 || got[0].Code != "U+25CF" {
		t.Errorf("got %v", got)
	}
}

func TestDecodeModelJSON_ArrayOfObjects(t *testing.T) {
	// Multiple objects inside an array: the slicer must take the whole
	// array, not the span between the first '{' and the last '}'.
	var got []Candidate
	err := decodeModelJSON(`[
		{"char": "●", "code": "U+25CF", "name": "BLACK CIRCLE"},
		{"char": "○", "code": "U+25CB", "name": "WHITE CIRCLE"}
	]`, &got)
	if err != nil {
		t.Fatalf("decodeModelJSON() error = %v", err)
	}
	if len(got) != 2 || got[0].Code != "U+25CF" || got[1].Code != "U+25CB" {
		t.Errorf("got %v", got)
	}
}

func TestDecodeModelJSON_ArrayWithProse(t *testing.T) {
	var got []Candidate
	err := decodeModelJSON(`Here are my suggestions: [
		{"char": "★", "code": "U+2605", "name": "BLACK STAR"},
		{"char": "☆", "code": "U+2606", "name": "WHITE STAR"}
	] let me know if you need more.`, &got)
	if err != nil {
		t.Fatalf("decodeModelJSON() error = %v", err)
	}
	if len(got) != 2 || got[1].Code != "U+2606" {
		t.Errorf("got %v", got)
	}
}

func TestDecodeModelJSON_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"whitespace", "   \n  "},
		{"no payload", "I could not produce JSON for that."},
		{"malformed", `{"key": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]any
			if err := decodeModelJSON(tt.in, &got); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	if got := truncate("0123456789abc", 10); got != "0123456789..." {
		t.Errorf("truncate(long) = %q", got)
	}
}
