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
	"encoding/json"
	"fmt"
	"strings"
)

// decodeModelJSON extracts and parses the JSON payload from a model
// response into dst.
//
// Description:
//
//	Models frequently wrap JSON in markdown code fences or surround it
//	with prose. This strips fences, locates the outermost object or
//	array, and unmarshals it. Any failure is reported as a parse error;
//	callers treat it the same as an upstream failure and fall back.
//
// Inputs:
//   - response: Raw model response text.
//   - dst: Pointer to the unmarshal target.
//
// Outputs:
//   - error: Non-nil if no JSON payload could be located or parsed.
//
// Thread Safety: Safe for concurrent use.
func decodeModelJSON(response string, dst any) error {
	response = strings.TrimSpace(response)
	if response == "" {
		return fmt.Errorf("empty response from model")
	}

	// Clean up markdown code blocks
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	// Whichever delimiter opens first decides the payload kind. Trying
	// objects unconditionally would mis-slice an array of objects into
	// the span between its inner braces.
	var payload string
	objIdx := strings.IndexByte(response, '{')
	arrIdx := strings.IndexByte(response, '[')
	switch {
	case arrIdx != -1 && (objIdx == -1 || arrIdx < objIdx):
		payload = sliceOutermost(response, '[', ']')
	case objIdx != -1:
		payload = sliceOutermost(response, '{', '}')
	}
	if payload == "" {
		return fmt.Errorf("no JSON payload found in response: %s", truncate(response, 100))
	}

	if err := json.Unmarshal([]byte(payload), dst); err != nil {
		return fmt.Errorf("failed to parse JSON: %w, response: %s", err, truncate(payload, 100))
	}
	return nil
}

// sliceOutermost returns the substring from the first open delimiter to
// the last close delimiter, or "" when no well-ordered pair exists.
func sliceOutermost(s string, open, close byte) string {
	startIdx := strings.IndexByte(s, open)
	endIdx := strings.LastIndexByte(s, close)
	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return ""
	}
	return s[startIdx : endIdx+1]
}

// truncate shortens a string for inclusion in error messages.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
