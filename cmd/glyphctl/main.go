// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command glyphctl is the CLI client for the Aleutian Glyph server.
//
// Usage:
//
//	glyphctl search "a hollow circle"
//	glyphctl search --stages "arrow pointing right"
//	glyphctl analyze "heart symbol"
//	GLYPH_SERVER_URL=http://glyph.internal:8080 glyphctl search "em dash"
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// searchStages holds the --stages flag for the search command.
var searchStages bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "glyphctl",
		Short: "Find Unicode characters from natural language",
		Long: `glyphctl talks to an Aleutian Glyph server and finds Unicode
characters from plain descriptions like "a hollow circle" or
"arrow pointing right".`,
	}

	searchCmd := &cobra.Command{
		Use:   "search [description]",
		Short: "Search for characters matching a description",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearchCommand,
	}
	searchCmd.Flags().BoolVar(&searchStages, "stages", false,
		"Run the three pipeline stages as separate requests and show intermediate output")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [description]",
		Short: "Show how the server interprets a description",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAnalyzeCommand,
	}

	rootCmd.AddCommand(searchCmd, analyzeCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getGlyphBaseURL resolves the server address from the environment.
func getGlyphBaseURL() string {
	if url := os.Getenv("GLYPH_SERVER_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}
