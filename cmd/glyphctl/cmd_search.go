// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGlyph/services/glyph"
)

// httpClient is shared by all commands. Pipeline calls can take a while
// when the model service is cold.
var httpClient = &http.Client{Timeout: 3 * time.Minute}

func runAnalyzeCommand(_ *cobra.Command, args []string) {
	query := strings.Join(args, " ")
	fmt.Printf("Analyzing: %s\n---\n", query)

	var resp glyph.AnalyzeResponse
	if err := postJSON("/v1/glyph/analyze", glyph.AnalyzeRequest{Query: query}, &resp); err != nil {
		log.Fatalf("Error: %v", err)
	}

	printCriteria(&resp.CriteriaSet)
	if resp.Degraded {
		fmt.Println("\n(model service unavailable, interpretation came from keyword matching)")
	}
}

func runSearchCommand(_ *cobra.Command, args []string) {
	query := strings.Join(args, " ")

	done := make(chan bool)
	go showSpinner("Searching", done)

	var results []glyph.RankedResult
	var strategy string
	var degraded bool
	var err error

	if searchStages {
		results, strategy, degraded, err = searchViaStages(query)
	} else {
		var resp glyph.QueryResponse
		err = postJSON("/v1/glyph/query", glyph.QueryRequest{Query: query}, &resp)
		results, strategy, degraded = resp.Results, resp.Strategy, resp.Degraded
	}

	done <- true
	fmt.Print("\r                                                \r")

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: glyph server unavailable at %s\n", getGlyphBaseURL())
		fmt.Fprintf(os.Stderr, "Start it with: ./glyph  (or set GLYPH_SERVER_URL)\n")
		log.Fatalf("request failed: %v", err)
	}

	fmt.Printf("Results for: %s\n\n", query)
	for i, r := range results {
		fmt.Printf("%2d. %s  %-8s %-45s %.2f  %s\n", i+1, r.Char, r.Code, r.Name, r.Score, r.Reason)
	}
	fmt.Printf("\n[%d results, strategy: %s", len(results), strategy)
	if degraded {
		fmt.Print(", degraded")
	}
	fmt.Println("]")
}

// searchViaStages runs analyze, search, and filter as separate requests,
// printing the intermediate output of each stage.
func searchViaStages(query string) ([]glyph.RankedResult, string, bool, error) {
	var analyzeResp glyph.AnalyzeResponse
	if err := postJSON("/v1/glyph/analyze", glyph.AnalyzeRequest{Query: query}, &analyzeResp); err != nil {
		return nil, "", false, fmt.Errorf("analyze: %w", err)
	}
	fmt.Print("\r\033[K")
	fmt.Println("Stage 1: analyze")
	printCriteria(&analyzeResp.CriteriaSet)

	var searchResp glyph.SearchResponse
	searchReq := glyph.SearchRequest{Criteria: &analyzeResp.CriteriaSet, Query: query}
	if err := postJSON("/v1/glyph/search", searchReq, &searchResp); err != nil {
		return nil, "", false, fmt.Errorf("search: %w", err)
	}
	fmt.Printf("\nStage 2: search (%d candidates)\n", searchResp.Total)

	var filterResp glyph.FilterResponse
	filterReq := glyph.FilterRequest{
		Query:      query,
		Candidates: searchResp.Results,
		Criteria:   &analyzeResp.CriteriaSet,
	}
	if err := postJSON("/v1/glyph/filter", filterReq, &filterResp); err != nil {
		return nil, "", false, fmt.Errorf("filter: %w", err)
	}
	fmt.Printf("\nStage 3: filter (strategy: %s)\n\n", filterResp.Strategy)

	return filterResp.Results, filterResp.Strategy, analyzeResp.Degraded, nil
}

// postJSON sends a JSON request to the glyph server and decodes the
// response into out.
func postJSON(path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to create request body: %w", err)
	}

	resp, err := httpClient.Post(getGlyphBaseURL()+path, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to reach glyph server: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Printf("failed to close response body: %v", closeErr)
		}
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// printCriteria renders a criteria set in a compact readable form.
func printCriteria(cs *glyph.CriteriaSet) {
	fmt.Printf("primary: %s\n", cs.PrimaryCriterion)
	row := func(name string, cr *glyph.Criterion) {
		if cr == nil {
			return
		}
		fmt.Printf("  %-8s type=%-12q confidence=%.2f keywords=[%s]\n",
			name, cr.Type, cr.Confidence, strings.Join(cr.Keywords, ", "))
	}
	row("range", cs.Criteria.Range)
	row("shape", cs.Criteria.Shape)
	row("function", cs.Criteria.Function)
	row("name", cs.Criteria.Name)
}

// showSpinner displays a progress animation until done receives a value.
func showSpinner(msg string, done chan bool) {
	chars := []string{"▖", "▘", "▝", "▗"}
	i := 0

	fmt.Print("\033[?25l")
	defer fmt.Print("\033[?25h")

	for {
		select {
		case <-done:
			return
		default:
			fmt.Printf("\r%s  %s... \033[K", chars[i%len(chars)], msg)
			i++
			time.Sleep(100 * time.Millisecond)
		}
	}
}
