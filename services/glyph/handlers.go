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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianGlyph/services/llm"
)

// Handlers holds the HTTP handlers for the glyph endpoints.
//
// Thread Safety: Handlers is safe for concurrent use; all state lives in
// the Service.
type Handlers struct {
	service *Service
}

// NewHandlers creates the handler set for a service.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// getOrCreateRequestID returns the inbound X-Request-ID or mints one.
// The ID is echoed on the response so clients can correlate logs.
func getOrCreateRequestID(c *gin.Context) string {
	id := c.GetHeader("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	c.Header("X-Request-ID", id)
	return id
}

// writeError writes the uniform error body, redacting any secret that an
// upstream error string might carry.
func writeError(c *gin.Context, status int, code string, err error) {
	c.JSON(status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    code,
		Details: llm.SafeLogString(err.Error()),
	})
}

// writeBindError reports a request binding failure. Validation errors are
// rewritten to name the offending fields instead of echoing the
// validator's internal struct paths.
func writeBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
		}
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST",
			fmt.Errorf("invalid fields: %s", strings.Join(fields, ", ")))
		return
	}
	writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
}

// HandleAnalyze handles POST /v1/glyph/analyze.
//
// Description:
//
//	Interprets a natural-language description into structured criteria.
//	Degradation to the keyword heuristic is reported in the body, not as
//	an error status.
//
// Response:
//
//	200 OK: AnalyzeResponse
//	400 Bad Request: Missing or blank query
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleAnalyze(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAnalyze")

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	cs, degraded, err := h.service.Analyze(c.Request.Context(), req.Query)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			writeError(c, http.StatusBadRequest, "INVALID_INPUT", err)
			return
		}
		writeError(c, http.StatusInternalServerError, "ANALYZE_FAILED", err)
		return
	}

	logger.Info("analyze",
		slog.String("primary", cs.PrimaryCriterion),
		slog.Bool("degraded", degraded),
	)
	c.JSON(http.StatusOK, AnalyzeResponse{CriteriaSet: *cs, Degraded: degraded})
}

// HandleSearch handles POST /v1/glyph/search.
//
// Description:
//
//	Gathers candidate characters for a criteria set. An empty result
//	list is a valid 200 response, as is a criteria object with no
//	active dimensions.
//
// Response:
//
//	200 OK: SearchResponse
//	400 Bad Request: Missing criteria field
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleSearch(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSearch")

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	req.Criteria.Normalize()
	candidates, degraded, err := h.service.Search(c.Request.Context(), req.Criteria, req.Query)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			writeError(c, http.StatusBadRequest, "INVALID_INPUT", err)
			return
		}
		writeError(c, http.StatusInternalServerError, "SEARCH_FAILED", err)
		return
	}

	logger.Info("search",
		slog.Int("results", len(candidates)),
		slog.Bool("degraded", degraded),
	)
	if candidates == nil {
		candidates = []Candidate{}
	}
	c.JSON(http.StatusOK, SearchResponse{Results: candidates, Total: len(candidates)})
}

// HandleFilter handles POST /v1/glyph/filter.
//
// Description:
//
//	Ranks candidates against the description. Criteria are optional and
//	feed the visual decision. Empty candidates switch to recommendation
//	mode; the response is never an empty list for a valid query.
//
// Response:
//
//	200 OK: FilterResponse
//	400 Bad Request: Missing or blank query
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleFilter(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleFilter")

	var req FilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	results, strategy, degraded, err := h.service.Filter(c.Request.Context(), req.Query, req.Candidates, req.Criteria)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			writeError(c, http.StatusBadRequest, "INVALID_INPUT", err)
			return
		}
		writeError(c, http.StatusInternalServerError, "FILTER_FAILED", err)
		return
	}

	logger.Info("filter",
		slog.String("strategy", strategy),
		slog.Int("results", len(results)),
		slog.Bool("degraded", degraded),
	)
	c.JSON(http.StatusOK, FilterResponse{
		Results:        results,
		Total:          len(results),
		Strategy:       strategy,
		VisualAnalysis: strategy == StrategyVisual,
	})
}

// HandleQuery handles POST /v1/glyph/query.
//
// Description:
//
//	Runs the full pipeline server-side: analyze, search, filter. The
//	criteria flow into the ranker's visual decision, which standalone
//	filter calls cannot do.
//
// Response:
//
//	200 OK: QueryResponse
//	400 Bad Request: Missing or blank query
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleQuery(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleQuery")

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	resp, err := h.service.Query(c.Request.Context(), req.Query)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			writeError(c, http.StatusBadRequest, "INVALID_INPUT", err)
			return
		}
		writeError(c, http.StatusInternalServerError, "QUERY_FAILED", err)
		return
	}

	logger.Info("query",
		slog.String("strategy", resp.Strategy),
		slog.Int("results", resp.Total),
		slog.Bool("degraded", resp.Degraded),
	)
	c.JSON(http.StatusOK, resp)
}

// HandleHealth handles GET /v1/glyph/health.
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleReady handles GET /v1/glyph/ready.
//
// Description:
//
//	Ready once the reference tables are loaded. The model service is
//	deliberately not probed: the pipeline serves degraded results
//	without it, so its availability must not gate readiness.
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleReady(c *gin.Context) {
	if h.service == nil || h.service.Tables() == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "ready",
		"tables_version": h.service.Tables().Version,
		"table_count":    len(h.service.Tables().Categories()),
	})
}
