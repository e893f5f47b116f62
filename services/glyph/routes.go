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
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORSMiddleware applies the open cross-origin policy.
//
// Description:
//
//	The API is consumed directly from browsers on arbitrary origins, so
//	every response allows any origin, the three methods the API serves,
//	and the Content-Type and Authorization request headers. Preflight
//	OPTIONS requests short-circuit with 204.
//
//	Install with router.Use at the engine level: preflight requests
//	arrive as OPTIONS on paths that only register POST or GET, and only
//	engine-level middleware runs for those.
//
// Thread Safety: The returned handler is safe for concurrent use.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RegisterRoutes registers all Glyph routes with the router.
//
// Description:
//
//	Registers all /v1/glyph/* endpoints with the given Gin router group.
//	CORSMiddleware must already be installed on the engine.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/glyph/analyze - Interpret a description into criteria
//	POST /v1/glyph/search - Gather candidate characters
//	POST /v1/glyph/filter - Rank candidates against the description
//	POST /v1/glyph/query - Full pipeline in one call
//	GET  /v1/glyph/health - Health check
//	GET  /v1/glyph/ready - Readiness check
//
// Example:
//
//	tables := refdata.MustLoad()
//	service := glyph.NewService(glyph.DefaultServiceConfig(), tables)
//	handlers := glyph.NewHandlers(service)
//
//	router.Use(glyph.CORSMiddleware())
//	v1 := router.Group("/v1")
//	glyph.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	g := rg.Group("/glyph")
	{
		// Pipeline stages
		g.POST("/analyze", handlers.HandleAnalyze)
		g.POST("/search", handlers.HandleSearch)
		g.POST("/filter", handlers.HandleFilter)

		// Full pipeline
		g.POST("/query", handlers.HandleQuery)

		// Health checks
		g.GET("/health", handlers.HandleHealth)
		g.GET("/ready", handlers.HandleReady)
	}
}
