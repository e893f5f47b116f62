// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command glyph starts the Aleutian Glyph API server.
//
// Aleutian Glyph finds Unicode characters from natural language:
//   - Three-stage pipeline: analyze, search, filter
//   - Model-assisted interpretation with full local degradation
//   - Visual ranking via a vision-capable model for shape queries
//
// Usage:
//
//	go run ./cmd/glyph
//	go run ./cmd/glyph -port 9090
//
// With the model service (DashScope compatible-mode):
//
//	DASHSCOPE_API_KEY=sk-... go run ./cmd/glyph
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/glyph/health
//
//	# Full pipeline
//	curl -X POST http://localhost:8080/v1/glyph/query \
//	  -H "Content-Type: application/json" \
//	  -d '{"query": "a circle that looks hollow"}'
//
//	# Individual stages
//	curl -X POST http://localhost:8080/v1/glyph/analyze \
//	  -H "Content-Type: application/json" \
//	  -d '{"query": "heart symbol"}'
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/AleutianAI/AleutianGlyph/services/glyph"
	"github.com/AleutianAI/AleutianGlyph/services/glyph/refdata"
	"github.com/AleutianAI/AleutianGlyph/services/llm"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	// Set Gin mode
	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation so trace context flows from incoming
	// HTTP headers through all handlers and the outbound model calls.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Reference tables ship inside the binary; a parse failure here is a
	// build defect, not a runtime condition.
	tables := refdata.MustLoad()

	// Create service with default config. The model client is optional;
	// without it every stage serves its local fallback.
	cfg := glyph.DefaultServiceConfig()
	modelEnabled := setupModelClient(&cfg)
	svc := glyph.NewService(cfg, tables)

	// Create handlers
	handlers := glyph.NewHandlers(svc)

	// Setup router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("aleutian-glyph"))
	// CORS must sit on the engine so preflight OPTIONS requests are
	// answered for paths that only register POST.
	router.Use(glyph.CORSMiddleware())
	if *debug {
		router.Use(gin.Logger())
	}

	// Register routes under /v1/glyph
	v1 := router.Group("/v1")
	glyph.RegisterRoutes(v1, handlers)

	// Prometheus scrape endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Print startup banner
	printBanner(*port, modelEnabled)

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		slog.Info("Shutting down Aleutian Glyph server")
		os.Exit(0)
	}()

	// Start server
	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Starting Aleutian Glyph server", slog.String("address", addr))
	if err := router.Run(addr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// setupModelClient wires the DashScope client into the config.
//
// Description:
//
//	A missing API key is not fatal: the pipeline degrades to its keyword
//	heuristics and static fallbacks, which keeps local development and
//	CI working without credentials.
//
// Outputs:
//
//	bool - True if the model client is connected.
func setupModelClient(cfg *glyph.ServiceConfig) bool {
	client, err := llm.NewDashScopeClient()
	if err != nil {
		slog.Warn("Model service not configured, pipeline will serve degraded results",
			slog.String("error", err.Error()))
		return false
	}
	cfg.Chat = client
	slog.Info("Model service connected",
		slog.String("text_model", cfg.TextModel),
		slog.String("vision_model", cfg.VisionModel))
	return true
}

func printBanner(port int, modelEnabled bool) {
	modelStatus := "DISABLED (set DASHSCOPE_API_KEY to enable)"
	if modelEnabled {
		modelStatus = "ENABLED (DashScope connected)"
	}

	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                      ALEUTIAN GLYPH SERVER                        ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  Natural language Unicode character search.                       ║
║  Model Service: %-47s ║
║                                                                   ║
║  Quick Start:                                                     ║
║  ┌─────────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                              │  ║
║  │ curl http://localhost:%d/v1/glyph/health              │  ║
║  │                                                             │  ║
║  │ # Full pipeline                                             │  ║
║  │ curl -X POST http://localhost:%d/v1/glyph/query \     │  ║
║  │   -H "Content-Type: application/json" \                     │  ║
║  │   -d '{"query": "a hollow circle"}'                         │  ║
║  └─────────────────────────────────────────────────────────────┘  ║
║                                                                   ║
║  Endpoints:                                                       ║
║  ├── Stages: /analyze, /search, /filter                           ║
║  ├── Pipeline: /query                                             ║
║  └── Ops: /health, /ready, /metrics                               ║
║                                                                   ║
║  Press Ctrl+C to stop                                             ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, modelStatus, port, port)
}
