// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// =============================================================================
// DashScope Wire Types
// =============================================================================

const defaultDashScopeBaseURL = "https://dashscope-intl.aliyuncs.com/compatible-mode/v1/chat/completions"

// Outbound request rate defaults. DashScope compatible-mode throttles per
// API key; a small client-side limiter keeps bursts of concurrent pipeline
// stages from tripping the provider's 429 responses.
const (
	defaultRequestsPerSecond = 5
	defaultBurst             = 10
)

type dashscopeRequest struct {
	Model       string             `json:"model"`
	Messages    []dashscopeMessage `json:"messages"`
	Temperature *float32           `json:"temperature,omitempty"`
	MaxTokens   *int               `json:"max_tokens,omitempty"`
}

type dashscopeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type dashscopeResponse struct {
	ID      string            `json:"id"`
	Object  string            `json:"object"`
	Choices []dashscopeChoice `json:"choices"`
	Error   *dashscopeError   `json:"error,omitempty"`
}

type dashscopeChoice struct {
	Index        int              `json:"index"`
	Message      dashscopeMessage `json:"message"`
	FinishReason string           `json:"finish_reason"`
}

type dashscopeError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// DashScopeClient implements ChatClient for DashScope compatible-mode
// models using raw net/http.
//
// Description:
//
//	Uses the OpenAI-compatible Chat Completions REST API directly without
//	third-party SDKs. A single client serves both the text model and the
//	vision-capable model; callers select the model per request via
//	GenerationParams.Model.
//
// Thread Safety: DashScopeClient is safe for concurrent use.
type DashScopeClient struct {
	httpClient   *http.Client
	apiKey       string
	defaultModel string
	baseURL      string
	limiter      *rate.Limiter
}

// NewDashScopeClientWithConfig creates a DashScopeClient with explicit
// configuration.
//
// Description:
//
//	Creates a client without reading environment variables. Useful for
//	testing with mock servers or when configuration comes from a source
//	other than the environment.
//
// Inputs:
//   - apiKey: The DashScope API key.
//   - model: The default model name (e.g., "qwen-turbo-latest").
//   - baseURL: The base URL for API requests.
//
// Outputs:
//   - *DashScopeClient: The configured client.
func NewDashScopeClientWithConfig(apiKey, model, baseURL string) *DashScopeClient {
	return &DashScopeClient{
		httpClient:   &http.Client{Timeout: 120 * time.Second},
		apiKey:       apiKey,
		defaultModel: model,
		baseURL:      baseURL,
		limiter:      rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultBurst),
	}
}

// NewDashScopeClient creates a new DashScopeClient from environment variables.
//
// Description:
//
//	Reads DASHSCOPE_API_KEY, GLYPH_TEXT_MODEL, and GLYPH_LLM_BASE_URL from
//	the environment. Defaults to "qwen-turbo-latest" and the international
//	DashScope compatible-mode endpoint when the optional variables are unset.
//
// Outputs:
//   - *DashScopeClient: The configured client.
//   - error: Non-nil if DASHSCOPE_API_KEY is missing.
func NewDashScopeClient() (*DashScopeClient, error) {
	apiKey := os.Getenv("DASHSCOPE_API_KEY")
	if apiKey == "" {
		slog.Warn("DashScope API key is empty. DashScope client will not function.")
		return nil, fmt.Errorf("dashscope: API key is missing (DASHSCOPE_API_KEY)")
	}

	model := os.Getenv("GLYPH_TEXT_MODEL")
	if model == "" {
		model = "qwen-turbo-latest"
	}

	baseURL := os.Getenv("GLYPH_LLM_BASE_URL")
	if baseURL == "" {
		baseURL = defaultDashScopeBaseURL
	}

	slog.Info("Initializing DashScope client", slog.String("model", model))
	return &DashScopeClient{
		httpClient:   &http.Client{Timeout: 120 * time.Second},
		apiKey:       apiKey,
		defaultModel: model,
		baseURL:      baseURL,
		limiter:      rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultBurst),
	}, nil
}

// Chat implements ChatClient using the DashScope chat completions API.
//
// Description:
//
//	Converts messages to wire format and sends a single chat completion
//	request. No retry is performed; callers are expected to degrade to
//	their local fallback on any error.
//
// Inputs:
//   - ctx: Context for cancellation and timeout.
//   - messages: Conversation history.
//   - params: Generation parameters. An empty Model uses the client default.
//
// Outputs:
//   - string: The assistant's response text.
//   - error: Non-nil if the request fails, returns a non-2xx status,
//     or the body contains no choices.
//
// Thread Safety: This method is safe for concurrent use.
func (c *DashScopeClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	model := c.defaultModel
	if params.Model != "" {
		model = params.Model
	}

	ctx, span := otel.Tracer(chatTracerName).Start(ctx, "llm.DashScopeClient.Chat",
		oteltrace.WithAttributes(
			attribute.String("model", model),
			attribute.Int("message_count", len(messages)),
		),
	)
	defer span.End()

	// Client-side rate limiting before the request leaves the process.
	if err := c.limiter.Wait(ctx); err != nil {
		span.SetStatus(codes.Error, "rate limiter wait cancelled")
		return "", fmt.Errorf("dashscope: rate limiter wait: %w", err)
	}

	slog.Debug("Chat via DashScope",
		slog.String("model", model),
		slog.Int("messages", len(messages)),
	)

	wireMessages := make([]dashscopeMessage, 0, len(messages))
	for _, msg := range messages {
		role := msg.Role
		switch role {
		case "system", "user", "assistant":
			// valid roles, keep as-is
		default:
			slog.Warn("DashScope: unknown message role, mapping to user",
				slog.String("unknown_role", role),
				slog.String("model", model),
			)
			role = "user"
		}
		wireMessages = append(wireMessages, dashscopeMessage{
			Role:    role,
			Content: msg.Content,
		})
	}

	reqPayload := dashscopeRequest{
		Model:    model,
		Messages: wireMessages,
	}
	if params.Temperature != nil {
		reqPayload.Temperature = params.Temperature
	}
	if params.MaxTokens != nil {
		reqPayload.MaxTokens = params.MaxTokens
	}

	reqBody, err := json.Marshal(reqPayload)
	if err != nil {
		return "", fmt.Errorf("dashscope: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("dashscope: creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	duration := time.Since(startTime)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "HTTP request failed")
		recordChatMetrics(model, duration, err)
		return "", fmt.Errorf("dashscope: HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		recordChatMetrics(model, duration, err)
		return "", fmt.Errorf("dashscope: reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("dashscope: API returned status %d: %s", resp.StatusCode, SafeLogString(string(bodyBytes)))
		span.SetStatus(codes.Error, fmt.Sprintf("status %d", resp.StatusCode))
		recordChatMetrics(model, duration, err)
		return "", err
	}

	var apiResp dashscopeResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		recordChatMetrics(model, duration, err)
		return "", fmt.Errorf("dashscope: parsing response JSON: %w", err)
	}

	if apiResp.Error != nil {
		err := fmt.Errorf("dashscope: API error: %s - %s", apiResp.Error.Type, SafeLogString(apiResp.Error.Message))
		span.SetStatus(codes.Error, "API error")
		recordChatMetrics(model, duration, err)
		return "", err
	}

	if len(apiResp.Choices) == 0 {
		err := fmt.Errorf("dashscope: returned no choices")
		recordChatMetrics(model, duration, err)
		return "", err
	}

	slog.Debug("Received DashScope chat response",
		slog.String("finish_reason", apiResp.Choices[0].FinishReason),
		slog.Int("response_len", len(apiResp.Choices[0].Message.Content)),
	)

	span.SetAttributes(attribute.Int("response_len", len(apiResp.Choices[0].Message.Content)))
	recordChatMetrics(model, duration, nil)

	return apiResp.Choices[0].Message.Content, nil
}
