// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the client for the external model service used by
// the Glyph pipeline. The service speaks the OpenAI-compatible chat
// completions protocol (DashScope compatible-mode), accessed via raw
// net/http without third-party SDKs.
//
// Thread Safety:
//
//	All interfaces in this package must be implemented as safe for
//	concurrent use.
package llm

import "context"

// Message is a single chat message sent to or received from the model.
type Message struct {
	// Role is "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// GenerationParams holds per-request generation parameters.
//
// Description:
//
//	All fields are optional. Nil pointer fields are omitted from the
//	request so the provider's defaults apply. Model selects which model
//	variant handles the request (the Glyph ranker switches between a
//	text model and a vision-capable model per request).
type GenerationParams struct {
	// Model overrides the client's default model for this request.
	Model string

	// Temperature controls randomness (0.0-1.0). Nil omits the field.
	Temperature *float32

	// MaxTokens limits the response length. Nil omits the field.
	MaxTokens *int
}

// ChatClient is the minimal chat interface consumed by the pipeline stages.
//
// Description:
//
//	Each pipeline stage sends a system instruction plus a user message and
//	expects a single text block back. A stage treats any error from Chat
//	(non-success status, transport failure, empty body) identically to
//	"service unavailable" and falls back to its local heuristic.
//
// Thread Safety: Implementations must be safe for concurrent use.
type ChatClient interface {
	// Chat sends messages and returns the assistant's response text.
	//
	// Inputs:
	//   - ctx: Context for cancellation and timeout.
	//   - messages: Conversation messages (system, user, assistant).
	//   - params: Per-request generation parameters.
	//
	// Outputs:
	//   - string: The assistant's response text.
	//   - error: Non-nil on failure.
	Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error)
}
