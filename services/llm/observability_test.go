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
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyChatError(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		assert.Equal(t, "", classifyChatError(nil))
	})

	t.Run("timeout", func(t *testing.T) {
		assert.Equal(t, "timeout", classifyChatError(errors.New("context deadline exceeded")))
		assert.Equal(t, "timeout", classifyChatError(errors.New("dashscope: HTTP request failed: timeout")))
	})

	t.Run("auth", func(t *testing.T) {
		assert.Equal(t, "auth", classifyChatError(errors.New("dashscope: API returned status 401: denied")))
		assert.Equal(t, "auth", classifyChatError(errors.New("dashscope: API returned status 403: denied")))
	})

	t.Run("rate limit", func(t *testing.T) {
		assert.Equal(t, "rate_limit", classifyChatError(errors.New("dashscope: API returned status 429: slow down")))
		assert.Equal(t, "rate_limit", classifyChatError(errors.New("too many requests")))
	})

	t.Run("server", func(t *testing.T) {
		assert.Equal(t, "server", classifyChatError(errors.New("dashscope: API returned status 503: unavailable")))
	})

	t.Run("parse", func(t *testing.T) {
		assert.Equal(t, "parse", classifyChatError(fmt.Errorf("dashscope: parsing response JSON: unexpected end")))
		assert.Equal(t, "parse", classifyChatError(errors.New("dashscope: returned no choices")))
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Equal(t, "unknown", classifyChatError(errors.New("something else entirely")))
	})
}

func TestRecordChatMetrics_DoesNotPanic(t *testing.T) {
	// promauto metrics are process-global; this just exercises both paths.
	assert.NotPanics(t, func() {
		recordChatMetrics("qwen-turbo-latest", 120*time.Millisecond, nil)
		recordChatMetrics("qwen-turbo-latest", 120*time.Millisecond, errors.New("dashscope: API returned status 429"))
	})
}
