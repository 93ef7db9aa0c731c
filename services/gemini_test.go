package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withFastRetries(t *testing.T) {
	t.Helper()
	oldInitial, oldMax := llmInitialDelay, llmMaxDelay
	llmInitialDelay = time.Millisecond
	llmMaxDelay = 5 * time.Millisecond
	t.Cleanup(func() {
		llmInitialDelay = oldInitial
		llmMaxDelay = oldMax
	})
}

func TestGenerateWithRetryRecoversFromThrottling(t *testing.T) {
	withFastRetries(t)

	calls := 0
	text, err := generateWithRetry(context.Background(), "test", func() (string, error) {
		calls++
		if calls < 3 {
			return "", &upstreamError{StatusCode: http.StatusTooManyRequests, Body: "slow down"}
		}
		return "ok", nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 3, calls)
}

func TestGenerateWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	withFastRetries(t)

	calls := 0
	_, err := generateWithRetry(context.Background(), "test", func() (string, error) {
		calls++
		return "", &upstreamError{StatusCode: http.StatusServiceUnavailable, Body: "down"}
	})

	assert.Error(t, err)
	assert.Equal(t, llmMaxAttempts, calls)
}

func TestGenerateWithRetryDoesNotRetryTerminalErrors(t *testing.T) {
	withFastRetries(t)

	calls := 0
	_, err := generateWithRetry(context.Background(), "test", func() (string, error) {
		calls++
		return "", &upstreamError{StatusCode: http.StatusPaymentRequired, Body: "no credits"}
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestGenerateWithRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := generateWithRetry(ctx, "test", func() (string, error) {
		return "", &upstreamError{StatusCode: http.StatusTooManyRequests, Body: "busy"}
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestMapUpstreamError(t *testing.T) {
	rateLimited := mapUpstreamError("test", &upstreamError{StatusCode: 429, Body: "busy"})
	assert.Equal(t, CodeAIRateLimited, rateLimited.Code)
	assert.Equal(t, http.StatusTooManyRequests, rateLimited.HTTPStatus())

	exhausted := mapUpstreamError("test", &upstreamError{StatusCode: 402, Body: "quota"})
	assert.Equal(t, CodeAICreditsExhausted, exhausted.Code)
	assert.Equal(t, http.StatusPaymentRequired, exhausted.HTTPStatus())

	generic := mapUpstreamError("test", &upstreamError{StatusCode: 500, Body: "boom"})
	assert.Equal(t, CodePipelineFailed, generic.Code)
	// the raw upstream body never reaches the client-facing message
	assert.NotContains(t, generic.Message, "boom")
}

func TestCleanAIResponseText(t *testing.T) {
	assert.Equal(t, `{"a":1}`, CleanAIResponseText("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, CleanAIResponseText(`{"a":1}`))
}
