package services

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable machine-readable codes surfaced to clients. Raw upstream bodies are
// logged internally and never leak through these.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeForbidden          = "FORBIDDEN"
	CodeRateLimited        = "RATE_LIMITED"
	CodeAIRateLimited      = "AI_RATE_LIMITED"
	CodeAICreditsExhausted = "AI_CREDITS_EXHAUSTED"
	CodeInsufficientItems  = "INSUFFICIENT_WARDROBE"
	CodeAIParseError       = "AI_PARSE_ERROR"
	CodePinnedItemsMissing = "SELECTED_ITEMS_NOT_INCLUDED"
	CodeOutfitSaveFailed   = "OUTFIT_SAVE_FAILED"
	CodePipelineFailed     = "PIPELINE_FAILED"
)

type PipelineError struct {
	Code    string
	Message string
	Details string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func (e *PipelineError) HTTPStatus() int {
	switch e.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeRateLimited, CodeAIRateLimited:
		return http.StatusTooManyRequests
	case CodeAICreditsExhausted:
		return http.StatusPaymentRequired
	case CodeInsufficientItems, CodePinnedItemsMissing:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func NewPipelineError(code, message string, err error) *PipelineError {
	return &PipelineError{Code: code, Message: message, Err: err}
}

// AsPipelineError unwraps err to a PipelineError, falling back to a generic
// PIPELINE_FAILED wrapper so the handler always has a code to map.
func AsPipelineError(err error) *PipelineError {
	var perr *PipelineError
	if errors.As(err, &perr) {
		return perr
	}
	return &PipelineError{Code: CodePipelineFailed, Message: "Outfit generation failed", Err: err}
}

// upstreamError carries the HTTP status reported by the AI gateway so the
// retry loop can decide whether another attempt makes sense.
type upstreamError struct {
	StatusCode int
	Body       string
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("upstream AI call failed with status %d", e.StatusCode)
}

func (e *upstreamError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
