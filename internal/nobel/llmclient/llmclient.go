// Package llmclient implements the LLM provider (C9): a single-shot
// completion call with token accounting and a static per-model cost
// estimate. Grounded on the teacher's internal/llm/anthropic and
// internal/llm/openai clients, trimmed to the single request/response
// shape spec.md §4.9 requires (no tools, no streaming, no extended
// thinking, no conversation history).
package llmclient

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"manifold/internal/nobel/nobelerr"
)

// defaultTemperature is spec.md §4.9's default when the caller omits one.
const defaultTemperature = 0.2

// maxAttempts bounds retries on 429/5xx, per spec.md §4.9.
const maxAttempts = 2

// Completion is C9's output shape.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CostUSD          float64
}

// Provider is the outbound LLM contract spec.md §4.9 describes.
type Provider interface {
	Complete(ctx context.Context, prompt, model string, temperature float64) (Completion, error)
}

// PriceEntry is one model's per-token rates, in USD per token (not per
// 1k/1M) so cost = prompt_tokens*In + completion_tokens*Out directly.
type PriceEntry struct {
	In  float64
	Out float64
}

// DefaultPriceTable is used when configuration does not supply one, per
// spec.md §9's "price table is configuration" open question.
var DefaultPriceTable = map[string]PriceEntry{
	"claude-3-7-sonnet-latest": {In: 3.0 / 1_000_000, Out: 15.0 / 1_000_000},
	"claude-3-5-haiku-latest":  {In: 0.8 / 1_000_000, Out: 4.0 / 1_000_000},
	"gpt-4o":                   {In: 2.5 / 1_000_000, Out: 10.0 / 1_000_000},
	"gpt-4o-mini":              {In: 0.15 / 1_000_000, Out: 0.6 / 1_000_000},
}

// Cost computes the static cost estimate for a model, falling back to
// zero-cost for unknown models rather than failing the request.
func Cost(table map[string]PriceEntry, model string, promptTokens, completionTokens int) float64 {
	entry, ok := table[model]
	if !ok {
		return 0
	}
	return float64(promptTokens)*entry.In + float64(completionTokens)*entry.Out
}

// estimateTokens applies the same words*1.3 heuristic the prompt builder
// uses, for backends (or tests) that don't return native usage counts.
func estimateTokens(s string) int {
	words := len(strings.Fields(s))
	return int(float64(words) * 1.3)
}

// retryable reports whether err looks like a transient 429/5xx failure
// worth one retry, per spec.md §4.9.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, code := range []string{"429", "500", "502", "503", "504"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "connection reset")
}

// withRetry runs fn up to maxAttempts times with jittered backoff between
// attempts, used by both concrete providers.
func withRetry(ctx context.Context, fn func(ctx context.Context) (Completion, error)) (Completion, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(200*attempt) * time.Millisecond
			jitter := time.Duration(rand.Intn(100)) * time.Millisecond
			select {
			case <-ctx.Done():
				return Completion{}, ctx.Err()
			case <-time.After(backoff + jitter):
			}
		}
		completion, err := fn(ctx)
		if err == nil {
			return completion, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}
	return Completion{}, fmt.Errorf("%w: %v", nobelerr.ErrLLMFailure, lastErr)
}

// ResolveTemperature applies the spec default when the caller passes zero
// and did not explicitly intend zero (spec.md §4.9 default 0.2; callers
// that want deterministic zero-temperature completions should pass a tiny
// epsilon instead, which this package leaves to the caller's discretion).
func ResolveTemperature(requested float64) float64 {
	if requested == 0 {
		return defaultTemperature
	}
	return requested
}
