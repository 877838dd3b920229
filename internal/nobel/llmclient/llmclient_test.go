package llmclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"manifold/internal/nobel/nobelerr"
)

func TestResolveTemperatureAppliesDefault(t *testing.T) {
	require.Equal(t, defaultTemperature, ResolveTemperature(0))
	require.Equal(t, 0.9, ResolveTemperature(0.9))
}

func TestCostComputesFromPriceTable(t *testing.T) {
	table := map[string]PriceEntry{"m": {In: 0.001, Out: 0.002}}
	require.InDelta(t, 100*0.001+50*0.002, Cost(table, "m", 100, 50), 1e-9)
}

func TestCostUnknownModelIsZero(t *testing.T) {
	require.Equal(t, 0.0, Cost(DefaultPriceTable, "unknown-model", 100, 50))
}

func TestStubProviderReturnsDeterministicCompletion(t *testing.T) {
	stub := &StubProvider{Response: "the answer"}
	out, err := stub.Complete(context.Background(), "what is the question", "gpt-4o", 0.2)
	require.NoError(t, err)
	require.Equal(t, "the answer", out.Text)
	require.Greater(t, out.PromptTokens, 0)
	require.Greater(t, out.CompletionTokens, 0)
}

func TestStubProviderPropagatesError(t *testing.T) {
	stub := &StubProvider{Err: errors.New("boom")}
	_, err := stub.Complete(context.Background(), "q", "m", 0.2)
	require.Error(t, err)
}

func TestRetryableClassifiesTransientErrors(t *testing.T) {
	require.True(t, retryable(errors.New("429 too many requests")))
	require.True(t, retryable(errors.New("503 service unavailable")))
	require.False(t, retryable(errors.New("400 bad request")))
}

func TestWithRetryWrapsExhaustedFailureAsLLMFailure(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), func(ctx context.Context) (Completion, error) {
		calls++
		return Completion{}, errors.New("503 service unavailable")
	})
	require.ErrorIs(t, err, nobelerr.ErrLLMFailure)
	require.Equal(t, maxAttempts, calls)
}

func TestWithRetryStopsAfterNonRetryableError(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), func(ctx context.Context) (Completion, error) {
		calls++
		return Completion{}, errors.New("400 bad request")
	})
	require.ErrorIs(t, err, nobelerr.ErrLLMFailure)
	require.Equal(t, 1, calls)
}
