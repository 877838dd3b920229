package llmclient

import "context"

// StubProvider is a deterministic, network-free Provider used by tests and
// local dry runs, mirroring the embed package's deterministic fallback
// client in spirit.
type StubProvider struct {
	Response   string
	PriceTable map[string]PriceEntry
	Err        error
}

func (s *StubProvider) Complete(ctx context.Context, prompt, model string, temperature float64) (Completion, error) {
	if s.Err != nil {
		return Completion{}, s.Err
	}
	text := s.Response
	if text == "" {
		text = "stubbed response for: " + prompt
	}
	promptTokens := estimateTokens(prompt)
	completionTokens := estimateTokens(text)
	table := s.PriceTable
	if table == nil {
		table = DefaultPriceTable
	}
	return Completion{
		Text:             text,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		CostUSD:          Cost(table, model, promptTokens, completionTokens),
	}, nil
}
