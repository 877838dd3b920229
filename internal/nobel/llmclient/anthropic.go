package llmclient

import (
	"context"
	"net/http"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider wraps the Anthropic Messages API for single-shot
// completion, trimmed from the teacher's internal/llm/anthropic.Client
// (no tools, no streaming, no prompt caching, no extended thinking).
type AnthropicProvider struct {
	sdk        anthropic.Client
	model      string
	maxTokens  int64
	priceTable map[string]PriceEntry
}

// NewAnthropicProvider builds a provider for the given API key/base URL.
// An empty baseURL uses the SDK default.
func NewAnthropicProvider(apiKey, baseURL, model string, maxTokens int64, priceTable map[string]PriceEntry, httpClient *http.Client) *AnthropicProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		option.WithHTTPClient(httpClient),
	}
	if base := strings.TrimSpace(baseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	if priceTable == nil {
		priceTable = DefaultPriceTable
	}
	return &AnthropicProvider{
		sdk:        anthropic.NewClient(opts...),
		model:      strings.TrimSpace(model),
		maxTokens:  maxTokens,
		priceTable: priceTable,
	}
}

func (p *AnthropicProvider) Complete(ctx context.Context, prompt, model string, temperature float64) (Completion, error) {
	return withRetry(ctx, func(ctx context.Context) (Completion, error) {
		m := model
		if strings.TrimSpace(m) == "" {
			m = p.model
		}
		temperature = ResolveTemperature(temperature)

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(m),
			MaxTokens: p.maxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
			Temperature: anthropic.Float(temperature),
		}

		resp, err := p.sdk.Messages.New(ctx, params)
		if err != nil {
			return Completion{}, err
		}

		var text strings.Builder
		for _, block := range resp.Content {
			if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
				text.WriteString(tb.Text)
			}
		}

		promptTokens := int(resp.Usage.InputTokens)
		completionTokens := int(resp.Usage.OutputTokens)
		return Completion{
			Text:             text.String(),
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
			CostUSD:          Cost(p.priceTable, m, promptTokens, completionTokens),
		}, nil
	})
}
