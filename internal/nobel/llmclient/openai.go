package llmclient

import (
	"context"
	"net/http"
	"strings"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"
)

// OpenAIProvider wraps the Chat Completions API for single-shot
// completion, trimmed from the teacher's internal/llm/openai.Client (no
// tools, no streaming, no image attachments, no Responses API path).
type OpenAIProvider struct {
	sdk        sdk.Client
	model      string
	priceTable map[string]PriceEntry
}

// NewOpenAIProvider builds a provider for the given API key/base URL. An
// empty baseURL targets the default OpenAI endpoint; a non-empty one
// targets an OpenAI-compatible self-hosted server.
func NewOpenAIProvider(apiKey, baseURL, model string, priceTable map[string]PriceEntry, httpClient *http.Client) *OpenAIProvider {
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
	if priceTable == nil {
		priceTable = DefaultPriceTable
	}
	return &OpenAIProvider{
		sdk:        sdk.NewClient(opts...),
		model:      strings.TrimSpace(model),
		priceTable: priceTable,
	}
}

func (p *OpenAIProvider) Complete(ctx context.Context, prompt, model string, temperature float64) (Completion, error) {
	return withRetry(ctx, func(ctx context.Context) (Completion, error) {
		m := model
		if strings.TrimSpace(m) == "" {
			m = p.model
		}
		temperature = ResolveTemperature(temperature)

		resp, err := p.sdk.Chat.Completions.New(ctx, sdk.ChatCompletionNewParams{
			Model: m,
			Messages: []sdk.ChatCompletionMessageParamUnion{
				sdk.UserMessage(prompt),
			},
			Temperature: param.NewOpt(temperature),
		})
		if err != nil {
			return Completion{}, err
		}
		if len(resp.Choices) == 0 {
			return Completion{}, nil
		}

		promptTokens := int(resp.Usage.PromptTokens)
		completionTokens := int(resp.Usage.CompletionTokens)
		return Completion{
			Text:             resp.Choices[0].Message.Content,
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
			CostUSD:          Cost(p.priceTable, m, promptTokens, completionTokens),
		}, nil
	})
}
