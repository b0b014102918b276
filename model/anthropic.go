package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/avast/retry-go/v4"

	"github.com/datalyst/datalyst/resilience"
)

type AnthropicProvider struct {
	client         anthropic.Client
	retryConfig    *resilience.RetryConfig
	circuitBreaker *resilience.CircuitBreaker
	metrics        *providerMetrics
}

func NewAnthropicProvider(apiKey string, opts ...ProviderOption) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	providerOptions := DefaultProviderOptions("anthropic")
	for _, opt := range opts {
		opt(providerOptions)
	}

	clientOptions := []option.RequestOption{option.WithAPIKey(apiKey)}
	if providerOptions.URL != "" {
		clientOptions = append(clientOptions, option.WithBaseURL(providerOptions.URL))
	}

	return &AnthropicProvider{
		client:         anthropic.NewClient(clientOptions...),
		retryConfig:    providerOptions.RetryConfig,
		circuitBreaker: providerOptions.CircuitBreaker,
		metrics:        newProviderMetrics(providerOptions.Metrics, "anthropic"),
	}, nil
}

func (p *AnthropicProvider) InvokeModel(ctx context.Context, model, systemPrompt string, messages []*Message, opts ...InvokeModelOption) (*Message, error) {
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	options := DefaultInvokeModelOptions()
	for _, opt := range opts {
		opt(options)
	}

	anthropicMessages, system := p.transformMessages(messages)
	if systemPrompt != "" {
		system = systemPrompt
	}

	request := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   options.MaxTokens,
		Temperature: anthropic.Float(options.Temperature),
		Messages:    anthropicMessages,
	}
	if system != "" {
		request.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(options.Tools) > 0 {
		request.Tools = p.transformTools(options.Tools)
	}

	start := time.Now()
	resp, err := p.invokeWithRetry(ctx, func() (*anthropic.Message, error) {
		if !p.circuitBreaker.Allow() {
			return nil, NewProviderError("anthropic", ProviderErrorKindOverloaded, errors.New("circuit breaker open"))
		}
		resp, err := p.client.Messages.New(ctx, request)
		p.circuitBreaker.RecordResult(err)
		if err != nil {
			return nil, p.parseError(err)
		}
		return resp, nil
	})
	p.metrics.observe(start, err)
	if err != nil {
		return nil, err
	}

	return p.transformResponse(ctx, resp, options)
}

func (p *AnthropicProvider) transformMessages(messages []*Message) ([]anthropic.MessageParam, string) {
	var system string
	params := make([]anthropic.MessageParam, 0, len(messages))

	for _, message := range messages {
		switch message.Source {
		case MessageSourceSystem:
			system += message.Text()
		case MessageSourceUser:
			params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(message.Text())))
		case MessageSourceModel:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(message.Content))
			for _, block := range message.Content {
				switch block := block.(type) {
				case *TextBlock:
					if block.Text != "" {
						blocks = append(blocks, anthropic.NewTextBlock(block.Text))
					}
				case *ToolCallBlock:
					var input any
					if len(block.Args) > 0 {
						_ = json.Unmarshal(block.Args, &input)
					}
					blocks = append(blocks, anthropic.NewToolUseBlock(block.ID, input, block.Tool))
				}
			}
			if len(blocks) > 0 {
				params = append(params, anthropic.NewAssistantMessage(blocks...))
			}
		case MessageSourceTool:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(message.Content))
			for _, block := range message.Content {
				result, ok := block.(*ToolResultBlock)
				if !ok {
					continue
				}
				blocks = append(blocks, anthropic.NewToolResultBlock(result.ID, result.Result, false))
			}
			if len(blocks) > 0 {
				params = append(params, anthropic.NewUserMessage(blocks...))
			}
		}
	}

	return params, system
}

func (p *AnthropicProvider) transformTools(tools []Tool) []anthropic.ToolUnionParam {
	params := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema := t.Schema()
		properties := schema["properties"]
		toolParam := anthropic.ToolParam{
			Name:        t.Name(),
			Description: anthropic.String(t.Description()),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: properties,
			},
		}
		params = append(params, anthropic.ToolUnionParam{OfTool: &toolParam})
	}
	return params
}

func (p *AnthropicProvider) transformResponse(ctx context.Context, resp *anthropic.Message, options *InvokeModelOptions) (*Message, error) {
	content := make([]ContentBlock, 0, len(resp.Content))
	for _, block := range resp.Content {
		switch block := block.AsAny().(type) {
		case anthropic.TextBlock:
			content = append(content, &TextBlock{Text: block.Text})
			if options.StreamCallback != nil {
				options.StreamCallback(ctx, block.Text)
			}
		case anthropic.ToolUseBlock:
			content = append(content, &ToolCallBlock{
				ID:   block.ID,
				Tool: block.Name,
				Args: json.RawMessage(block.Input),
			})
		}
	}

	return NewModelMessage(content, Usage{
		InputTokens:      resp.Usage.InputTokens,
		OutputTokens:     resp.Usage.OutputTokens,
		CacheWriteTokens: resp.Usage.CacheCreationInputTokens,
		CacheReadTokens:  resp.Usage.CacheReadInputTokens,
	}), nil
}

func (p *AnthropicProvider) invokeWithRetry(ctx context.Context, callFn retry.RetryableFuncWithData[*anthropic.Message]) (*anthropic.Message, error) {
	return retry.DoWithData(callFn,
		retry.Context(ctx),
		retry.Attempts(p.retryConfig.MaxAttempts),
		retry.Delay(p.retryConfig.InitialDelay),
		retry.MaxDelay(p.retryConfig.MaxDelay),
		retry.DelayType(retryDelay(p.retryConfig)),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryableProviderError),
		retry.OnRetry(func(n uint, err error) {
			p.metrics.retries.Inc()
		}),
	)
}

func (p *AnthropicProvider) parseError(err error) *ProviderError {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		kind := ProviderErrorKindUnknown
		switch {
		case apiErr.StatusCode == 429:
			kind = ProviderErrorKindRateLimitExceeded
		case apiErr.StatusCode == 529:
			kind = ProviderErrorKindOverloaded
		case apiErr.StatusCode >= 500:
			kind = ProviderErrorKindInternal
		case apiErr.StatusCode >= 400:
			kind = ProviderErrorKindInvalidRequest
		}
		return NewProviderError("anthropic", kind, err)
	}

	if errors.Is(err, context.Canceled) {
		return NewProviderError("anthropic", ProviderErrorKindCanceled, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewProviderError("anthropic", ProviderErrorKindTimeout, err)
	}

	return NewProviderError("anthropic", ProviderErrorKindUnknown, err)
}
