package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/datalyst/datalyst/resilience"
)

type OpenAIProvider struct {
	client         openai.Client
	retryConfig    *resilience.RetryConfig
	circuitBreaker *resilience.CircuitBreaker
	metrics        *providerMetrics
}

func NewOpenAIProvider(apiKey string, opts ...ProviderOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	providerOptions := DefaultProviderOptions("openai")
	for _, opt := range opts {
		opt(providerOptions)
	}

	clientOptions := []option.RequestOption{option.WithAPIKey(apiKey)}
	if providerOptions.URL != "" {
		clientOptions = append(clientOptions, option.WithBaseURL(providerOptions.URL))
	}

	return &OpenAIProvider{
		client:         openai.NewClient(clientOptions...),
		retryConfig:    providerOptions.RetryConfig,
		circuitBreaker: providerOptions.CircuitBreaker,
		metrics:        newProviderMetrics(providerOptions.Metrics, "openai"),
	}, nil
}

func (p *OpenAIProvider) InvokeModel(ctx context.Context, model, systemPrompt string, messages []*Message, opts ...InvokeModelOption) (*Message, error) {
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

	params := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(model),
		Messages:            p.transformMessages(systemPrompt, messages),
		MaxCompletionTokens: openai.Int(options.MaxTokens),
		Temperature:         openai.Float(options.Temperature),
	}
	if len(options.Tools) > 0 {
		params.Tools = p.transformTools(options.Tools)
	}

	start := time.Now()
	resp, err := p.invokeWithRetry(ctx, func() (*openai.ChatCompletion, error) {
		if !p.circuitBreaker.Allow() {
			return nil, NewProviderError("openai", ProviderErrorKindOverloaded, errors.New("circuit breaker open"))
		}
		resp, err := p.client.Chat.Completions.New(ctx, params)
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

func (p *OpenAIProvider) transformMessages(systemPrompt string, messages []*Message) []openai.ChatCompletionMessageParamUnion {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if systemPrompt != "" {
		params = append(params, openai.SystemMessage(systemPrompt))
	}

	for _, message := range messages {
		switch message.Source {
		case MessageSourceSystem:
			if systemPrompt == "" {
				params = append(params, openai.SystemMessage(message.Text()))
			}
		case MessageSourceUser:
			params = append(params, openai.UserMessage(message.Text()))
		case MessageSourceModel:
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if text := message.Text(); text != "" {
				assistant.Content.OfString = openai.String(text)
			}
			for _, call := range message.ToolCalls() {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: call.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Tool,
						Arguments: string(call.Args),
					},
				})
			}
			params = append(params, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case MessageSourceTool:
			for _, block := range message.Content {
				if result, ok := block.(*ToolResultBlock); ok {
					params = append(params, openai.ToolMessage(result.Result, result.ID))
				}
			}
		}
	}

	return params
}

func (p *OpenAIProvider) transformTools(tools []Tool) []openai.ChatCompletionToolParam {
	params := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		params = append(params, openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name(),
				Description: openai.String(t.Description()),
				Parameters:  shared.FunctionParameters(t.Schema()),
			},
		})
	}
	return params
}

func (p *OpenAIProvider) transformResponse(ctx context.Context, resp *openai.ChatCompletion, options *InvokeModelOptions) (*Message, error) {
	if len(resp.Choices) == 0 {
		return nil, NewProviderError("openai", ProviderErrorKindUnknown, errors.New("response contains no choices"))
	}

	choice := resp.Choices[0].Message

	var content []ContentBlock
	if choice.Content != "" {
		content = append(content, &TextBlock{Text: choice.Content})
		if options.StreamCallback != nil {
			options.StreamCallback(ctx, choice.Content)
		}
	}
	for _, call := range choice.ToolCalls {
		content = append(content, &ToolCallBlock{
			ID:   call.ID,
			Tool: call.Function.Name,
			Args: []byte(call.Function.Arguments),
		})
	}

	return NewModelMessage(content, Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}), nil
}

func (p *OpenAIProvider) invokeWithRetry(ctx context.Context, callFn retry.RetryableFuncWithData[*openai.ChatCompletion]) (*openai.ChatCompletion, error) {
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

func (p *OpenAIProvider) parseError(err error) *ProviderError {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		kind := ProviderErrorKindUnknown
		switch {
		case apiErr.StatusCode == 429:
			kind = ProviderErrorKindRateLimitExceeded
		case apiErr.StatusCode >= 500:
			kind = ProviderErrorKindInternal
		case apiErr.StatusCode >= 400:
			kind = ProviderErrorKindInvalidRequest
		}
		return NewProviderError("openai", kind, err)
	}

	if errors.Is(err, context.Canceled) {
		return NewProviderError("openai", ProviderErrorKindCanceled, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewProviderError("openai", ProviderErrorKindTimeout, err)
	}

	return NewProviderError("openai", ProviderErrorKindUnknown, err)
}
