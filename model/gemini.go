package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/datalyst/datalyst/resilience"
)

// GeminiProvider talks to the Gemini API. It is the default provider for the
// analyst agent.
type GeminiProvider struct {
	client         *genai.Client
	retryConfig    *resilience.RetryConfig
	circuitBreaker *resilience.CircuitBreaker
	metrics        *providerMetrics
}

func NewGeminiProvider(ctx context.Context, apiKey string, opts ...ProviderOption) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	providerOptions := DefaultProviderOptions("gemini")
	for _, opt := range opts {
		opt(providerOptions)
	}

	config := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if providerOptions.URL != "" {
		config.HTTPOptions.BaseURL = providerOptions.URL
	}

	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiProvider{
		client:         client,
		retryConfig:    providerOptions.RetryConfig,
		circuitBreaker: providerOptions.CircuitBreaker,
		metrics:        newProviderMetrics(providerOptions.Metrics, "gemini"),
	}, nil
}

func (p *GeminiProvider) InvokeModel(ctx context.Context, model, systemPrompt string, messages []*Message, opts ...InvokeModelOption) (*Message, error) {
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

	contents, system := p.transformMessages(messages)
	if systemPrompt != "" {
		system = systemPrompt
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(options.Temperature)),
		MaxOutputTokens: int32(options.MaxTokens),
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}
	if len(options.Tools) > 0 {
		declarations := make([]*genai.FunctionDeclaration, 0, len(options.Tools))
		for _, t := range options.Tools {
			declarations = append(declarations, &genai.FunctionDeclaration{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  transformGeminiSchema(t.Schema()),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}
	}

	start := time.Now()
	resp, err := p.invokeWithRetry(ctx, func() (*genai.GenerateContentResponse, error) {
		if !p.circuitBreaker.Allow() {
			return nil, NewProviderError("gemini", ProviderErrorKindOverloaded, errors.New("circuit breaker open"))
		}
		resp, err := p.client.Models.GenerateContent(ctx, model, contents, config)
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

func (p *GeminiProvider) transformMessages(messages []*Message) ([]*genai.Content, string) {
	var system strings.Builder
	contents := make([]*genai.Content, 0, len(messages))

	for _, message := range messages {
		switch message.Source {
		case MessageSourceSystem:
			system.WriteString(message.Text())
		case MessageSourceUser:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: message.Text()}},
			})
		case MessageSourceModel:
			parts := make([]*genai.Part, 0, len(message.Content))
			for _, block := range message.Content {
				switch block := block.(type) {
				case *TextBlock:
					if block.Text != "" {
						parts = append(parts, &genai.Part{Text: block.Text})
					}
				case *ToolCallBlock:
					var args map[string]any
					if len(block.Args) > 0 {
						_ = json.Unmarshal(block.Args, &args)
					}
					parts = append(parts, &genai.Part{
						FunctionCall: &genai.FunctionCall{
							ID:   block.ID,
							Name: block.Tool,
							Args: args,
						},
					})
				}
			}
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: parts})
			}
		case MessageSourceTool:
			parts := make([]*genai.Part, 0, len(message.Content))
			for _, block := range message.Content {
				result, ok := block.(*ToolResultBlock)
				if !ok {
					continue
				}
				parts = append(parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{
						ID:       result.ID,
						Name:     result.Tool,
						Response: map[string]any{"output": result.Result},
					},
				})
			}
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: parts})
			}
		}
	}

	return contents, system.String()
}

func (p *GeminiProvider) transformResponse(ctx context.Context, resp *genai.GenerateContentResponse, options *InvokeModelOptions) (*Message, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, NewProviderError("gemini", ProviderErrorKindUnknown, errors.New("response contains no candidates"))
	}

	var content []ContentBlock
	for _, part := range resp.Candidates[0].Content.Parts {
		switch {
		case part.Text != "":
			content = append(content, &TextBlock{Text: part.Text})
			if options.StreamCallback != nil {
				options.StreamCallback(ctx, part.Text)
			}
		case part.FunctionCall != nil:
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return nil, fmt.Errorf("failed to encode function call args: %w", err)
			}
			id := part.FunctionCall.ID
			if id == "" {
				id = uuid.NewString()
			}
			content = append(content, &ToolCallBlock{
				ID:   id,
				Tool: part.FunctionCall.Name,
				Args: args,
			})
		}
	}

	var usage Usage
	if resp.UsageMetadata != nil {
		usage = Usage{
			InputTokens:     int64(resp.UsageMetadata.PromptTokenCount),
			OutputTokens:    int64(resp.UsageMetadata.CandidatesTokenCount),
			CacheReadTokens: int64(resp.UsageMetadata.CachedContentTokenCount),
		}
	}

	return NewModelMessage(content, usage), nil
}

func (p *GeminiProvider) invokeWithRetry(ctx context.Context, callFn retry.RetryableFuncWithData[*genai.GenerateContentResponse]) (*genai.GenerateContentResponse, error) {
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

func (p *GeminiProvider) parseError(err error) *ProviderError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		kind := ProviderErrorKindUnknown
		switch {
		case apiErr.Code == 429:
			kind = ProviderErrorKindRateLimitExceeded
		case apiErr.Code == 503:
			kind = ProviderErrorKindOverloaded
		case apiErr.Code >= 500:
			kind = ProviderErrorKindInternal
		case apiErr.Code >= 400:
			kind = ProviderErrorKindInvalidRequest
		}
		return NewProviderError("gemini", kind, err)
	}

	if errors.Is(err, context.Canceled) {
		return NewProviderError("gemini", ProviderErrorKindCanceled, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewProviderError("gemini", ProviderErrorKindTimeout, err)
	}

	return NewProviderError("gemini", ProviderErrorKindUnknown, err)
}

func isRetryableProviderError(err error) bool {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable()
	}
	return true
}

// retryDelay honors the provider's retry-after hint when the retry config
// asks for it, otherwise falls back to exponential backoff.
func retryDelay(config *resilience.RetryConfig) retry.DelayTypeFunc {
	return func(n uint, err error, retryConfig *retry.Config) time.Duration {
		if config.UseProviderBackoff {
			var providerErr *ProviderError
			if errors.As(err, &providerErr) && providerErr.RetryAfter > 0 {
				return providerErr.RetryAfter
			}
		}
		return retry.BackOffDelay(n, err, retryConfig)
	}
}

var geminiTypes = map[string]genai.Type{
	"object":  genai.TypeObject,
	"string":  genai.TypeString,
	"number":  genai.TypeNumber,
	"integer": genai.TypeInteger,
	"boolean": genai.TypeBoolean,
	"array":   genai.TypeArray,
}

// transformGeminiSchema converts a generic JSON schema object into the
// typed schema the Gemini API expects. Only the subset used by tool
// parameter schemas is mapped.
func transformGeminiSchema(schema map[string]any) *genai.Schema {
	out := &genai.Schema{}

	if t, ok := schema["type"].(string); ok {
		out.Type = geminiTypes[t]
	}
	if desc, ok := schema["description"].(string); ok {
		out.Description = desc
	}
	if required, ok := schema["required"].([]string); ok {
		out.Required = required
	} else if raw, ok := schema["required"].([]any); ok {
		for _, entry := range raw {
			if name, ok := entry.(string); ok {
				out.Required = append(out.Required, name)
			}
		}
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, value := range props {
			if sub, ok := value.(map[string]any); ok {
				out.Properties[name] = transformGeminiSchema(sub)
			}
		}
	}

	return out
}
