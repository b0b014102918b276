package model

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/datalyst/datalyst/resilience"
)

// Tool describes a capability offered to the model. The concrete tool lives
// in the tool package; providers only need its wire-level description.
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]any
}

type InvokeModelOptions struct {
	Tools          []Tool
	MaxTokens      int64
	Temperature    float64
	StreamCallback func(ctx context.Context, chunk string)
}

func DefaultInvokeModelOptions() *InvokeModelOptions {
	return &InvokeModelOptions{
		MaxTokens:   8192,
		Temperature: 0.2,
	}
}

type InvokeModelOption func(*InvokeModelOptions)

func WithTools(tools ...Tool) InvokeModelOption {
	return func(o *InvokeModelOptions) {
		o.Tools = tools
	}
}

func WithMaxTokens(maxTokens int64) InvokeModelOption {
	return func(o *InvokeModelOptions) {
		o.MaxTokens = maxTokens
	}
}

func WithTemperature(temperature float64) InvokeModelOption {
	return func(o *InvokeModelOptions) {
		o.Temperature = temperature
	}
}

func WithStreamHandler(handler func(ctx context.Context, chunk string)) InvokeModelOption {
	return func(o *InvokeModelOptions) {
		o.StreamCallback = handler
	}
}

type ProviderOptions struct {
	URL            string
	RetryConfig    *resilience.RetryConfig
	CircuitBreaker *resilience.CircuitBreaker
	Metrics        *prometheus.Registry
}

type ProviderOption func(*ProviderOptions)

func WithURL(url string) ProviderOption {
	return func(options *ProviderOptions) {
		options.URL = url
	}
}

func WithRetryConfig(retryConfig *resilience.RetryConfig) ProviderOption {
	return func(options *ProviderOptions) {
		options.RetryConfig = retryConfig
	}
}

func WithCircuitBreaker(circuitBreaker *resilience.CircuitBreaker) ProviderOption {
	return func(options *ProviderOptions) {
		options.CircuitBreaker = circuitBreaker
	}
}

func WithMetrics(metrics *prometheus.Registry) ProviderOption {
	return func(o *ProviderOptions) {
		o.Metrics = metrics
	}
}

func DefaultProviderOptions(name string) *ProviderOptions {
	return &ProviderOptions{
		RetryConfig: &resilience.RetryConfig{
			MaxAttempts:        5,
			InitialDelay:       1 * time.Second,
			MaxDelay:           10 * time.Second,
			UseProviderBackoff: true,
		},
		CircuitBreaker: resilience.NewCircuitBreaker(name, 5, 10*time.Second),
		Metrics:        prometheus.NewRegistry(),
	}
}

// ModelProvider is the decision-making model behind the orchestrator. Given
// the full message history it returns exactly one new assistant message,
// carrying either free text or tool-call blocks.
type ModelProvider interface {
	InvokeModel(ctx context.Context, model, systemPrompt string, messages []*Message, opts ...InvokeModelOption) (*Message, error)
}

type MessageSource string

const (
	MessageSourceSystem MessageSource = "system"
	MessageSourceUser   MessageSource = "user"
	MessageSourceModel  MessageSource = "model"
	MessageSourceTool   MessageSource = "tool"
)

// Message is the tagged message variant every component pattern-matches on.
// Provider-specific shapes are converted to this form once, at the provider
// boundary.
type Message struct {
	Source  MessageSource  `json:"source"`
	Content []ContentBlock `json:"content"`

	// FunctionCall carries the legacy single function-call envelope that
	// some gateways attach to a message instead of structured tool calls.
	FunctionCall *FunctionCall `json:"function_call,omitempty"`

	Usage Usage `json:"usage"`
}

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

func NewSystemMessage(text string) *Message {
	return &Message{
		Source:  MessageSourceSystem,
		Content: []ContentBlock{&TextBlock{Text: text}},
	}
}

func NewUserMessage(text string) *Message {
	return &Message{
		Source:  MessageSourceUser,
		Content: []ContentBlock{&TextBlock{Text: text}},
	}
}

func NewModelMessage(content []ContentBlock, usage Usage) *Message {
	return &Message{
		Source:  MessageSourceModel,
		Content: content,
		Usage:   usage,
	}
}

// NewToolResponseMessage renders one tool result back into the conversation,
// tagged with the correlation id of the originating tool call.
func NewToolResponseMessage(callID, tool, rendered string) *Message {
	return &Message{
		Source: MessageSourceTool,
		Content: []ContentBlock{&ToolResultBlock{
			ID:     callID,
			Tool:   tool,
			Result: rendered,
		}},
	}
}

// Text concatenates the text blocks of the message.
func (m *Message) Text() string {
	var text string
	for _, block := range m.Content {
		if tb, ok := block.(*TextBlock); ok {
			text += tb.Text
		}
	}
	return text
}

// ToolCalls returns the tool-call blocks of the message in emission order.
func (m *Message) ToolCalls() []*ToolCallBlock {
	var calls []*ToolCallBlock
	for _, block := range m.Content {
		if tc, ok := block.(*ToolCallBlock); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

type ContentBlockType string

const (
	ContentBlockTypeText       ContentBlockType = "text"
	ContentBlockTypeToolCall   ContentBlockType = "tool_call"
	ContentBlockTypeToolResult ContentBlockType = "tool_result"
)

type ContentBlock interface {
	Type() ContentBlockType
}

type TextBlock struct {
	Text string `json:"text"`
}

func (t *TextBlock) Type() ContentBlockType {
	return ContentBlockTypeText
}

type ToolCallBlock struct {
	ID   string          `json:"id"`
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args"`
}

func (t *ToolCallBlock) Type() ContentBlockType {
	return ContentBlockTypeToolCall
}

type ToolResultBlock struct {
	ID     string `json:"id"`
	Tool   string `json:"tool"`
	Result string `json:"result"`
}

func (t *ToolResultBlock) Type() ContentBlockType {
	return ContentBlockTypeToolResult
}

type Usage struct {
	InputTokens      int64 `json:"input_tokens"`
	OutputTokens     int64 `json:"output_tokens"`
	CacheWriteTokens int64 `json:"cache_write_tokens"`
	CacheReadTokens  int64 `json:"cache_read_tokens"`
}

func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheWriteTokens += other.CacheWriteTokens
	u.CacheReadTokens += other.CacheReadTokens
}

type ProviderError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
	Kind       ProviderErrorKind
}

func NewProviderError(provider string, kind ProviderErrorKind, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Kind:     kind,
		Err:      err,
	}
}

func (pe *ProviderError) Message() string {
	switch pe.Kind {
	case ProviderErrorKindInvalidRequest:
		return "Invalid request format or content"
	case ProviderErrorKindRateLimitExceeded:
		if pe.RetryAfter > 0 {
			return fmt.Sprintf("Rate limit exceeded, retry after %s", pe.RetryAfter)
		}
		return "Rate limit exceeded"
	case ProviderErrorKindOverloaded:
		return "API temporarily overloaded"
	case ProviderErrorKindInternal:
		return "Internal server error"
	case ProviderErrorKindTimeout:
		return "Request timeout"
	case ProviderErrorKindCanceled:
		return "Request canceled"
	default:
		return "Unknown error"
	}
}

func (pe *ProviderError) Retryable() bool {
	switch pe.Kind {
	case ProviderErrorKindRateLimitExceeded,
		ProviderErrorKindOverloaded,
		ProviderErrorKindInternal,
		ProviderErrorKindTimeout:
		return true
	default:
		return false
	}
}

func (pe *ProviderError) Error() string {
	if pe.Err != nil {
		return fmt.Sprintf("%s: %s: %s", pe.Provider, pe.Message(), pe.Err.Error())
	}
	return fmt.Sprintf("%s: %s", pe.Provider, pe.Message())
}

func (pe *ProviderError) Unwrap() error {
	return pe.Err
}

type ProviderErrorKind string

const (
	ProviderErrorKindInvalidRequest    ProviderErrorKind = "invalid_request"
	ProviderErrorKindRateLimitExceeded ProviderErrorKind = "rate_limit_exceeded"
	ProviderErrorKindOverloaded        ProviderErrorKind = "overloaded"
	ProviderErrorKindInternal          ProviderErrorKind = "internal"
	ProviderErrorKindTimeout           ProviderErrorKind = "timeout"
	ProviderErrorKindCanceled          ProviderErrorKind = "canceled"
	ProviderErrorKindUnknown           ProviderErrorKind = "unknown"
)
