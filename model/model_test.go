package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestCalculateCost(t *testing.T) {
	pricing := ModelPricing{Input: 0.1, Output: 0.4, CacheRead: 0.025}
	usage := Usage{InputTokens: 1_000_000, OutputTokens: 500_000, CacheReadTokens: 2_000_000}

	got := CalculateCost(usage, pricing)
	want := decimal.RequireFromString("0.35")
	if !got.Equal(want) {
		t.Errorf("cost = %s, want %s", got, want)
	}
}

func TestCalculateCostZeroUsage(t *testing.T) {
	got := CalculateCost(Usage{}, ModelPricing{Input: 3.0, Output: 15.0})
	if !got.IsZero() {
		t.Errorf("cost = %s, want 0", got)
	}
}

func TestLookupModel(t *testing.T) {
	m, ok := LookupModel(DefaultGeminiModel)
	if !ok {
		t.Fatalf("model %s not found", DefaultGeminiModel)
	}
	if m.Provider != ProviderKindGemini {
		t.Errorf("provider = %s, want %s", m.Provider, ProviderKindGemini)
	}

	if _, ok := LookupModel("no-such-model"); ok {
		t.Error("expected lookup miss")
	}
}

func TestMessageToolCalls(t *testing.T) {
	msg := NewModelMessage([]ContentBlock{
		&TextBlock{Text: "running two snippets"},
		&ToolCallBlock{ID: "a", Tool: "python_repl", Args: json.RawMessage(`{}`)},
		&ToolCallBlock{ID: "b", Tool: "python_repl", Args: json.RawMessage(`{}`)},
	}, Usage{})

	calls := msg.ToolCalls()
	if len(calls) != 2 {
		t.Fatalf("got %d tool calls, want 2", len(calls))
	}
	if calls[0].ID != "a" || calls[1].ID != "b" {
		t.Errorf("tool calls out of order: %s, %s", calls[0].ID, calls[1].ID)
	}
}

func TestProviderErrorRetryable(t *testing.T) {
	tests := []struct {
		kind ProviderErrorKind
		want bool
	}{
		{ProviderErrorKindRateLimitExceeded, true},
		{ProviderErrorKindOverloaded, true},
		{ProviderErrorKindInternal, true},
		{ProviderErrorKindTimeout, true},
		{ProviderErrorKindInvalidRequest, false},
		{ProviderErrorKindCanceled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := NewProviderError("test", tt.kind, nil)
			if got := err.Retryable(); got != tt.want {
				t.Errorf("Retryable() = %v, want %v", got, tt.want)
			}
		})
	}
}
