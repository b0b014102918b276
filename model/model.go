package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Model struct {
	ID            uuid.UUID
	Provider      ProviderKind
	Name          string
	ContextWindow int64
	Pricing       ModelPricing
}

type ProviderKind string

const (
	ProviderKindGemini    ProviderKind = "gemini"
	ProviderKindAnthropic ProviderKind = "anthropic"
	ProviderKindOpenAI    ProviderKind = "openai"
)

// ModelPricing is expressed in USD per million tokens.
type ModelPricing struct {
	Input      float64
	Output     float64
	CacheWrite float64
	CacheRead  float64
}

const DefaultGeminiModel = "gemini-2.5-flash-lite"

func SupportedModels(provider ProviderKind) []Model {
	switch provider {
	case ProviderKindGemini:
		return SupportedGeminiModels()
	case ProviderKindAnthropic:
		return SupportedAnthropicModels()
	case ProviderKindOpenAI:
		return SupportedOpenAIModels()
	}

	return nil
}

func SupportedGeminiModels() []Model {
	return []Model{
		{
			ID:            uuid.MustParse("01970000-0001-7000-8000-000000000001"),
			Name:          "gemini-2.5-flash-lite",
			Provider:      ProviderKindGemini,
			ContextWindow: 1048576,
			Pricing: ModelPricing{
				Input:     0.1,
				Output:    0.4,
				CacheRead: 0.025,
			},
		},
		{
			ID:            uuid.MustParse("01970000-0002-7000-8000-000000000002"),
			Name:          "gemini-2.5-flash",
			Provider:      ProviderKindGemini,
			ContextWindow: 1048576,
			Pricing: ModelPricing{
				Input:     0.3,
				Output:    2.5,
				CacheRead: 0.075,
			},
		},
		{
			ID:            uuid.MustParse("01970000-0003-7000-8000-000000000003"),
			Name:          "gemini-2.5-pro",
			Provider:      ProviderKindGemini,
			ContextWindow: 1048576,
			Pricing: ModelPricing{
				Input:     1.25,
				Output:    10.0,
				CacheRead: 0.31,
			},
		},
	}
}

func SupportedAnthropicModels() []Model {
	return []Model{
		{
			ID:            uuid.MustParse("01970000-0011-7000-8000-000000000011"),
			Name:          "claude-sonnet-4-5",
			Provider:      ProviderKindAnthropic,
			ContextWindow: 200000,
			Pricing: ModelPricing{
				Input:      3.0,
				Output:     15.0,
				CacheWrite: 3.75,
				CacheRead:  0.3,
			},
		},
		{
			ID:            uuid.MustParse("01970000-0012-7000-8000-000000000012"),
			Name:          "claude-haiku-4-5",
			Provider:      ProviderKindAnthropic,
			ContextWindow: 200000,
			Pricing: ModelPricing{
				Input:      1.0,
				Output:     5.0,
				CacheWrite: 1.25,
				CacheRead:  0.1,
			},
		},
	}
}

func SupportedOpenAIModels() []Model {
	return []Model{
		{
			ID:            uuid.MustParse("01970000-0021-7000-8000-000000000021"),
			Name:          "gpt-4o",
			Provider:      ProviderKindOpenAI,
			ContextWindow: 128000,
			Pricing: ModelPricing{
				Input:     2.5,
				Output:    10.0,
				CacheRead: 1.25,
			},
		},
		{
			ID:            uuid.MustParse("01970000-0022-7000-8000-000000000022"),
			Name:          "gpt-4o-mini",
			Provider:      ProviderKindOpenAI,
			ContextWindow: 128000,
			Pricing: ModelPricing{
				Input:     0.15,
				Output:    0.6,
				CacheRead: 0.075,
			},
		},
	}
}

// LookupModel finds a model by name across all providers.
func LookupModel(name string) (Model, bool) {
	for _, provider := range []ProviderKind{ProviderKindGemini, ProviderKindAnthropic, ProviderKindOpenAI} {
		for _, m := range SupportedModels(provider) {
			if m.Name == name {
				return m, true
			}
		}
	}
	return Model{}, false
}

var million = decimal.NewFromInt(1_000_000)

// CalculateCost prices the given usage against the model's token rates.
func CalculateCost(usage Usage, pricing ModelPricing) decimal.Decimal {
	cost := decimal.Zero
	cost = cost.Add(decimal.NewFromInt(usage.InputTokens).Mul(decimal.NewFromFloat(pricing.Input)))
	cost = cost.Add(decimal.NewFromInt(usage.OutputTokens).Mul(decimal.NewFromFloat(pricing.Output)))
	cost = cost.Add(decimal.NewFromInt(usage.CacheWriteTokens).Mul(decimal.NewFromFloat(pricing.CacheWrite)))
	cost = cost.Add(decimal.NewFromInt(usage.CacheReadTokens).Mul(decimal.NewFromFloat(pricing.CacheRead)))
	return cost.Div(million)
}
