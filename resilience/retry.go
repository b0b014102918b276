package resilience

import (
	"time"
)

type RetryConfig struct {
	MaxAttempts  uint
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// UseProviderBackoff prefers the retry-after hint from the provider over
	// the computed exponential delay when one is present.
	UseProviderBackoff bool
}
