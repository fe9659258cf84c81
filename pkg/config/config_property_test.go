package config

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProperty_InvalidValuesFallBackToDefaults verifies that out-of-range
// configuration values never survive validation: whatever garbage arrives,
// the resulting config is operational.
func TestProperty_InvalidValuesFallBackToDefaults(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("non-positive retry attempts fall back to default", prop.ForAll(
		func(attempts int) bool {
			cfg := &Config{Retry: RetryConfig{MaxAttempts: attempts, BaseDelayMs: 1000}}
			validateAndApplyDefaults(cfg)
			return cfg.Retry.MaxAttempts == 3
		},
		gen.IntRange(-1000, 0),
	))

	properties.Property("non-positive backoff base falls back to default", prop.ForAll(
		func(base int) bool {
			cfg := &Config{Retry: RetryConfig{MaxAttempts: 3, BaseDelayMs: base}}
			validateAndApplyDefaults(cfg)
			return cfg.Retry.BaseDelayMs == 1000
		},
		gen.IntRange(-1000, 0),
	))

	properties.Property("out-of-range ports fall back to default", prop.ForAll(
		func(port int) bool {
			cfg := &Config{Server: ServerConfig{Port: port}}
			validateAndApplyDefaults(cfg)
			return cfg.Server.Port == 8080
		},
		gen.OneGenOf(gen.IntRange(-65535, 0), gen.IntRange(65536, 1<<20)),
	))

	properties.Property("valid values are preserved", prop.ForAll(
		func(attempts, base int) bool {
			cfg := &Config{Retry: RetryConfig{MaxAttempts: attempts, BaseDelayMs: base}}
			validateAndApplyDefaults(cfg)
			return cfg.Retry.MaxAttempts == attempts && cfg.Retry.BaseDelayMs == base
		},
		gen.IntRange(1, 10),
		gen.IntRange(1, 10_000),
	))

	properties.TestingRun(t)
}
