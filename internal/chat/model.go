package chat

import (
	"fmt"
	"strings"
)

// Providers.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Gemini Model IDs
//
// | Model Name                  | API Model ID                | Use Case                      |
// |-----------------------------|-----------------------------|-------------------------------|
// | Gemini 3 Flash (Preview)    | gemini-3-flash-preview      | Best for speed + intelligence |
// | Gemini 2.5 Pro              | gemini-2.5-pro              | Stable, high-reasoning tasks  |
// | Gemini 2.5 Flash            | gemini-2.5-flash            | Stable, balanced performance  |
// | Gemini 2.5 Flash-Lite       | gemini-2.5-flash-lite       | High-throughput, lowest cost  |
const (
	// ModelGemini3FlashPreview is best for speed + intelligence.
	ModelGemini3FlashPreview = "gemini-3-flash-preview"

	// ModelGemini25Pro is stable, for high-reasoning tasks.
	ModelGemini25Pro = "gemini-2.5-pro"

	// ModelGemini25Flash is stable, balanced performance.
	ModelGemini25Flash = "gemini-2.5-flash"

	// ModelGemini25FlashLite is for high-throughput, lowest cost.
	ModelGemini25FlashLite = "gemini-2.5-flash-lite"
)

// Anthropic Model IDs.
const (
	// ModelClaudeSonnet45 is the default vision model for the Anthropic provider.
	ModelClaudeSonnet45 = "claude-sonnet-4-5"

	// ModelClaudeHaiku45 is faster and cheaper, with weaker critiques.
	ModelClaudeHaiku45 = "claude-haiku-4-5"
)

// DefaultProvider is used when no provider is configured.
const DefaultProvider = ProviderGemini

// DefaultModelName returns the default model for provider.
func DefaultModelName(provider string) string {
	if provider == ProviderAnthropic {
		return ModelClaudeSonnet45
	}
	return ModelGemini3FlashPreview
}

// ResolveModelName returns model when set, otherwise the provider default.
func ResolveModelName(provider, model string) string {
	if m := strings.TrimSpace(model); m != "" {
		return m
	}
	return DefaultModelName(provider)
}

// ValidateProvider returns an error for unknown provider names.
func ValidateProvider(provider string) error {
	switch provider {
	case ProviderGemini, ProviderAnthropic:
		return nil
	default:
		return fmt.Errorf("unknown provider %q (expected %s or %s)", provider, ProviderGemini, ProviderAnthropic)
	}
}
