// OpenRouter Provider implementation.
//
// Information Hiding:
// - Uses the OpenAI-compatible API with the OpenRouter base URL
// - Model names are namespaced ("openai/gpt-4o-mini", "anthropic/claude-sonnet-4", ...)

package llm

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterProvider implements the Provider interface for OpenRouter.
type OpenRouterProvider struct {
	openAICompat
}

// NewOpenRouterProvider creates a new OpenRouter provider.
func NewOpenRouterProvider(apiKey, model string, maxTokens uint32, temperature float32) *OpenRouterProvider {
	return &OpenRouterProvider{newOpenAICompat("openrouter", apiKey, openRouterBaseURL, model, maxTokens, temperature)}
}

// Verify OpenRouterProvider implements Provider
var _ Provider = (*OpenRouterProvider)(nil)
