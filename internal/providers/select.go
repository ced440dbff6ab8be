package providers

import (
	"fmt"
	"os"
)

// envCandidate names one vendor's credential/base-url environment keys, in
// the priority order spec §6 requires them to be checked.
type envCandidate struct {
	name        string
	apiKeyVar   string
	baseURLVar  string
	modelVar    string
	build       func(apiKey, baseURL, model string) (Provider, error)
}

var envCandidates = []envCandidate{
	{
		name:      "anthropic",
		apiKeyVar: "ANTHROPIC_API_KEY",
		baseURLVar: "ANTHROPIC_BASE_URL",
		modelVar:  "ANTHROPIC_DEFAULT_MODEL",
		build: func(apiKey, baseURL, model string) (Provider, error) {
			return NewAnthropicAdapter(AnthropicConfig{APIKey: apiKey, BaseURL: baseURL, DefaultModel: model, Retry: RetryPolicyFromEnv()})
		},
	},
	{
		name:      "openai",
		apiKeyVar: "OPENAI_API_KEY",
		baseURLVar: "OPENAI_BASE_URL",
		modelVar:  "OPENAI_DEFAULT_MODEL",
		build: func(apiKey, baseURL, model string) (Provider, error) {
			return NewOpenAIAdapter(OpenAIConfig{APIKey: apiKey, BaseURL: baseURL, DefaultModel: model, Retry: RetryPolicyFromEnv()})
		},
	},
	{
		name:      "openai-compatible",
		apiKeyVar: "FORGE_COMPATIBLE_API_KEY",
		baseURLVar: "FORGE_COMPATIBLE_BASE_URL",
		modelVar:  "FORGE_COMPATIBLE_DEFAULT_MODEL",
		build: func(apiKey, baseURL, model string) (Provider, error) {
			return NewCompatibleAdapter(CompatibleConfig{APIKey: apiKey, BaseURL: baseURL, DefaultModel: model, Retry: RetryPolicyFromEnv()})
		},
	},
}

// SelectFromEnvironment picks the first provider (in priority order) whose
// credential environment variable is set. The absence of every key is a
// fatal startup error listing all accepted keys, per spec §6.
func SelectFromEnvironment() (Provider, error) {
	var accepted []string
	for _, c := range envCandidates {
		accepted = append(accepted, c.apiKeyVar)
		apiKey, ok := os.LookupEnv(c.apiKeyVar)
		if !ok || apiKey == "" {
			continue
		}
		baseURL := os.Getenv(c.baseURLVar)
		model := os.Getenv(c.modelVar)
		return c.build(apiKey, baseURL, model)
	}
	return nil, fmt.Errorf("providers: no provider credential found; set one of %v", accepted)
}
