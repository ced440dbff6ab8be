package providers

// CompatibleConfig configures a generic OpenAI-compatible proxy adapter
// (spec §4.2/§6): same wire shape as OpenAI, different base URL and model
// catalog, selected from environment per the priority list in spec §6.
type CompatibleConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Name         string // e.g. "openrouter", "together", "groq"
	Retry        RetryPolicy
}

// NewCompatibleAdapter builds a Provider for any OpenAI-compatible proxy by
// reusing OpenAIAdapter with a configurable BaseURL, per the teacher's own
// go-openai client's BaseURL override.
func NewCompatibleAdapter(cfg CompatibleConfig) (*OpenAIAdapter, error) {
	name := cfg.Name
	if name == "" {
		name = "openai-compatible"
	}
	return newOpenAIFamilyAdapter(OpenAIConfig{
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		DefaultModel: cfg.DefaultModel,
		Retry:        cfg.Retry,
	}, name)
}
