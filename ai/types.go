package ai

// Provider identifies an LLM backend. It selects both the client and the
// decoder for that backend's response shape.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderOllama    Provider = "ollama"
	ProviderAnthropic Provider = "anthropic"
)

// Providers lists every supported provider.
var Providers = []Provider{ProviderOpenAI, ProviderOllama, ProviderAnthropic}

// SupportsEmbeddings reports whether the provider can serve embeddings.
func (p Provider) SupportsEmbeddings() bool {
	return p == ProviderOpenAI || p == ProviderOllama
}

// SupportsJSONMode reports whether the provider can be asked for strict JSON output.
func (p Provider) SupportsJSONMode() bool {
	return p == ProviderOpenAI || p == ProviderOllama
}
