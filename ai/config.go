// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"errors"
	"fmt"
	"strings"
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingProvider selects the backend used for embeddings.
	// Must be one that supports embeddings (openai or ollama).
	EmbeddingProvider Provider

	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string

	// ExtractionProvider selects the backend used for NER and graph extraction.
	// It also selects the decoder for that backend's response shape.
	ExtractionProvider Provider

	// ExtractionHost is the base URL for the extraction service API.
	// May be empty for anthropic, which then uses its public endpoint.
	ExtractionHost string

	// ExtractionModel is the model identifier to use for NER and graph extraction.
	// Example: "qwen2.5:3b", "gpt-4o-mini"
	ExtractionModel string

	// APIKey is sent to providers that need one.
	APIKey string

	// Temperature is the sampling temperature for extraction calls.
	// Default: 0
	Temperature float64

	// Streaming requests extraction output as a token stream.
	Streaming bool
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithProvider sets both embedding and extraction providers.
func WithProvider(p Provider) ConfigOption {
	return func(c *Config) {
		c.EmbeddingProvider = p
		c.ExtractionProvider = p
	}
}

// WithEmbeddingProvider sets the embedding provider.
func WithEmbeddingProvider(p Provider) ConfigOption {
	return func(c *Config) {
		c.EmbeddingProvider = p
	}
}

// WithExtractionProvider sets the extraction provider.
func WithExtractionProvider(p Provider) ConfigOption {
	return func(c *Config) {
		c.ExtractionProvider = p
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithExtractionHost sets the extraction service host URL.
func WithExtractionHost(host string) ConfigOption {
	return func(c *Config) {
		c.ExtractionHost = host
	}
}

// WithHost sets both embedding and extraction hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.ExtractionHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithExtractionModel sets the extraction model identifier.
func WithExtractionModel(model string) ConfigOption {
	return func(c *Config) {
		c.ExtractionModel = model
	}
}

// WithAPIKey sets the provider API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithTemperature sets the extraction sampling temperature.
func WithTemperature(t float64) ConfigOption {
	return func(c *Config) {
		c.Temperature = t
	}
}

// WithStreaming enables streamed extraction responses.
func WithStreaming(enabled bool) ConfigOption {
	return func(c *Config) {
		c.Streaming = enabled
	}
}

// DefaultConfig returns a Config with sensible defaults for local OpenAI-compatible services.
// By default, both embedding and extraction use the same host.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		EmbeddingProvider:  ProviderOpenAI,
		EmbeddingHost:      defaultHost,
		EmbeddingModel:     "embeddinggemma",
		ExtractionProvider: ProviderOpenAI,
		ExtractionHost:     defaultHost,
		ExtractionModel:    "qwen2.5:3b",
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithProvider(ProviderOllama),
//	    WithHost("http://localhost:11434"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// OpenAI-compatible hosts get a /v1 suffix; ollama hosts lose one, since the
// native ollama API is served from the root.
func (c *Config) Normalize() {
	c.EmbeddingHost = normalizeHost(c.EmbeddingProvider, c.EmbeddingHost)
	c.ExtractionHost = normalizeHost(c.ExtractionProvider, c.ExtractionHost)
}

func normalizeHost(p Provider, host string) string {
	if host == "" {
		return host
	}
	host = strings.TrimSuffix(host, "/")
	switch p {
	case ProviderOpenAI:
		if !strings.HasSuffix(host, "/v1") {
			host += "/v1"
		}
	case ProviderOllama:
		host = strings.TrimSuffix(host, "/v1")
	}
	return host
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if !knownProvider(c.EmbeddingProvider) {
		return fmt.Errorf("ai config: %w: embedding provider %q", ErrUnknownProvider, c.EmbeddingProvider)
	}
	if !c.EmbeddingProvider.SupportsEmbeddings() {
		return fmt.Errorf("ai config: provider %q does not serve embeddings", c.EmbeddingProvider)
	}
	if !knownProvider(c.ExtractionProvider) {
		return fmt.Errorf("ai config: %w: extraction provider %q", ErrUnknownProvider, c.ExtractionProvider)
	}
	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.ExtractionHost == "" && c.ExtractionProvider != ProviderAnthropic {
		return errors.New("ai config: ExtractionHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.ExtractionModel == "" {
		return errors.New("ai config: ExtractionModel is required")
	}
	if c.ExtractionProvider == ProviderAnthropic && c.APIKey == "" {
		return errors.New("ai config: APIKey is required for anthropic")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("ai config: Temperature must be between 0 and 2")
	}
	return nil
}

func knownProvider(p Provider) bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}
