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


package langchain

import (
	"log/slog"

	"github.com/poiesic/kbflow/ai"
)

// Provider implements ai.AIProvider on langchaingo clients.
// The embedding and extraction backends may differ.
type Provider struct {
	config     *ai.Config
	embedder   *Embedder
	recognizer *EntityRecognizer
	extractor  *GraphExtractor
	logger     *slog.Logger
}

// NewProvider creates an AI provider for the configured backends.
// The config is validated and normalized before use.
//
// Returns ai.AIProvider interface (not *Provider) to enforce abstraction.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embeddingClient, err := newEmbeddingClient(config)
	if err != nil {
		return nil, err
	}
	embedder, err := newEmbedder(embeddingClient)
	if err != nil {
		return nil, err
	}

	// NER and graph extraction share one chat client.
	chat, err := newChatModel(config)
	if err != nil {
		return nil, err
	}

	return &Provider{
		config:     config,
		embedder:   embedder,
		recognizer: newEntityRecognizer(chat, config),
		extractor:  newGraphExtractor(chat, config),
		logger: slog.Default().With("component", "langchain-provider",
			"embedding", config.EmbeddingProvider, "extraction", config.ExtractionProvider),
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// EntityRecognizer returns the named-entity recognition service.
func (p *Provider) EntityRecognizer() ai.EntityRecognizer {
	return p.recognizer
}

// GraphExtractor returns the graph extraction service.
func (p *Provider) GraphExtractor() ai.GraphExtractor {
	return p.extractor
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying clients don't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing provider")
	return nil
}
