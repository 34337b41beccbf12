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
	"fmt"

	"github.com/poiesic/kbflow/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// noToken is sent to local OpenAI-compatible services that don't require authentication.
const noToken = "none"

// newChatModel constructs the chat client for the extraction provider.
func newChatModel(config *ai.Config) (llms.Model, error) {
	switch config.ExtractionProvider {
	case ai.ProviderOpenAI:
		return openai.New(
			openai.WithBaseURL(config.ExtractionHost),
			openai.WithToken(tokenOrNone(config.APIKey)),
			openai.WithModel(config.ExtractionModel),
		)
	case ai.ProviderOllama:
		return ollama.New(
			ollama.WithServerURL(config.ExtractionHost),
			ollama.WithModel(config.ExtractionModel),
			ollama.WithFormat("json"),
		)
	case ai.ProviderAnthropic:
		opts := []anthropic.Option{
			anthropic.WithToken(config.APIKey),
			anthropic.WithModel(config.ExtractionModel),
		}
		if config.ExtractionHost != "" {
			opts = append(opts, anthropic.WithBaseURL(config.ExtractionHost))
		}
		return anthropic.New(opts...)
	}
	return nil, fmt.Errorf("%w: %q", ai.ErrUnknownProvider, config.ExtractionProvider)
}

// newEmbeddingClient constructs the embedding client for the embedding provider.
func newEmbeddingClient(config *ai.Config) (embeddings.EmbedderClient, error) {
	switch config.EmbeddingProvider {
	case ai.ProviderOpenAI:
		return openai.New(
			openai.WithBaseURL(config.EmbeddingHost),
			openai.WithToken(tokenOrNone(config.APIKey)),
			openai.WithEmbeddingModel(config.EmbeddingModel),
		)
	case ai.ProviderOllama:
		return ollama.New(
			ollama.WithServerURL(config.EmbeddingHost),
			ollama.WithModel(config.EmbeddingModel),
		)
	}
	return nil, fmt.Errorf("%w: %q cannot embed", ai.ErrUnknownProvider, config.EmbeddingProvider)
}

func tokenOrNone(key string) string {
	if key == "" {
		return noToken
	}
	return key
}
