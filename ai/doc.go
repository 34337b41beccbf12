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


// Package ai provides abstractions for the AI services used by the ingestion
// pipeline.
//
// Three services are defined:
//
//   - Embedder: Generates vector embeddings from text
//   - EntityRecognizer: Annotates text with named entities
//   - GraphExtractor: Extracts nodes and edges from text
//
// AIProvider aggregates them for convenient initialization.
//
// # Typed Failures
//
// Implementations report failures through the errors in this package.
// ErrTimeout, ErrRateLimited and ErrProvider wrap core.ErrTransientExternal and
// are retried by the pipeline. ErrMalformedResponse wraps
// core.ErrMalformedResponse and is not. ClassifyError maps raw client errors
// onto these.
//
// # Response Shapes
//
// Providers disagree on what a JSON answer looks like. DecodeExtraction and
// DecodeEntities look up the provider in a shape table that knows how to
// isolate the JSON document in the raw output and map it onto the canonical
// Extraction, so callers never branch on provider.
//
// # Implementation Packages
//
//   - ai/langchain: openai, ollama and anthropic clients built on langchaingo
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithProvider(ai.ProviderOllama), ai.WithHost("http://localhost:11434"))
//	provider, err := langchain.NewProvider(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "Hello world")
//	ext, err := provider.GraphExtractor().ExtractGraph(ctx, "Jane works for Acme.", ai.DefaultGraphSchema())
package ai
