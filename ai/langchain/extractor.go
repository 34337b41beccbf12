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
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/poiesic/kbflow/ai"
	"github.com/tmc/langchaingo/llms"
)

// completer sends a system prompt plus text to a chat model and returns the
// raw answer.
type completer struct {
	client      llms.Model
	provider    ai.Provider
	temperature float64
	streaming   bool
	logger      *slog.Logger
}

func (c *completer) complete(ctx context.Context, system, text string) (string, error) {
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(system)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(text)},
		},
	}

	opts := []llms.CallOption{llms.WithTemperature(c.temperature)}
	if c.provider.SupportsJSONMode() {
		opts = append(opts, llms.WithJSONMode())
	}

	var (
		mu       sync.Mutex
		streamed strings.Builder
	)
	if c.streaming {
		opts = append(opts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			mu.Lock()
			defer mu.Unlock()
			streamed.Write(chunk)
			return nil
		}))
	}

	response, err := c.client.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", ai.ClassifyError(err)
	}

	mu.Lock()
	fallback := streamed.String()
	mu.Unlock()

	if len(response.Choices) < 1 || response.Choices[0].Content == "" {
		if fallback != "" {
			return fallback, nil
		}
		return "", fmt.Errorf("%w: no choices returned from model", ai.ErrMalformedResponse)
	}
	return response.Choices[0].Content, nil
}

// GraphExtractor implements ai.GraphExtractor on a langchaingo chat model.
type GraphExtractor struct {
	completer
}

func newGraphExtractor(client llms.Model, config *ai.Config) *GraphExtractor {
	return &GraphExtractor{
		completer: completer{
			client:      client,
			provider:    config.ExtractionProvider,
			temperature: config.Temperature,
			streaming:   config.Streaming,
			logger:      slog.Default().With("component", "langchain-graph-extractor"),
		},
	}
}

// NewGraphExtractor creates a graph extractor using the provided configuration.
//
// Returns ai.GraphExtractor interface to enforce abstraction.
func NewGraphExtractor(config *ai.Config) (ai.GraphExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	client, err := newChatModel(config)
	if err != nil {
		return nil, err
	}
	return newGraphExtractor(client, config), nil
}

// ExtractGraph extracts nodes and edges from text. The system prompt carries
// schema; the answer is decoded with the response shape of the configured
// provider.
func (e *GraphExtractor) ExtractGraph(ctx context.Context, text string, schema ai.GraphSchema) (*ai.Extraction, error) {
	raw, err := e.complete(ctx, buildGraphPrompt(schema), text)
	if err != nil {
		return nil, err
	}

	extraction, err := ai.DecodeExtraction(e.provider, raw)
	if err != nil {
		e.logger.Warn("error parsing extraction response", "response", raw, "err", err)
		return nil, err
	}

	e.logger.Debug("extracted graph", "nodes", len(extraction.Nodes), "edges", len(extraction.Edges))
	return extraction, nil
}

// EntityRecognizer implements ai.EntityRecognizer on a langchaingo chat model.
type EntityRecognizer struct {
	completer
	prompt string
}

func newEntityRecognizer(client llms.Model, config *ai.Config) *EntityRecognizer {
	return &EntityRecognizer{
		completer: completer{
			client:      client,
			provider:    config.ExtractionProvider,
			temperature: config.Temperature,
			streaming:   config.Streaming,
			logger:      slog.Default().With("component", "langchain-entity-recognizer"),
		},
		prompt: buildEntityPrompt(),
	}
}

// NewEntityRecognizer creates an entity recognizer using the provided configuration.
//
// Returns ai.EntityRecognizer interface to enforce abstraction.
func NewEntityRecognizer(config *ai.Config) (ai.EntityRecognizer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	client, err := newChatModel(config)
	if err != nil {
		return nil, err
	}
	return newEntityRecognizer(client, config), nil
}

// RecognizeEntities returns the named entities in text. Offsets missing from
// the model answer are filled from the first occurrence of the entity text.
func (r *EntityRecognizer) RecognizeEntities(ctx context.Context, text string) ([]ai.RecognizedEntity, error) {
	raw, err := r.complete(ctx, r.prompt, text)
	if err != nil {
		return nil, err
	}

	entities, err := ai.DecodeEntities(r.provider, raw)
	if err != nil {
		r.logger.Warn("error parsing entity response", "response", raw, "err", err)
		return nil, err
	}

	for i, e := range entities {
		if e.Start >= 0 && e.End > e.Start && e.End <= len(text) && text[e.Start:e.End] == e.Text {
			continue
		}
		if idx := strings.Index(text, e.Text); idx >= 0 {
			entities[i].Start = idx
			entities[i].End = idx + len(e.Text)
		} else {
			entities[i].Start, entities[i].End = -1, -1
		}
	}
	return entities, nil
}
