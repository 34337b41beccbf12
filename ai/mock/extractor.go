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


package mock

import (
	"context"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/poiesic/kbflow/ai"
)

// MockGraphExtractor is a test double for ai.GraphExtractor.
// It is safe for concurrent use; set ExtractGraphFunc before sharing it.
type MockGraphExtractor struct {
	// ExtractGraphFunc is called by ExtractGraph if set.
	// If nil, capitalized words become topic nodes chained by related_to edges.
	ExtractGraphFunc func(ctx context.Context, text string, schema ai.GraphSchema) (*ai.Extraction, error)

	callCount atomic.Int64
}

// NewMockGraphExtractor creates a mock graph extractor with default behavior.
func NewMockGraphExtractor() *MockGraphExtractor {
	return &MockGraphExtractor{}
}

// ExtractGraph returns the injected extraction or the default one.
func (m *MockGraphExtractor) ExtractGraph(ctx context.Context, text string, schema ai.GraphSchema) (*ai.Extraction, error) {
	m.callCount.Add(1)

	if m.ExtractGraphFunc != nil {
		return m.ExtractGraphFunc(ctx, text, schema)
	}

	ext := &ai.Extraction{}
	words := capitalizedWords(text)
	for i, w := range words {
		ext.Nodes = append(ext.Nodes, ai.ExtractedNode{Type: "topic", Label: w})
		if i > 0 {
			ext.Edges = append(ext.Edges, ai.ExtractedEdge{
				SourceNodeLabel: words[i-1],
				TargetNodeLabel: w,
				Type:            "related_to",
			})
		}
	}
	return ext, nil
}

// CallCount returns the number of times ExtractGraph was called.
func (m *MockGraphExtractor) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and injected behavior.
func (m *MockGraphExtractor) Reset() {
	m.callCount.Store(0)
	m.ExtractGraphFunc = nil
}

// MockEntityRecognizer is a test double for ai.EntityRecognizer.
type MockEntityRecognizer struct {
	// RecognizeEntitiesFunc is called by RecognizeEntities if set.
	// If nil, every distinct capitalized word is returned as a concept entity.
	RecognizeEntitiesFunc func(ctx context.Context, text string) ([]ai.RecognizedEntity, error)

	callCount atomic.Int64
}

// NewMockEntityRecognizer creates a mock entity recognizer with default behavior.
func NewMockEntityRecognizer() *MockEntityRecognizer {
	return &MockEntityRecognizer{}
}

// RecognizeEntities returns the injected entities or the default ones.
func (m *MockEntityRecognizer) RecognizeEntities(ctx context.Context, text string) ([]ai.RecognizedEntity, error) {
	m.callCount.Add(1)

	if m.RecognizeEntitiesFunc != nil {
		return m.RecognizeEntitiesFunc(ctx, text)
	}

	var out []ai.RecognizedEntity
	for _, w := range capitalizedWords(text) {
		start := strings.Index(text, w)
		out = append(out, ai.RecognizedEntity{Text: w, Type: "concept", Start: start, End: start + len(w)})
	}
	return out, nil
}

// CallCount returns the number of times RecognizeEntities was called.
func (m *MockEntityRecognizer) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and injected behavior.
func (m *MockEntityRecognizer) Reset() {
	m.callCount.Store(0)
	m.RecognizeEntitiesFunc = nil
}

// capitalizedWords returns the distinct words of text that start with an
// upper-case letter, in order of first appearance.
func capitalizedWords(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		r := []rune(f)
		if !unicode.IsUpper(r[0]) || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
