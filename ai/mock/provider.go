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

import "github.com/poiesic/kbflow/ai"

// MockProvider is a test double for ai.AIProvider.
// It aggregates mock embedder, recognizer and extractor instances.
type MockProvider struct {
	embedder   *MockEmbedder
	recognizer *MockEntityRecognizer
	extractor  *MockGraphExtractor
}

// NewMockProvider creates a new mock provider with default mock services.
//
// Returns ai.AIProvider interface for consistency with production constructors.
// Use the GetMock* methods to access concrete types for test assertions.
func NewMockProvider() ai.AIProvider {
	return &MockProvider{
		embedder:   NewMockEmbedder(),
		recognizer: NewMockEntityRecognizer(),
		extractor:  NewMockGraphExtractor(),
	}
}

// NewMockProviderWithServices creates a mock provider with custom mock services.
// Nil services are replaced with defaults.
func NewMockProviderWithServices(embedder *MockEmbedder, recognizer *MockEntityRecognizer, extractor *MockGraphExtractor) *MockProvider {
	if embedder == nil {
		embedder = NewMockEmbedder()
	}
	if recognizer == nil {
		recognizer = NewMockEntityRecognizer()
	}
	if extractor == nil {
		extractor = NewMockGraphExtractor()
	}
	return &MockProvider{
		embedder:   embedder,
		recognizer: recognizer,
		extractor:  extractor,
	}
}

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// EntityRecognizer returns the mock entity recognizer.
func (p *MockProvider) EntityRecognizer() ai.EntityRecognizer {
	return p.recognizer
}

// GraphExtractor returns the mock graph extractor.
func (p *MockProvider) GraphExtractor() ai.GraphExtractor {
	return p.extractor
}

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockEntityRecognizer returns the underlying mock recognizer for test assertions.
func (p *MockProvider) GetMockEntityRecognizer() *MockEntityRecognizer {
	return p.recognizer
}

// GetMockGraphExtractor returns the underlying mock extractor for test assertions.
func (p *MockProvider) GetMockGraphExtractor() *MockGraphExtractor {
	return p.extractor
}
