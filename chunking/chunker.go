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


package chunking

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/kbflow/core"
	"github.com/tmc/langchaingo/textsplitter"
)

// Chunk is one piece of split content.
type Chunk struct {
	Position   int
	Content    string
	WordCount  int
	TokenCount int
}

// Chunker splits content into overlapping chunks of bounded size.
// Sizes are measured in runes. A Chunker is safe for concurrent use.
type Chunker struct {
	size     int
	overlap  int
	splitter textsplitter.TextSplitter
}

// New creates a Chunker. size must be positive and overlap must be in [0, size).
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", core.ErrValidation, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", core.ErrValidation, size, overlap)
	}
	return &Chunker{
		size:    size,
		overlap: overlap,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		),
	}, nil
}

// Size returns the configured chunk size.
func (c *Chunker) Size() int {
	return c.size
}

// Overlap returns the configured chunk overlap.
func (c *Chunker) Overlap() int {
	return c.overlap
}

// Split splits content of the given type into positioned chunks.
// Whitespace-only pieces are dropped; positions are contiguous from zero.
func (c *Chunker) Split(contentType core.ContentType, content string) ([]Chunk, error) {
	if err := core.ValidateContentType(contentType); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, err)
	}

	text := content
	if contentType == core.ContentTypeMarkdown {
		text = FlattenMarkdown(content)
	}
	text = normalizeNewlines(text)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, core.ErrEmptyContent)
	}

	pieces, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("%w: split content: %w", core.ErrValidation, err)
	}

	chunks := make([]Chunk, 0, len(pieces))
	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Position:   len(chunks),
			Content:    piece,
			WordCount:  CountWords(piece),
			TokenCount: EstimateTokens(piece),
		})
	}
	return chunks, nil
}

// CountWords counts whitespace-separated fields.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// EstimateTokens estimates the token count of s as one token per four runes, rounded up.
func EstimateTokens(s string) int {
	return (utf8.RuneCountInString(s) + 3) / 4
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\r", "\n")
}
