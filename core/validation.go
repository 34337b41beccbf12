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


package core

import (
	"fmt"
	"strings"
)

// ValidateDocument validates a Document before it enters the pipeline.
//
// Validation rules:
//   - DatasetId must not be empty
//   - Content must contain non-whitespace text
//   - ContentType must be supported (empty means plain text)
//
// NOT validated (owned by the pipeline):
//   - Status and Metadata
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.DatasetId == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyDataset)
	}

	if strings.TrimSpace(doc.Content) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyContent)
	}

	if err := ValidateContentType(doc.ContentType); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	return nil
}

// ValidateContentType validates that a ContentType is supported.
func ValidateContentType(ct ContentType) error {
	switch ct {
	case "", ContentTypePlain, ContentTypeMarkdown:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidContentType, ct)
}

// ValidateSegment validates a Segment produced by chunking.
func ValidateSegment(seg *Segment) error {
	if seg == nil {
		return fmt.Errorf("%w: segment is nil", ErrInvalidSegment)
	}

	if seg.DocumentId == "" {
		return fmt.Errorf("%w: document id is empty", ErrInvalidSegment)
	}

	if seg.Position < 0 {
		return fmt.Errorf("%w: negative position %d", ErrInvalidSegment, seg.Position)
	}

	if seg.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSegment, ErrEmptyContent)
	}

	return nil
}

// ValidateNode validates a GraphNode before upsert.
func ValidateNode(node *GraphNode) error {
	if node == nil {
		return fmt.Errorf("%w: node is nil", ErrInvalidNode)
	}

	if node.DatasetId == "" {
		return fmt.Errorf("%w: %w", ErrInvalidNode, ErrEmptyDataset)
	}

	if CanonicalLabel(node.Label) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidNode, ErrEmptyLabel)
	}

	if node.Type == "" {
		return fmt.Errorf("%w: type is empty", ErrInvalidNode)
	}

	return nil
}

// ValidateEdge validates a GraphEdge before upsert.
func ValidateEdge(edge *GraphEdge) error {
	if edge == nil {
		return fmt.Errorf("%w: edge is nil", ErrInvalidEdge)
	}

	if edge.DatasetId == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEdge, ErrEmptyDataset)
	}

	if edge.SourceNodeId == 0 || edge.TargetNodeId == 0 {
		return fmt.Errorf("%w: unresolved endpoint", ErrInvalidEdge)
	}

	if edge.Type == "" {
		return fmt.Errorf("%w: type is empty", ErrInvalidEdge)
	}

	if edge.Weight != nil && (*edge.Weight < 0 || *edge.Weight > 1) {
		return fmt.Errorf("%w: %w", ErrInvalidEdge, ErrInvalidWeight)
	}

	return nil
}
