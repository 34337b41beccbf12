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


package storage

import (
	"encoding/json"
	"fmt"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/kbflow/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	v, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return core.ID(v), nil
}

// SegmentRef locates a segment's primary record.
type SegmentRef struct {
	DocumentId string
	Position   int
}

// MarshalSegmentRef serializes a SegmentRef to bytes.
func MarshalSegmentRef(ref SegmentRef) []byte {
	buf := make([]byte, ord.String.Size(ref.DocumentId)+varint.Int.Size(ref.Position))
	n := ord.String.Marshal(ref.DocumentId, buf)
	varint.Int.Marshal(ref.Position, buf[n:])
	return buf
}

// UnmarshalSegmentRef deserializes a SegmentRef from bytes.
func UnmarshalSegmentRef(data []byte) (SegmentRef, error) {
	docID, n, err := ord.String.Unmarshal(data)
	if err != nil {
		return SegmentRef{}, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if n >= len(data) {
		return SegmentRef{}, ErrTruncatedData
	}
	pos, _, err := varint.Int.Unmarshal(data[n:])
	if err != nil {
		return SegmentRef{}, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return SegmentRef{DocumentId: docID, Position: pos}, nil
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) ([]byte, error) {
	return marshalJSON(doc)
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	return unmarshalJSON[core.Document](data)
}

// MarshalSegment serializes a Segment to bytes.
func MarshalSegment(seg *core.Segment) ([]byte, error) {
	return marshalJSON(seg)
}

// UnmarshalSegment deserializes a Segment from bytes.
func UnmarshalSegment(data []byte) (*core.Segment, error) {
	return unmarshalJSON[core.Segment](data)
}

// MarshalNode serializes a GraphNode to bytes.
func MarshalNode(node *core.GraphNode) ([]byte, error) {
	return marshalJSON(node)
}

// UnmarshalNode deserializes a GraphNode from bytes.
func UnmarshalNode(data []byte) (*core.GraphNode, error) {
	return unmarshalJSON[core.GraphNode](data)
}

// MarshalEdge serializes a GraphEdge to bytes.
func MarshalEdge(edge *core.GraphEdge) ([]byte, error) {
	return marshalJSON(edge)
}

// UnmarshalEdge deserializes a GraphEdge from bytes.
func UnmarshalEdge(data []byte) (*core.GraphEdge, error) {
	return unmarshalJSON[core.GraphEdge](data)
}

func marshalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

func unmarshalJSON[T any](data []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &v, nil
}
