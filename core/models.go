package core

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for segments, graph nodes and graph edges.
// It is derived from the entity's natural key so re-processing yields the same ID.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// SegmentID returns the ID of the segment at position within a document.
// Re-chunking identical content therefore reuses the same segment IDs.
func SegmentID(documentID string, position int) ID {
	return IDFromContent("segment\x00" + documentID + "\x00" + strconv.Itoa(position))
}

// ContentType identifies how a document's content is encoded.
type ContentType string

const (
	ContentTypePlain    ContentType = "text/plain"
	ContentTypeMarkdown ContentType = "text/markdown"
)

// Document is one ingested artifact. Its status only changes through the
// pipeline's transition function.
type Document struct {
	Id          string
	DatasetId   string
	Name        string
	ContentType ContentType
	Content     string
	Status      DocumentStatus
	Metadata    ProcessingMetadata
	Error       string // Human-readable message for the last failure, empty when healthy
	InsertedAt  time.Time
	UpdatedAt   time.Time
}

// Segment is a contiguous chunk of a document's content.
type Segment struct {
	Id                    ID
	DocumentId            string
	DatasetId             string
	Position              int // Zero-based, stable ordering within the document
	Content               string
	WordCount             int
	TokenCount            int
	Vector                []float32  // Embedding, nil until the embedding stage persists it
	EmbeddingStatus       UnitStatus
	EmbeddingError        string
	Entities              []Entity   // NER annotations
	NERStatus             UnitStatus
	NERError              string
	GraphExtractionStatus UnitStatus
	GraphExtractionError  string
	InsertedAt            time.Time
	UpdatedAt             time.Time
}

// HasEmbedding reports whether the segment's embedding artifact exists.
func (s *Segment) HasEmbedding() bool {
	return len(s.Vector) > 0
}

// Entity is a lightweight named-entity annotation on a segment.
type Entity struct {
	Text  string
	Type  NodeType
	Start int // Rune offset into the segment content, -1 when unknown
	End   int
}

// GraphNode is a deduplicated entity scoped to a dataset.
type GraphNode struct {
	Id         ID
	DatasetId  string
	DocumentId string // Origin document, informational
	SegmentId  ID     // Origin segment, informational
	Type       NodeType
	Label      string
	Properties map[string]any
	Mentions   int // Number of extractions merged into this node
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// GraphEdge is a deduplicated directed relationship between two nodes.
type GraphEdge struct {
	Id           ID
	DatasetId    string
	SourceNodeId ID
	TargetNodeId ID
	Type         EdgeType
	Weight       *float64 // Optional, within [0, 1]
	Properties   map[string]any
	Mentions     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
