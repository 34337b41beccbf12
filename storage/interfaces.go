package storage

import (
	"context"

	"github.com/poiesic/kbflow/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close releases repository resources. It does not close the shared backend.
	Close() error
}

// DocumentFunc mutates a document inside a read-modify-write cycle.
type DocumentFunc func(doc *core.Document) error

// SegmentFunc mutates a segment inside a read-modify-write cycle.
type SegmentFunc func(seg *core.Segment) error

// DocumentRepository stores documents and their processing metadata.
type DocumentRepository interface {
	Repository
	// AddDocument stores a new document.
	// Sets InsertedAt and UpdatedAt.
	// Returns ErrDuplicateKey if a document with the same ID exists.
	AddDocument(ctx context.Context, doc *core.Document) (*core.Document, error)

	// GetDocument retrieves a document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id string) (*core.Document, error)

	// UpdateDocument atomically applies fn to the stored document and persists the result.
	// If fn returns an error nothing is written and the error is returned unchanged.
	// Returns ErrNotFound if the document doesn't exist.
	UpdateDocument(ctx context.Context, id string, fn DocumentFunc) (*core.Document, error)

	// GetDocumentsByDataset retrieves all documents of a dataset.
	GetDocumentsByDataset(ctx context.Context, datasetID string) ([]*core.Document, error)
}

// SegmentRepository stores ordered segments per document.
type SegmentRepository interface {
	Repository
	// ReplaceSegments removes every existing segment of the document and stores segments.
	// Segment IDs, positions and timestamps must already be set.
	ReplaceSegments(ctx context.Context, documentID string, segments []*core.Segment) error

	// GetSegment retrieves a segment by ID.
	// Returns ErrNotFound if the segment doesn't exist.
	GetSegment(ctx context.Context, id core.ID) (*core.Segment, error)

	// GetSegments retrieves all segments of a document ordered by position.
	GetSegments(ctx context.Context, documentID string) ([]*core.Segment, error)

	// ForEachSegmentBatch calls fn with consecutive batches of a document's segments
	// in position order. Iteration stops at the first error from fn.
	ForEachSegmentBatch(ctx context.Context, documentID string, batchSize int, fn func([]*core.Segment) error) error

	// UpdateSegment atomically applies fn to the stored segment and persists the result.
	// Returns ErrNotFound if the segment doesn't exist.
	UpdateSegment(ctx context.Context, id core.ID, fn SegmentFunc) (*core.Segment, error)

	// CountSegments returns the number of segments stored for a document.
	CountSegments(ctx context.Context, documentID string) (int, error)
}

// GraphRepository stores deduplicated graph nodes and edges per dataset.
type GraphRepository interface {
	Repository
	// UpsertNode inserts the node or merges it into the existing node with the same
	// (DatasetId, Type, LabelKey(Label)). The node ID is derived from that key.
	// Returns the stored node and whether it was created.
	UpsertNode(ctx context.Context, node *core.GraphNode) (*core.GraphNode, bool, error)

	// UpsertEdge inserts the edge or merges it into the existing edge with the same
	// (DatasetId, SourceNodeId, TargetNodeId, Type). The edge ID is derived from that key.
	// Returns the stored edge and whether it was created.
	UpsertEdge(ctx context.Context, edge *core.GraphEdge) (*core.GraphEdge, bool, error)

	// GetNode retrieves a node by ID.
	// Returns ErrNotFound if the node doesn't exist.
	GetNode(ctx context.Context, datasetID string, id core.ID) (*core.GraphNode, error)

	// FindNode finds the node for a type and label within a dataset.
	// Returns ErrNotFound if no matching node exists.
	FindNode(ctx context.Context, datasetID string, nodeType core.NodeType, label string) (*core.GraphNode, error)

	// GetNodes retrieves all nodes of a dataset.
	GetNodes(ctx context.Context, datasetID string) ([]*core.GraphNode, error)

	// GetEdges retrieves all edges of a dataset.
	GetEdges(ctx context.Context, datasetID string) ([]*core.GraphEdge, error)

	// GetEdgesForNode retrieves the edges that start or end at a node.
	GetEdgesForNode(ctx context.Context, datasetID string, nodeID core.ID) ([]*core.GraphEdge, error)
}
