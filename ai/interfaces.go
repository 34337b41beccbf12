package ai

import "context"

// Embedder generates vector embeddings from text.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns a typed failure (ErrTimeout, ErrRateLimited, ErrProvider) on error.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// EntityRecognizer annotates text with named entities.
// Implementations must be thread-safe for concurrent use.
type EntityRecognizer interface {
	// RecognizeEntities returns the entities mentioned in text.
	// Returns an empty slice if none are found.
	RecognizeEntities(ctx context.Context, text string) ([]RecognizedEntity, error)
}

// GraphExtractor extracts a knowledge graph fragment from text.
// Implementations must be thread-safe for concurrent use.
type GraphExtractor interface {
	// ExtractGraph returns the nodes and edges found in text, already decoded
	// into the canonical shape. The model is asked to answer in schema and to
	// use only its node and edge types, but types and labels are raw model
	// output. Returns ErrMalformedResponse if the output cannot be decoded.
	ExtractGraph(ctx context.Context, text string, schema GraphSchema) (*Extraction, error)
}

// RecognizedEntity is a named entity found in text.
type RecognizedEntity struct {
	Text  string `json:"text"`
	Type  string `json:"type"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Extraction is the canonical graph extraction payload.
type Extraction struct {
	Nodes []ExtractedNode `json:"nodes"`
	Edges []ExtractedEdge `json:"edges"`
}

// ExtractedNode is an entity as returned by the model.
type ExtractedNode struct {
	Type       string         `json:"type"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties,omitempty"`
}

// ExtractedEdge is a relationship between two extracted nodes, referenced by label.
type ExtractedEdge struct {
	SourceNodeLabel string         `json:"sourceNodeLabel"`
	TargetNodeLabel string         `json:"targetNodeLabel"`
	Type            string         `json:"type"`
	Weight          *float64       `json:"weight,omitempty"`
	Properties      map[string]any `json:"properties,omitempty"`
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// EntityRecognizer returns the named-entity recognition service.
	EntityRecognizer() EntityRecognizer

	// GraphExtractor returns the graph extraction service.
	GraphExtractor() GraphExtractor

	// Close releases resources held by the provider and its services.
	Close() error
}
