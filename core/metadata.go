package core

import "time"

// StageProgress is the checkpoint for one stage.
type StageProgress struct {
	Total             int        `json:"total"`
	SegmentsProcessed int        `json:"segmentsProcessed"`
	SegmentsFailed    int        `json:"segmentsFailed"`
	FailedSegments    []ID       `json:"failedSegments,omitempty"`
	NodesCreated      int        `json:"nodesCreated,omitempty"`
	EdgesCreated      int        `json:"edgesCreated,omitempty"`
	EdgesDropped      int        `json:"edgesDropped,omitempty"`
	Runs              int        `json:"runs"`
	StartedAt         *time.Time `json:"startedAt,omitempty"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
}

// Outstanding returns the number of units that have neither succeeded nor failed.
func (p *StageProgress) Outstanding() int {
	n := p.Total - p.SegmentsProcessed - p.SegmentsFailed
	if n < 0 {
		return 0
	}
	return n
}

// StageError records the failure that moved a document to error.
type StageError struct {
	Stage      Stage     `json:"stage"`
	SegmentId  ID        `json:"segmentId,omitempty"` // 0 when the failure is not tied to a segment
	RetryCount int       `json:"retryCount"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurredAt"`
}

// ProcessingMetadata is the structured checkpoint stored on a Document.
type ProcessingMetadata struct {
	CurrentStage    Stage         `json:"currentStage,omitempty"`
	Chunking        StageProgress `json:"chunking"`
	Embedding       StageProgress `json:"embedding"`
	NER             StageProgress `json:"ner"`
	GraphExtraction StageProgress `json:"graphExtraction"`
	LastError       *StageError   `json:"lastError,omitempty"`
	CancelRequested bool          `json:"cancelRequested,omitempty"`
	PauseRequested  bool          `json:"pauseRequested,omitempty"`
	StartedAt       *time.Time    `json:"startedAt,omitempty"`
	CompletedAt     *time.Time    `json:"completedAt,omitempty"`
}

// Progress returns the checkpoint for stage, or nil for an unknown stage.
func (m *ProcessingMetadata) Progress(stage Stage) *StageProgress {
	switch stage {
	case StageChunking:
		return &m.Chunking
	case StageEmbedding:
		return &m.Embedding
	case StageNER:
		return &m.NER
	case StageGraphExtraction:
		return &m.GraphExtraction
	}
	return nil
}

// RequestedSignal returns the persisted control request, cancel taking precedence.
func (m *ProcessingMetadata) RequestedSignal() Signal {
	switch {
	case m.CancelRequested:
		return SignalCancel
	case m.PauseRequested:
		return SignalPause
	}
	return SignalNone
}
