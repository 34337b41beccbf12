package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/kbflow/chunking"
	"github.com/poiesic/kbflow/core"
	"github.com/poiesic/kbflow/storage"
)

// ChunkingStage splits a document into segments.
// It always runs in full: existing segments are replaced.
type ChunkingStage struct {
	segments storage.SegmentRepository
}

var _ Stage = (*ChunkingStage)(nil)

// NewChunkingStage creates the chunking stage.
func NewChunkingStage(segments storage.SegmentRepository) *ChunkingStage {
	return &ChunkingStage{segments: segments}
}

func (s *ChunkingStage) Name() core.Stage {
	return core.StageChunking
}

func (s *ChunkingStage) Execute(ctx context.Context, run *Run) error {
	if run.Signal() != core.SignalNone {
		return nil
	}
	doc := run.Document()
	cfg := run.Config()

	chunker, err := chunking.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return err
	}
	chunks, err := chunker.Split(doc.ContentType, doc.Content)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	segments := make([]*core.Segment, len(chunks))
	for i, c := range chunks {
		seg := &core.Segment{
			Id:                    core.SegmentID(doc.Id, c.Position),
			DocumentId:            doc.Id,
			DatasetId:             doc.DatasetId,
			Position:              c.Position,
			Content:               c.Content,
			WordCount:             c.WordCount,
			TokenCount:            c.TokenCount,
			EmbeddingStatus:       core.UnitWaiting,
			NERStatus:             core.UnitWaiting,
			GraphExtractionStatus: core.UnitWaiting,
			InsertedAt:            now,
			UpdatedAt:             now,
		}
		if err := core.ValidateSegment(seg); err != nil {
			return fmt.Errorf("%w: %w", core.ErrValidation, err)
		}
		segments[i] = seg
	}

	if err := s.segments.ReplaceSegments(ctx, doc.Id, segments); err != nil {
		return fmt.Errorf("store segments: %w", err)
	}
	run.Logger().Debug("document chunked", "segments", len(segments))

	return run.Checkpoint(ctx, func(p *core.StageProgress) {
		p.Total = len(segments)
		p.SegmentsProcessed = len(segments)
		p.SegmentsFailed = 0
		p.FailedSegments = nil
	})
}
