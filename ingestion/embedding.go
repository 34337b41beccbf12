package ingestion

import (
	"context"
	"fmt"

	"github.com/poiesic/kbflow/ai"
	"github.com/poiesic/kbflow/core"
	"github.com/poiesic/kbflow/retry"
	"github.com/poiesic/kbflow/storage"
)

// EmbeddingStage computes one embedding per segment.
// A segment that keeps failing is marked and skipped; the stage fails after
// every other segment has been tried.
type EmbeddingStage struct {
	segments storage.SegmentRepository
	embedder ai.Embedder
	policy   retry.Policy
}

var _ Stage = (*EmbeddingStage)(nil)

// NewEmbeddingStage creates the embedding stage.
func NewEmbeddingStage(segments storage.SegmentRepository, embedder ai.Embedder, policy retry.Policy) *EmbeddingStage {
	return &EmbeddingStage{segments: segments, embedder: embedder, policy: policy}
}

func (s *EmbeddingStage) Name() core.Stage {
	return core.StageEmbedding
}

func (s *EmbeddingStage) Execute(ctx context.Context, run *Run) error {
	report, err := processUnits(ctx, run, s.segments, (*core.Segment).HasEmbedding, s.embed(run))
	if err != nil {
		return err
	}
	if len(report.failures) > 0 {
		return failuresError(s.Name(), report)
	}
	return nil
}

func (s *EmbeddingStage) embed(run *Run) unitFunc {
	policy := run.RetryPolicy(s.policy)
	return func(ctx context.Context, seg *core.Segment) (unitResult, int, error) {
		var vector []float32
		attempts, err := policy.Do(ctx, func(ctx context.Context) error {
			v, err := s.embedder.EmbedText(ctx, seg.Content)
			if err != nil {
				return err
			}
			vector, err = normalizeVector(v)
			return err
		})
		if err != nil {
			markUnit(ctx, run, s.segments, seg.Id, func(stored *core.Segment) {
				stored.EmbeddingStatus = core.UnitError
				stored.EmbeddingError = err.Error()
			})
			return unitResult{}, attempts, err
		}

		_, err = s.segments.UpdateSegment(ctx, seg.Id, func(stored *core.Segment) error {
			stored.Vector = vector
			stored.EmbeddingStatus = core.UnitCompleted
			stored.EmbeddingError = ""
			return nil
		})
		if err != nil {
			return unitResult{}, attempts, fmt.Errorf("store embedding: %w", err)
		}
		return unitResult{}, attempts, nil
	}
}

// markUnit records a unit status on a segment. A failed write is only
// logged: the stage progress already carries the failure.
func markUnit(ctx context.Context, run *Run, segments storage.SegmentRepository, id core.ID, fn func(*core.Segment)) {
	_, err := segments.UpdateSegment(context.WithoutCancel(ctx), id, func(stored *core.Segment) error {
		fn(stored)
		return nil
	})
	if err != nil {
		run.Logger().Error("failed to record segment status", "segment", id, "err", err)
	}
}
