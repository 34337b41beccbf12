package ingestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/poiesic/kbflow/ai"
	"github.com/poiesic/kbflow/core"
	"github.com/poiesic/kbflow/graph"
	"github.com/poiesic/kbflow/retry"
	"github.com/poiesic/kbflow/storage"
)

// NERStage annotates segments with named entities.
// It follows the embedding stage's failure rules.
type NERStage struct {
	segments   storage.SegmentRepository
	recognizer ai.EntityRecognizer
	policy     retry.Policy
}

var _ Stage = (*NERStage)(nil)

// NewNERStage creates the entity recognition stage.
func NewNERStage(segments storage.SegmentRepository, recognizer ai.EntityRecognizer, policy retry.Policy) *NERStage {
	return &NERStage{segments: segments, recognizer: recognizer, policy: policy}
}

func (s *NERStage) Name() core.Stage {
	return core.StageNER
}

func (s *NERStage) Execute(ctx context.Context, run *Run) error {
	done := func(seg *core.Segment) bool {
		return seg.NERStatus == core.UnitCompleted
	}
	report, err := processUnits(ctx, run, s.segments, done, s.recognize(run))
	if err != nil {
		return err
	}
	if len(report.failures) > 0 {
		return failuresError(s.Name(), report)
	}
	return nil
}

func (s *NERStage) recognize(run *Run) unitFunc {
	policy := run.RetryPolicy(s.policy)
	return func(ctx context.Context, seg *core.Segment) (unitResult, int, error) {
		var found []ai.RecognizedEntity
		attempts, err := policy.Do(ctx, func(ctx context.Context) error {
			var err error
			found, err = s.recognizer.RecognizeEntities(ctx, seg.Content)
			return err
		})
		if err != nil {
			markUnit(ctx, run, s.segments, seg.Id, func(stored *core.Segment) {
				stored.NERStatus = core.UnitError
				stored.NERError = err.Error()
			})
			return unitResult{}, attempts, err
		}

		entities := make([]core.Entity, 0, len(found))
		for _, e := range found {
			text := strings.TrimSpace(e.Text)
			if text == "" {
				continue
			}
			entities = append(entities, core.Entity{
				Text:  text,
				Type:  graph.NormalizeNodeType(e.Type),
				Start: e.Start,
				End:   e.End,
			})
		}

		_, err = s.segments.UpdateSegment(ctx, seg.Id, func(stored *core.Segment) error {
			stored.Entities = entities
			stored.NERStatus = core.UnitCompleted
			stored.NERError = ""
			return nil
		})
		if err != nil {
			return unitResult{}, attempts, fmt.Errorf("store entities: %w", err)
		}
		return unitResult{}, attempts, nil
	}
}
