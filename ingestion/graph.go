package ingestion

import (
	"context"
	"fmt"

	"github.com/poiesic/kbflow/ai"
	"github.com/poiesic/kbflow/core"
	"github.com/poiesic/kbflow/graph"
	"github.com/poiesic/kbflow/retry"
	"github.com/poiesic/kbflow/storage"
)

// GraphStage extracts nodes and edges from each segment into the dataset graph.
//
// Unlike the other stages it tolerates failed segments: the stage succeeds
// as long as one segment succeeded. Failed segments keep an error
// graphExtractionStatus and are listed in the stage's FailedSegments, but the
// document still completes. Completed is terminal, so Resume rejects the
// document and the failed segments are not reprocessed.
type GraphStage struct {
	segments  storage.SegmentRepository
	extractor ai.GraphExtractor
	builder   *graph.Builder
	policy    retry.Policy
	schema    ai.GraphSchema
}

var _ Stage = (*GraphStage)(nil)

// GraphStageOption configures a GraphStage.
type GraphStageOption func(*GraphStage)

// WithExtractionSchema sets the schema the extractor is asked to answer in.
// Default is ai.DefaultGraphSchema().
func WithExtractionSchema(schema ai.GraphSchema) GraphStageOption {
	return func(s *GraphStage) {
		s.schema = schema.OrDefault()
	}
}

// NewGraphStage creates the graph extraction stage.
func NewGraphStage(segments storage.SegmentRepository, graphRepo storage.GraphRepository,
	extractor ai.GraphExtractor, policy retry.Policy, opts ...GraphStageOption) *GraphStage {
	s := &GraphStage{
		segments:  segments,
		extractor: extractor,
		builder:   graph.NewBuilder(graphRepo, policy.Logger),
		policy:    policy,
		schema:    ai.DefaultGraphSchema(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *GraphStage) Name() core.Stage {
	return core.StageGraphExtraction
}

func (s *GraphStage) Execute(ctx context.Context, run *Run) error {
	done := func(seg *core.Segment) bool {
		return seg.GraphExtractionStatus == core.UnitCompleted
	}
	report, err := processUnits(ctx, run, s.segments, done, s.extract(run))
	if err != nil {
		return err
	}
	if len(report.failures) > 0 && report.processed == 0 {
		return failuresError(s.Name(), report)
	}
	if len(report.failures) > 0 {
		run.Logger().Warn("graph extraction finished with failed segments",
			"failed", len(report.failures), "succeeded", report.processed)
	}
	return nil
}

func (s *GraphStage) extract(run *Run) unitFunc {
	policy := run.RetryPolicy(s.policy)
	return func(ctx context.Context, seg *core.Segment) (unitResult, int, error) {
		markUnit(ctx, run, s.segments, seg.Id, func(stored *core.Segment) {
			stored.GraphExtractionStatus = core.UnitProcessing
		})

		var extraction *ai.Extraction
		attempts, err := policy.Do(ctx, func(ctx context.Context) error {
			var err error
			extraction, err = s.extractor.ExtractGraph(ctx, seg.Content, s.schema)
			return err
		})
		var result graph.Result
		if err == nil {
			result, err = s.builder.Apply(ctx, seg, extraction)
			if err != nil {
				err = fmt.Errorf("apply extraction: %w", err)
			}
		}
		if err != nil {
			markUnit(ctx, run, s.segments, seg.Id, func(stored *core.Segment) {
				stored.GraphExtractionStatus = core.UnitError
				stored.GraphExtractionError = err.Error()
			})
			return unitResult{}, attempts, err
		}

		_, err = s.segments.UpdateSegment(ctx, seg.Id, func(stored *core.Segment) error {
			stored.GraphExtractionStatus = core.UnitCompleted
			stored.GraphExtractionError = ""
			return nil
		})
		if err != nil {
			return unitResult{}, attempts, fmt.Errorf("store extraction status: %w", err)
		}
		return unitResult{
			nodes:   result.NodesCreated,
			edges:   result.EdgesCreated,
			dropped: result.EdgesDropped,
		}, attempts, nil
	}
}
