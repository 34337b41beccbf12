package ingestion

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/poiesic/kbflow/core"
	"github.com/poiesic/kbflow/storage"
)

// errStopped ends segment paging once a signal is raised.
var errStopped = errors.New("stopped on signal")

// unitResult is what one successful unit adds to the stage progress.
type unitResult struct {
	nodes   int
	edges   int
	dropped int
}

// unitFunc processes one segment and persists its artifact. attempts is the
// number of external calls made, reported with failures.
type unitFunc func(ctx context.Context, seg *core.Segment) (result unitResult, attempts int, err error)

// unitReport summarizes one pass over a document's segments.
type unitReport struct {
	total     int
	processed int // includes segments finished by earlier runs
	failures  []*UnitError
}

// processUnits runs fn through the worker pool for every segment of the
// run's document that done does not report as finished. Segments are paged
// from storage in batches; each unit checkpoints the stage progress when it
// ends. No new unit starts once a signal is raised.
func processUnits(ctx context.Context, run *Run, segments storage.SegmentRepository,
	done func(*core.Segment) bool, fn unitFunc) (*unitReport, error) {
	docID := run.Document().Id
	batchSize := run.Config().EmbeddingBatchSize
	pending := func(seg *core.Segment) bool {
		return run.Forced() || !done(seg)
	}

	report := &unitReport{}
	err := segments.ForEachSegmentBatch(ctx, docID, batchSize, func(page []*core.Segment) error {
		for _, seg := range page {
			report.total++
			if !pending(seg) {
				report.processed++
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan segments: %w", err)
	}

	err = run.Checkpoint(ctx, func(p *core.StageProgress) {
		p.Total = report.total
		p.SegmentsProcessed = report.processed
		p.SegmentsFailed = 0
		p.FailedSegments = nil
		if run.Forced() {
			p.NodesCreated, p.EdgesCreated, p.EdgesDropped = 0, 0, 0
		}
	})
	if err != nil {
		return nil, err
	}
	run.Logger().Debug("processing segments", "total", report.total, "pending", report.total-report.processed)

	var mu sync.Mutex
	unit := func(ctx context.Context, seg *core.Segment) error {
		if run.Signal() != core.SignalNone {
			return nil
		}
		result, attempts, err := fn(ctx, seg)
		if err != nil {
			ue := &UnitError{Stage: run.Stage(), SegmentId: seg.Id, Position: seg.Position, Attempts: attempts, Err: err}
			run.Logger().Warn("segment failed", "segment", seg.Id, "position", seg.Position, "attempts", attempts, "err", err)
			mu.Lock()
			report.failures = append(report.failures, ue)
			mu.Unlock()
			return run.Checkpoint(ctx, func(p *core.StageProgress) {
				p.SegmentsFailed++
				p.FailedSegments = append(p.FailedSegments, seg.Id)
			})
		}

		mu.Lock()
		report.processed++
		mu.Unlock()
		return run.Checkpoint(ctx, func(p *core.StageProgress) {
			p.SegmentsProcessed++
			p.NodesCreated += result.nodes
			p.EdgesCreated += result.edges
			p.EdgesDropped += result.dropped
		})
	}

	err = segments.ForEachSegmentBatch(ctx, docID, batchSize, func(page []*core.Segment) error {
		batch := run.Pool().NewBatch(ctx)
		var stopErr error
		for _, seg := range page {
			if !pending(seg) {
				continue
			}
			if run.Signal() != core.SignalNone {
				stopErr = errStopped
				break
			}
			if err := batch.Go(func(ctx context.Context) error { return unit(ctx, seg) }); err != nil {
				stopErr = err
				break
			}
		}
		if err := batch.Wait(); err != nil {
			return err
		}
		return stopErr
	})
	if err != nil && !errors.Is(err, errStopped) {
		return report, err
	}

	slices.SortFunc(report.failures, func(a, b *UnitError) int {
		return cmp.Compare(a.Position, b.Position)
	})
	return report, nil
}

// failuresError summarizes the failed units of a stage. The first failure
// by position is the one recorded as the document's last error.
func failuresError(stage core.Stage, report *unitReport) error {
	errs := make([]error, len(report.failures))
	for i, f := range report.failures {
		errs[i] = f
	}
	return fmt.Errorf("%s: %d of %d segments failed: %w", stage, len(report.failures), report.total, errors.Join(errs...))
}
