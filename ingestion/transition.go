package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/kbflow/core"
	"github.com/poiesic/kbflow/progress"
)

// transition is the only place a document's status changes. It moves the
// document to status to when core.CanTransition allows it, applies mutate in
// the same write, and publishes the new state. mutate sees the old status
// and may veto the change by returning an error.
func (p *Pipeline) transition(ctx context.Context, documentID string, to core.DocumentStatus,
	mutate func(doc *core.Document) error) (*core.Document, error) {
	var from core.DocumentStatus
	doc, err := p.documents.UpdateDocument(ctx, documentID, func(doc *core.Document) error {
		if !core.CanTransition(doc.Status, to) {
			return fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition, doc.Status, to)
		}
		if mutate != nil {
			if err := mutate(doc); err != nil {
				return err
			}
		}
		from = doc.Status
		doc.Status = to
		return nil
	})
	if err != nil {
		return nil, err
	}
	if from != to {
		p.logger.Debug("document transition", "document", documentID, "from", from, "to", to)
	}
	p.emit(doc)
	return doc, nil
}

// enter moves a document into stage's active status and starts a new run
// of the stage.
func (p *Pipeline) enter(ctx context.Context, documentID string, stage core.Stage) (*core.Document, error) {
	return p.transition(ctx, documentID, stage.ActiveStatus(), func(doc *core.Document) error {
		now := time.Now().UTC()
		prog := doc.Metadata.Progress(stage)
		prog.Runs++
		prog.StartedAt = &now
		prog.CompletedAt = nil
		doc.Metadata.CurrentStage = stage
		if doc.Metadata.StartedAt == nil {
			doc.Metadata.StartedAt = &now
		}
		return nil
	})
}

func (p *Pipeline) complete(ctx context.Context, documentID string, mutate func(doc *core.Document) error) (*core.Document, error) {
	doc, err := p.transition(ctx, documentID, core.StatusCompleted, func(doc *core.Document) error {
		if mutate != nil {
			if err := mutate(doc); err != nil {
				return err
			}
		}
		now := time.Now().UTC()
		doc.Metadata.CompletedAt = &now
		return nil
	})
	if err == nil {
		p.logger.Info("document completed", "document", documentID)
	}
	return doc, err
}

// fail moves a document to error, recording the failing stage and, for unit
// failures, the first failed segment and its attempt count.
func (p *Pipeline) fail(ctx context.Context, documentID string, stage core.Stage, cause error) (*core.Document, error) {
	stageErr := &core.StageError{
		Stage:      stage,
		Message:    cause.Error(),
		OccurredAt: time.Now().UTC(),
	}
	var unitErr *UnitError
	if errors.As(cause, &unitErr) {
		stageErr.SegmentId = unitErr.SegmentId
		stageErr.RetryCount = unitErr.Attempts
	}
	p.logger.Error("stage failed", "document", documentID, "stage", stage, "segment", stageErr.SegmentId, "err", cause)

	return p.transition(ctx, documentID, core.StatusError, func(doc *core.Document) error {
		doc.Metadata.CurrentStage = stage
		doc.Metadata.LastError = stageErr
		doc.Error = cause.Error()
		return nil
	})
}

// interrupt ends a document's processing on a control request.
func (p *Pipeline) interrupt(ctx context.Context, documentID string, sig core.Signal) (*core.Document, error) {
	doc, err := p.transition(ctx, documentID, sig.Status(), func(doc *core.Document) error {
		doc.Metadata.PauseRequested = false
		return nil
	})
	if err == nil {
		p.logger.Info("document stopped on request", "document", documentID, "status", doc.Status,
			"stage", doc.Metadata.CurrentStage)
	}
	return doc, err
}

// ignoreMoved swallows a rejected transition: the document was moved by
// someone else (typically cancelled) while a stage was running.
func (p *Pipeline) ignoreMoved(err error) error {
	if errors.Is(err, core.ErrInvalidTransition) {
		p.logger.Debug("document moved while processing", "err", err)
		return nil
	}
	return err
}

// emit publishes a document's current state to the notifier, if any.
func (p *Pipeline) emit(doc *core.Document) {
	if p.notifier == nil {
		return
	}

	stage := doc.Metadata.CurrentStage
	e := progress.Event{
		DocumentId: doc.Id,
		DatasetId:  doc.DatasetId,
		Stage:      stage,
		Status:     doc.Status,
		Progress:   progress.NewProgress(0, 0),
	}
	if prog := doc.Metadata.Progress(stage); prog != nil {
		e.Progress = progress.NewProgress(prog.SegmentsProcessed+prog.SegmentsFailed, prog.Total)
		e.CountsCreated = progress.Counts{Nodes: prog.NodesCreated, Edges: prog.EdgesCreated}
	}
	if doc.Status == core.StatusError {
		e.Error = doc.Error
	}

	if err := p.notifier.Notify(e); err != nil && !errors.Is(err, progress.ErrNotifierClosed) {
		p.logger.Warn("failed to publish progress", "document", doc.Id, "err", err)
	}
}
