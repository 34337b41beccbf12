package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/poiesic/kbflow/core"
	"github.com/poiesic/kbflow/retry"
	"github.com/poiesic/kbflow/workerpool"
)

// control carries the cooperative signal of a document being processed.
// Cancel takes precedence over pause and neither can be withdrawn.
type control struct {
	signal atomic.Int32
}

func (c *control) raise(s core.Signal) {
	if s == core.SignalNone {
		return
	}
	for {
		cur := core.Signal(c.signal.Load())
		if cur == s || cur == core.SignalCancel {
			return
		}
		if c.signal.CompareAndSwap(int32(cur), int32(s)) {
			return
		}
	}
}

func (c *control) load() core.Signal {
	return core.Signal(c.signal.Load())
}

// Run is one execution of a stage for one document.
type Run struct {
	pipeline *Pipeline
	document *core.Document
	stage    core.Stage
	force    bool
	ctl      *control
	logger   *slog.Logger

	// mu serializes checkpoint writes so units finishing together do not
	// contend on the document key.
	mu sync.Mutex
}

// Document returns the document as it was when the stage was entered.
func (r *Run) Document() *core.Document {
	return r.document
}

// Stage returns the stage being run.
func (r *Run) Stage() core.Stage {
	return r.stage
}

// Forced reports whether units that already have their artifact must be
// processed again.
func (r *Run) Forced() bool {
	return r.force
}

// Config returns the pipeline configuration.
func (r *Run) Config() Config {
	return r.pipeline.config
}

// Pool returns the shared worker pool.
func (r *Run) Pool() *workerpool.Pool {
	return r.pipeline.pool
}

// Logger returns a logger scoped to the document and stage.
func (r *Run) Logger() *slog.Logger {
	return r.logger
}

// Signal returns the control request raised for the document, if any.
// Stages check it between units.
func (r *Run) Signal() core.Signal {
	return r.ctl.load()
}

// Checkpoint applies fn to the stage's progress in the stored document and
// publishes the result. Cancel and pause requests persisted by other
// processes are picked up here.
func (r *Run) Checkpoint(ctx context.Context, fn func(p *core.StageProgress)) error {
	r.mu.Lock()
	doc, err := r.pipeline.documents.UpdateDocument(ctx, r.document.Id, func(doc *core.Document) error {
		fn(doc.Metadata.Progress(r.stage))
		return nil
	})
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("checkpoint %s: %w", r.stage, err)
	}
	r.ctl.raise(doc.Metadata.RequestedSignal())
	if doc.Status == core.StatusCancelled {
		r.ctl.raise(core.SignalCancel)
	}
	r.pipeline.emit(doc)
	return nil
}

// RetryPolicy returns policy bound to this run: attempts stop once a signal
// is raised, and failures are logged with the run's logger.
func (r *Run) RetryPolicy(policy retry.Policy) retry.Policy {
	retryable := policy.Retryable
	if retryable == nil {
		retryable = retry.IsRetryable
	}
	policy.Retryable = func(err error) bool {
		return r.Signal() == core.SignalNone && retryable(err)
	}
	if policy.Logger == nil {
		policy.Logger = r.logger
	}
	return policy
}
