// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/kbflow/ai"
	"github.com/poiesic/kbflow/core"
	"github.com/poiesic/kbflow/progress"
	"github.com/poiesic/kbflow/retry"
	"github.com/poiesic/kbflow/storage"
	"github.com/poiesic/kbflow/workerpool"
)

// Pipeline orchestrates the processing of documents through their stages.
// It owns the document state machine: every status change goes through
// transition.
type Pipeline struct {
	documents  storage.DocumentRepository
	segments   storage.SegmentRepository
	graph      storage.GraphRepository
	provider   ai.AIProvider
	config     Config
	policy     *retry.Policy
	registry   *Registry
	pool       *workerpool.Pool
	ownsPool   bool
	notifier   *progress.Notifier
	dispatcher Dispatcher
	schema     *ai.GraphSchema
	logger     *slog.Logger

	mu     sync.Mutex
	active map[string]*control
	closed atomic.Bool
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithConfig sets the pipeline configuration.
// Default is DefaultConfig().
func WithConfig(config Config) Option {
	return func(p *Pipeline) error {
		p.config = config
		return nil
	}
}

// WithRetryPolicy overrides the retry policy derived from the configuration.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(p *Pipeline) error {
		if err := policy.Validate(); err != nil {
			return fmt.Errorf("%w: %w", core.ErrValidation, err)
		}
		p.policy = &policy
		return nil
	}
}

// WithRegistry sets the stages the pipeline dispatches.
// Default is a registry of the four built-in stages.
func WithRegistry(registry *Registry) Option {
	return func(p *Pipeline) error {
		p.registry = registry
		return nil
	}
}

// WithPool shares an existing worker pool. The caller releases it.
// Default is a pool of Config.WorkerPoolSize owned by the pipeline.
func WithPool(pool *workerpool.Pool) Option {
	return func(p *Pipeline) error {
		p.pool = pool
		return nil
	}
}

// WithNotifier publishes progress events through notifier.
// Default is no progress events.
func WithNotifier(notifier *progress.Notifier) Option {
	return func(p *Pipeline) error {
		p.notifier = notifier
		return nil
	}
}

// WithDispatcher sets how stage jobs are scheduled.
// Default is an InlineDispatcher.
func WithDispatcher(dispatcher Dispatcher) Option {
	return func(p *Pipeline) error {
		p.dispatcher = dispatcher
		return nil
	}
}

// WithGraphSchema sets the schema the default graph extraction stage asks
// the model to answer in. Default is ai.DefaultGraphSchema().
func WithGraphSchema(schema ai.GraphSchema) Option {
	return func(p *Pipeline) error {
		schema = schema.OrDefault()
		p.schema = &schema
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a document processing pipeline. The provider may be
// nil when WithRegistry supplies every stage.
func NewPipeline(
	documents storage.DocumentRepository,
	segments storage.SegmentRepository,
	graphRepo storage.GraphRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Pipeline, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if segments == nil {
		return nil, ErrSegmentRepositoryRequired
	}
	if graphRepo == nil {
		return nil, ErrGraphRepositoryRequired
	}

	p := &Pipeline{
		documents: documents,
		segments:  segments,
		graph:     graphRepo,
		provider:  provider,
		config:    DefaultConfig(),
		logger:    slog.Default(),
		active:    make(map[string]*control),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if err := p.config.Validate(); err != nil {
		return nil, err
	}
	p.logger = p.logger.With("component", "pipeline")

	if p.registry == nil {
		if provider == nil {
			return nil, ErrAIProviderRequired
		}
		registry, err := p.defaultRegistry()
		if err != nil {
			return nil, err
		}
		p.registry = registry
	}
	for _, stage := range p.config.Stages() {
		if _, ok := p.registry.Get(stage); !ok {
			return nil, fmt.Errorf("%w: %s", ErrStageNotRegistered, stage)
		}
	}

	if p.pool == nil {
		pool, err := workerpool.New(p.config.WorkerPoolSize,
			workerpool.WithRateLimit(p.config.RateLimit, p.config.WorkerPoolSize),
			workerpool.WithLogger(p.logger))
		if err != nil {
			return nil, err
		}
		p.pool = pool
		p.ownsPool = true
	}

	if p.dispatcher == nil {
		p.dispatcher = NewInlineDispatcher(p.logger)
	}
	if err := p.dispatcher.Start(p.Step); err != nil {
		p.release()
		return nil, fmt.Errorf("start dispatcher: %w", err)
	}
	return p, nil
}

func (p *Pipeline) retryPolicy() retry.Policy {
	policy := p.config.RetryPolicy()
	if p.policy != nil {
		policy = *p.policy
	}
	if policy.Logger == nil {
		policy.Logger = p.logger
	}
	return policy
}

func (p *Pipeline) defaultRegistry() (*Registry, error) {
	policy := p.retryPolicy()
	var graphOpts []GraphStageOption
	if p.schema != nil {
		graphOpts = append(graphOpts, WithExtractionSchema(*p.schema))
	}
	return NewRegistry(
		NewChunkingStage(p.segments),
		NewEmbeddingStage(p.segments, p.provider.Embedder(), policy),
		NewNERStage(p.segments, p.provider.EntityRecognizer(), policy),
		NewGraphStage(p.segments, p.graph, p.provider.GraphExtractor(), policy, graphOpts...),
	)
}

// Registry returns the pipeline's stage registry.
func (p *Pipeline) Registry() *Registry {
	return p.registry
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config {
	return p.config
}

// Add validates and stores a new document in waiting without scheduling it.
// An empty Id is replaced with a random UUID.
func (p *Pipeline) Add(ctx context.Context, doc *core.Document) (*core.Document, error) {
	if p.closed.Load() {
		return nil, ErrPipelineClosed
	}
	if err := core.ValidateDocument(doc); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, err)
	}
	if doc.Id == "" {
		doc.Id = uuid.NewString()
	}
	if doc.ContentType == "" {
		doc.ContentType = core.ContentTypePlain
	}
	doc.Status = core.StatusWaiting
	doc.Metadata = core.ProcessingMetadata{}
	doc.Error = ""

	added, err := p.documents.AddDocument(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("add document: %w", err)
	}
	p.emit(added)
	return added, nil
}

// Submit adds a document and schedules its processing.
func (p *Pipeline) Submit(ctx context.Context, doc *core.Document) (*core.Document, error) {
	added, err := p.Add(ctx, doc)
	if err != nil {
		return nil, err
	}
	p.logger.Info("document submitted", "document", added.Id, "dataset", added.DatasetId)
	if err := p.dispatcher.Dispatch(ctx, Job{DocumentId: added.Id}); err != nil {
		return added, fmt.Errorf("dispatch document %s: %w", added.Id, err)
	}
	return added, nil
}

// Run processes a document in the calling goroutine until it completes,
// fails, pauses or is cancelled, and returns its final state.
func (p *Pipeline) Run(ctx context.Context, documentID string) (*core.Document, error) {
	job := &Job{DocumentId: documentID}
	for job != nil {
		next, err := p.Step(ctx, *job)
		if err != nil {
			return nil, err
		}
		job = next
	}
	return p.documents.GetDocument(ctx, documentID)
}

// Step runs the next stage of a document and returns the job that
// continues it, or nil when the document has stopped. A document that is
// terminal, failed or paused is left alone.
func (p *Pipeline) Step(ctx context.Context, job Job) (*Job, error) {
	ctl, err := p.acquire(job.DocumentId)
	if err != nil {
		return nil, err
	}
	defer p.unlock(job.DocumentId)

	doc, err := p.documents.GetDocument(ctx, job.DocumentId)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", job.DocumentId, err)
	}
	if doc.Status.IsTerminal() || doc.Status.IsRecoverable() {
		return nil, nil
	}

	stage, ok := p.stageFor(doc.Status)
	if !ok {
		_, err := p.complete(ctx, doc.Id, nil)
		return nil, p.ignoreMoved(err)
	}
	executor, ok := p.registry.Get(stage)
	if !ok {
		_, err := p.fail(ctx, doc.Id, stage, fmt.Errorf("%w: %s", ErrStageNotRegistered, stage))
		return nil, p.ignoreMoved(err)
	}

	doc, err = p.enter(ctx, doc.Id, stage)
	if err != nil {
		return nil, p.ignoreMoved(err)
	}
	ctl.raise(doc.Metadata.RequestedSignal())

	logger := p.logger.With("document", doc.Id, "stage", stage)
	run := &Run{pipeline: p, document: doc, stage: stage, force: job.Force, ctl: ctl, logger: logger}
	logger.Info("stage started", "run", doc.Metadata.Progress(stage).Runs, "force", job.Force)
	start := time.Now()
	execErr := executor.Execute(ctx, run)
	logger.Info("stage finished", "duration", time.Since(start), "signal", run.Signal(), "err", execErr)

	return p.finish(ctx, run, execErr)
}

// finish moves the document on after a stage returns. Cancel wins over
// everything; an error ends in error unless the context was interrupted,
// which pauses; a pause request wins over success.
func (p *Pipeline) finish(ctx context.Context, run *Run, execErr error) (*Job, error) {
	interrupted := ctx.Err() != nil && execErr != nil
	ctx = context.WithoutCancel(ctx)
	id := run.document.Id

	var err error
	switch sig := run.Signal(); {
	case sig == core.SignalCancel:
		_, err = p.interrupt(ctx, id, sig)
	case interrupted:
		run.logger.Warn("stage interrupted, pausing document", "err", execErr)
		_, err = p.interrupt(ctx, id, core.SignalPause)
	case execErr != nil:
		_, err = p.fail(ctx, id, run.stage, execErr)
	case sig == core.SignalPause:
		_, err = p.interrupt(ctx, id, sig)
	default:
		return p.advance(ctx, run)
	}
	return nil, p.ignoreMoved(err)
}

// advance commits a finished stage and hands over to the next one.
func (p *Pipeline) advance(ctx context.Context, run *Run) (*Job, error) {
	id := run.document.Id
	stage := run.stage
	markDone := func(doc *core.Document) error {
		now := time.Now().UTC()
		doc.Metadata.Progress(stage).CompletedAt = &now
		return nil
	}

	next, more := p.after(stage)
	if done, ok := stage.DoneStatus(); ok {
		if _, err := p.transition(ctx, id, done, markDone); err != nil {
			return nil, p.ignoreMoved(err)
		}
		if !more {
			_, err := p.complete(ctx, id, nil)
			return nil, p.ignoreMoved(err)
		}
		return &Job{DocumentId: id}, nil
	}

	if !more {
		_, err := p.complete(ctx, id, markDone)
		return nil, p.ignoreMoved(err)
	}
	if _, err := p.transition(ctx, id, next.ActiveStatus(), markDone); err != nil {
		return nil, p.ignoreMoved(err)
	}
	return &Job{DocumentId: id}, nil
}

// stageFor returns the stage a document in status runs next. It returns
// false when every enabled stage is done.
func (p *Pipeline) stageFor(status core.DocumentStatus) (core.Stage, bool) {
	switch status {
	case core.StatusWaiting:
		return core.StageChunking, true
	case core.StatusChunked:
		return p.after(core.StageChunking)
	case core.StatusEmbedded:
		return p.after(core.StageEmbedding)
	}
	return core.StageOf(status)
}

// after returns the first enabled stage following stage.
func (p *Pipeline) after(stage core.Stage) (core.Stage, bool) {
	seen := false
	for _, s := range core.Stages {
		if seen && p.config.Enabled(s) {
			return s, true
		}
		if s == stage {
			seen = true
		}
	}
	return "", false
}

// ResumeOptions holds optional parameters for Resume.
type ResumeOptions struct {
	// Force reprocesses every unit of the re-entered stage, overwriting
	// artifacts that already exist.
	Force bool
}

// Resume re-enters the stage a failed or paused document stopped in and
// schedules it. Units finished by earlier runs are skipped unless forced.
// It returns core.ErrInvalidState for any other status.
func (p *Pipeline) Resume(ctx context.Context, documentID string, opts *ResumeOptions) error {
	if p.closed.Load() {
		return ErrPipelineClosed
	}
	if opts == nil {
		opts = &ResumeOptions{}
	}

	doc, err := p.documents.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}
	if !doc.Status.IsRecoverable() {
		return fmt.Errorf("%w: cannot resume document %s in status %s", core.ErrInvalidState, documentID, doc.Status)
	}

	stage := p.resumeStage(doc)
	_, err = p.transition(ctx, documentID, stage.ActiveStatus(), func(doc *core.Document) error {
		if !doc.Status.IsRecoverable() {
			return fmt.Errorf("%w: cannot resume document %s in status %s", core.ErrInvalidState, documentID, doc.Status)
		}
		doc.Metadata.PauseRequested = false
		doc.Metadata.CancelRequested = false
		doc.Metadata.LastError = nil
		doc.Error = ""
		return nil
	})
	if errors.Is(err, core.ErrInvalidTransition) {
		return fmt.Errorf("%w: %w", core.ErrInvalidState, err)
	}
	if err != nil {
		return err
	}

	p.logger.Info("resuming document", "document", documentID, "stage", stage, "force", opts.Force)
	return p.dispatcher.Dispatch(ctx, Job{DocumentId: documentID, Force: opts.Force})
}

// resumeStage picks the stage to re-enter: the one the document stopped in,
// or the next one when it had already finished.
func (p *Pipeline) resumeStage(doc *core.Document) core.Stage {
	stage := doc.Metadata.CurrentStage
	if stage == "" {
		return core.StageChunking
	}
	if doc.Metadata.Progress(stage).CompletedAt != nil {
		if next, ok := p.after(stage); ok {
			return next
		}
	}
	return stage
}

// Cancel requests cooperative cancellation. A document being processed
// stops after its in-flight units; any other non-terminal document is
// cancelled at once. Cancelling a terminal document is a no-op.
func (p *Pipeline) Cancel(ctx context.Context, documentID string) error {
	return p.signal(ctx, documentID, core.SignalCancel)
}

// Pause requests a cooperative pause, like Cancel but resumable.
// Pausing a failed or paused document is a no-op; pausing a terminal one
// returns core.ErrInvalidState.
func (p *Pipeline) Pause(ctx context.Context, documentID string) error {
	doc, err := p.documents.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}
	switch {
	case doc.Status.IsTerminal():
		return fmt.Errorf("%w: cannot pause document %s in status %s", core.ErrInvalidState, documentID, doc.Status)
	case doc.Status.IsRecoverable():
		return nil
	}
	return p.signal(ctx, documentID, core.SignalPause)
}

func (p *Pipeline) signal(ctx context.Context, documentID string, sig core.Signal) error {
	request := func(doc *core.Document) error {
		switch sig {
		case core.SignalCancel:
			doc.Metadata.CancelRequested = true
		case core.SignalPause:
			doc.Metadata.PauseRequested = true
		}
		return nil
	}

	p.mu.Lock()
	ctl := p.active[documentID]
	if ctl != nil {
		ctl.raise(sig)
	}
	p.mu.Unlock()

	var err error
	if ctl != nil {
		_, err = p.documents.UpdateDocument(ctx, documentID, func(doc *core.Document) error {
			if doc.Status.IsTerminal() || doc.Status.IsRecoverable() {
				return nil
			}
			return request(doc)
		})
	} else {
		// Nothing is running the document, so it stops here.
		_, err = p.transition(ctx, documentID, sig.Status(), func(doc *core.Document) error {
			if sig == core.SignalCancel {
				doc.Metadata.CancelRequested = true
			}
			return nil
		})
		if errors.Is(err, core.ErrInvalidTransition) {
			err = nil
		}
	}
	if err != nil {
		return fmt.Errorf("signal document %s: %w", documentID, err)
	}
	p.logger.Info("control requested", "document", documentID, "signal", sig.Status(), "running", ctl != nil)
	return nil
}

// Status returns a document with its processing metadata.
func (p *Pipeline) Status(ctx context.Context, documentID string) (*core.Document, error) {
	return p.documents.GetDocument(ctx, documentID)
}

// Wait blocks until work scheduled by this process has stopped, when the
// dispatcher can tell.
func (p *Pipeline) Wait() {
	if w, ok := p.dispatcher.(interface{ Wait() }); ok {
		w.Wait()
	}
}

// Close stops the dispatcher and releases the worker pool if the pipeline
// owns it. Documents interrupted by Close are paused.
func (p *Pipeline) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.dispatcher.Close()
	return errors.Join(err, p.release())
}

func (p *Pipeline) release() error {
	if p.ownsPool {
		return p.pool.Release(5 * time.Second)
	}
	return nil
}

func (p *Pipeline) acquire(documentID string) (*control, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.active[documentID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentActive, documentID)
	}
	ctl := &control{}
	p.active[documentID] = ctl
	return ctl, nil
}

func (p *Pipeline) unlock(documentID string) {
	p.mu.Lock()
	delete(p.active, documentID)
	p.mu.Unlock()
}
