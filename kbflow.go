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


// Package kbflow turns documents into a searchable knowledge base: segments
// with embeddings plus a deduplicated entity graph, built by a resumable
// staged pipeline.
package kbflow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/poiesic/kbflow/ai"
	"github.com/poiesic/kbflow/ai/langchain"
	"github.com/poiesic/kbflow/config"
	"github.com/poiesic/kbflow/core"
	"github.com/poiesic/kbflow/graph"
	"github.com/poiesic/kbflow/ingestion"
	"github.com/poiesic/kbflow/progress"
	"github.com/poiesic/kbflow/storage/badger"
)

// Knowledgebase owns the storage, AI provider, notifier and pipeline of one
// knowledge base.
type Knowledgebase struct {
	repos       *badger.Repositories
	provider    ai.AIProvider
	ownProvider bool
	notifier    *progress.Notifier
	pipeline    *ingestion.Pipeline
	logger      *slog.Logger
}

// Option configures a Knowledgebase.
type Option func(*options)

type options struct {
	aiConfig       *ai.Config
	pipelineConfig ingestion.Config
	provider       ai.AIProvider
	inMemory       bool
	publisher      message.Publisher
	subscriber     message.Subscriber
	logger         *slog.Logger
}

// WithAIConfig sets the AI provider configuration.
func WithAIConfig(cfg *ai.Config) Option {
	return func(o *options) {
		o.aiConfig = cfg
	}
}

// WithPipelineConfig sets the pipeline tunables.
func WithPipelineConfig(cfg ingestion.Config) Option {
	return func(o *options) {
		o.pipelineConfig = cfg
	}
}

// WithConfig applies a loaded configuration file.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.aiConfig = cfg.AI
		o.pipelineConfig = cfg.Pipeline
		o.inMemory = cfg.Storage.InMemory
	}
}

// WithProvider uses an existing AI provider instead of building one from
// the AI configuration. The caller keeps ownership of it.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithInMemory keeps everything in memory. The path given to Open is ignored.
func WithInMemory() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

// WithJobQueue runs stage steps through a watermill job queue instead of
// in-process goroutines. The caller owns the transport.
func WithJobQueue(publisher message.Publisher, subscriber message.Subscriber) Option {
	return func(o *options) {
		o.publisher = publisher
		o.subscriber = subscriber
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Open opens or creates the knowledge base stored at path.
func Open(path string, opts ...Option) (*Knowledgebase, error) {
	o := &options{
		aiConfig:       ai.DefaultConfig(),
		pipelineConfig: ingestion.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	var (
		repos *badger.Repositories
		err   error
	)
	if o.inMemory {
		repos, err = badger.NewMemoryRepositories()
	} else {
		repos, err = badger.OpenRepositories(path)
	}
	if err != nil {
		return nil, err
	}

	kb := &Knowledgebase{repos: repos, provider: o.provider, logger: o.logger.With("component", "kbflow")}
	if kb.provider == nil {
		kb.provider, err = langchain.NewProvider(o.aiConfig)
		if err != nil {
			repos.Close()
			return nil, err
		}
		kb.ownProvider = true
	}

	kb.notifier, err = progress.NewNotifier(progress.WithLogger(o.logger))
	if err != nil {
		kb.Close()
		return nil, err
	}

	pipelineOpts := []ingestion.Option{
		ingestion.WithConfig(o.pipelineConfig),
		ingestion.WithNotifier(kb.notifier),
		ingestion.WithLogger(o.logger),
	}
	if o.publisher != nil || o.subscriber != nil {
		dispatcher, err := ingestion.NewQueueDispatcher(o.publisher, o.subscriber, ingestion.WithQueueLogger(o.logger))
		if err != nil {
			kb.Close()
			return nil, err
		}
		pipelineOpts = append(pipelineOpts, ingestion.WithDispatcher(dispatcher))
	}

	kb.pipeline, err = ingestion.NewPipeline(repos.Documents, repos.Segments, repos.Graph, kb.provider, pipelineOpts...)
	if err != nil {
		kb.Close()
		return nil, err
	}
	return kb, nil
}

// Close stops the pipeline, then releases the notifier, provider and storage.
// Interrupted documents are left paused.
func (kb *Knowledgebase) Close() error {
	var errs []error
	if kb.pipeline != nil {
		if err := kb.pipeline.Close(); err != nil {
			kb.logger.Error("error closing pipeline", "err", err)
			errs = append(errs, err)
		}
	}
	if kb.notifier != nil {
		if err := kb.notifier.Close(); err != nil {
			kb.logger.Error("error closing notifier", "err", err)
			errs = append(errs, err)
		}
	}
	if kb.ownProvider {
		if err := kb.provider.Close(); err != nil {
			kb.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if err := kb.repos.Close(); err != nil {
		kb.logger.Error("error closing storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Pipeline returns the ingestion pipeline.
func (kb *Knowledgebase) Pipeline() *ingestion.Pipeline {
	return kb.pipeline
}

// Ingest stores doc and schedules it for processing. It returns as soon as
// the document is stored; use Subscribe or Wait to follow it.
func (kb *Knowledgebase) Ingest(ctx context.Context, doc *core.Document) (*core.Document, error) {
	return kb.pipeline.Submit(ctx, doc)
}

// IngestAndWait stores doc and processes it in the calling goroutine until
// it completes, fails or is interrupted.
func (kb *Knowledgebase) IngestAndWait(ctx context.Context, doc *core.Document) (*core.Document, error) {
	doc, err := kb.pipeline.Add(ctx, doc)
	if err != nil {
		return nil, err
	}
	return kb.pipeline.Run(ctx, doc.Id)
}

// Resume continues a document in error or paused. With force, the stage it
// re-enters reprocesses every segment.
func (kb *Knowledgebase) Resume(ctx context.Context, documentID string, force bool) error {
	return kb.pipeline.Resume(ctx, documentID, &ingestion.ResumeOptions{Force: force})
}

// Cancel stops a document for good.
func (kb *Knowledgebase) Cancel(ctx context.Context, documentID string) error {
	return kb.pipeline.Cancel(ctx, documentID)
}

// Pause stops a document so it can be resumed later.
func (kb *Knowledgebase) Pause(ctx context.Context, documentID string) error {
	return kb.pipeline.Pause(ctx, documentID)
}

// Status returns a document with its processing metadata.
func (kb *Knowledgebase) Status(ctx context.Context, documentID string) (*core.Document, error) {
	return kb.pipeline.Status(ctx, documentID)
}

// Documents lists the documents of a dataset.
func (kb *Knowledgebase) Documents(ctx context.Context, datasetID string) ([]*core.Document, error) {
	return kb.repos.Documents.GetDocumentsByDataset(ctx, datasetID)
}

// Segments returns the segments of a document in position order.
func (kb *Knowledgebase) Segments(ctx context.Context, documentID string) ([]*core.Segment, error) {
	return kb.repos.Segments.GetSegments(ctx, documentID)
}

// Nodes returns the graph nodes of a dataset.
func (kb *Knowledgebase) Nodes(ctx context.Context, datasetID string) ([]*core.GraphNode, error) {
	return kb.repos.Graph.GetNodes(ctx, datasetID)
}

// Edges returns the graph edges of a dataset.
func (kb *Knowledgebase) Edges(ctx context.Context, datasetID string) ([]*core.GraphEdge, error) {
	return kb.repos.Graph.GetEdges(ctx, datasetID)
}

// FindNode looks a node up by type and label. Both are normalized the way
// extraction normalizes them, so "Service" finds organizations.
// It returns storage.ErrNotFound when there is no such node.
func (kb *Knowledgebase) FindNode(ctx context.Context, datasetID, nodeType, label string) (*core.GraphNode, error) {
	return kb.repos.Graph.FindNode(ctx, datasetID, graph.NormalizeNodeType(nodeType), label)
}

// Subscribe streams progress events until ctx is done or the knowledge base closes.
func (kb *Knowledgebase) Subscribe(ctx context.Context) (<-chan progress.Event, error) {
	return kb.notifier.Subscribe(ctx)
}

// Wait blocks until every document scheduled by Ingest or Resume has stopped.
func (kb *Knowledgebase) Wait() {
	kb.pipeline.Wait()
}
