package ingestion

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/kbflow/ai/mock"
	"github.com/poiesic/kbflow/core"
	"github.com/poiesic/kbflow/progress"
	"github.com/poiesic/kbflow/storage/badger"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	repos      *badger.Repositories
	provider   *mock.MockProvider
	embedder   *mock.MockEmbedder
	recognizer *mock.MockEntityRecognizer
	extractor  *mock.MockGraphExtractor
	notifier   *progress.Notifier
	pipeline   *Pipeline
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ChunkSize = 60
	cfg.ChunkOverlap = 0
	cfg.EmbeddingBatchSize = 4
	cfg.WorkerPoolSize = 2
	cfg.MaxRetries = 3
	cfg.RetryBackoffBase = time.Millisecond
	cfg.MaxBackoff = 4 * time.Millisecond
	cfg.CallTimeout = 5 * time.Second
	return cfg
}

// newTestEnv builds a pipeline over in-memory storage and mock AI services.
// Mock behavior must be set before the pipeline processes anything.
func newTestEnv(t *testing.T, cfg Config, opts ...Option) *testEnv {
	t.Helper()

	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)

	notifier, err := progress.NewNotifier()
	require.NoError(t, err)

	env := &testEnv{
		repos:      repos,
		embedder:   mock.NewMockEmbedder(),
		recognizer: mock.NewMockEntityRecognizer(),
		extractor:  mock.NewMockGraphExtractor(),
		notifier:   notifier,
	}
	env.provider = mock.NewMockProviderWithServices(env.embedder, env.recognizer, env.extractor)

	opts = append([]Option{WithConfig(cfg), WithNotifier(notifier)}, opts...)
	env.pipeline, err = NewPipeline(repos.Documents, repos.Segments, repos.Graph, env.provider, opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		env.pipeline.Close()
		notifier.Close()
		repos.Close()
	})
	return env
}

// segmentText is the content of the segment at position; numbering in the
// text is one-based.
func segmentText(position int) string {
	return fmt.Sprintf("Segment %d mentions Acme Corp and Jane Doe.", position+1)
}

func isSegment(text string, number int) bool {
	return strings.HasPrefix(text, fmt.Sprintf("Segment %d ", number))
}

// seedChunked stores a document that has been chunked into n segments.
func (env *testEnv) seedChunked(t *testing.T, n int) *core.Document {
	t.Helper()
	ctx := context.Background()

	doc, err := env.pipeline.Add(ctx, &core.Document{DatasetId: "ds", Name: "seeded", Content: "seeded content"})
	require.NoError(t, err)

	segments := make([]*core.Segment, n)
	for i := range segments {
		segments[i] = &core.Segment{
			Id:                    core.SegmentID(doc.Id, i),
			DocumentId:            doc.Id,
			DatasetId:             doc.DatasetId,
			Position:              i,
			Content:               segmentText(i),
			EmbeddingStatus:       core.UnitWaiting,
			NERStatus:             core.UnitWaiting,
			GraphExtractionStatus: core.UnitWaiting,
		}
	}
	require.NoError(t, env.repos.Segments.ReplaceSegments(ctx, doc.Id, segments))

	doc, err = env.repos.Documents.UpdateDocument(ctx, doc.Id, func(d *core.Document) error {
		now := time.Now().UTC()
		d.Status = core.StatusChunked
		d.Metadata.CurrentStage = core.StageChunking
		d.Metadata.Chunking = core.StageProgress{Total: n, SegmentsProcessed: n, Runs: 1, CompletedAt: &now}
		return nil
	})
	require.NoError(t, err)
	return doc
}

func (env *testEnv) document(t *testing.T, id string) *core.Document {
	t.Helper()
	doc, err := env.pipeline.Status(context.Background(), id)
	require.NoError(t, err)
	return doc
}

func (env *testEnv) segments(t *testing.T, documentID string) []*core.Segment {
	t.Helper()
	segs, err := env.repos.Segments.GetSegments(context.Background(), documentID)
	require.NoError(t, err)
	return segs
}

// collect reads events for a document stage until stop returns true or the
// timeout expires.
func collect(t *testing.T, events <-chan progress.Event, documentID string, stage core.Stage,
	stop func(progress.Event) bool) []progress.Event {
	t.Helper()
	var out []progress.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return out
			}
			if e.DocumentId != documentID || e.Stage != stage {
				continue
			}
			out = append(out, e)
			if stop(e) {
				return out
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s events, got %d", stage, len(out))
			return out
		}
	}
}
