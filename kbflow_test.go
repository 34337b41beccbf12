package kbflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/poiesic/kbflow/ai"
	"github.com/poiesic/kbflow/ai/mock"
	"github.com/poiesic/kbflow/config"
	"github.com/poiesic/kbflow/core"
	"github.com/poiesic/kbflow/ingestion"
	"github.com/poiesic/kbflow/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPipelineConfig() ingestion.Config {
	cfg := ingestion.DefaultConfig()
	cfg.ChunkSize = 80
	cfg.ChunkOverlap = 0
	cfg.RetryBackoffBase = time.Millisecond
	return cfg
}

func openTest(t *testing.T, opts ...Option) *Knowledgebase {
	t.Helper()
	opts = append([]Option{WithInMemory(), WithProvider(mock.NewMockProvider()), WithPipelineConfig(testPipelineConfig())}, opts...)
	kb, err := Open("", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { kb.Close() })
	return kb
}

func TestOpen(t *testing.T) {
	t.Run("create new knowledge base", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test_db")
		kb, err := Open(path, WithProvider(mock.NewMockProvider()))
		require.NoError(t, err)
		require.NotNil(t, kb)
		defer kb.Close()

		assert.NotNil(t, kb.Pipeline())
		assert.NotNil(t, kb.repos)
		assert.False(t, kb.ownProvider)
	})

	t.Run("builds provider from configuration", func(t *testing.T) {
		kb, err := Open("", WithInMemory(), WithAIConfig(ai.NewConfig(ai.WithProvider(ai.ProviderOllama))))
		require.NoError(t, err)
		assert.True(t, kb.ownProvider)
		assert.NoError(t, kb.Close())
	})

	t.Run("error with invalid path", func(t *testing.T) {
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0o644))

		kb, err := Open(tmpFile, WithProvider(mock.NewMockProvider()))
		assert.Error(t, err)
		assert.Nil(t, kb)
	})

	t.Run("error with invalid pipeline config", func(t *testing.T) {
		cfg := ingestion.DefaultConfig()
		cfg.MaxRetries = 0
		kb, err := Open("", WithInMemory(), WithProvider(mock.NewMockProvider()), WithPipelineConfig(cfg))
		assert.ErrorIs(t, err, core.ErrValidation)
		assert.Nil(t, kb)
	})

	t.Run("error with invalid ai config", func(t *testing.T) {
		kb, err := Open("", WithInMemory(), WithAIConfig(ai.NewConfig(ai.WithEmbeddingProvider(ai.ProviderAnthropic))))
		assert.Error(t, err)
		assert.Nil(t, kb)
	})
}

func TestOpen_WithConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.InMemory = true
	cfg.Pipeline = testPipelineConfig()
	cfg.Pipeline.GraphExtractionEnabled = false

	kb, err := Open("", WithConfig(cfg), WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer kb.Close()

	doc, err := kb.IngestAndWait(context.Background(), &core.Document{DatasetId: "ds", Content: "Acme Corp hired Jane Doe."})
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, doc.Status)
	assert.Zero(t, doc.Metadata.GraphExtraction.Runs)
}

func TestKnowledgebase_Ingest(t *testing.T) {
	kb := openTest(t)
	ctx := context.Background()

	events, err := kb.Subscribe(t.Context())
	require.NoError(t, err)

	doc, err := kb.Ingest(ctx, &core.Document{
		DatasetId: "ds",
		Name:      "acme.txt",
		Content:   "Acme Corp builds rockets in Denver. Jane Doe leads Acme Corp engineering.",
	})
	require.NoError(t, err)
	require.NotEmpty(t, doc.Id)

	kb.Wait()

	doc, err = kb.Status(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, doc.Status)

	segments, err := kb.Segments(ctx, doc.Id)
	require.NoError(t, err)
	require.NotEmpty(t, segments)
	for _, seg := range segments {
		assert.Equal(t, core.UnitCompleted, seg.EmbeddingStatus)
		assert.Equal(t, core.UnitCompleted, seg.GraphExtractionStatus)
	}

	docs, err := kb.Documents(ctx, "ds")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.Id, docs[0].Id)

	nodes, err := kb.Nodes(ctx, "ds")
	require.NoError(t, err)
	assert.NotEmpty(t, nodes)
	_, err = kb.Edges(ctx, "ds")
	require.NoError(t, err)

	node, err := kb.FindNode(ctx, "ds", "Topic", "  acme ")
	require.NoError(t, err)
	assert.Equal(t, "Acme", node.Label)

	_, err = kb.FindNode(ctx, "ds", "topic", "Globex")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	var last core.DocumentStatus
	timeout := time.After(5 * time.Second)
	for last != core.StatusCompleted {
		select {
		case e := <-events:
			if e.DocumentId == doc.Id {
				last = e.Status
			}
		case <-timeout:
			t.Fatalf("no completion event, last status %s", last)
		}
	}
}

func TestKnowledgebase_ControlOperations(t *testing.T) {
	kb := openTest(t)
	ctx := context.Background()

	doc, err := kb.Pipeline().Add(ctx, &core.Document{DatasetId: "ds", Content: "Acme Corp."})
	require.NoError(t, err)

	require.NoError(t, kb.Pause(ctx, doc.Id))
	doc, err = kb.Status(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPaused, doc.Status)

	require.NoError(t, kb.Resume(ctx, doc.Id, false))
	kb.Wait()
	doc, err = kb.Status(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, doc.Status)

	assert.ErrorIs(t, kb.Resume(ctx, doc.Id, false), core.ErrInvalidState)
	require.NoError(t, kb.Cancel(ctx, doc.Id))
	doc, err = kb.Status(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, doc.Status, "cancel does not touch finished documents")
}

func TestKnowledgebase_JobQueue(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{})
	t.Cleanup(func() { pubsub.Close() })

	kb := openTest(t, WithJobQueue(pubsub, pubsub))
	ctx := context.Background()

	doc, err := kb.Ingest(ctx, &core.Document{DatasetId: "ds", Content: "Initech ships Falcon."})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		d, err := kb.Status(ctx, doc.Id)
		return err == nil && d.Status == core.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)
}

func TestKnowledgebase_Close(t *testing.T) {
	kb, err := Open(t.TempDir(), WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	assert.NoError(t, kb.Close())
}
