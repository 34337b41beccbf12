package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/poiesic/kbflow/core"
	"github.com/poiesic/kbflow/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueDispatcher_RunsDocuments(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NopLogger{})
	t.Cleanup(func() { pubsub.Close() })

	dispatcher, err := NewQueueDispatcher(pubsub, pubsub, WithConcurrency(2))
	require.NoError(t, err)

	env := newTestEnv(t, testConfig(), WithDispatcher(dispatcher))
	ctx := context.Background()

	var ids []string
	for _, content := range []string{
		"Acme Corp opened an office in Denver.",
		"Jane Doe joined Globex as an engineer.",
		"Initech ships Falcon to Berlin customers.",
	} {
		doc, err := env.pipeline.Submit(ctx, &core.Document{DatasetId: "ds", Content: content})
		require.NoError(t, err)
		ids = append(ids, doc.Id)
	}

	for _, id := range ids {
		require.Eventually(t, func() bool {
			return env.document(t, id).Status == core.StatusCompleted
		}, 5*time.Second, 10*time.Millisecond)
	}
	assert.Equal(t, 3, env.embedder.CallCount())

	nodes, err := env.repos.Graph.GetNodes(ctx, "ds")
	require.NoError(t, err)
	assert.NotEmpty(t, nodes)
}

func TestQueueDispatcher_SkipsDuplicateJobs(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NopLogger{})
	t.Cleanup(func() { pubsub.Close() })

	dispatcher, err := NewQueueDispatcher(pubsub, pubsub)
	require.NoError(t, err)
	env := newTestEnv(t, testConfig(), WithDispatcher(dispatcher))
	ctx := context.Background()

	doc, err := env.pipeline.Submit(ctx, &core.Document{DatasetId: "ds", Content: "Acme Corp."})
	require.NoError(t, err)
	require.NoError(t, dispatcher.Dispatch(ctx, Job{DocumentId: doc.Id}))
	require.NoError(t, dispatcher.Dispatch(ctx, Job{DocumentId: doc.Id}))

	require.Eventually(t, func() bool {
		return env.document(t, doc.Id).Status == core.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	// Extra deliveries either hit a running document or one already completed.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, env.embedder.CallCount())
	assert.Equal(t, 1, env.document(t, doc.Id).Metadata.Embedding.Runs)
}

func newTestQueue(t *testing.T, handler JobHandler) *QueueDispatcher {
	t.Helper()
	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NopLogger{})
	t.Cleanup(func() { pubsub.Close() })

	dispatcher, err := NewQueueDispatcher(pubsub, pubsub, WithRedeliveryDelay(5*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, dispatcher.Start(handler))
	t.Cleanup(func() { dispatcher.Close() })
	return dispatcher
}

func TestQueueDispatcher_RedeliversFailedJob(t *testing.T) {
	var deliveries atomic.Int32
	var lastForce atomic.Bool
	dispatcher := newTestQueue(t, func(ctx context.Context, job Job) (*Job, error) {
		if deliveries.Add(1) == 1 {
			return nil, fmt.Errorf("%w: store unavailable", storage.ErrTransactionFailed)
		}
		lastForce.Store(job.Force)
		return nil, nil
	})

	require.NoError(t, dispatcher.Dispatch(context.Background(), Job{DocumentId: "doc-1", Force: true}))

	require.Eventually(t, func() bool {
		return deliveries.Load() == 2
	}, 5*time.Second, 5*time.Millisecond)
	assert.True(t, lastForce.Load(), "redelivery carries the original job")
	assert.Never(t, func() bool {
		return deliveries.Load() > 2
	}, 50*time.Millisecond, 5*time.Millisecond)
}

func TestQueueDispatcher_DropsUnrecoverableJobs(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "document busy", err: ErrDocumentActive},
		{name: "validation", err: fmt.Errorf("%w: empty content", core.ErrValidation)},
		{name: "document missing", err: fmt.Errorf("load document doc-1: %w", storage.ErrNotFound)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var deliveries atomic.Int32
			dispatcher := newTestQueue(t, func(ctx context.Context, job Job) (*Job, error) {
				deliveries.Add(1)
				return nil, tt.err
			})

			require.NoError(t, dispatcher.Dispatch(context.Background(), Job{DocumentId: "doc-1"}))

			require.Eventually(t, func() bool {
				return deliveries.Load() == 1
			}, 5*time.Second, 5*time.Millisecond)
			assert.Never(t, func() bool {
				return deliveries.Load() > 1
			}, 50*time.Millisecond, 5*time.Millisecond)
		})
	}
}

func TestQueueDispatcher_SchedulesNextStep(t *testing.T) {
	var steps atomic.Int32
	dispatcher := newTestQueue(t, func(ctx context.Context, job Job) (*Job, error) {
		if steps.Add(1) < 3 {
			return &Job{DocumentId: job.DocumentId}, nil
		}
		return nil, nil
	})

	require.NoError(t, dispatcher.Dispatch(context.Background(), Job{DocumentId: "doc-1"}))

	require.Eventually(t, func() bool {
		return steps.Load() == 3
	}, 5*time.Second, 5*time.Millisecond)
}

func TestQueueDispatcher_ClosedRejectsJobs(t *testing.T) {
	dispatcher := newTestQueue(t, func(context.Context, Job) (*Job, error) {
		return nil, errors.New("unreachable")
	})
	require.NoError(t, dispatcher.Close())
	assert.ErrorIs(t, dispatcher.Dispatch(context.Background(), Job{DocumentId: "doc-1"}), ErrPipelineClosed)
}

func TestQueueDispatcher_RequiresTransport(t *testing.T) {
	_, err := NewQueueDispatcher(nil, nil)
	assert.Error(t, err)
}

func TestInlineDispatcher_ClosedRejectsJobs(t *testing.T) {
	d := NewInlineDispatcher(nil)
	require.NoError(t, d.Start(func(context.Context, Job) (*Job, error) { return nil, nil }))
	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Dispatch(context.Background(), Job{DocumentId: "x"}), ErrPipelineClosed)
}
