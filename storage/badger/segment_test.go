package badger

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/kbflow/core"
	"github.com/poiesic/kbflow/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSegments(docID string, n int) []*core.Segment {
	segs := make([]*core.Segment, n)
	for i := range n {
		segs[i] = &core.Segment{
			Id:         core.SegmentID(docID, i),
			DocumentId: docID,
			DatasetId:  "ds",
			Position:   i,
			Content:    fmt.Sprintf("segment %d", i),
		}
	}
	return segs
}

func TestReplaceSegments(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	require.NoError(t, repos.Segments.ReplaceSegments(ctx, "doc-1", makeSegments("doc-1", 300)))
	require.NoError(t, repos.Segments.ReplaceSegments(ctx, "doc-2", makeSegments("doc-2", 2)))

	count, err := repos.Segments.CountSegments(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 300, count)

	// Re-chunking to fewer segments removes the stale tail
	require.NoError(t, repos.Segments.ReplaceSegments(ctx, "doc-1", makeSegments("doc-1", 5)))

	segs, err := repos.Segments.GetSegments(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, segs, 5)
	for i, seg := range segs {
		assert.Equal(t, i, seg.Position, "segments must come back in position order")
	}

	_, err = repos.Segments.GetSegment(ctx, core.SegmentID("doc-1", 200))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	count, err = repos.Segments.CountSegments(ctx, "doc-2")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "other documents are untouched")
}

func TestReplaceSegments_RejectsForeignSegment(t *testing.T) {
	repos := newTestRepositories(t)
	err := repos.Segments.ReplaceSegments(context.Background(), "doc-1", makeSegments("doc-2", 1))
	assert.Error(t, err)
}

func TestForEachSegmentBatch(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()
	require.NoError(t, repos.Segments.ReplaceSegments(ctx, "doc-1", makeSegments("doc-1", 10)))

	var sizes []int
	var positions []int
	err := repos.Segments.ForEachSegmentBatch(ctx, "doc-1", 4, func(batch []*core.Segment) error {
		sizes = append(sizes, len(batch))
		for _, s := range batch {
			positions = append(positions, s.Position)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 4, 2}, sizes)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, positions)

	err = repos.Segments.ForEachSegmentBatch(ctx, "doc-1", 0, func([]*core.Segment) error { return nil })
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestUpdateSegment(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()
	require.NoError(t, repos.Segments.ReplaceSegments(ctx, "doc-1", makeSegments("doc-1", 3)))

	id := core.SegmentID("doc-1", 1)
	updated, err := repos.Segments.UpdateSegment(ctx, id, func(seg *core.Segment) error {
		seg.Vector = []float32{1, 0}
		seg.EmbeddingStatus = core.UnitCompleted
		return nil
	})
	require.NoError(t, err)
	assert.True(t, updated.HasEmbedding())

	got, err := repos.Segments.GetSegment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, got.Vector)
	assert.Equal(t, core.UnitCompleted, got.EmbeddingStatus)
	assert.Equal(t, "segment 1", got.Content)

	_, err = repos.Segments.UpdateSegment(ctx, core.ID(42), func(*core.Segment) error { return nil })
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
