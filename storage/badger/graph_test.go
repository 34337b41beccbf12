package badger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/poiesic/kbflow/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertNode_Dedup(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	first, created, err := repos.Graph.UpsertNode(ctx, &core.GraphNode{
		DatasetId:  "ds",
		Type:       core.NodeTypeOrganization,
		Label:      " Acme Corp ",
		Properties: map[string]any{"hq": "Berlin", "founded": "1999"},
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Acme Corp", first.Label)

	second, created, err := repos.Graph.UpsertNode(ctx, &core.GraphNode{
		DatasetId:  "ds",
		Type:       core.NodeTypeOrganization,
		Label:      "acme   corp",
		Properties: map[string]any{"hq": "Paris", "founded": nil},
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.Id, second.Id)
	assert.Equal(t, "Acme Corp", second.Label)
	assert.Equal(t, "Paris", second.Properties["hq"])
	assert.Equal(t, "1999", second.Properties["founded"])
	assert.Equal(t, 2, second.Mentions)

	nodes, err := repos.Graph.GetNodes(ctx, "ds")
	require.NoError(t, err)
	assert.Len(t, nodes, 1)

	found, err := repos.Graph.FindNode(ctx, "ds", core.NodeTypeOrganization, "ACME CORP")
	require.NoError(t, err)
	assert.Equal(t, first.Id, found.Id)
}

func TestUpsertNode_ScopedByDatasetAndType(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	for _, n := range []*core.GraphNode{
		{DatasetId: "ds", Type: core.NodeTypeOrganization, Label: "Acme"},
		{DatasetId: "ds", Type: core.NodeTypeProduct, Label: "Acme"},
		{DatasetId: "other", Type: core.NodeTypeOrganization, Label: "Acme"},
	} {
		_, created, err := repos.Graph.UpsertNode(ctx, n)
		require.NoError(t, err)
		assert.True(t, created)
	}

	nodes, err := repos.Graph.GetNodes(ctx, "ds")
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}

func TestUpsertNode_ConcurrentWritersMerge(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	const writers = 16
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := repos.Graph.UpsertNode(ctx, &core.GraphNode{
				DatasetId:  "ds",
				Type:       core.NodeTypeOrganization,
				Label:      "Acme Corp",
				Properties: map[string]any{fmt.Sprintf("writer%d", i): "seen"},
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	nodes, err := repos.Graph.GetNodes(ctx, "ds")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, writers, nodes[0].Mentions)
	assert.Len(t, nodes[0].Properties, writers, "every writer's properties are merged")
}

func TestUpsertNode_Invalid(t *testing.T) {
	repos := newTestRepositories(t)
	_, _, err := repos.Graph.UpsertNode(context.Background(), &core.GraphNode{DatasetId: "ds", Type: core.NodeTypePerson, Label: "  "})
	assert.ErrorIs(t, err, core.ErrEmptyLabel)
}

func TestUpsertEdge_Dedup(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	acme, _, err := repos.Graph.UpsertNode(ctx, &core.GraphNode{DatasetId: "ds", Type: core.NodeTypeOrganization, Label: "Acme"})
	require.NoError(t, err)
	card, _, err := repos.Graph.UpsertNode(ctx, &core.GraphNode{DatasetId: "ds", Type: core.NodeTypeProduct, Label: "Gold Card"})
	require.NoError(t, err)

	low, high := 0.3, 0.9
	edge, created, err := repos.Graph.UpsertEdge(ctx, &core.GraphEdge{
		DatasetId: "ds", SourceNodeId: acme.Id, TargetNodeId: card.Id, Type: core.EdgeTypeProvides, Weight: &low,
	})
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := repos.Graph.UpsertEdge(ctx, &core.GraphEdge{
		DatasetId: "ds", SourceNodeId: acme.Id, TargetNodeId: card.Id, Type: core.EdgeTypeProvides, Weight: &high,
		Properties: map[string]any{"since": "2020"},
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, edge.Id, again.Id)
	require.NotNil(t, again.Weight)
	assert.Equal(t, high, *again.Weight)
	assert.Equal(t, 2, again.Mentions)

	// Reverse direction is a different edge
	_, created, err = repos.Graph.UpsertEdge(ctx, &core.GraphEdge{
		DatasetId: "ds", SourceNodeId: card.Id, TargetNodeId: acme.Id, Type: core.EdgeTypeProvides,
	})
	require.NoError(t, err)
	assert.True(t, created)

	edges, err := repos.Graph.GetEdges(ctx, "ds")
	require.NoError(t, err)
	assert.Len(t, edges, 2)

	adjacent, err := repos.Graph.GetEdgesForNode(ctx, "ds", acme.Id)
	require.NoError(t, err)
	assert.Len(t, adjacent, 2)
}
