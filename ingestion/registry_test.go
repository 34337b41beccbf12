package ingestion

import (
	"context"
	"testing"

	"github.com/poiesic/kbflow/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedStage core.Stage

func (s namedStage) Name() core.Stage { return core.Stage(s) }
func (s namedStage) Execute(context.Context, *Run) error { return nil }

func TestRegistry(t *testing.T) {
	registry, err := NewRegistry(namedStage(core.StageGraphExtraction), namedStage(core.StageChunking))
	require.NoError(t, err)

	assert.Equal(t, []core.Stage{core.StageChunking, core.StageGraphExtraction}, registry.Names())

	stage, ok := registry.Get(core.StageChunking)
	require.True(t, ok)
	assert.Equal(t, core.StageChunking, stage.Name())

	_, ok = registry.Get(core.StageNER)
	assert.False(t, ok)

	require.NoError(t, registry.Register(namedStage(core.StageNER)))
	assert.Equal(t, []core.Stage{core.StageChunking, core.StageNER, core.StageGraphExtraction}, registry.Names())
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(namedStage(core.StageEmbedding), namedStage(core.StageEmbedding))
	assert.ErrorIs(t, err, ErrDuplicateStage)
}

func TestRegistry_RejectsUnknownStage(t *testing.T) {
	registry, err := NewRegistry()
	require.NoError(t, err)
	assert.ErrorIs(t, registry.Register(namedStage("summarize")), core.ErrValidation)
	assert.Empty(t, registry.Names())
}
