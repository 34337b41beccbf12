package mock

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/poiesic/kbflow/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVector_DeterministicUnitLength(t *testing.T) {
	a := Vector("hello", DefaultDimension)
	b := Vector("hello", DefaultDimension)
	c := Vector("world", DefaultDimension)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestMockEmbedder_ConcurrentCalls(t *testing.T) {
	m := NewMockEmbedder()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.EmbedText(context.Background(), "x")
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, m.CallCount())

	m.Reset()
	assert.Equal(t, 0, m.CallCount())
}

func TestMockEmbedder_EmbedTextsUsesTextFunc(t *testing.T) {
	m := NewMockEmbedder()
	m.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{float32(len(text))}, nil
	}

	out, err := m.EmbedTexts(context.Background(), []string{"a", "bbb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {3}}, out)
}

func TestMockGraphExtractor_Default(t *testing.T) {
	m := NewMockGraphExtractor()

	ext, err := m.ExtractGraph(context.Background(), "Alice met Bob at Acme. Alice left.", ai.DefaultGraphSchema())
	require.NoError(t, err)
	require.Len(t, ext.Nodes, 3)
	assert.Equal(t, "Alice", ext.Nodes[0].Label)
	require.Len(t, ext.Edges, 2)
	assert.Equal(t, "Bob", ext.Edges[1].SourceNodeLabel)
	assert.Equal(t, "Acme", ext.Edges[1].TargetNodeLabel)
	assert.Equal(t, 1, m.CallCount())
}

func TestMockEntityRecognizer_Default(t *testing.T) {
	m := NewMockEntityRecognizer()

	got, err := m.RecognizeEntities(context.Background(), "see Paris")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].Start)
	assert.Equal(t, 9, got[0].End)
}

func TestNewMockProviderWithServices_FillsDefaults(t *testing.T) {
	embedder := NewMockEmbedder()
	p := NewMockProviderWithServices(embedder, nil, nil)

	assert.Same(t, embedder, p.GetMockEmbedder())
	assert.NotNil(t, p.GetMockEntityRecognizer())
	assert.NotNil(t, p.GetMockGraphExtractor())
	assert.NoError(t, p.Close())
}
