package ai

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/bookrag/internal/pkg/errors"
)

type stubEmbedder struct {
	calls int
	fail  bool
}

func (e *stubEmbedder) Embed(_ context.Context, text string, _ string) ([]float32, error) {
	e.calls++
	if e.fail {
		return nil, fmt.Errorf("upstream rejected request")
	}
	return []float32{float32(len(text)), 1}, nil
}

func (e *stubEmbedder) ModelName() string {
	return "stub-embed-model"
}

func TestManagerEmbedWrapsProviderFailure(t *testing.T) {
	m := NewManager(nil, &stubEmbedder{fail: true}, ManagerConfig{Timeout: 5})
	_, err := m.Embed(context.Background(), "some text", TaskTypeQuery)
	require.Error(t, err)
	require.True(t, appErr.IsEmbedding(err))
}

func TestManagerEmbedBatchAllOrNothing(t *testing.T) {
	m := NewManager(nil, &stubEmbedder{fail: true}, ManagerConfig{Timeout: 5})
	vecs, err := m.EmbedBatch(context.Background(), []string{"a", "b"}, TaskTypeDocument)
	require.Error(t, err)
	require.True(t, appErr.IsEmbedding(err))
	require.Nil(t, vecs)
}

func TestManagerEmbedBatchOrderAndLength(t *testing.T) {
	m := NewManager(nil, &stubEmbedder{}, ManagerConfig{Timeout: 5})
	vecs, err := m.EmbedBatch(context.Background(), []string{"x", "xyz"}, TaskTypeDocument)
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	require.Equal(t, float32(1), vecs[0][0])
	require.Equal(t, float32(3), vecs[1][0])
}

func TestManagerEmbedCacheHit(t *testing.T) {
	embedder := &stubEmbedder{}
	m := NewManager(nil, embedder, ManagerConfig{Timeout: 5, EmbedCacheTTL: 60})
	_, err := m.Embed(context.Background(), "same text", TaskTypeQuery)
	require.NoError(t, err)
	_, err = m.Embed(context.Background(), "same text", TaskTypeQuery)
	require.NoError(t, err)
	require.Equal(t, 1, embedder.calls)

	// A different task type misses the cache.
	_, err = m.Embed(context.Background(), "same text", TaskTypeDocument)
	require.NoError(t, err)
	require.Equal(t, 2, embedder.calls)
}
