package embedding

import (
	"context"
	"errors"
	"sync"
	"testing"

	"docingest-go/internal/config"
	"docingest-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend 按文本长度生成确定的向量，并记录每次调用的批大小。
type fakeBackend struct {
	mu      sync.Mutex
	dims    int
	batches []int
	err     error
}

func (f *fakeBackend) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.batches = append(f.batches, len(texts))
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, f.dims)
		v[0] = float32(len(t))
		out[i] = v
	}
	return out, nil
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	backend := &fakeBackend{dims: 4}
	c, err := newClient(config.EmbeddingConfig{Dimensions: 4, BatchSize: 2}, backend)
	require.NoError(t, err)

	texts := []string{"a", "bbb", "cc", "dddd", "eeeee"}
	vectors, err := c.EmbedBatch(t.Context(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for i, text := range texts {
		assert.Equal(t, float32(len(text)), vectors[i][0])
	}
	assert.Equal(t, []int{2, 2, 1}, backend.batches)
}

func TestBatchSizeDoesNotChangeVectors(t *testing.T) {
	texts := []string{"alpha", "beta gamma", "delta"}
	small, err := newClient(config.EmbeddingConfig{Dimensions: 3, BatchSize: 1}, &fakeBackend{dims: 3})
	require.NoError(t, err)
	large, err := newClient(config.EmbeddingConfig{Dimensions: 3, BatchSize: 16}, &fakeBackend{dims: 3})
	require.NoError(t, err)

	a, err := small.EmbedBatch(t.Context(), texts)
	require.NoError(t, err)
	b, err := large.EmbedBatch(t.Context(), texts)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEmbedQueryMatchesDocumentPath(t *testing.T) {
	c, err := newClient(config.EmbeddingConfig{Dimensions: 3}, &fakeBackend{dims: 3})
	require.NoError(t, err)

	q, err := c.EmbedQuery(t.Context(), "same text")
	require.NoError(t, err)
	docs, err := c.EmbedBatch(t.Context(), []string{"same text"})
	require.NoError(t, err)
	assert.Equal(t, docs[0], q)
	assert.Equal(t, 3, c.Dimensions())
}

func TestEmbeddingUnavailable(t *testing.T) {
	c, err := newClient(config.EmbeddingConfig{Dimensions: 3}, &fakeBackend{dims: 3, err: errors.New("connection refused")})
	require.NoError(t, err)

	_, err = c.EmbedBatch(t.Context(), []string{"x"})
	assert.ErrorIs(t, err, model.ErrEmbeddingUnavailable)

	_, err = c.EmbedQuery(t.Context(), "x")
	assert.ErrorIs(t, err, model.ErrEmbeddingUnavailable)
}

func TestEmbeddingDimensionMismatch(t *testing.T) {
	c, err := newClient(config.EmbeddingConfig{Dimensions: 384}, &fakeBackend{dims: 3})
	require.NoError(t, err)

	_, err = c.EmbedBatch(t.Context(), []string{"x"})
	assert.ErrorIs(t, err, model.ErrEmbeddingUnavailable)
}
