package vectorstore

import (
	"fmt"
	"testing"

	"docingest-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointIDDeterministic(t *testing.T) {
	a := PointID("acme", "file-1", 2, 7)
	b := PointID("acme", "file-1", 2, 7)
	assert.Equal(t, a, b)
	assert.Len(t, a, 36)

	assert.NotEqual(t, a, PointID("acme", "file-1", 2, 8))
	assert.NotEqual(t, a, PointID("acme", "file-1", 3, 7))
	assert.NotEqual(t, a, PointID("globex", "file-1", 2, 7))
}

func TestPointIDNoConcatenationAmbiguity(t *testing.T) {
	assert.NotEqual(t, PointID("ab", "c", 1, 0), PointID("a", "bc", 1, 0))
	assert.NotEqual(t, PointID("t", "doc1", 11, 0), PointID("t", "doc11", 1, 0))
	assert.NotEqual(t, PointID("t", "d", 1, 10), PointID("t", "d", 11, 0))
}

func TestPointIDCollisionFree(t *testing.T) {
	seen := make(map[string]string)
	for _, tenant := range []string{"acme", "globex", "initech", "acme_eu"} {
		for doc := 0; doc < 25; doc++ {
			docID := fmt.Sprintf("1A2b3C%04d", doc)
			for page := 1; page <= 12; page++ {
				for chunk := 0; chunk < 15; chunk++ {
					key := fmt.Sprintf("%s/%s/%d/%d", tenant, docID, page, chunk)
					id := PointID(tenant, docID, page, chunk)
					if prev, ok := seen[id]; ok {
						t.Fatalf("collision between %s and %s", prev, key)
					}
					seen[id] = key
				}
			}
		}
	}
	assert.Len(t, seen, 4*25*12*15)
}

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "sp_acme", CollectionName("", "acme"))
	assert.Equal(t, "kb_acme", CollectionName("kb_", "acme"))
}

func TestNewPointCarriesPayload(t *testing.T) {
	c := model.Chunk{
		Tenant: "acme", DocID: "d1", Title: "Report", SourcePath: "https://drive/d1",
		MimeType: model.MimePDF, PageNumber: 3, ChunkIndex: 1, SHA256: "abc", Text: "hello",
		Embedding: []float32{1, 0},
	}
	p := NewPoint(c)
	assert.Equal(t, PointID("acme", "d1", 3, 1), p.ID)
	assert.Equal(t, p.ID, p.Payload.PointID)
	assert.Equal(t, "https://drive/d1", p.Payload.DrivePath)
	assert.Equal(t, 3, p.Payload.Page)
	assert.Equal(t, 1, p.Payload.ChunkIdx)
	assert.Equal(t, []float32{1, 0}, p.Vector)
}

func point(tenant, doc string, page, chunk int, vec ...float32) model.Point {
	return NewPoint(model.Chunk{
		Tenant: tenant, DocID: doc, Title: doc + ".pdf", PageNumber: page, ChunkIndex: chunk,
		SHA256: "sha-" + doc, Text: fmt.Sprintf("%s p%d c%d", doc, page, chunk), Embedding: vec,
	})
}

func TestMemoryStoreSearchOrderingAndLimits(t *testing.T) {
	ctx := t.Context()
	s := NewMemoryStore("", 2)
	require.NoError(t, s.EnsureCollection(ctx, "acme"))
	require.NoError(t, s.Upsert(ctx, "acme",
		point("acme", "a", 1, 0, 1, 0),
		point("acme", "b", 1, 0, 1, 0),
		point("acme", "c", 1, 0, 0.6, 0.8),
		point("acme", "d", 1, 0, 0, 1),
		point("acme", "e", 1, 0, -1, 0),
	))

	hits, err := s.Search(ctx, "acme", []float32{1, 0}, 3, 0)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.InDelta(t, 1.0, hits[1].Score, 1e-9)
	assert.Less(t, hits[0].ID, hits[1].ID, "equal scores are ordered by point id")
	assert.InDelta(t, 0.6, hits[2].Score, 1e-6)

	hits, err = s.Search(ctx, "acme", []float32{1, 0}, 20, 0.5)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
	for _, h := range hits {
		assert.GreaterOrEqual(t, h.Score, 0.5)
	}

	again, err := s.Search(ctx, "acme", []float32{1, 0}, 20, 0.5)
	require.NoError(t, err)
	assert.Equal(t, hits, again)
}

func TestMemoryStoreUpsertOverwrites(t *testing.T) {
	ctx := t.Context()
	s := NewMemoryStore("", 2)
	require.NoError(t, s.EnsureCollection(ctx, "acme"))

	p := point("acme", "a", 1, 0, 1, 0)
	require.NoError(t, s.Upsert(ctx, "acme", p))
	p.Payload.Text = "updated"
	require.NoError(t, s.Upsert(ctx, "acme", p))

	assert.Equal(t, 1, s.Count("acme"))
	hits, err := s.Search(ctx, "acme", []float32{1, 0}, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, "updated", hits[0].Payload.Text)
}

func TestMemoryStoreRejectsForeignTenantAndBadDimensions(t *testing.T) {
	ctx := t.Context()
	s := NewMemoryStore("", 2)
	require.NoError(t, s.EnsureCollection(ctx, "acme"))

	err := s.Upsert(ctx, "acme", point("globex", "a", 1, 0, 1, 0))
	assert.ErrorIs(t, err, model.ErrInvalidArgument)

	err = s.Upsert(ctx, "acme", point("acme", "a", 1, 0, 1, 0, 0))
	assert.ErrorIs(t, err, model.ErrInvalidArgument)

	err = s.Upsert(ctx, "missing", point("missing", "a", 1, 0, 1, 0))
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemoryStoreListAndDelete(t *testing.T) {
	ctx := t.Context()
	s := NewMemoryStore("", 2)
	require.NoError(t, s.EnsureCollection(ctx, "acme"))
	require.NoError(t, s.EnsureCollection(ctx, "acme"))
	require.NoError(t, s.Upsert(ctx, "acme",
		point("acme", "a", 1, 0, 1, 0),
		point("acme", "a", 1, 1, 1, 0),
		point("acme", "a", 2, 0, 1, 0),
		point("acme", "b", 1, 0, 0, 1),
	))

	docs, err := s.ListDocuments(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].DocID)
	assert.Equal(t, 3, docs[0].ChunkCount)
	assert.Equal(t, 2, docs[0].PageCount)
	assert.Equal(t, "sha-a", docs[0].SHA256)

	total := 0
	for _, d := range docs {
		total += d.ChunkCount
	}
	assert.Equal(t, s.Count("acme"), total)

	require.NoError(t, s.DeleteDocument(ctx, "acme", "a"))
	docs, err = s.ListDocuments(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "b", docs[0].DocID)
}

func TestMemoryStoreTenantIsolation(t *testing.T) {
	ctx := t.Context()
	s := NewMemoryStore("", 2)
	for _, tenant := range []string{"acme", "globex"} {
		require.NoError(t, s.EnsureCollection(ctx, tenant))
		require.NoError(t, s.Upsert(ctx, tenant, point(tenant, "same-doc", 1, 0, 1, 0)))
	}

	hits, err := s.Search(ctx, "acme", []float32{1, 0}, 20, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "acme", hits[0].Payload.Tenant)

	require.NoError(t, s.DeleteDocument(ctx, "acme", "same-doc"))
	assert.Equal(t, 0, s.Count("acme"))
	assert.Equal(t, 1, s.Count("globex"))

	hits, err = s.Search(ctx, "unknown", []float32{1, 0}, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
