package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"docingest-go/internal/model"
)

// MemoryStore 是进程内的向量存储，使用暴力余弦相似度检索。
type MemoryStore struct {
	mu          sync.RWMutex
	prefix      string
	dims        int
	collections map[string]map[string]model.Point
}

// NewMemoryStore 创建内存向量存储。
func NewMemoryStore(prefix string, dims int) *MemoryStore {
	return &MemoryStore{
		prefix:      prefix,
		dims:        dims,
		collections: make(map[string]map[string]model.Point),
	}
}

func (s *MemoryStore) EnsureCollection(_ context.Context, tenant string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := CollectionName(s.prefix, tenant)
	if _, ok := s.collections[name]; !ok {
		s.collections[name] = make(map[string]model.Point)
	}
	return nil
}

func (s *MemoryStore) Upsert(_ context.Context, tenant string, points ...model.Point) error {
	if err := checkPoints(tenant, s.dims, points); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.collections[CollectionName(s.prefix, tenant)]
	if !ok {
		return fmt.Errorf("%w: 租户 %s 的集合尚未创建", model.ErrNotFound, tenant)
	}
	for _, p := range points {
		p.Vector = append([]float32(nil), p.Vector...)
		coll[p.ID] = p
	}
	return nil
}

func (s *MemoryStore) Search(_ context.Context, tenant string, vector []float32, topK int, threshold float64) ([]model.ScoredPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll := s.collections[CollectionName(s.prefix, tenant)]

	hits := make([]model.ScoredPoint, 0, len(coll))
	for id, p := range coll {
		score := cosine(vector, p.Vector)
		if score < threshold {
			continue
		}
		hits = append(hits, model.ScoredPoint{ID: id, Score: score, Payload: p.Payload})
	}
	sortScored(hits)
	if topK >= 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *MemoryStore) ListDocuments(_ context.Context, tenant string) ([]model.DocumentSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll := s.collections[CollectionName(s.prefix, tenant)]

	docs := make(map[string]*model.DocumentSummary)
	pages := make(map[string]map[int]struct{})
	for _, p := range coll {
		d, ok := docs[p.Payload.DocID]
		if !ok {
			d = &model.DocumentSummary{
				DocID:      p.Payload.DocID,
				Title:      p.Payload.Title,
				SourcePath: p.Payload.DrivePath,
				MimeType:   p.Payload.MimeType,
				SHA256:     p.Payload.SHA256,
			}
			docs[p.Payload.DocID] = d
			pages[p.Payload.DocID] = make(map[int]struct{})
		}
		d.ChunkCount++
		pages[p.Payload.DocID][p.Payload.Page] = struct{}{}
	}

	out := make([]model.DocumentSummary, 0, len(docs))
	for id, d := range docs {
		d.PageCount = len(pages[id])
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocID < out[j].DocID })
	return out, nil
}

func (s *MemoryStore) DeleteDocument(_ context.Context, tenant, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.collections[CollectionName(s.prefix, tenant)]
	for id, p := range coll {
		if p.Payload.DocID == docID {
			delete(coll, id)
		}
	}
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// Count 返回租户集合中的点数。
func (s *MemoryStore) Count(tenant string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[CollectionName(s.prefix, tenant)])
}

// PointIDs 返回租户集合中某个文档的所有点 ID（升序）。
func (s *MemoryStore) PointIDs(tenant, docID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, p := range s.collections[CollectionName(s.prefix, tenant)] {
		if p.Payload.DocID == docID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// sortScored 按分数降序排序，分数相同时按点 ID 升序。
func sortScored(hits []model.ScoredPoint) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
