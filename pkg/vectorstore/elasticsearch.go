package vectorstore

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"docingest-go/internal/config"
	"docingest-go/internal/model"
	"docingest-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// bulkBatchSize 是单个 bulk 请求中最多包含的点数。
const bulkBatchSize = 500

// NewElasticsearchClient 根据配置创建 Elasticsearch 客户端。
func NewElasticsearchClient(esCfg config.ElasticsearchConfig) (*elasticsearch.Client, error) {
	cfg := elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
	}
	if esCfg.InsecureSkipTLS {
		cfg.Transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	}
	return elasticsearch.NewClient(cfg)
}

// ElasticsearchStore 把每个租户映射为一个索引，点存储为带 dense_vector 的文档。
type ElasticsearchStore struct {
	client  *elasticsearch.Client
	prefix  string
	dims    int
	ensured sync.Map
}

// NewElasticsearchStore 创建基于 Elasticsearch 的向量存储。
func NewElasticsearchStore(client *elasticsearch.Client, prefix string, dims int) *ElasticsearchStore {
	return &ElasticsearchStore{client: client, prefix: prefix, dims: dims}
}

// esPoint 是写入索引的文档结构：载荷字段平铺，外加向量。
type esPoint struct {
	model.PointPayload
	Vector []float32 `json:"vector"`
}

func (s *ElasticsearchStore) mapping() string {
	return fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"point_id":   { "type": "keyword" },
				"tenant":     { "type": "keyword" },
				"doc_id":     { "type": "keyword" },
				"title":      { "type": "keyword" },
				"drive_path": { "type": "keyword", "index": false },
				"mime_type":  { "type": "keyword" },
				"page":       { "type": "integer" },
				"chunk_idx":  { "type": "integer" },
				"sha256":     { "type": "keyword" },
				"text":       { "type": "text" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				}
			}
		}
	}`, s.dims)
}

// EnsureCollection 检查索引是否存在，不存在则按固定维度和余弦相似度创建。
func (s *ElasticsearchStore) EnsureCollection(ctx context.Context, tenant string) error {
	name := CollectionName(s.prefix, tenant)
	if _, ok := s.ensured.Load(name); ok {
		return nil
	}

	res, err := s.client.Indices.Exists([]string{name}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: 检查索引 %s 是否存在失败: %w", model.ErrStoreUnavailable, name, err)
	}
	res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		s.ensured.Store(name, struct{}{})
		return nil
	case http.StatusNotFound:
	default:
		return statusError("检查索引", res.StatusCode, nil)
	}

	res, err = s.client.Indices.Create(
		name,
		s.client.Indices.Create.WithBody(strings.NewReader(s.mapping())),
		s.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: 创建索引 %s 失败: %w", model.ErrStoreUnavailable, name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		// 并发创建时另一个请求可能已经建好了索引
		if strings.Contains(string(body), "resource_already_exists_exception") {
			s.ensured.Store(name, struct{}{})
			return nil
		}
		return statusError("创建索引", res.StatusCode, body)
	}

	log.Infof("[VectorStore] 索引 '%s' 创建成功, 维度: %d", name, s.dims)
	s.ensured.Store(name, struct{}{})
	return nil
}

// Upsert 使用 bulk index 写入点，文档 ID 即点 ID，重复写入会覆盖。
func (s *ElasticsearchStore) Upsert(ctx context.Context, tenant string, points ...model.Point) error {
	if err := checkPoints(tenant, s.dims, points); err != nil {
		return err
	}
	name := CollectionName(s.prefix, tenant)
	for start := 0; start < len(points); start += bulkBatchSize {
		end := min(start+bulkBatchSize, len(points))
		if err := s.bulkIndex(ctx, name, points[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *ElasticsearchStore) bulkIndex(ctx context.Context, index string, points []model.Point) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, p := range points {
		meta := map[string]any{"index": map[string]any{"_index": index, "_id": p.ID}}
		if err := enc.Encode(meta); err != nil {
			return err
		}
		if err := enc.Encode(esPoint{PointPayload: p.Payload, Vector: p.Vector}); err != nil {
			return err
		}
	}

	res, err := s.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		s.client.Bulk.WithContext(ctx),
		s.client.Bulk.WithRefresh("wait_for"),
	)
	if err != nil {
		return fmt.Errorf("%w: 批量写入 %s 失败: %w", model.ErrStoreUnavailable, index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("批量写入", res)
	}

	var parsed struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("解析 bulk 响应失败: %w", err)
	}
	if !parsed.Errors {
		return nil
	}
	for _, item := range parsed.Items {
		for _, result := range item {
			if result.Error != nil {
				return fmt.Errorf("写入点 %s 失败 [%d]: %s: %s", result.ID, result.Status, result.Error.Type, result.Error.Reason)
			}
		}
	}
	return fmt.Errorf("bulk 写入返回错误")
}

// Search 使用 script_score 精确计算余弦相似度，按分数降序、点 ID 升序排序。
// Elasticsearch 的分数为 cosine+1（非负），返回前换算回余弦值。
func (s *ElasticsearchStore) Search(ctx context.Context, tenant string, vector []float32, topK int, threshold float64) ([]model.ScoredPoint, error) {
	name := CollectionName(s.prefix, tenant)
	query := map[string]any{
		"size":      topK,
		"min_score": threshold + 1.0,
		"_source":   map[string]any{"excludes": []string{"vector"}},
		"query": map[string]any{
			"script_score": map[string]any{
				"query": map[string]any{
					"bool": map[string]any{
						"filter": []any{map[string]any{"term": map[string]any{"tenant": tenant}}},
					},
				},
				"script": map[string]any{
					"source": "cosineSimilarity(params.query_vector, 'vector') + 1.0",
					"params": map[string]any{"query_vector": vector},
				},
			},
		},
		"sort": []any{
			map[string]any{"_score": "desc"},
			map[string]any{"point_id": "asc"},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, err
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(name),
		s.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: 检索 %s 失败: %w", model.ErrStoreUnavailable, name, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return []model.ScoredPoint{}, nil
	}
	if res.IsError() {
		return nil, responseError("检索", res)
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string             `json:"_id"`
				Score  float64            `json:"_score"`
				Source model.PointPayload `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("解析检索响应失败: %w", err)
	}

	hits := make([]model.ScoredPoint, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		score := h.Score - 1.0
		if score < threshold {
			continue
		}
		hits = append(hits, model.ScoredPoint{ID: h.ID, Score: score, Payload: h.Source})
	}
	sortScored(hits)
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// ListDocuments 使用 composite 聚合分页遍历所有 doc_id。
func (s *ElasticsearchStore) ListDocuments(ctx context.Context, tenant string) ([]model.DocumentSummary, error) {
	name := CollectionName(s.prefix, tenant)
	var (
		docs  []model.DocumentSummary
		after map[string]any
	)
	for {
		composite := map[string]any{
			"size":    1000,
			"sources": []any{map[string]any{"doc_id": map[string]any{"terms": map[string]any{"field": "doc_id"}}}},
		}
		if after != nil {
			composite["after"] = after
		}
		query := map[string]any{
			"size":  0,
			"query": map[string]any{"term": map[string]any{"tenant": tenant}},
			"aggs": map[string]any{
				"docs": map[string]any{
					"composite": composite,
					"aggs": map[string]any{
						"pages": map[string]any{"cardinality": map[string]any{"field": "page", "precision_threshold": 40000}},
						"meta": map[string]any{"top_hits": map[string]any{
							"size":    1,
							"_source": map[string]any{"includes": []string{"title", "drive_path", "mime_type", "sha256"}},
						}},
					},
				},
			},
		}
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(query); err != nil {
			return nil, err
		}

		page, next, err := s.listPage(ctx, name, &buf)
		if err != nil {
			return nil, err
		}
		docs = append(docs, page...)
		if next == nil || len(page) == 0 {
			break
		}
		after = next
	}
	if docs == nil {
		docs = []model.DocumentSummary{}
	}
	return docs, nil
}

func (s *ElasticsearchStore) listPage(ctx context.Context, index string, body io.Reader) ([]model.DocumentSummary, map[string]any, error) {
	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(index),
		s.client.Search.WithBody(body),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: 聚合 %s 失败: %w", model.ErrStoreUnavailable, index, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, nil, nil
	}
	if res.IsError() {
		return nil, nil, responseError("聚合文档", res)
	}

	var parsed struct {
		Aggregations struct {
			Docs struct {
				AfterKey map[string]any `json:"after_key"`
				Buckets  []struct {
					Key      map[string]any `json:"key"`
					DocCount int            `json:"doc_count"`
					Pages    struct {
						Value float64 `json:"value"`
					} `json:"pages"`
					Meta struct {
						Hits struct {
							Hits []struct {
								Source model.PointPayload `json:"_source"`
							} `json:"hits"`
						} `json:"hits"`
					} `json:"meta"`
				} `json:"buckets"`
			} `json:"docs"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, nil, fmt.Errorf("解析聚合响应失败: %w", err)
	}

	out := make([]model.DocumentSummary, 0, len(parsed.Aggregations.Docs.Buckets))
	for _, b := range parsed.Aggregations.Docs.Buckets {
		docID, _ := b.Key["doc_id"].(string)
		summary := model.DocumentSummary{
			DocID:      docID,
			ChunkCount: b.DocCount,
			PageCount:  int(b.Pages.Value),
		}
		if len(b.Meta.Hits.Hits) > 0 {
			src := b.Meta.Hits.Hits[0].Source
			summary.Title = src.Title
			summary.SourcePath = src.DrivePath
			summary.MimeType = src.MimeType
			summary.SHA256 = src.SHA256
		}
		out = append(out, summary)
	}
	return out, parsed.Aggregations.Docs.AfterKey, nil
}

// DeleteDocument 通过 delete_by_query 删除文档的所有点，索引不存在时视为成功。
func (s *ElasticsearchStore) DeleteDocument(ctx context.Context, tenant, docID string) error {
	name := CollectionName(s.prefix, tenant)
	query := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{
					map[string]any{"term": map[string]any{"tenant": tenant}},
					map[string]any{"term": map[string]any{"doc_id": docID}},
				},
			},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return err
	}

	res, err := s.client.DeleteByQuery(
		[]string{name},
		&buf,
		s.client.DeleteByQuery.WithContext(ctx),
		s.client.DeleteByQuery.WithRefresh(true),
		s.client.DeleteByQuery.WithConflicts("proceed"),
	)
	if err != nil {
		return fmt.Errorf("%w: 删除文档 %s 失败: %w", model.ErrStoreUnavailable, docID, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		return responseError("删除文档", res)
	}
	return nil
}

// Ping 检查集群是否可达。
func (s *ElasticsearchStore) Ping(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrStoreUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("Ping", res)
	}
	return nil
}

func responseError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return statusError(op, res.StatusCode, body)
}

// statusError 把 5xx 归类为存储不可用，其余状态码作为普通错误返回。
func statusError(op string, status int, body []byte) error {
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s 返回 [%d]: %s", model.ErrStoreUnavailable, op, status, string(body))
	}
	return fmt.Errorf("Elasticsearch %s 返回错误 [%d]: %s", op, status, string(body))
}
