package service

import (
	"context"
	"fmt"
	"strings"

	"docingest-go/internal/model"
	"docingest-go/pkg/embedding"
	"docingest-go/pkg/log"
	"docingest-go/pkg/vectorstore"
)

// 检索参数的默认值与取值范围。
const (
	DefaultTopK = 5
	MaxTopK     = 20
)

// SearchService 接口定义了搜索操作。
type SearchService interface {
	Search(ctx context.Context, req model.SearchRequest) (*model.SearchResponse, error)
}

type searchService struct {
	embeddingClient embedding.Client
	store           vectorstore.Store
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(embeddingClient embedding.Client, store vectorstore.Store) SearchService {
	return &searchService{embeddingClient: embeddingClient, store: store}
}

// Search 在租户集合内执行语义检索。参数越界时直接拒绝，不做截断。
func (s *searchService) Search(ctx context.Context, req model.SearchRequest) (*model.SearchResponse, error) {
	tenant, err := model.NormalizeTenant(req.Tenant)
	if err != nil {
		return nil, err
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query 不能为空", model.ErrInvalidArgument)
	}
	topK := DefaultTopK
	if req.TopK != nil {
		topK = *req.TopK
		if topK < 1 || topK > MaxTopK {
			return nil, fmt.Errorf("%w: top_k 必须在 1 到 %d 之间, 实际为 %d", model.ErrInvalidArgument, MaxTopK, topK)
		}
	}
	threshold := 0.0
	if req.ScoreThreshold != nil {
		threshold = *req.ScoreThreshold
		if threshold < 0 || threshold > 1 {
			return nil, fmt.Errorf("%w: score_threshold 必须在 0 到 1 之间, 实际为 %v", model.ErrInvalidArgument, threshold)
		}
	}
	log.Infof("[SearchService] 开始检索, tenant: %s, query: '%s', topK: %d, threshold: %.3f", tenant, query, topK, threshold)

	queryVector, err := s.embeddingClient.EmbedQuery(ctx, query)
	if err != nil {
		log.Errorf("[SearchService] 向量化查询失败: %v", err)
		return nil, err
	}

	hits, err := s.store.Search(ctx, tenant, queryVector, topK, threshold)
	if err != nil {
		log.Errorf("[SearchService] 向量检索失败: %v", err)
		return nil, err
	}

	results := make([]model.SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, model.SearchResult{
			Text: h.Payload.Text,
			Metadata: model.SearchMetadata{
				Title:    h.Payload.Title,
				Page:     h.Payload.Page,
				DocID:    h.Payload.DocID,
				ChunkIdx: h.Payload.ChunkIdx,
				Source:   h.Payload.DrivePath,
			},
			Score: h.Score,
		})
	}
	log.Infof("[SearchService] 检索完成, 返回 %d 条结果", len(results))

	return &model.SearchResponse{
		Results:      results,
		TotalResults: len(results),
		Query:        req.Query,
		Tenant:       tenant,
	}, nil
}
