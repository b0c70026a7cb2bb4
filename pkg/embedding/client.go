// Package embedding provides a client for interacting with embedding models.
package embedding

import (
	"context"
	"fmt"
	"time"

	"docingest-go/internal/config"
	"docingest-go/internal/model"
	"docingest-go/pkg/log"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Client defines the interface for an embedding client.
// 文档与查询使用同一模型，输出维度一致，可直接比较。
type Client interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

type openAICompatibleClient struct {
	cfg      config.EmbeddingConfig
	embedder embeddings.Embedder
}

// NewClient 基于 OpenAI 兼容接口创建 embedding 客户端。进程内只应创建一次并复用。
func NewClient(cfg config.EmbeddingConfig) (Client, error) {
	token := cfg.APIKey
	if token == "" {
		// 本地部署的兼容服务通常不校验 token
		token = "none"
	}
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("创建 embedding 客户端失败: %w", err)
	}
	return newClient(cfg, llm)
}

func newClient(cfg config.EmbeddingConfig, backend embeddings.EmbedderClient) (Client, error) {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}
	embedder, err := embeddings.NewEmbedder(backend,
		embeddings.WithBatchSize(batchSize),
		embeddings.WithStripNewLines(true),
	)
	if err != nil {
		return nil, fmt.Errorf("创建 embedder 失败: %w", err)
	}
	return &openAICompatibleClient{cfg: cfg, embedder: embedder}, nil
}

// Dimensions 返回配置的向量维度。
func (c *openAICompatibleClient) Dimensions() int {
	return c.cfg.Dimensions
}

// EmbedBatch 批量向量化，输出顺序与输入一致。
func (c *openAICompatibleClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	vectors, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		log.Errorf("[EmbeddingClient] 调用 Embedding API 失败, model: %s, count: %d, error: %v", c.cfg.Model, len(texts), err)
		return nil, fmt.Errorf("%w: %w", model.ErrEmbeddingUnavailable, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: 返回向量数 %d 与输入数 %d 不一致", model.ErrEmbeddingUnavailable, len(vectors), len(texts))
	}
	for i, v := range vectors {
		if err := c.checkDimension(v); err != nil {
			return nil, fmt.Errorf("第 %d 个向量: %w", i, err)
		}
	}
	log.Debugf("[EmbeddingClient] 批量向量化完成, count: %d, 耗时: %s", len(texts), time.Since(start))
	return vectors, nil
}

// EmbedQuery 向量化单条查询。
func (c *openAICompatibleClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	vector, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		log.Errorf("[EmbeddingClient] 查询向量化失败, error: %v", err)
		return nil, fmt.Errorf("%w: %w", model.ErrEmbeddingUnavailable, err)
	}
	if err := c.checkDimension(vector); err != nil {
		return nil, err
	}
	return vector, nil
}

func (c *openAICompatibleClient) checkDimension(v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: 返回了空向量", model.ErrEmbeddingUnavailable)
	}
	if c.cfg.Dimensions > 0 && len(v) != c.cfg.Dimensions {
		return fmt.Errorf("%w: 向量维度 %d 与配置 %d 不一致", model.ErrEmbeddingUnavailable, len(v), c.cfg.Dimensions)
	}
	return nil
}

func (c *openAICompatibleClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.Timeout)
}
