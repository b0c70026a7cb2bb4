// Package pipeline 定义了文件处理的核心流程。
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"docingest-go/internal/config"
	"docingest-go/internal/model"
	"docingest-go/pkg/embedding"
	"docingest-go/pkg/filestore"
	"docingest-go/pkg/log"
	"docingest-go/pkg/vectorstore"
)

// PageExtractor 把文件内容转换为按页的文本。
type PageExtractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) ([]model.Page, error)
}

// FileTask 描述单个文件的一次处理。
type FileTask struct {
	Tenant     string
	Connection filestore.Connection
	File       model.FileReference
	Mode       model.IngestMode
	// StoredHash 是向量库中该文档已有的 sha256，为空表示文档尚未导入。
	StoredHash string
}

// FileResult 是单个文件的处理结果。
type FileResult struct {
	SHA256  string
	Pages   int
	Chunks  int
	Skipped bool
}

// Processor 封装了单个文件从下载到写入向量库的全部步骤。
type Processor struct {
	files     filestore.FileStore
	extractor PageExtractor
	chunker   *Chunker
	embedder  embedding.Client
	store     vectorstore.Store
	cfg       config.IngestConfig
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(
	files filestore.FileStore,
	extractor PageExtractor,
	chunker *Chunker,
	embedder embedding.Client,
	store vectorstore.Store,
	cfg config.IngestConfig,
) *Processor {
	return &Processor{
		files:     files,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		cfg:       cfg,
	}
}

// Process 是文件处理的主函数。失败时返回 *model.FileProcessingError。
func (p *Processor) Process(ctx context.Context, task FileTask) (*FileResult, error) {
	file := task.File
	incremental := task.Mode == model.IngestModeIncremental
	log.Infof("[Processor] 开始处理文件, Tenant: %s, FileID: %s, FileName: %s, Mode: %s", task.Tenant, file.ID, file.Name, task.Mode)

	// 文件源提供了校验和时，无需下载即可判断内容是否变化
	if incremental && file.ContentHash != "" && file.ContentHash == task.StoredHash {
		log.Infof("[Processor] 文件 %s 校验和未变化, 跳过", file.ID)
		return &FileResult{SHA256: file.ContentHash, Skipped: true}, nil
	}

	// 1. 下载
	log.Infof("[Processor] 步骤1: 下载文件, Connection: %s, FileID: %s", task.Connection.ID, file.ID)
	blob, err := withTimeout(ctx, p.cfg.DownloadTimeout, func(ctx context.Context) (*filestore.Blob, error) {
		return p.files.Download(ctx, task.Connection, file, p.cfg.MaxFileSize())
	})
	if err != nil {
		return nil, p.fail(file, model.StageDownload, err)
	}
	sum := sha256.Sum256(blob.Content)
	digest := hex.EncodeToString(sum[:])
	log.Infof("[Processor] 步骤1: 下载成功, 大小: %d 字节, SHA256: %s", len(blob.Content), digest)

	if incremental && digest == task.StoredHash {
		log.Infof("[Processor] 文件 %s 内容未变化, 跳过", file.ID)
		return &FileResult{SHA256: digest, Skipped: true}, nil
	}

	// 2. 提取文本
	mimeType := blob.MimeType
	if mimeType == "" {
		mimeType = file.MimeType
	}
	log.Infof("[Processor] 步骤2: 提取文本, MimeType: %s", mimeType)
	pages, err := withTimeout(ctx, p.cfg.ExtractTimeout, func(ctx context.Context) ([]model.Page, error) {
		return p.extractor.Extract(ctx, blob.Content, mimeType)
	})
	if err != nil {
		return nil, p.fail(file, model.StageExtract, err)
	}
	log.Infof("[Processor] 步骤2: 文本提取成功, 共 %d 页", len(pages))

	// 3. 分块
	pieces := p.chunker.Chunk(pages)
	if len(pieces) == 0 {
		return nil, p.fail(file, model.StageChunk, fmt.Errorf("%w: 未生成任何文本分块", model.ErrExtractionFailed))
	}
	log.Infof("[Processor] 步骤3: 分块完成, chunkSize: %d, chunkOverlap: %d, 共 %d 个分块", p.chunker.Size(), p.chunker.Overlap(), len(pieces))

	// 4. 向量化
	texts := make([]string, len(pieces))
	for i, c := range pieces {
		texts[i] = c.Text
	}
	vectors, err := withTimeout(ctx, p.cfg.EmbedTimeout, func(ctx context.Context) ([][]float32, error) {
		return p.embedder.EmbedBatch(ctx, texts)
	})
	if err != nil {
		return nil, p.fail(file, model.StageEmbed, err)
	}
	log.Infof("[Processor] 步骤4: 向量化完成, 共 %d 个向量", len(vectors))

	points := make([]model.Point, len(pieces))
	for i, c := range pieces {
		points[i] = vectorstore.NewPoint(model.Chunk{
			Tenant:     task.Tenant,
			DocID:      file.ID,
			Title:      file.Name,
			SourcePath: file.Path,
			MimeType:   model.NormalizeMime(mimeType),
			PageNumber: c.PageNumber,
			ChunkIndex: c.ChunkIndex,
			SHA256:     digest,
			Text:       c.Text,
			Embedding:  vectors[i],
		})
	}

	// 5. 写入向量库。先删除旧版本，避免文档缩短后残留多余的分块
	_, err = withTimeout(ctx, p.cfg.StoreTimeout, func(ctx context.Context) (struct{}, error) {
		if task.Mode == model.IngestModeFull || task.StoredHash != "" {
			if err := p.store.DeleteDocument(ctx, task.Tenant, file.ID); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, p.store.Upsert(ctx, task.Tenant, points...)
	})
	if err != nil {
		return nil, p.fail(file, model.StageStore, err)
	}
	log.Infof("[Processor] 步骤5: 文件处理成功, FileID: %s, 页数: %d, 分块: %d", file.ID, len(pages), len(points))

	return &FileResult{SHA256: digest, Pages: len(pages), Chunks: len(points)}, nil
}

func (p *Processor) fail(file model.FileReference, stage string, err error) error {
	log.Errorf("[Processor] 文件 %s (%s) 在 %s 阶段失败: %v", file.ID, file.Name, stage, err)
	return &model.FileProcessingError{FileID: file.ID, Stage: stage, Err: err}
}

// withTimeout 在带超时的子 context 中执行 fn，timeout <= 0 表示不设超时。
func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx)
}
