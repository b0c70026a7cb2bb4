package model

import (
	"context"
	"errors"
	"fmt"
)

// 流水线与检索路径共用的错误分类。调用方通过 errors.Is 判断类别。
var (
	ErrUnsupportedFormat    = errors.New("不支持的文件格式")
	ErrExtractionFailed     = errors.New("文本提取失败")
	ErrEmbeddingUnavailable = errors.New("向量化服务不可用")
	ErrStoreUnavailable     = errors.New("向量存储不可用")
	ErrAuthExpired          = errors.New("文件源授权已失效")
	ErrNotFound             = errors.New("资源不存在")
	ErrInvalidArgument      = errors.New("参数不合法")
	ErrJobNotFound          = errors.New("导入任务不存在")
	ErrFileTooLarge         = errors.New("文件超过大小限制")
)

// 文件处理的阶段名，记录在 FileProcessingError 中。
const (
	StageDownload = "download"
	StageExtract  = "extract"
	StageChunk    = "chunk"
	StageEmbed    = "embed"
	StageStore    = "store"
	// StagePanic 表示处理过程中发生 panic，无法归入具体阶段。
	StagePanic    = "panic"
)

// FileProcessingError 是单个文件在某个阶段失败时的包装错误。
type FileProcessingError struct {
	FileID string
	Stage  string
	Err    error
}

func (e *FileProcessingError) Error() string {
	return fmt.Sprintf("文件 %s 在 %s 阶段失败: %v", e.FileID, e.Stage, e.Err)
}

func (e *FileProcessingError) Unwrap() error {
	return e.Err
}

// IsRetryable 判断错误是否属于可在之后重新执行的暂时性故障。
func IsRetryable(err error) bool {
	return errors.Is(err, ErrEmbeddingUnavailable) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}
