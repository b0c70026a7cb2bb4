package ocr

import (
	"context"
	"net/http"
)

// imageRecognizer 是 Tika 客户端中与 OCR 相关的部分。
type imageRecognizer interface {
	OCRImage(ctx context.Context, image []byte, contentType, language string) (string, error)
}

// TikaEngine 把图片交给 Tika 服务器识别。Tika 不返回置信度，使用配置的固定值。
type TikaEngine struct {
	client     imageRecognizer
	language   string
	confidence float64
}

// NewTikaEngine 创建基于 Tika 的 OCR 引擎。
func NewTikaEngine(client imageRecognizer, language string, confidence float64) *TikaEngine {
	return &TikaEngine{client: client, language: language, confidence: confidence}
}

// Name 返回引擎名称。
func (e *TikaEngine) Name() string { return "tika" }

// Recognize 调用 Tika 识别图片文本。
func (e *TikaEngine) Recognize(ctx context.Context, image []byte) (Result, error) {
	text, err := e.client.OCRImage(ctx, image, http.DetectContentType(image), e.language)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: text, Confidence: e.confidence}, nil
}
