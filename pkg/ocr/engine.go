// Package ocr 提供 OCR 引擎适配器以及按顺序回退的识别链。
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docingest-go/pkg/log"
)

// ErrNoText 表示识别链中没有任何引擎产出文本。
var ErrNoText = errors.New("OCR 未识别出任何文本")

// Result 是一次 OCR 的输出，Confidence 取值 [0,1]。
type Result struct {
	Text       string
	Confidence float64
	Engine     string
}

// Engine 是无状态的 OCR 引擎：输入单页图片，输出文本与置信度。
type Engine interface {
	Name() string
	Recognize(ctx context.Context, image []byte) (Result, error)
}

// Acceptable 判断一次识别结果是否足够好，可以停止尝试后续引擎。
type Acceptable func(Result) bool

// MinConfidence 返回要求文本非空且置信度不低于阈值的判定函数。
func MinConfidence(threshold float64) Acceptable {
	return func(r Result) bool {
		return strings.TrimSpace(r.Text) != "" && r.Confidence >= threshold
	}
}

// Chain 依次尝试各个引擎，返回第一个可接受的结果；
// 若都不可接受，则返回置信度最高的非空结果。
type Chain struct {
	engines []Engine
	accept  Acceptable
}

// NewChain 创建识别链。accept 为 nil 时只要求文本非空。
func NewChain(accept Acceptable, engines ...Engine) *Chain {
	if accept == nil {
		accept = MinConfidence(0)
	}
	return &Chain{engines: engines, accept: accept}
}

// Engines 返回识别链中的引擎名称，按尝试顺序排列。
func (c *Chain) Engines() []string {
	names := make([]string, 0, len(c.engines))
	for _, e := range c.engines {
		names = append(names, e.Name())
	}
	return names
}

// Recognize 对单页图片执行识别。
func (c *Chain) Recognize(ctx context.Context, image []byte) (Result, error) {
	var (
		best     Result
		haveBest bool
		errs     []error
	)
	for _, engine := range c.engines {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		res, err := engine.Recognize(ctx, image)
		if err != nil {
			log.Warnf("[OCR] 引擎 %s 识别失败: %v", engine.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", engine.Name(), err))
			continue
		}
		res.Engine = engine.Name()
		if c.accept(res) {
			return res, nil
		}
		log.Debugf("[OCR] 引擎 %s 结果不可接受, 置信度: %.2f, 文本长度: %d", engine.Name(), res.Confidence, len(res.Text))
		if strings.TrimSpace(res.Text) != "" && (!haveBest || res.Confidence > best.Confidence) {
			best, haveBest = res, true
		}
	}
	if haveBest {
		return best, nil
	}
	if len(errs) > 0 {
		return Result{}, fmt.Errorf("%w: %w", ErrNoText, errors.Join(errs...))
	}
	return Result{}, ErrNoText
}
