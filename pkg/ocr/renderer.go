package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// PageRenderer 把 PDF 的某一页渲染成 PNG 图片，页码从 1 开始。
type PageRenderer interface {
	RenderPage(ctx context.Context, pdfPath string, page int) ([]byte, error)
}

// Pdftoppm 使用 poppler 的 pdftoppm 渲染页面。
type Pdftoppm struct {
	path   string
	dpi    int
	runner CommandRunner
}

// NewPdftoppm 创建页面渲染器。
func NewPdftoppm(path string, dpi int, runner CommandRunner) *Pdftoppm {
	if path == "" {
		path = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 200
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Pdftoppm{path: path, dpi: dpi, runner: runner}
}

// RenderPage 渲染指定页面到临时目录并读回 PNG 数据。
func (p *Pdftoppm) RenderPage(ctx context.Context, pdfPath string, page int) ([]byte, error) {
	dir, err := os.MkdirTemp("", "docingest-render-*")
	if err != nil {
		return nil, fmt.Errorf("创建临时目录失败: %w", err)
	}
	defer os.RemoveAll(dir)

	root := filepath.Join(dir, "page")
	n := strconv.Itoa(page)
	_, err = p.runner.Run(ctx, nil, p.path,
		"-f", n, "-l", n,
		"-r", strconv.Itoa(p.dpi),
		"-png", "-singlefile",
		pdfPath, root)
	if err != nil {
		return nil, fmt.Errorf("渲染第 %d 页失败: %w", page, err)
	}

	img, err := os.ReadFile(root + ".png")
	if err != nil {
		return nil, fmt.Errorf("读取第 %d 页渲染结果失败: %w", page, err)
	}
	return img, nil
}
