package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"docingest-go/internal/model"
	"docingest-go/pkg/log"
	"docingest-go/pkg/ocr"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultPageSize 是无分页格式（DOCX、纯文本）拆分伪页时每页的目标字符数。
const DefaultPageSize = 2000

// DocumentParser 是结构化文档解析服务（Tika）的抽象。
type DocumentParser interface {
	ExtractPages(ctx context.Context, data []byte, contentType string) ([]string, error)
	ExtractText(ctx context.Context, data []byte, contentType string) (string, error)
}

// Recognizer 对单页图片执行 OCR，通常是 *ocr.Chain。
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (ocr.Result, error)
}

// Extractor 根据 MIME 类型选择提取策略，输出按顺序排列的页面文本。
type Extractor struct {
	parser   DocumentParser
	renderer ocr.PageRenderer
	ocr      Recognizer
	pageSize int
}

// NewExtractor 创建提取器。parser、renderer、recognizer 均可为 nil，对应的格式会提取失败。
func NewExtractor(parser DocumentParser, renderer ocr.PageRenderer, recognizer Recognizer) *Extractor {
	return &Extractor{
		parser:   parser,
		renderer: renderer,
		ocr:      recognizer,
		pageSize: DefaultPageSize,
	}
}

var (
	plainTextTypes = map[string]bool{model.MimeText: true, model.MimeCSV: true, model.MimeMarkdown: true}
	parsedTypes    = map[string]bool{model.MimeDOC: true, model.MimePPTX: true, model.MimeODT: true, model.MimeRTF: true, model.MimeHTML: true}
	imageTypes     = map[string]bool{model.MimePNG: true, model.MimeJPEG: true, model.MimeTIFF: true}
)

// Extract 提取文件文本。未知格式返回 ErrUnsupportedFormat，所有页面都没有文本时返回 ErrExtractionFailed。
func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType string) ([]model.Page, error) {
	mt := model.NormalizeMime(mimeType)
	if mt == "" || mt == model.MimeOctet {
		mt = model.NormalizeMime(mimetype.Detect(data).String())
		log.Debugf("[Extractor] 声明类型为 %q, 探测结果: %s", mimeType, mt)
	}

	var (
		pages []model.Page
		err   error
	)
	switch {
	case mt == model.MimePDF:
		pages, err = e.extractPDF(ctx, data)
	case mt == model.MimeDOCX:
		var text string
		if text, err = extractDOCX(data); err == nil {
			pages = paginate(text, e.pageSize)
		}
	case plainTextTypes[mt]:
		pages = paginate(strings.ToValidUTF8(string(data), ""), e.pageSize)
	case parsedTypes[mt]:
		pages, err = e.extractParsed(ctx, data, mt)
	case imageTypes[mt]:
		pages, err = e.extractImage(ctx, data)
	default:
		return nil, fmt.Errorf("%w: %s", model.ErrUnsupportedFormat, mt)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrExtractionFailed, err)
	}
	if !hasText(pages) {
		return nil, fmt.Errorf("%w: 未提取到任何文本 (%s)", model.ErrExtractionFailed, mt)
	}
	return pages, nil
}

// extractPDF 使用文本层；空白页视为扫描页，渲染后走 OCR。单页失败只影响该页。
func (e *Extractor) extractPDF(ctx context.Context, data []byte) ([]model.Page, error) {
	if e.parser == nil {
		return nil, fmt.Errorf("未配置文档解析服务")
	}
	texts, err := e.parser.ExtractPages(ctx, data, model.MimePDF)
	if err != nil {
		return nil, err
	}

	var pdfPath string
	defer func() {
		if pdfPath != "" {
			_ = os.Remove(pdfPath)
		}
	}()

	pages := make([]model.Page, 0, len(texts))
	for i, text := range texts {
		page := model.Page{PageNumber: i + 1, Text: text, Confidence: 1}
		if strings.TrimSpace(text) == "" {
			res, err := e.ocrPDFPage(ctx, data, &pdfPath, page.PageNumber)
			if err != nil {
				log.Warnf("[Extractor] 第 %d 页 OCR 失败, 跳过该页: %v", page.PageNumber, err)
				page.Text = ""
				page.Confidence = 0
			} else {
				page.Text = res.Text
				page.Confidence = res.Confidence
				page.OCR = true
				page.Engine = res.Engine
			}
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func (e *Extractor) ocrPDFPage(ctx context.Context, data []byte, pdfPath *string, page int) (ocr.Result, error) {
	if e.renderer == nil || e.ocr == nil {
		return ocr.Result{}, fmt.Errorf("未配置 OCR")
	}
	if *pdfPath == "" {
		f, err := os.CreateTemp("", "docingest-*.pdf")
		if err != nil {
			return ocr.Result{}, fmt.Errorf("创建临时文件失败: %w", err)
		}
		*pdfPath = f.Name()
		_, werr := f.Write(data)
		cerr := f.Close()
		if werr != nil || cerr != nil {
			return ocr.Result{}, fmt.Errorf("写入临时文件失败: %v %v", werr, cerr)
		}
	}
	image, err := e.renderer.RenderPage(ctx, *pdfPath, page)
	if err != nil {
		return ocr.Result{}, err
	}
	return e.ocr.Recognize(ctx, image)
}

func (e *Extractor) extractParsed(ctx context.Context, data []byte, mt string) ([]model.Page, error) {
	if e.parser == nil {
		return nil, fmt.Errorf("未配置文档解析服务")
	}
	text, err := e.parser.ExtractText(ctx, data, mt)
	if err != nil {
		return nil, err
	}
	return paginate(text, e.pageSize), nil
}

func (e *Extractor) extractImage(ctx context.Context, data []byte) ([]model.Page, error) {
	if e.ocr == nil {
		return nil, fmt.Errorf("未配置 OCR")
	}
	res, err := e.ocr.Recognize(ctx, data)
	if err != nil {
		return nil, err
	}
	return []model.Page{{PageNumber: 1, Text: res.Text, Confidence: res.Confidence, OCR: true, Engine: res.Engine}}, nil
}

// paginate 按行累积文本，超过 pageSize 个字符时开始新的一页；超长的单行独占一页。
func paginate(text string, pageSize int) []model.Page {
	var (
		pages   []model.Page
		current []string
		length  int
	)
	flush := func() {
		joined := strings.Join(current, "\n")
		if strings.TrimSpace(joined) != "" {
			pages = append(pages, model.Page{PageNumber: len(pages) + 1, Text: joined, Confidence: 1})
		}
		current, length = nil, 0
	}
	for _, line := range strings.Split(text, "\n") {
		n := utf8.RuneCountInString(line) + 1
		if length > 0 && length+n > pageSize {
			flush()
		}
		current = append(current, line)
		length += n
	}
	flush()
	return pages
}

func hasText(pages []model.Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}
