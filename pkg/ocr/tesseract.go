package ocr

import (
	"context"
	"strconv"
	"strings"
)

// Tesseract 通过 tesseract 命令行执行 OCR，使用 TSV 输出计算单词平均置信度。
type Tesseract struct {
	path     string
	language string
	runner   CommandRunner
}

// NewTesseract 创建 tesseract 引擎。
func NewTesseract(path, language string, runner CommandRunner) *Tesseract {
	if path == "" {
		path = "tesseract"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Tesseract{path: path, language: language, runner: runner}
}

// Name 返回引擎名称。
func (t *Tesseract) Name() string { return "tesseract" }

// Recognize 从标准输入读取图片，输出 TSV 到标准输出。
func (t *Tesseract) Recognize(ctx context.Context, image []byte) (Result, error) {
	args := []string{"stdin", "stdout"}
	if t.language != "" {
		args = append(args, "-l", t.language)
	}
	args = append(args, "tsv")

	out, err := t.runner.Run(ctx, image, t.path, args...)
	if err != nil {
		return Result{}, err
	}
	text, conf := parseTSV(string(out))
	return Result{Text: text, Confidence: conf}, nil
}

// parseTSV 按 block/par/line 重建文本行，并返回单词级置信度的均值（0-1）。
func parseTSV(tsv string) (string, float64) {
	var (
		lines    []string
		current  []string
		lineKey  string
		confSum  float64
		confSeen int
	)
	for _, row := range strings.Split(tsv, "\n") {
		fields := strings.Split(strings.TrimRight(row, "\r"), "\t")
		if len(fields) < 12 || fields[0] != "5" {
			continue
		}
		word := strings.TrimSpace(fields[11])
		if word == "" {
			continue
		}
		key := fields[2] + "/" + fields[3] + "/" + fields[4]
		if key != lineKey && len(current) > 0 {
			lines = append(lines, strings.Join(current, " "))
			current = nil
		}
		lineKey = key
		current = append(current, word)

		if conf, err := strconv.ParseFloat(fields[10], 64); err == nil && conf >= 0 {
			confSum += conf
			confSeen++
		}
	}
	if len(current) > 0 {
		lines = append(lines, strings.Join(current, " "))
	}
	if confSeen == 0 {
		return strings.Join(lines, "\n"), 0
	}
	return strings.Join(lines, "\n"), confSum / float64(confSeen) / 100
}
