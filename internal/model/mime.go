package model

import (
	"mime"
	"strings"
)

// 流水线能够处理的 MIME 类型。
const (
	MimePDF      = "application/pdf"
	MimeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeDOC      = "application/msword"
	MimePPTX     = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MimeODT      = "application/vnd.oasis.opendocument.text"
	MimeRTF      = "application/rtf"
	MimeHTML     = "text/html"
	MimeText     = "text/plain"
	MimeCSV      = "text/csv"
	MimeMarkdown = "text/markdown"
	MimePNG      = "image/png"
	MimeJPEG     = "image/jpeg"
	MimeTIFF     = "image/tiff"
	MimeOctet    = "application/octet-stream"
)

// SupportedMimeTypes 返回所有可提取文本的 MIME 类型，用于过滤文件源的列表结果。
func SupportedMimeTypes() []string {
	return []string{
		MimePDF, MimeDOCX, MimeDOC, MimePPTX, MimeODT, MimeRTF, MimeHTML,
		MimeText, MimeCSV, MimeMarkdown,
		MimePNG, MimeJPEG, MimeTIFF,
	}
}

// NormalizeMime 去掉参数部分并转为小写，例如 "text/plain; charset=utf-8" -> "text/plain"。
func NormalizeMime(mimeType string) string {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		return strings.ToLower(mt)
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
