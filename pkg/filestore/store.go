// Package filestore 封装外部文件源（Google Drive、MinIO）的文件发现与下载。
package filestore

import (
	"context"
	"fmt"
	"io"

	"docingest-go/internal/model"
)

// 支持的文件源类型。
const (
	ProviderGoogleDrive = "gdrive"
	ProviderMinIO       = "minio"
)

// Connection 描述租户授权的一个外部文件源。
type Connection struct {
	ID           string
	Tenant       string
	Provider     string
	RefreshToken string
	Bucket       string
}

// Blob 是下载得到的文件内容。
type Blob struct {
	Name     string
	MimeType string
	Content  []byte
}

// FileStore 是文件源的统一接口。
type FileStore interface {
	// ListFiles 列出给定文件夹下所有可处理的文件，同一文件只出现一次。
	ListFiles(ctx context.Context, conn Connection, folderIDs []string) ([]model.FileReference, error)
	// Download 下载文件内容，超过 maxSize 字节时返回 ErrFileTooLarge。
	Download(ctx context.Context, conn Connection, file model.FileReference, maxSize int64) (*Blob, error)
}

// readLimited 读取至多 maxSize 字节，超出时返回 ErrFileTooLarge。maxSize <= 0 表示不限制。
func readLimited(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: 超过 %d 字节", model.ErrFileTooLarge, maxSize)
	}
	return data, nil
}

// supportedMime 判断 MIME 是否在流水线可处理的范围内。
func supportedMime(mimeType string) bool {
	mimeType = model.NormalizeMime(mimeType)
	for _, m := range model.SupportedMimeTypes() {
		if m == mimeType {
			return true
		}
	}
	return false
}
