package filestore

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"

	"docingest-go/internal/config"
	"docingest-go/internal/model"
	"docingest-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// extensionMimes 覆盖系统 MIME 表里经常缺失的 Office 类型。
var extensionMimes = map[string]string{
	".pdf":  model.MimePDF,
	".docx": model.MimeDOCX,
	".doc":  model.MimeDOC,
	".pptx": model.MimePPTX,
	".odt":  model.MimeODT,
	".rtf":  model.MimeRTF,
	".txt":  model.MimeText,
	".csv":  model.MimeCSV,
	".md":   model.MimeMarkdown,
	".htm":  model.MimeHTML,
	".html": model.MimeHTML,
	".png":  model.MimePNG,
	".jpg":  model.MimeJPEG,
	".jpeg": model.MimeJPEG,
	".tif":  model.MimeTIFF,
	".tiff": model.MimeTIFF,
}

// MinIOStore 把 S3/MinIO 存储桶当作文件源，文件夹 ID 即对象前缀。
type MinIOStore struct {
	client *minio.Client
}

// NewMinIOClient 根据配置创建 MinIO 客户端。
func NewMinIOClient(cfg config.MinIOConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}
	return client, nil
}

// NewMinIOStore 创建基于对象存储的文件源。
func NewMinIOStore(client *minio.Client) *MinIOStore {
	return &MinIOStore{client: client}
}

func (s *MinIOStore) ListFiles(ctx context.Context, conn Connection, folderIDs []string) ([]model.FileReference, error) {
	if conn.Bucket == "" {
		return nil, fmt.Errorf("%w: 连接 %s 未配置 bucket", model.ErrInvalidArgument, conn.ID)
	}
	exists, err := s.client.BucketExists(ctx, conn.Bucket)
	if err != nil {
		return nil, wrapMinIOError("检查存储桶", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: 存储桶 %s", model.ErrNotFound, conn.Bucket)
	}
	if len(folderIDs) == 0 {
		folderIDs = []string{""}
	}

	seen := make(map[string]struct{})
	var files []model.FileReference
	for _, prefix := range folderIDs {
		prefix = strings.TrimPrefix(prefix, "/")
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		for obj := range s.client.ListObjects(ctx, conn.Bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
			if obj.Err != nil {
				return nil, wrapMinIOError(fmt.Sprintf("列出前缀 %q", prefix), obj.Err)
			}
			if strings.HasSuffix(obj.Key, "/") {
				continue
			}
			mimeType := mimeFromName(obj.Key)
			if !supportedMime(mimeType) {
				continue
			}
			if _, dup := seen[obj.Key]; dup {
				continue
			}
			seen[obj.Key] = struct{}{}
			files = append(files, model.FileReference{
				ID:       obj.Key,
				Name:     path.Base(obj.Key),
				MimeType: mimeType,
				Size:     obj.Size,
				Path:     fmt.Sprintf("s3://%s/%s", conn.Bucket, obj.Key),
			})
		}
	}
	log.Infof("[MinIO] 连接 %s 存储桶 %s 发现 %d 个文件", conn.ID, conn.Bucket, len(files))
	return files, nil
}

func (s *MinIOStore) Download(ctx context.Context, conn Connection, file model.FileReference, maxSize int64) (*Blob, error) {
	if maxSize > 0 && file.Size > maxSize {
		return nil, fmt.Errorf("%w: %s 大小 %d 字节", model.ErrFileTooLarge, file.Name, file.Size)
	}
	obj, err := s.client.GetObject(ctx, conn.Bucket, file.ID, minio.GetObjectOptions{})
	if err != nil {
		return nil, wrapMinIOError("获取对象", err)
	}
	defer obj.Close()

	data, err := readLimited(obj, maxSize)
	if err != nil {
		return nil, wrapMinIOError("读取对象", err)
	}
	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = mimeFromName(file.ID)
	}
	return &Blob{Name: file.Name, MimeType: mimeType, Content: data}, nil
}

// wrapMinIOError 把 S3 错误码归类为流水线的错误类型。
func wrapMinIOError(op string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %s: %v", model.ErrNotFound, op, err)
	case "AccessDenied", "InvalidAccessKeyId", "ExpiredToken", "SignatureDoesNotMatch":
		return fmt.Errorf("%w: %s: %v", model.ErrAuthExpired, op, err)
	}
	return fmt.Errorf("%s 失败: %w", op, err)
}

func mimeFromName(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if m, ok := extensionMimes[ext]; ok {
		return m
	}
	if m := mime.TypeByExtension(ext); m != "" {
		return model.NormalizeMime(m)
	}
	return model.MimeOctet
}
