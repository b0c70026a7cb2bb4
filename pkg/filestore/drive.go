package filestore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"docingest-go/internal/config"
	"docingest-go/internal/model"
	"docingest-go/pkg/log"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Google Workspace 文件类型，需要通过 export 接口转换后下载。
const (
	mimeGoogleDoc    = "application/vnd.google-apps.document"
	mimeGoogleSheet  = "application/vnd.google-apps.spreadsheet"
	mimeGoogleSlides = "application/vnd.google-apps.presentation"
)

// exportFormats 把 Workspace 类型映射为导出格式。
var exportFormats = map[string]string{
	mimeGoogleDoc:    model.MimeDOCX,
	mimeGoogleSheet:  model.MimeCSV,
	mimeGoogleSlides: model.MimePPTX,
}

const driveFileFields = "nextPageToken, files(id, name, mimeType, size, sha256Checksum, webViewLink)"

// rateLimitBackoff 是收到 429 后暂停请求的时长。
const rateLimitBackoff = 5 * time.Second

// DriveServiceFactory 为连接创建 Drive 客户端。
type DriveServiceFactory func(ctx context.Context, conn Connection) (*drive.Service, error)

// DriveStore 通过 Google Drive v3 API 列出和下载文件，每个连接复用一个客户端。
type DriveStore struct {
	newService DriveServiceFactory
	limiter    *RateLimiter
	services   sync.Map
}

// NewDriveStore 使用 OAuth 客户端凭据和每个连接的 refresh token 访问 Drive。
func NewDriveStore(cfg config.GoogleConfig) *DriveStore {
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveReadonlyScope},
	}
	factory := func(ctx context.Context, conn Connection) (*drive.Service, error) {
		if conn.RefreshToken == "" {
			return nil, fmt.Errorf("%w: 连接 %s 缺少 refresh token", model.ErrAuthExpired, conn.ID)
		}
		// token source 的生命周期跟随客户端，不能绑定在单次请求的 ctx 上
		ts := oauthCfg.TokenSource(context.Background(), &oauth2.Token{RefreshToken: conn.RefreshToken})
		return drive.NewService(ctx, option.WithTokenSource(ts))
	}
	return NewDriveStoreWithFactory(factory, NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst))
}

// NewDriveStoreWithFactory 使用自定义的客户端工厂创建 DriveStore。
func NewDriveStoreWithFactory(factory DriveServiceFactory, limiter *RateLimiter) *DriveStore {
	if limiter == nil {
		limiter = NewRateLimiter(0, 0)
	}
	return &DriveStore{newService: factory, limiter: limiter}
}

func (s *DriveStore) service(ctx context.Context, conn Connection) (*drive.Service, error) {
	if svc, ok := s.services.Load(conn.ID); ok {
		return svc.(*drive.Service), nil
	}
	svc, err := s.newService(ctx, conn)
	if err != nil {
		return nil, err
	}
	actual, _ := s.services.LoadOrStore(conn.ID, svc)
	return actual.(*drive.Service), nil
}

// ListFiles 列出每个文件夹的直接子文件（不递归），按文件 ID 去重。
func (s *DriveStore) ListFiles(ctx context.Context, conn Connection, folderIDs []string) ([]model.FileReference, error) {
	svc, err := s.service(ctx, conn)
	if err != nil {
		return nil, err
	}
	if len(folderIDs) == 0 {
		folderIDs = []string{"root"}
	}

	seen := make(map[string]struct{})
	var files []model.FileReference
	for _, folderID := range folderIDs {
		call := svc.Files.List().
			Q(folderQuery(folderID)).
			Fields(driveFileFields).
			PageSize(200).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true)

		err := call.Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				if _, dup := seen[f.Id]; dup {
					continue
				}
				seen[f.Id] = struct{}{}
				files = append(files, toFileReference(f))
			}
			return s.limiter.Wait(ctx)
		})
		if err != nil {
			return nil, s.wrapError(fmt.Sprintf("列出文件夹 %s", folderID), err)
		}
		log.Infof("[Drive] 连接 %s 文件夹 %s 累计发现 %d 个文件", conn.ID, folderID, len(files))
	}
	return files, nil
}

// Download 下载文件内容，Workspace 文件按 exportFormats 导出，Blob.MimeType 为导出后的类型。
func (s *DriveStore) Download(ctx context.Context, conn Connection, file model.FileReference, maxSize int64) (*Blob, error) {
	if maxSize > 0 && file.Size > maxSize {
		return nil, fmt.Errorf("%w: %s 大小 %d 字节", model.ErrFileTooLarge, file.Name, file.Size)
	}
	svc, err := s.service(ctx, conn)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	mimeType := file.MimeType
	var resp *http.Response
	if export, ok := exportFormats[file.MimeType]; ok {
		mimeType = export
		resp, err = svc.Files.Export(file.ID, export).Context(ctx).Download()
	} else {
		resp, err = svc.Files.Get(file.ID).SupportsAllDrives(true).Context(ctx).Download()
	}
	if err != nil {
		return nil, s.wrapError(fmt.Sprintf("下载文件 %s", file.ID), err)
	}
	defer resp.Body.Close()

	data, err := readLimited(resp.Body, maxSize)
	if err != nil {
		return nil, err
	}
	return &Blob{Name: file.Name, MimeType: mimeType, Content: data}, nil
}

// wrapError 把 Drive API 错误归类为流水线的错误类型。
func (s *DriveStore) wrapError(op string, err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return fmt.Errorf("%w: %s: %v", model.ErrAuthExpired, op, err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s: %v", model.ErrAuthExpired, op, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s: %v", model.ErrNotFound, op, err)
		case http.StatusTooManyRequests:
			s.limiter.Backoff(rateLimitBackoff)
		}
	}
	return fmt.Errorf("%s 失败: %w", op, err)
}

func folderQuery(folderID string) string {
	types := make([]string, 0, len(model.SupportedMimeTypes())+len(exportFormats))
	for _, m := range model.SupportedMimeTypes() {
		types = append(types, "mimeType='"+m+"'")
	}
	for _, m := range []string{mimeGoogleDoc, mimeGoogleSheet, mimeGoogleSlides} {
		types = append(types, "mimeType='"+m+"'")
	}
	// 反斜杠和单引号都要转义，否则以 \ 结尾的 ID 会提前闭合字符串
	escaped := strings.NewReplacer(`\`, `\\`, "'", `\'`).Replace(folderID)
	return fmt.Sprintf("'%s' in parents and trashed=false and (%s)", escaped, strings.Join(types, " or "))
}

func toFileReference(f *drive.File) model.FileReference {
	path := f.WebViewLink
	if path == "" {
		path = "/" + f.Name
	}
	return model.FileReference{
		ID:          f.Id,
		Name:        f.Name,
		MimeType:    f.MimeType,
		Size:        f.Size,
		Path:        path,
		ContentHash: f.Sha256Checksum,
	}
}
