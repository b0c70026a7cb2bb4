package filestore

import (
	"context"
	"fmt"
	"strings"

	"docingest-go/internal/config"
	"docingest-go/internal/model"
)

// ConnectionResolver 根据连接 ID 查找连接信息。
type ConnectionResolver interface {
	Resolve(ctx context.Context, connectionID string) (Connection, error)
}

// StaticResolver 使用配置文件中登记的连接。
type StaticResolver struct {
	conns map[string]Connection
}

// NewStaticResolver 从配置构建连接注册表，租户名会被规范化。
func NewStaticResolver(cfgs []config.ConnectionConfig) (*StaticResolver, error) {
	r := &StaticResolver{conns: make(map[string]Connection, len(cfgs))}
	for _, c := range cfgs {
		if c.ID == "" {
			return nil, fmt.Errorf("%w: 连接缺少 id", model.ErrInvalidArgument)
		}
		tenant, err := model.NormalizeTenant(c.Tenant)
		if err != nil {
			return nil, fmt.Errorf("连接 %s: %w", c.ID, err)
		}
		provider := strings.ToLower(c.Provider)
		if provider == "" {
			provider = ProviderGoogleDrive
		}
		r.conns[c.ID] = Connection{
			ID:           c.ID,
			Tenant:       tenant,
			Provider:     provider,
			RefreshToken: c.RefreshToken,
			Bucket:       c.Bucket,
		}
	}
	return r, nil
}

func (r *StaticResolver) Resolve(_ context.Context, connectionID string) (Connection, error) {
	conn, ok := r.conns[connectionID]
	if !ok {
		return Connection{}, fmt.Errorf("%w: 连接 %s", model.ErrNotFound, connectionID)
	}
	return conn, nil
}

// Router 按连接的 Provider 把请求分发到具体的文件源。
type Router struct {
	stores map[string]FileStore
}

// NewRouter 创建文件源路由。
func NewRouter() *Router {
	return &Router{stores: make(map[string]FileStore)}
}

// Register 注册一个文件源实现。
func (r *Router) Register(provider string, store FileStore) *Router {
	r.stores[strings.ToLower(provider)] = store
	return r
}

func (r *Router) pick(conn Connection) (FileStore, error) {
	store, ok := r.stores[conn.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: 未配置文件源 %q", model.ErrInvalidArgument, conn.Provider)
	}
	return store, nil
}

func (r *Router) ListFiles(ctx context.Context, conn Connection, folderIDs []string) ([]model.FileReference, error) {
	store, err := r.pick(conn)
	if err != nil {
		return nil, err
	}
	return store.ListFiles(ctx, conn, folderIDs)
}

func (r *Router) Download(ctx context.Context, conn Connection, file model.FileReference, maxSize int64) (*Blob, error) {
	store, err := r.pick(conn)
	if err != nil {
		return nil, err
	}
	return store.Download(ctx, conn, file, maxSize)
}
