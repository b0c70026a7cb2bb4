// Package vectorstore 提供按租户隔离的向量存储适配器。
package vectorstore

import (
	"context"
	"fmt"
	"strconv"

	"docingest-go/internal/model"

	"github.com/google/uuid"
)

// DefaultCollectionPrefix 是租户集合名的前缀，集合名为 prefix + tenant。
const DefaultCollectionPrefix = "sp_"

// pointNamespace 是生成确定性点 ID 的 UUIDv5 命名空间。
var pointNamespace = uuid.MustParse("6f1d2c3a-8b4e-5f60-9a7b-0c1d2e3f4a5b")

// Store 是向量存储的统一接口。所有操作都限定在 tenant 对应的集合内。
type Store interface {
	// EnsureCollection 幂等地创建租户集合。
	EnsureCollection(ctx context.Context, tenant string) error
	// Upsert 按点 ID 写入或覆盖，后写覆盖先写。
	Upsert(ctx context.Context, tenant string, points ...model.Point) error
	// Search 返回最多 topK 个相似度不低于 threshold 的点，按分数降序、点 ID 升序排列。
	Search(ctx context.Context, tenant string, vector []float32, topK int, threshold float64) ([]model.ScoredPoint, error)
	// ListDocuments 按 doc_id 聚合分块数和页数。
	ListDocuments(ctx context.Context, tenant string) ([]model.DocumentSummary, error)
	// DeleteDocument 删除某个文档的全部点。
	DeleteDocument(ctx context.Context, tenant, docID string) error
	// Ping 检查存储是否可达。
	Ping(ctx context.Context) error
}

// PointID 由 (tenant, doc_id, page, chunk_idx) 计算确定性的点 ID。
// 字段之间使用 0x1f 分隔，避免 ("ab","c") 与 ("a","bc") 这类拼接歧义。
func PointID(tenant, docID string, page, chunkIdx int) string {
	key := tenant + "\x1f" + docID + "\x1f" + strconv.Itoa(page) + "\x1f" + strconv.Itoa(chunkIdx)
	return uuid.NewSHA1(pointNamespace, []byte(key)).String()
}

// NewPoint 把带向量的分块转换为向量库中的点。
func NewPoint(c model.Chunk) model.Point {
	id := PointID(c.Tenant, c.DocID, c.PageNumber, c.ChunkIndex)
	return model.Point{ID: id, Vector: c.Embedding, Payload: model.PayloadFromChunk(id, c)}
}

// CollectionName 返回租户对应的集合名。
func CollectionName(prefix, tenant string) string {
	if prefix == "" {
		prefix = DefaultCollectionPrefix
	}
	return prefix + tenant
}

// checkPoints 拒绝写入不属于该租户或维度不符的点。
func checkPoints(tenant string, dims int, points []model.Point) error {
	for _, p := range points {
		if p.Payload.Tenant != tenant {
			return fmt.Errorf("%w: 点 %s 属于租户 %q, 不能写入 %q", model.ErrInvalidArgument, p.ID, p.Payload.Tenant, tenant)
		}
		if dims > 0 && len(p.Vector) != dims {
			return fmt.Errorf("%w: 点 %s 的向量维度 %d 与集合维度 %d 不一致", model.ErrInvalidArgument, p.ID, len(p.Vector), dims)
		}
	}
	return nil
}
