package service

import (
	"context"
	"fmt"

	"docingest-go/internal/model"
	"docingest-go/pkg/log"
	"docingest-go/pkg/vectorstore"
)

// DocumentService 接口定义了租户集合内的文档管理操作。
type DocumentService interface {
	InitCollection(ctx context.Context, tenant string) (string, error)
	ListDocuments(ctx context.Context, tenant string) ([]model.DocumentSummary, error)
	DeleteDocument(ctx context.Context, tenant, docID string) error
}

type documentService struct {
	store  vectorstore.Store
	prefix string
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(store vectorstore.Store, collectionPrefix string) DocumentService {
	return &documentService{store: store, prefix: collectionPrefix}
}

// InitCollection 幂等地创建租户集合，返回集合名。
func (s *documentService) InitCollection(ctx context.Context, tenant string) (string, error) {
	tenant, err := model.NormalizeTenant(tenant)
	if err != nil {
		return "", err
	}
	if err := s.store.EnsureCollection(ctx, tenant); err != nil {
		return "", err
	}
	name := vectorstore.CollectionName(s.prefix, tenant)
	log.Infof("[DocumentService] 集合 %s 已就绪", name)
	return name, nil
}

func (s *documentService) ListDocuments(ctx context.Context, tenant string) ([]model.DocumentSummary, error) {
	tenant, err := model.NormalizeTenant(tenant)
	if err != nil {
		return nil, err
	}
	return s.store.ListDocuments(ctx, tenant)
}

func (s *documentService) DeleteDocument(ctx context.Context, tenant, docID string) error {
	tenant, err := model.NormalizeTenant(tenant)
	if err != nil {
		return err
	}
	if docID == "" {
		return fmt.Errorf("%w: doc_id 不能为空", model.ErrInvalidArgument)
	}
	if err := s.store.DeleteDocument(ctx, tenant, docID); err != nil {
		return err
	}
	log.Infof("[DocumentService] 已删除租户 %s 的文档 %s", tenant, docID)
	return nil
}
