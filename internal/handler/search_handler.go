package handler

import (
	"net/http"

	"docingest-go/internal/middleware"
	"docingest-go/internal/model"
	"docingest-go/internal/service"
	"docingest-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// DocumentListResponse 是文档列表接口的返回体。
type DocumentListResponse struct {
	Documents      []model.DocumentSummary `json:"documents"`
	TotalDocuments int                     `json:"total_documents"`
	TotalChunks    int                     `json:"total_chunks"`
	Tenant         string                  `json:"tenant"`
}

// SearchHandler 结构体定义了检索相关的处理器。
type SearchHandler struct {
	searchService   service.SearchService
	documentService service.DocumentService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService, documentService service.DocumentService) *SearchHandler {
	return &SearchHandler{
		searchService:   searchService,
		documentService: documentService,
	}
}

// Search 在租户集合中执行语义检索。
func (h *SearchHandler) Search(c *gin.Context) {
	var req model.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体"})
		return
	}
	tenant, err := model.NormalizeTenant(req.Tenant)
	if err != nil {
		fail(c, "SearchHandler", err)
		return
	}
	if !middleware.AuthorizeTenant(c, tenant) {
		return
	}
	log.Infof("[SearchHandler] 收到检索请求, tenant: %s, query: %s", tenant, req.Query)

	res, err := h.searchService.Search(c.Request.Context(), req)
	if err != nil {
		fail(c, "SearchHandler", err)
		return
	}
	log.Infof("[SearchHandler] 检索成功, tenant: %s, 返回 %d 条结果", tenant, res.TotalResults)
	ok(c, res)
}

// ListDocuments 列出租户集合中的全部文档。
func (h *SearchHandler) ListDocuments(c *gin.Context) {
	tenant, allowed := h.tenantFromQuery(c)
	if !allowed {
		return
	}
	docs, err := h.documentService.ListDocuments(c.Request.Context(), tenant)
	if err != nil {
		fail(c, "SearchHandler", err)
		return
	}
	total := 0
	for _, d := range docs {
		total += d.ChunkCount
	}
	ok(c, DocumentListResponse{Documents: docs, TotalDocuments: len(docs), TotalChunks: total, Tenant: tenant})
}

// DeleteDocument 删除某个文档的全部分块。
func (h *SearchHandler) DeleteDocument(c *gin.Context) {
	tenant, allowed := h.tenantFromQuery(c)
	if !allowed {
		return
	}
	docID := c.Param("docId")
	if err := h.documentService.DeleteDocument(c.Request.Context(), tenant, docID); err != nil {
		fail(c, "SearchHandler", err)
		return
	}
	log.Infof("[SearchHandler] 已删除文档, tenant: %s, doc_id: %s", tenant, docID)
	ok(c, gin.H{"success": true, "doc_id": docID})
}

func (h *SearchHandler) tenantFromQuery(c *gin.Context) (string, bool) {
	tenant, err := model.NormalizeTenant(c.Query("tenant"))
	if err != nil {
		fail(c, "SearchHandler", err)
		return "", false
	}
	return tenant, middleware.AuthorizeTenant(c, tenant)
}
