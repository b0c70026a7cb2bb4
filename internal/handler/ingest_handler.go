package handler

import (
	"context"
	"net/http"
	"time"

	"docingest-go/internal/middleware"
	"docingest-go/internal/model"
	"docingest-go/internal/service"
	"docingest-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// DefaultProgressInterval 是 websocket 推送任务进度的轮询间隔。
const DefaultProgressInterval = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// IngestRequest 是 POST /api/v1/ingest 的请求体。
type IngestRequest struct {
	Tenant       string `json:"tenant"`
	ConnectionID string `json:"connection_id"`
	Drive        struct {
		FolderIDs []string `json:"folder_ids"`
	} `json:"drive"`
	Reingest bool `json:"reingest"`
}

// IngestResponse 是启动导入任务后的返回体。
type IngestResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// CollectionInitRequest 是初始化集合的请求体。
type CollectionInitRequest struct {
	Tenant string `json:"tenant"`
}

// CollectionInitResponse 是初始化集合的返回体。
type CollectionInitResponse struct {
	Success        bool   `json:"success"`
	CollectionName string `json:"collection_name"`
	Message        string `json:"message"`
}

// IngestHandler 处理导入任务相关的请求。
type IngestHandler struct {
	ingestService    service.IngestService
	documentService  service.DocumentService
	progressInterval time.Duration
}

// NewIngestHandler 创建一个新的 IngestHandler 实例。
func NewIngestHandler(ingestService service.IngestService, documentService service.DocumentService, progressInterval time.Duration) *IngestHandler {
	if progressInterval <= 0 {
		progressInterval = DefaultProgressInterval
	}
	return &IngestHandler{
		ingestService:    ingestService,
		documentService:  documentService,
		progressInterval: progressInterval,
	}
}

// Start 校验请求并创建导入任务，立即返回任务 ID。
func (h *IngestHandler) Start(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体"})
		return
	}
	tenant, err := model.NormalizeTenant(req.Tenant)
	if err != nil {
		fail(c, "IngestHandler", err)
		return
	}
	if !middleware.AuthorizeTenant(c, tenant) {
		return
	}

	mode := model.IngestModeIncremental
	if req.Reingest {
		mode = model.IngestModeFull
	}
	jobID, err := h.ingestService.Start(c.Request.Context(), model.IngestRequest{
		Tenant:       tenant,
		ConnectionID: req.ConnectionID,
		FolderIDs:    req.Drive.FolderIDs,
		Mode:         mode,
	})
	if err != nil {
		fail(c, "IngestHandler", err)
		return
	}
	log.Infof("[IngestHandler] 导入任务已启动, JobID: %s, Tenant: %s", jobID, tenant)
	ok(c, IngestResponse{Success: true, JobID: jobID, Message: "导入任务已启动"})
}

// GetJob 返回任务的当前进度。
func (h *IngestHandler) GetJob(c *gin.Context) {
	job, found := h.loadJob(c)
	if !found {
		return
	}
	ok(c, job)
}

// WatchJob 通过 websocket 推送任务进度，直到任务进入终态或客户端断开。
func (h *IngestHandler) WatchJob(c *gin.Context) {
	job, found := h.loadJob(c)
	if !found {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("[IngestHandler] 升级 WebSocket 失败: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	// 读循环只用于感知客户端断开
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.progressInterval)
	defer ticker.Stop()
	var lastSent time.Time
	for {
		if !job.UpdatedAt.Equal(lastSent) {
			if err := conn.WriteJSON(job); err != nil {
				log.Warnf("[IngestHandler] 推送任务 %s 进度失败: %v", job.JobID, err)
				return
			}
			lastSent = job.UpdatedAt
		}
		if job.Status.Terminal() {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(job.Status)))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		next, err := h.ingestService.GetStatus(ctx, job.JobID)
		if err != nil {
			log.Warnf("[IngestHandler] 读取任务 %s 状态失败: %v", job.JobID, err)
			return
		}
		job = next
	}
}

// InitCollection 为租户创建向量集合。
func (h *IngestHandler) InitCollection(c *gin.Context) {
	var req CollectionInitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体"})
		return
	}
	tenant, err := model.NormalizeTenant(req.Tenant)
	if err != nil {
		fail(c, "IngestHandler", err)
		return
	}
	if !middleware.AuthorizeTenant(c, tenant) {
		return
	}
	name, err := h.documentService.InitCollection(c.Request.Context(), tenant)
	if err != nil {
		fail(c, "IngestHandler", err)
		return
	}
	ok(c, CollectionInitResponse{Success: true, CollectionName: name, Message: "集合 " + name + " 已初始化"})
}

// loadJob 读取路径中的任务并校验租户权限。返回 false 时已写入响应。
func (h *IngestHandler) loadJob(c *gin.Context) (*model.Job, bool) {
	job, err := h.ingestService.GetStatus(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		fail(c, "IngestHandler", err)
		return nil, false
	}
	if !middleware.AuthorizeTenant(c, job.Tenant) {
		return nil, false
	}
	return job, true
}
