package handler

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck 检查一个依赖是否可用。
type HealthCheck func(ctx context.Context) error

// HealthHandler 提供健康检查和版本信息。
type HealthHandler struct {
	version   string
	startedAt time.Time
	checks    map[string]HealthCheck
	timeout   time.Duration
}

// NewHealthHandler 创建一个新的 HealthHandler 实例。checks 的键是依赖名。
func NewHealthHandler(version string, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startedAt: time.Now(),
		checks:    checks,
		timeout:   5 * time.Second,
	}
}

// Health 返回基本的存活信息。
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"uptime":    time.Since(h.startedAt).Seconds(),
	})
}

// Detailed 逐个检查依赖。任一依赖不可用时整体状态为 degraded，返回 503。
func (h *HealthHandler) Detailed(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "healthy"
	components := make(map[string]gin.H, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			status = "degraded"
			components[name] = gin.H{"status": "unhealthy", "error": err.Error()}
			continue
		}
		components[name] = gin.H{"status": "healthy"}
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":     status,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"version":    h.version,
		"uptime":     time.Since(h.startedAt).Seconds(),
		"components": components,
	})
}

// Version 返回服务版本信息。
func (h *HealthHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":    "docingest",
		"version":    h.version,
		"build_time": h.startedAt.UTC().Format(time.RFC3339),
		"go_version": runtime.Version(),
	})
}
