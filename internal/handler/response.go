// Package handler 包含 HTTP 接口的处理函数。
package handler

import (
	"errors"
	"net/http"

	"docingest-go/internal/model"
	"docingest-go/pkg/log"

	"github.com/gin-gonic/gin"
)

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": data, "message": "success"})
}

// statusFor 把错误分类映射为 HTTP 状态码。
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrJobNotFound), errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrAuthExpired):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrEmbeddingUnavailable), errors.Is(err, model.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail 记录错误并写入错误响应。5xx 不向调用方暴露内部细节。
func fail(c *gin.Context, component string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.Errorf("[%s] 请求失败, path: %s, err: %v", component, c.Request.URL.Path, err)
		if status == http.StatusInternalServerError {
			msg = "服务内部错误"
		}
	} else {
		log.Warnf("[%s] 请求被拒绝, path: %s, err: %v", component, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": msg})
}
