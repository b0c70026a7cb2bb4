// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"docingest-go/pkg/log"
	"docingest-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// ClaimsKey 是 token claims 在 gin.Context 中的键。
const ClaimsKey = "claims"

// AuthMiddleware 创建一个 Gin 中间件，用于 JWT 认证。
// jwtManager 为 nil 时认证关闭，所有请求直接放行。
func AuthMiddleware(jwtManager *token.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtManager == nil {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		// 浏览器的 websocket 无法设置请求头，允许通过 token 查询参数传递
		if authHeader == "" && c.Query("token") != "" {
			authHeader = "Bearer " + c.Query("token")
		}
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "请求未包含授权头"})
			return
		}

		// Token 以 "Bearer <token>" 的形式提供
		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效的授权头格式"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, bearerPrefix)

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			log.Warnf("[Auth] token 校验失败, path: %s, err: %v", c.Request.URL.Path, err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效或已过期的 token"})
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// AuthorizeTenant 检查当前请求能否操作给定租户（已规范化）。
// 认证关闭时总是返回 true。返回 false 时已经写入 403 响应。
func AuthorizeTenant(c *gin.Context, tenant string) bool {
	value, ok := c.Get(ClaimsKey)
	if !ok {
		return true
	}
	claims, ok := value.(*token.TenantClaims)
	if !ok || !claims.CanAccess(tenant) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "无权访问该租户"})
		return false
	}
	return true
}
