package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"docingest-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter(m *token.JWTManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(m))
	r.GET("/t/:tenant", func(c *gin.Context) {
		if !AuthorizeTenant(c, c.Param("tenant")) {
			return
		}
		c.Status(http.StatusNoContent)
	})
	return r
}

func doGet(r http.Handler, path, bearer string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestAuthMiddleware(t *testing.T) {
	m := token.NewJWTManager("secret", 1)
	r := newAuthRouter(m)
	acme, err := m.GenerateToken("acme", token.RoleTenant)
	require.NoError(t, err)
	admin, err := m.GenerateToken("ops", token.RoleAdmin)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, doGet(r, "/t/acme", ""))
	assert.Equal(t, http.StatusUnauthorized, doGet(r, "/t/acme", "garbage"))
	assert.Equal(t, http.StatusNoContent, doGet(r, "/t/acme", acme))
	assert.Equal(t, http.StatusForbidden, doGet(r, "/t/globex", acme))
	assert.Equal(t, http.StatusNoContent, doGet(r, "/t/globex", admin))
}

func TestAuthDisabled(t *testing.T) {
	r := newAuthRouter(nil)
	assert.Equal(t, http.StatusNoContent, doGet(r, "/t/anything", ""))
}
