// Package token 提供了用于生成和验证租户 API token (JWT) 的功能。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 角色。admin 可以操作任意租户，tenant 只能操作自己的租户。
const (
	RoleTenant = "tenant"
	RoleAdmin  = "admin"
)

// JWTManager 负责管理 JWT 的生成和验证。
type JWTManager struct {
	secretKey []byte
	tokenDur  time.Duration
}

// TenantClaims 是 token 中携带的租户身份。
type TenantClaims struct {
	Tenant string `json:"tenant"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// CanAccess 判断 token 持有者能否操作给定租户。
func (c *TenantClaims) CanAccess(tenant string) bool {
	return c.Role == RoleAdmin || c.Tenant == tenant
}

// NewJWTManager 创建一个新的 JWTManager 实例。expireHours <= 0 时默认 24 小时。
func NewJWTManager(secret string, expireHours int) *JWTManager {
	if expireHours <= 0 {
		expireHours = 24
	}
	return &JWTManager{
		secretKey: []byte(secret),
		tokenDur:  time.Hour * time.Duration(expireHours),
	}
}

// GenerateToken 为租户签发 token。
func (m *JWTManager) GenerateToken(tenant, role string) (string, error) {
	if role == "" {
		role = RoleTenant
	}
	if role != RoleTenant && role != RoleAdmin {
		return "", fmt.Errorf("未知的角色 %q", role)
	}
	now := time.Now()
	claims := TenantClaims{
		Tenant: tenant,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   tenant,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDur)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// VerifyToken 验证 token 字符串，签名不匹配或已过期时返回错误。
func (m *JWTManager) VerifyToken(tokenString string) (*TenantClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TenantClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*TenantClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}
