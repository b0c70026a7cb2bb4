package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerify(t *testing.T) {
	m := NewJWTManager("secret", 1)
	tok, err := m.GenerateToken("acme", "")
	require.NoError(t, err)

	claims, err := m.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "acme", claims.Tenant)
	assert.Equal(t, RoleTenant, claims.Role)
	assert.True(t, claims.CanAccess("acme"))
	assert.False(t, claims.CanAccess("globex"))
}

func TestAdminCanAccessAnyTenant(t *testing.T) {
	m := NewJWTManager("secret", 1)
	tok, err := m.GenerateToken("ops", RoleAdmin)
	require.NoError(t, err)
	claims, err := m.VerifyToken(tok)
	require.NoError(t, err)
	assert.True(t, claims.CanAccess("globex"))
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	tok, err := NewJWTManager("one", 1).GenerateToken("acme", "")
	require.NoError(t, err)
	_, err = NewJWTManager("two", 1).VerifyToken(tok)
	assert.Error(t, err)

	_, err = NewJWTManager("one", 1).GenerateToken("acme", "root")
	assert.Error(t, err)
}
