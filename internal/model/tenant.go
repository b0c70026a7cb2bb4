package model

import (
	"fmt"
	"regexp"
	"strings"
)

var tenantPattern = regexp.MustCompile(`^[a-z0-9_]{1,48}$`)

// NormalizeTenant 统一租户标识的写法（小写，连字符替换为下划线）并校验其合法性。
// 租户标识会直接用于拼接集合名，因此只允许小写字母、数字和下划线。
func NormalizeTenant(tenant string) (string, error) {
	t := strings.ToLower(strings.TrimSpace(tenant))
	t = strings.ReplaceAll(t, "-", "_")
	if !tenantPattern.MatchString(t) {
		return "", fmt.Errorf("%w: 非法的租户标识 %q", ErrInvalidArgument, tenant)
	}
	return t, nil
}
