package service

import (
	"fmt"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
)

// ValidationError 用户可修正的校验错误（参数、状态、规则不合法）
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError BOM版本有效期与已有版本重叠
// 携带冲突版本，便于前端提示具体冲突对象
type ConflictError struct {
	Version *entity.BOMVersion
}

func (e *ConflictError) Error() string {
	if e.Version == nil {
		return "有效期与已有版本重叠"
	}
	return fmt.Sprintf("有效期与已有版本 %s (%s) 重叠", e.Version.Version, e.Version.ID)
}

// NotFoundError 资源不存在或无匹配结果
type NotFoundError struct {
	Resource string
	Message  string
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Resource + " not found"
}
