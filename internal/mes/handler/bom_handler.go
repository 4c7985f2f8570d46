package handler

import (
	"fmt"
	"net/url"

	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// BOMHandler BOM版本接口
type BOMHandler struct {
	svc *service.BOMService
}

// NewBOMHandler 创建BOM版本接口
func NewBOMHandler(svc *service.BOMService) *BOMHandler {
	return &BOMHandler{svc: svc}
}

// CreateVersion 创建草稿版本
// POST /api/v1/bom/versions
func (h *BOMHandler) CreateVersion(c *gin.Context) {
	var req service.CreateVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	v, err := h.svc.CreateVersion(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, v)
}

// GetVersion 获取版本详情
// GET /api/v1/bom/versions/:id
func (h *BOMHandler) GetVersion(c *gin.Context) {
	v, err := h.svc.GetVersion(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, v)
}

// ListVersions 获取产品下的版本列表
// GET /api/v1/bom/versions?product_id=xxx&status=draft
func (h *BOMHandler) ListVersions(c *gin.Context) {
	versions, err := h.svc.ListVersions(c.Request.Context(), c.Query("product_id"), c.Query("status"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": versions})
}

// UpdateVersion 更新版本基础信息
// PUT /api/v1/bom/versions/:id
func (h *BOMHandler) UpdateVersion(c *gin.Context) {
	var req service.UpdateVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	v, err := h.svc.UpdateVersion(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, v)
}

// ActivateVersion 激活版本
// POST /api/v1/bom/versions/:id/activate
func (h *BOMHandler) ActivateVersion(c *gin.Context) {
	var req service.ActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	v, warnings, err := h.svc.ActivateVersion(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"version": v, "warnings": warnings})
}

// CloneVersion 克隆版本为新草稿
// POST /api/v1/bom/versions/:id/clone
func (h *BOMHandler) CloneVersion(c *gin.Context) {
	var req service.CloneVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	v, err := h.svc.CloneVersion(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, v)
}

// AddLine 添加行项
// POST /api/v1/bom/versions/:id/lines
func (h *BOMHandler) AddLine(c *gin.Context) {
	var req service.LineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	line, err := h.svc.AddLine(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, line)
}

// UpdateLine 更新行项
// PUT /api/v1/bom/lines/:id
func (h *BOMHandler) UpdateLine(c *gin.Context) {
	var req service.LineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	line, err := h.svc.UpdateLine(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, line)
}

// DeleteLine 删除行项
// DELETE /api/v1/bom/lines/:id
func (h *BOMHandler) DeleteLine(c *gin.Context) {
	if err := h.svc.DeleteLine(c.Request.Context(), c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}
	Success(c, nil)
}

// Resolve 解析指定日期生效的版本
// GET /api/v1/bom/resolve?product_id=xxx&date=2026-01-15
func (h *BOMHandler) Resolve(c *gin.Context) {
	v, err := h.svc.Resolve(c.Request.Context(), c.Query("product_id"), c.Query("date"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, v)
}

// RefreshLifecycle 日终生命周期维护
// POST /api/v1/bom/maintenance/refresh-lifecycle
func (h *BOMHandler) RefreshLifecycle(c *gin.Context) {
	result, err := h.svc.RefreshLifecycle(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, result)
}

// ExportVersion 导出版本为xlsx
// GET /api/v1/bom/versions/:id/export
func (h *BOMHandler) ExportVersion(c *gin.Context) {
	f, filename, err := h.svc.ExportVersion(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename*=UTF-8''%s`, url.PathEscape(filename)))
	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "导出失败: "+err.Error())
	}
}
