package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// WorkOrderHandler 工单接口
type WorkOrderHandler struct {
	svc *service.WorkOrderService
}

// NewWorkOrderHandler 创建工单接口
func NewWorkOrderHandler(svc *service.WorkOrderService) *WorkOrderHandler {
	return &WorkOrderHandler{svc: svc}
}

// Create 创建工单（解析BOM并冻结物料快照）
// POST /api/v1/work-orders
func (h *WorkOrderHandler) Create(c *gin.Context) {
	var req service.CreateWorkOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	wo, err := h.svc.Create(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, wo)
}

// Get 获取工单详情
// GET /api/v1/work-orders/:id
func (h *WorkOrderHandler) Get(c *gin.Context) {
	wo, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, wo)
}

// List 分页查询工单
// GET /api/v1/work-orders?product_id=xxx&status=CREATED&keyword=WO-2025&page=1&page_size=20
func (h *WorkOrderHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]interface{}{
		"product_id": c.Query("product_id"),
		"status":     c.Query("status"),
		"keyword":    c.Query("keyword"),
	}
	orders, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": orders, "total": total})
}

// UpdateStatus 推进工单状态
// PUT /api/v1/work-orders/:id/status
func (h *WorkOrderHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	wo, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, wo)
}

// Cancel 取消工单
// DELETE /api/v1/work-orders/:id
func (h *WorkOrderHandler) Cancel(c *gin.Context) {
	if err := h.svc.Cancel(c.Request.Context(), c.Param("id"), GetUserID(c)); err != nil {
		RespondError(c, err)
		return
	}
	Success(c, nil)
}

// RecordOutput 记录副产品实际产出
// POST /api/v1/work-orders/:id/outputs
func (h *WorkOrderHandler) RecordOutput(c *gin.Context) {
	var req service.RecordOutputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	output, err := h.svc.RecordOutput(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, output)
}

// Variance 副产品产出偏差报表
// GET /api/v1/work-orders/:id/variance
func (h *WorkOrderHandler) Variance(c *gin.Context) {
	report, err := h.svc.VarianceReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": report})
}
