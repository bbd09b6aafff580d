package handler

import (
	"github.com/bitfantasy/nimo-crm/internal/crm/service"
	"github.com/gin-gonic/gin"
)

// ShippingHandler 发货包裹规格处理器
type ShippingHandler struct {
	svc    *service.ShippingService
	export *service.ExportService
}

func NewShippingHandler(svc *service.ShippingService, export *service.ExportService) *ShippingHandler {
	return &ShippingHandler{svc: svc, export: export}
}

// List GET /api/v1/shipping-package-specifications?shipping_order_id=&carrier=
func (h *ShippingHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, queryFilters(c, "shipping_order_id", "carrier"))
	if err != nil {
		InternalError(c, "获取包裹规格列表失败: "+err.Error())
		return
	}
	SuccessList(c, items, total, page, pageSize)
}

// ByShippingOrder GET /api/v1/shipping-package-specifications/by-shipping-order/:id
func (h *ShippingHandler) ByShippingOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	items, err := h.svc.ByShippingOrder(c.Request.Context(), id)
	if err != nil {
		InternalError(c, "获取包裹规格失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": items})
}

// Stats GET /api/v1/shipping-package-specifications/stats/shipping-order/:id
func (h *ShippingHandler) Stats(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	stats, err := h.svc.Stats(c.Request.Context(), id)
	if err != nil {
		InternalError(c, "统计包裹失败: "+err.Error())
		return
	}
	Success(c, stats)
}

// Get GET /api/v1/shipping-package-specifications/:id
func (h *ShippingHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	spec, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, "包裹规格不存在", "获取包裹规格")
		return
	}
	Success(c, spec)
}

// Create POST /api/v1/shipping-package-specifications
func (h *ShippingHandler) Create(c *gin.Context) {
	var req service.ShippingSpecRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	spec, err := h.svc.Create(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err, "包裹规格不存在", "创建包裹规格")
		return
	}
	Created(c, spec)
}

// Update PUT /api/v1/shipping-package-specifications/:id
func (h *ShippingHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.ShippingSpecRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	spec, err := h.svc.Update(c.Request.Context(), id, &req)
	if err != nil {
		handleError(c, err, "包裹规格不存在", "更新包裹规格")
		return
	}
	Success(c, spec)
}

// Delete DELETE /api/v1/shipping-package-specifications/:id
func (h *ShippingHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		handleError(c, err, "包裹规格不存在", "删除包裹规格")
		return
	}
	Success(c, gin.H{"deleted": true})
}

// DeleteByShippingOrder DELETE /api/v1/shipping-package-specifications/by-shipping-order/:id
func (h *ShippingHandler) DeleteByShippingOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	n, err := h.svc.DeleteByShippingOrder(c.Request.Context(), id)
	if err != nil {
		InternalError(c, "删除包裹规格失败: "+err.Error())
		return
	}
	Success(c, gin.H{"deleted": n})
}

// Export GET /api/v1/shipping-package-specifications/export/shipping-order/:id
func (h *ShippingHandler) Export(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	f, filename, err := h.export.ExportShippingOrder(c.Request.Context(), id)
	if err != nil {
		InternalError(c, "导出包裹规格失败: "+err.Error())
		return
	}
	writeExcel(c, f, filename)
}
