package handler

import (
	"github.com/bitfantasy/nimo-crm/internal/crm/service"
	"github.com/gin-gonic/gin"
)

// ItemHandler 采购订单行项处理器
type ItemHandler struct {
	svc *service.ItemService
}

func NewItemHandler(svc *service.ItemService) *ItemHandler {
	return &ItemHandler{svc: svc}
}

// List GET /api/v1/purchase-orders-items?purchase_order_id=
func (h *ItemHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, queryFilters(c, "purchase_order_id", "search"))
	if err != nil {
		InternalError(c, "获取行项列表失败: "+err.Error())
		return
	}
	SuccessList(c, items, total, page, pageSize)
}

// ByPurchaseOrder 某采购订单的全部行项（创建时间倒序）
// GET /api/v1/purchase-orders-items/purchase-order/:purchaseOrderId
func (h *ItemHandler) ByPurchaseOrder(c *gin.Context) {
	poID, ok := paramID(c, "purchaseOrderId")
	if !ok {
		return
	}
	items, err := h.svc.ByPurchaseOrder(c.Request.Context(), poID)
	if err != nil {
		InternalError(c, "获取行项失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": items})
}

// Totals 行项合计
// GET /api/v1/purchase-orders-items/purchase-order/:purchaseOrderId/totals
func (h *ItemHandler) Totals(c *gin.Context) {
	poID, ok := paramID(c, "purchaseOrderId")
	if !ok {
		return
	}
	totals, err := h.svc.Totals(c.Request.Context(), poID)
	if err != nil {
		InternalError(c, "统计行项失败: "+err.Error())
		return
	}
	Success(c, totals)
}

// Get GET /api/v1/purchase-orders-items/:id
func (h *ItemHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	item, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, "行项不存在", "获取行项")
		return
	}
	Success(c, item)
}

// Create POST /api/v1/purchase-orders-items
func (h *ItemHandler) Create(c *gin.Context) {
	var req service.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	item, err := h.svc.Create(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err, "行项不存在", "创建行项")
		return
	}
	Created(c, item)
}

// Update PUT /api/v1/purchase-orders-items/:id
func (h *ItemHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	item, err := h.svc.Update(c.Request.Context(), id, &req)
	if err != nil {
		handleError(c, err, "行项不存在", "更新行项")
		return
	}
	Success(c, item)
}

// Delete DELETE /api/v1/purchase-orders-items/:id
func (h *ItemHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		handleError(c, err, "行项不存在", "删除行项")
		return
	}
	Success(c, gin.H{"deleted": true})
}
