package handler

import (
	"strconv"

	"github.com/bitfantasy/nimo-crm/internal/crm/service"
	"github.com/gin-gonic/gin"
)

// DashboardHandler 看板处理器
type DashboardHandler struct {
	svc *service.DashboardService
}

func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

// Overview GET /api/v1/dashboard/overview
func (h *DashboardHandler) Overview(c *gin.Context) {
	out, err := h.svc.Overview(c.Request.Context())
	if err != nil {
		InternalError(c, "获取看板概览失败: "+err.Error())
		return
	}
	Success(c, out)
}

// ChartData GET /api/v1/dashboard/chart-data
func (h *DashboardHandler) ChartData(c *gin.Context) {
	out, err := h.svc.ChartData(c.Request.Context())
	if err != nil {
		InternalError(c, "获取图表数据失败: "+err.Error())
		return
	}
	Success(c, out)
}

// RecentSales GET /api/v1/dashboard/recent-sales
func (h *DashboardHandler) RecentSales(c *gin.Context) {
	out, err := h.svc.RecentSales(c.Request.Context())
	if err != nil {
		InternalError(c, "获取最近销售失败: "+err.Error())
		return
	}
	Success(c, out)
}

// ActivityHandler 单据操作记录处理器
type ActivityHandler struct {
	svc *service.ActivityService
}

func NewActivityHandler(svc *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{svc: svc}
}

// List GET /api/v1/activity-history?documentType=PurchaseOrders&documentId=1
func (h *ActivityHandler) List(c *gin.Context) {
	var documentID int64
	if v := c.Query("documentId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			BadRequest(c, "无效的 documentId")
			return
		}
		documentID = id
	}
	items, err := h.svc.List(c.Request.Context(), c.Query("documentType"), documentID)
	if err != nil {
		InternalError(c, "获取操作记录失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": items})
}
