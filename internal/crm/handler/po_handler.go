package handler

import (
	"strconv"
	"time"

	"github.com/bitfantasy/nimo-crm/internal/crm/repository"
	"github.com/bitfantasy/nimo-crm/internal/crm/service"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// POHandler 采购订单处理器
type POHandler struct {
	svc    *service.POService
	kpi    *service.KPIService
	export *service.ExportService
}

func NewPOHandler(svc *service.POService, kpi *service.KPIService, export *service.ExportService) *POHandler {
	return &POHandler{svc: svc, kpi: kpi, export: export}
}

var poFilterKeys = []string{"customer_id", "vendor_id", "factory_id", "status", "priority"}

// List 采购订单列表
// GET /api/v1/purchase-orders?customer_id=&vendor_id=&factory_id=&status=&priority=
func (h *POHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, queryFilters(c, poFilterKeys...))
	if err != nil {
		InternalError(c, "获取采购订单列表失败: "+err.Error())
		return
	}
	SuccessList(c, items, total, page, pageSize)
}

// Search 搜索采购订单（单号、客户名、供应商、工厂）
// GET /api/v1/purchase-orders/search?q=xxx
func (h *POHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		BadRequest(c, "搜索关键字不能为空")
		return
	}
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.Search(c.Request.Context(), q, page, pageSize)
	if err != nil {
		InternalError(c, "搜索采购订单失败: "+err.Error())
		return
	}
	SuccessList(c, items, total, page, pageSize)
}

// Get 采购订单详情
// GET /api/v1/purchase-orders/:id
func (h *POHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	po, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, "采购订单不存在", "获取采购订单")
		return
	}
	Success(c, po)
}

// Create 创建采购订单
// POST /api/v1/purchase-orders
func (h *POHandler) Create(c *gin.Context) {
	var req service.CreatePORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	po, err := h.svc.Create(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		handleError(c, err, "采购订单不存在", "创建采购订单")
		return
	}
	Created(c, po)
}

// Update 更新采购订单
// PUT /api/v1/purchase-orders/:id
func (h *POHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.UpdatePORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	po, err := h.svc.Update(c.Request.Context(), id, GetUserID(c), &req)
	if err != nil {
		handleError(c, err, "采购订单不存在", "更新采购订单")
		return
	}
	Success(c, po)
}

// Delete 删除采购订单及其行项
// DELETE /api/v1/purchase-orders/:id
func (h *POHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		handleError(c, err, "采购订单不存在", "删除采购订单")
		return
	}
	Success(c, gin.H{"deleted": true})
}

// Export 导出采购订单
// GET /api/v1/purchase-orders/export
func (h *POHandler) Export(c *gin.Context) {
	f, filename, err := h.export.ExportPurchaseOrders(c.Request.Context(), queryFilters(c, poFilterKeys...))
	if err != nil {
		InternalError(c, "导出采购订单失败: "+err.Error())
		return
	}
	writeExcel(c, f, filename)
}

// ==================== KPI ====================

// parseKPIFilter 解析KPI公共过滤参数
func parseKPIFilter(c *gin.Context) (repository.KPIFilter, bool) {
	var f repository.KPIFilter
	for _, d := range []struct {
		key string
		dst **time.Time
	}{{"start_date", &f.StartDate}, {"end_date", &f.EndDate}} {
		if v := c.Query(d.key); v != "" {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				BadRequest(c, d.key+" 日期格式应为 YYYY-MM-DD")
				return f, false
			}
			*d.dst = &t
		}
	}
	for _, d := range []struct {
		key string
		dst *int64
	}{{"customer_id", &f.CustomerID}, {"vendor_id", &f.VendorID}, {"factory_id", &f.FactoryID}} {
		if v := c.Query(d.key); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				BadRequest(c, "无效的 "+d.key)
				return f, false
			}
			*d.dst = n
		}
	}
	for _, d := range []struct {
		key string
		dst *int
	}{{"status", &f.Status}, {"limit", &f.Limit}} {
		if v := c.Query(d.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				BadRequest(c, "无效的 "+d.key)
				return f, false
			}
			*d.dst = n
		}
	}
	f.Priority = c.Query("priority")
	return f, true
}

// Overall GET /api/v1/purchase-orders/kpi/overall
func (h *POHandler) Overall(c *gin.Context) {
	f, ok := parseKPIFilter(c)
	if !ok {
		return
	}
	out, err := h.kpi.Overall(c.Request.Context(), f)
	if err != nil {
		InternalError(c, "获取KPI失败: "+err.Error())
		return
	}
	Success(c, out)
}

// StatusBreakdown GET /api/v1/purchase-orders/kpi/status-breakdown
func (h *POHandler) StatusBreakdown(c *gin.Context) {
	f, ok := parseKPIFilter(c)
	if !ok {
		return
	}
	out, err := h.kpi.StatusBreakdown(c.Request.Context(), f)
	if err != nil {
		InternalError(c, "获取状态分布失败: "+err.Error())
		return
	}
	Success(c, out)
}

// PriorityBreakdown GET /api/v1/purchase-orders/kpi/priority-breakdown
func (h *POHandler) PriorityBreakdown(c *gin.Context) {
	f, ok := parseKPIFilter(c)
	if !ok {
		return
	}
	out, err := h.kpi.PriorityBreakdown(c.Request.Context(), f)
	if err != nil {
		InternalError(c, "获取优先级分布失败: "+err.Error())
		return
	}
	Success(c, out)
}

// MonthlyTrends GET /api/v1/purchase-orders/kpi/monthly-trends
func (h *POHandler) MonthlyTrends(c *gin.Context) {
	f, ok := parseKPIFilter(c)
	if !ok {
		return
	}
	out, err := h.kpi.MonthlyTrends(c.Request.Context(), f)
	if err != nil {
		InternalError(c, "获取月度趋势失败: "+err.Error())
		return
	}
	Success(c, out)
}

// Top 返回按 fkColumn 分组的排行处理函数
// GET /api/v1/purchase-orders/kpi/top-customers|top-vendors|top-factories
func (h *POHandler) Top(fkColumn string) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, ok := parseKPIFilter(c)
		if !ok {
			return
		}
		out, err := h.kpi.Top(c.Request.Context(), fkColumn, f)
		if err != nil {
			InternalError(c, "获取排行失败: "+err.Error())
			return
		}
		Success(c, out)
	}
}

// Comprehensive GET /api/v1/purchase-orders/kpi/comprehensive
func (h *POHandler) Comprehensive(c *gin.Context) {
	f, ok := parseKPIFilter(c)
	if !ok {
		return
	}
	out, err := h.kpi.Comprehensive(c.Request.Context(), f)
	if err != nil {
		InternalError(c, "获取综合KPI失败: "+err.Error())
		return
	}
	Success(c, out)
}

func writeExcel(c *gin.Context, f *excelize.File, filename string) {
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "write excel: "+err.Error())
	}
}
