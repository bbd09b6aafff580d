package handler

import (
	"strconv"

	"github.com/bitfantasy/nimo-crm/internal/crm/service"
	"github.com/gin-gonic/gin"
)

// ============================================================
// Customer Handler
// ============================================================

type CustomerHandler struct {
	svc *service.CustomerService
}

func NewCustomerHandler(svc *service.CustomerService) *CustomerHandler {
	return &CustomerHandler{svc: svc}
}

// List GET /api/v1/customers?status=&customer_type=&search=
func (h *CustomerHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, queryFilters(c, "status", "customer_type", "search"))
	if err != nil {
		InternalError(c, "获取客户列表失败: "+err.Error())
		return
	}
	SuccessList(c, items, total, page, pageSize)
}

// Search GET /api/v1/customers/search?q=xxx
func (h *CustomerHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		BadRequest(c, "搜索关键字不能为空")
		return
	}
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, map[string]string{"search": q})
	if err != nil {
		InternalError(c, "搜索客户失败: "+err.Error())
		return
	}
	SuccessList(c, items, total, page, pageSize)
}

// Get GET /api/v1/customers/:id
func (h *CustomerHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	cust, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, "客户不存在", "获取客户")
		return
	}
	Success(c, cust)
}

// Create POST /api/v1/customers
func (h *CustomerHandler) Create(c *gin.Context) {
	var req service.CustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	cust, err := h.svc.Create(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		handleError(c, err, "客户不存在", "创建客户")
		return
	}
	Created(c, cust)
}

// Update PUT /api/v1/customers/:id
func (h *CustomerHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.CustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	cust, err := h.svc.Update(c.Request.Context(), id, &req)
	if err != nil {
		handleError(c, err, "客户不存在", "更新客户")
		return
	}
	Success(c, cust)
}

// Delete DELETE /api/v1/customers/:id
func (h *CustomerHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		handleError(c, err, "客户不存在", "删除客户")
		return
	}
	Success(c, gin.H{"deleted": true})
}

// KPI GET /api/v1/customers/kpi
func (h *CustomerHandler) KPI(c *gin.Context) {
	kpi, err := h.svc.KPI(c.Request.Context())
	if err != nil {
		InternalError(c, "获取客户指标失败: "+err.Error())
		return
	}
	Success(c, kpi)
}

// ============================================================
// Vendor Handler
// ============================================================

type VendorHandler struct {
	svc *service.VendorService
}

func NewVendorHandler(svc *service.VendorService) *VendorHandler {
	return &VendorHandler{svc: svc}
}

// List GET /api/v1/vendors?status=&vendor_type_id=&search=
func (h *VendorHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, queryFilters(c, "status", "vendor_type_id", "search"))
	if err != nil {
		InternalError(c, "获取供应商列表失败: "+err.Error())
		return
	}
	SuccessList(c, items, total, page, pageSize)
}

// Search GET /api/v1/vendors/search?q=xxx
func (h *VendorHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		BadRequest(c, "搜索关键字不能为空")
		return
	}
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, map[string]string{"search": q})
	if err != nil {
		InternalError(c, "搜索供应商失败: "+err.Error())
		return
	}
	SuccessList(c, items, total, page, pageSize)
}

// Get GET /api/v1/vendors/:id
func (h *VendorHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	v, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, "供应商不存在", "获取供应商")
		return
	}
	Success(c, v)
}

// Create POST /api/v1/vendors
func (h *VendorHandler) Create(c *gin.Context) {
	var req service.VendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	v, err := h.svc.Create(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		handleError(c, err, "供应商不存在", "创建供应商")
		return
	}
	Created(c, v)
}

// Update PUT /api/v1/vendors/:id
func (h *VendorHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.VendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	v, err := h.svc.Update(c.Request.Context(), id, &req)
	if err != nil {
		handleError(c, err, "供应商不存在", "更新供应商")
		return
	}
	Success(c, v)
}

// Delete DELETE /api/v1/vendors/:id
func (h *VendorHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		handleError(c, err, "供应商不存在", "删除供应商")
		return
	}
	Success(c, gin.H{"deleted": true})
}

// Overview GET /api/v1/vendors/kpis/overview
func (h *VendorHandler) Overview(c *gin.Context) {
	out, err := h.svc.Overview(c.Request.Context())
	if err != nil {
		InternalError(c, "获取供应商概览失败: "+err.Error())
		return
	}
	Success(c, out)
}

// TopPerformers GET /api/v1/vendors/kpis/top-performers?limit=10
func (h *VendorHandler) TopPerformers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	out, err := h.svc.TopPerformers(c.Request.Context(), limit)
	if err != nil {
		InternalError(c, "获取供应商排行失败: "+err.Error())
		return
	}
	Success(c, out)
}

// ============================================================
// Factory Handler
// ============================================================

type FactoryHandler struct {
	svc *service.FactoryService
}

func NewFactoryHandler(svc *service.FactoryService) *FactoryHandler {
	return &FactoryHandler{svc: svc}
}

// List GET /api/v1/factories?status=&industry=&search=
func (h *FactoryHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, queryFilters(c, "status", "industry", "search"))
	if err != nil {
		InternalError(c, "获取工厂列表失败: "+err.Error())
		return
	}
	SuccessList(c, items, total, page, pageSize)
}

// Search GET /api/v1/factories/search?q=xxx
func (h *FactoryHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		BadRequest(c, "搜索关键字不能为空")
		return
	}
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, map[string]string{"search": q})
	if err != nil {
		InternalError(c, "搜索工厂失败: "+err.Error())
		return
	}
	SuccessList(c, items, total, page, pageSize)
}

// Get GET /api/v1/factories/:id
func (h *FactoryHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	f, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, "工厂不存在", "获取工厂")
		return
	}
	Success(c, f)
}

// Create POST /api/v1/factories
func (h *FactoryHandler) Create(c *gin.Context) {
	var req service.FactoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	f, err := h.svc.Create(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		handleError(c, err, "工厂不存在", "创建工厂")
		return
	}
	Created(c, f)
}

// Update PUT /api/v1/factories/:id
func (h *FactoryHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.FactoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	f, err := h.svc.Update(c.Request.Context(), id, &req)
	if err != nil {
		handleError(c, err, "工厂不存在", "更新工厂")
		return
	}
	Success(c, f)
}

// Delete DELETE /api/v1/factories/:id
func (h *FactoryHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		handleError(c, err, "工厂不存在", "删除工厂")
		return
	}
	Success(c, gin.H{"deleted": true})
}

// KPI GET /api/v1/factories/kpi
func (h *FactoryHandler) KPI(c *gin.Context) {
	kpi, err := h.svc.KPI(c.Request.Context())
	if err != nil {
		InternalError(c, "获取工厂指标失败: "+err.Error())
		return
	}
	Success(c, kpi)
}
