package handler

import (
	"errors"
	"strconv"

	"github.com/bitfantasy/nimo-crm/internal/crm/repository"
	"github.com/bitfantasy/nimo-crm/internal/crm/service"
	"github.com/bitfantasy/nimo-crm/internal/crm/sse"
	"github.com/bitfantasy/nimo-crm/internal/middleware"
	"github.com/gin-gonic/gin"
)

// Handlers CRM处理器集合
type Handlers struct {
	PO        *POHandler
	Item      *ItemHandler
	Image     *ImageHandler
	Customer  *CustomerHandler
	Vendor    *VendorHandler
	Factory   *FactoryHandler
	Contact   *ContactHandler
	Shipping  *ShippingHandler
	Dashboard *DashboardHandler
	Activity  *ActivityHandler
	SSE       *SSEHandler
}

// NewHandlers 创建CRM处理器集合
func NewHandlers(svc *service.Services, hub *sse.Hub) *Handlers {
	return &Handlers{
		PO:        NewPOHandler(svc.PO, svc.KPI, svc.Export),
		Item:      NewItemHandler(svc.Item),
		Image:     NewImageHandler(svc.Image),
		Customer:  NewCustomerHandler(svc.Customer),
		Vendor:    NewVendorHandler(svc.Vendor),
		Factory:   NewFactoryHandler(svc.Factory),
		Contact:   NewContactHandler(svc.Contact),
		Shipping:  NewShippingHandler(svc.Shipping, svc.Export),
		Dashboard: NewDashboardHandler(svc.Dashboard),
		Activity:  NewActivityHandler(svc.Activity),
		SSE:       NewSSEHandler(hub),
	}
}

// === 响应辅助函数（与PLM/SRM保持一致） ===

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

func GetUserID(c *gin.Context) string {
	if p := middleware.CurrentPrincipal(c); p != nil {
		return p.UserID
	}
	return ""
}

func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

// SuccessList 分页列表响应
func SuccessList(c *gin.Context, items interface{}, total int64, page, pageSize int) {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	Success(c, ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	})
}

// handleError 按错误类型返回 400/404/500
func handleError(c *gin.Context, err error, notFoundMsg, action string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		NotFound(c, notFoundMsg)
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidItemType),
		errors.Is(err, service.ErrFileRequired):
		BadRequest(c, err.Error())
	default:
		InternalError(c, action+"失败: "+err.Error())
	}
}

// paramID 解析路径中的数字ID，非法时直接返回400
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		BadRequest(c, "无效的ID: "+c.Param(name))
		return 0, false
	}
	return id, true
}

// queryFilters 收集非空查询参数
func queryFilters(c *gin.Context, keys ...string) map[string]string {
	filters := make(map[string]string, len(keys))
	for _, k := range keys {
		if v := c.Query(k); v != "" {
			filters[k] = v
		}
	}
	return filters
}
