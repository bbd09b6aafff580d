package handler

import (
	"strconv"

	"github.com/bitfantasy/nimo-crm/internal/crm/service"
	"github.com/gin-gonic/gin"
)

// ContactHandler 联系人与地址处理器
type ContactHandler struct {
	svc *service.ContactService
}

func NewContactHandler(svc *service.ContactService) *ContactHandler {
	return &ContactHandler{svc: svc}
}

// reference 解析 /by-reference/:fkId/:table/:kind
func reference(c *gin.Context, kindParam string) (int64, string, string, bool) {
	fkID, err := strconv.ParseInt(c.Param("fkId"), 10, 64)
	if err != nil {
		BadRequest(c, "无效的 fkId")
		return 0, "", "", false
	}
	return fkID, c.Param("table"), c.Param(kindParam), true
}

// === 联系人 ===

// ListContacts GET /api/v1/contacts?table=&fk_id=&search=
func (h *ContactHandler) ListContacts(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.ListContacts(c.Request.Context(), page, pageSize, queryFilters(c, "table", "fk_id", "search"))
	if err != nil {
		InternalError(c, "获取联系人列表失败: "+err.Error())
		return
	}
	SuccessList(c, items, total, page, pageSize)
}

// ContactsByReference GET /api/v1/contacts/by-reference/:fkId/:table/:contactType
func (h *ContactHandler) ContactsByReference(c *gin.Context) {
	fkID, table, kind, ok := reference(c, "contactType")
	if !ok {
		return
	}
	items, err := h.svc.ContactsByReference(c.Request.Context(), fkID, table, kind)
	if err != nil {
		handleError(c, err, "联系人不存在", "获取联系人")
		return
	}
	Success(c, gin.H{"items": items})
}

// GetContact GET /api/v1/contacts/:id
func (h *ContactHandler) GetContact(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	contact, err := h.svc.GetContact(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, "联系人不存在", "获取联系人")
		return
	}
	Success(c, contact)
}

// CreateContact POST /api/v1/contacts
func (h *ContactHandler) CreateContact(c *gin.Context) {
	var req service.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	contact, err := h.svc.CreateContact(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err, "联系人不存在", "创建联系人")
		return
	}
	Created(c, contact)
}

// UpdateContact PUT /api/v1/contacts/:id
func (h *ContactHandler) UpdateContact(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	contact, err := h.svc.UpdateContact(c.Request.Context(), id, &req)
	if err != nil {
		handleError(c, err, "联系人不存在", "更新联系人")
		return
	}
	Success(c, contact)
}

// DeleteContact DELETE /api/v1/contacts/:id
func (h *ContactHandler) DeleteContact(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteContact(c.Request.Context(), id); err != nil {
		handleError(c, err, "联系人不存在", "删除联系人")
		return
	}
	Success(c, gin.H{"deleted": true})
}

// === 地址 ===

// ListAddresses GET /api/v1/addresses?table=&fk_id=&country=
func (h *ContactHandler) ListAddresses(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.ListAddresses(c.Request.Context(), page, pageSize, queryFilters(c, "table", "fk_id", "country"))
	if err != nil {
		InternalError(c, "获取地址列表失败: "+err.Error())
		return
	}
	SuccessList(c, items, total, page, pageSize)
}

// AddressesByReference GET /api/v1/addresses/by-reference/:fkId/:table/:addressType
func (h *ContactHandler) AddressesByReference(c *gin.Context) {
	fkID, table, kind, ok := reference(c, "addressType")
	if !ok {
		return
	}
	items, err := h.svc.AddressesByReference(c.Request.Context(), fkID, table, kind)
	if err != nil {
		handleError(c, err, "地址不存在", "获取地址")
		return
	}
	Success(c, gin.H{"items": items})
}

// GetAddress GET /api/v1/addresses/:id
func (h *ContactHandler) GetAddress(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	addr, err := h.svc.GetAddress(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, "地址不存在", "获取地址")
		return
	}
	Success(c, addr)
}

// CreateAddress POST /api/v1/addresses
func (h *ContactHandler) CreateAddress(c *gin.Context) {
	var req service.AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	addr, err := h.svc.CreateAddress(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err, "地址不存在", "创建地址")
		return
	}
	Created(c, addr)
}

// UpdateAddress PUT /api/v1/addresses/:id
func (h *ContactHandler) UpdateAddress(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	addr, err := h.svc.UpdateAddress(c.Request.Context(), id, &req)
	if err != nil {
		handleError(c, err, "地址不存在", "更新地址")
		return
	}
	Success(c, addr)
}

// DeleteAddress DELETE /api/v1/addresses/:id
func (h *ContactHandler) DeleteAddress(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteAddress(c.Request.Context(), id); err != nil {
		handleError(c, err, "地址不存在", "删除地址")
		return
	}
	Success(c, gin.H{"deleted": true})
}
