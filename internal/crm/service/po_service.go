package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/bitfantasy/nimo-crm/internal/crm/repository"
	"github.com/bitfantasy/nimo-crm/internal/crm/sse"
	"github.com/bitfantasy/nimo-crm/internal/shared/cache"
	"go.uber.org/zap"
)

// POService 采购订单服务
type POService struct {
	repo      *repository.PORepository
	customers *repository.CustomerRepository
	vendors   *repository.VendorRepository
	activity  *ActivityService
	cache     *cache.Cache
	hub       *sse.Hub
	logger    *zap.Logger
}

func NewPOService(repos *repository.Repositories, activity *ActivityService, c *cache.Cache, hub *sse.Hub, logger *zap.Logger) *POService {
	return &POService{
		repo:      repos.PO,
		customers: repos.Customer,
		vendors:   repos.Vendor,
		activity:  activity,
		cache:     c,
		hub:       hub,
		logger:    logger,
	}
}

// List 获取采购订单列表
func (s *POService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PurchaseOrder, int64, error) {
	return s.repo.FindAll(ctx, page, pageSize, filters)
}

// Search 搜索采购订单
func (s *POService) Search(ctx context.Context, q string, page, pageSize int) ([]entity.PurchaseOrder, int64, error) {
	return s.repo.Search(ctx, q, page, pageSize)
}

// Get 获取采购订单详情
func (s *POService) Get(ctx context.Context, id int64) (*entity.PurchaseOrder, error) {
	return s.repo.FindByID(ctx, id)
}

// CreatePORequest 创建采购订单请求
type CreatePORequest struct {
	CustomerID        int64        `json:"customer_id" binding:"required"`
	VendorID          int64        `json:"vendor_id" binding:"required"`
	FactoryID         int64        `json:"factory_id"`
	LocationTypeID    int64        `json:"location_type_id"`
	LeadNumbersID     int64        `json:"lead_numbers_id"`
	ShippingMethodID  int64        `json:"shipping_method_id"`
	Status            int          `json:"status"`
	Priority          string       `json:"priority"`
	ClientName        string       `json:"client_name"`
	ClientDescription string       `json:"client_description"`
	QuoteApprovedDate string       `json:"quote_approved_date"`
	PDSignedDate      string       `json:"pd_signed_date"`
	ShippingDate      string       `json:"shipping_date"`
	TotalQuantity     int          `json:"total_quantity"`
	Notes             string       `json:"notes"`
	Tags              entity.JSONB `json:"tags"`
}

// Create 创建采购订单（同事务生成编号器与单号）
func (s *POService) Create(ctx context.Context, userID string, req *CreatePORequest) (*entity.PurchaseOrder, error) {
	if err := s.checkParties(ctx, req.CustomerID, req.VendorID); err != nil {
		return nil, err
	}

	po := &entity.PurchaseOrder{
		CustomerID:        req.CustomerID,
		VendorID:          req.VendorID,
		FactoryID:         req.FactoryID,
		LocationTypeID:    req.LocationTypeID,
		LeadNumbersID:     req.LeadNumbersID,
		ShippingMethodID:  req.ShippingMethodID,
		Status:            req.Status,
		Priority:          entity.Priority(req.Priority),
		ClientName:        req.ClientName,
		ClientDescription: req.ClientDescription,
		TotalQuantity:     req.TotalQuantity,
		Notes:             req.Notes,
		Tags:              req.Tags,
		UserOwner:         userID,
	}
	if po.Status == 0 {
		po.Status = entity.POStatusActive
	}
	if po.Priority == "" {
		po.Priority = entity.PriorityNormal
	}
	if !po.Priority.Valid() {
		return nil, validationError("优先级无效: %s", req.Priority)
	}

	var err error
	if po.QuoteApprovedDate, err = parseDate("quote_approved_date", req.QuoteApprovedDate); err != nil {
		return nil, err
	}
	if po.PDSignedDate, err = parseDate("pd_signed_date", req.PDSignedDate); err != nil {
		return nil, err
	}
	if po.ShippingDate, err = parseDate("shipping_date", req.ShippingDate); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, po); err != nil {
		return nil, fmt.Errorf("创建采购订单失败: %w", err)
	}

	s.activity.Record(ctx, po, "Create", fmt.Sprintf("Purchase order %s created", po.PurchaseOrderNumber), userID)
	s.changed(ctx, po.ID, "created")
	s.logger.Info("purchase order created",
		zap.Int64("id", po.ID),
		zap.String("number", po.PurchaseOrderNumber),
		zap.String("user", userID))
	return po, nil
}

// UpdatePORequest 更新采购订单请求
type UpdatePORequest struct {
	CustomerID        *int64        `json:"customer_id"`
	VendorID          *int64        `json:"vendor_id"`
	FactoryID         *int64        `json:"factory_id"`
	LocationTypeID    *int64        `json:"location_type_id"`
	ShippingMethodID  *int64        `json:"shipping_method_id"`
	Status            *int          `json:"status"`
	Priority          *string       `json:"priority"`
	ClientName        *string       `json:"client_name"`
	ClientDescription *string       `json:"client_description"`
	QuoteApprovedDate *string       `json:"quote_approved_date"`
	PDSignedDate      *string       `json:"pd_signed_date"`
	ShippingDate      *string       `json:"shipping_date"`
	TotalQuantity     *int          `json:"total_quantity"`
	Notes             *string       `json:"notes"`
	Tags              *entity.JSONB `json:"tags"`
}

// Update 部分更新采购订单，状态变化单独记录
func (s *POService) Update(ctx context.Context, id int64, userID string, req *UpdatePORequest) (*entity.PurchaseOrder, error) {
	po, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	prevStatus := po.Status

	if req.CustomerID != nil || req.VendorID != nil {
		customerID, vendorID := po.CustomerID, po.VendorID
		if req.CustomerID != nil {
			customerID = *req.CustomerID
		}
		if req.VendorID != nil {
			vendorID = *req.VendorID
		}
		if err := s.checkParties(ctx, customerID, vendorID); err != nil {
			return nil, err
		}
		po.CustomerID, po.VendorID = customerID, vendorID
	}
	if req.FactoryID != nil {
		po.FactoryID = *req.FactoryID
	}
	if req.LocationTypeID != nil {
		po.LocationTypeID = *req.LocationTypeID
	}
	if req.ShippingMethodID != nil {
		po.ShippingMethodID = *req.ShippingMethodID
	}
	if req.Status != nil {
		po.Status = *req.Status
	}
	if req.Priority != nil {
		p := entity.Priority(*req.Priority)
		if !p.Valid() {
			return nil, validationError("优先级无效: %s", *req.Priority)
		}
		po.Priority = p
	}
	if req.ClientName != nil {
		po.ClientName = *req.ClientName
	}
	if req.ClientDescription != nil {
		po.ClientDescription = *req.ClientDescription
	}
	if req.QuoteApprovedDate != nil {
		if po.QuoteApprovedDate, err = parseDate("quote_approved_date", *req.QuoteApprovedDate); err != nil {
			return nil, err
		}
	}
	if req.PDSignedDate != nil {
		if po.PDSignedDate, err = parseDate("pd_signed_date", *req.PDSignedDate); err != nil {
			return nil, err
		}
	}
	if req.ShippingDate != nil {
		if po.ShippingDate, err = parseDate("shipping_date", *req.ShippingDate); err != nil {
			return nil, err
		}
	}
	if req.TotalQuantity != nil {
		po.TotalQuantity = *req.TotalQuantity
	}
	if req.Notes != nil {
		po.Notes = *req.Notes
	}
	if req.Tags != nil {
		po.Tags = *req.Tags
	}

	if err := s.repo.Update(ctx, po); err != nil {
		return nil, fmt.Errorf("更新采购订单失败: %w", err)
	}

	if prevStatus != po.Status {
		s.activity.Record(ctx, po, "Update",
			fmt.Sprintf("Status changed from %s to %s", statusName(prevStatus), statusName(po.Status)), userID)
	} else {
		s.activity.Record(ctx, po, "Update", fmt.Sprintf("Purchase order %s updated", po.PurchaseOrderNumber), userID)
	}
	s.changed(ctx, po.ID, "updated")
	return po, nil
}

// Delete 删除采购订单及其行项
func (s *POService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, id, "deleted")
	return nil
}

// checkParties 客户与供应商必须存在
func (s *POService) checkParties(ctx context.Context, customerID, vendorID int64) error {
	if customerID <= 0 {
		return validationError("客户必填")
	}
	if vendorID <= 0 {
		return validationError("供应商必填")
	}
	if _, err := s.customers.FindByID(ctx, customerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return validationError("客户不存在: %d", customerID)
		}
		return err
	}
	if _, err := s.vendors.FindByID(ctx, vendorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return validationError("供应商不存在: %d", vendorID)
		}
		return err
	}
	return nil
}

func (s *POService) changed(ctx context.Context, id int64, action string) {
	invalidate(ctx, s.cache, cachePrefixPOKPI, cachePrefixDashboard, cachePrefixParties)
	s.hub.PublishPOUpdate(id, action)
}
