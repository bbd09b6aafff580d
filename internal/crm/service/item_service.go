package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/bitfantasy/nimo-crm/internal/crm/repository"
	"github.com/bitfantasy/nimo-crm/internal/crm/sse"
	"github.com/bitfantasy/nimo-crm/internal/shared/cache"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ItemService 采购订单行项服务
type ItemService struct {
	repo  *repository.ItemRepository
	cache *cache.Cache
	hub   *sse.Hub
}

func NewItemService(repo *repository.ItemRepository, c *cache.Cache, hub *sse.Hub) *ItemService {
	return &ItemService{repo: repo, cache: c, hub: hub}
}

func (s *ItemService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PurchaseOrderItem, int64, error) {
	return s.repo.FindAll(ctx, page, pageSize, filters)
}

// ByPurchaseOrder 某采购订单下的行项
func (s *ItemService) ByPurchaseOrder(ctx context.Context, poID int64) ([]entity.PurchaseOrderItem, error) {
	return s.repo.FindByPurchaseOrder(ctx, poID)
}

// Totals 行项汇总
func (s *ItemService) Totals(ctx context.Context, poID int64) (*repository.ItemTotals, error) {
	return s.repo.Totals(ctx, poID)
}

func (s *ItemService) Get(ctx context.Context, id int64) (*entity.PurchaseOrderItem, error) {
	return s.repo.FindByID(ctx, id)
}

// CreateItemRequest 创建行项请求
type CreateItemRequest struct {
	PurchaseOrderID       int64                  `json:"purchase_order_id" binding:"required"`
	ProductID             int64                  `json:"product_id"`
	CategoryID            int64                  `json:"category_id"`
	ItemSKU               string                 `json:"item_sku"`
	ItemName              string                 `json:"item_name" binding:"required"`
	ItemDescription       string                 `json:"item_description"`
	ItemSpecifications    []entity.Specification `json:"item_specifications"`
	ItemNotes             string                 `json:"item_notes"`
	PackagingInstructions json.RawMessage        `json:"packaging_instructions"`
	Quantity              int                    `json:"quantity"`
	UnitPrice             decimal.Decimal        `json:"unit_price"`
	Rate                  decimal.Decimal        `json:"rate"`
	Currency              string                 `json:"currency"`
}

// Create 创建行项，行合计与编号由仓库层生成
func (s *ItemService) Create(ctx context.Context, req *CreateItemRequest) (*entity.PurchaseOrderItem, error) {
	if req.Quantity < 0 {
		return nil, validationError("数量不能为负")
	}
	item := &entity.PurchaseOrderItem{
		PurchaseOrderID:       req.PurchaseOrderID,
		ProductID:             req.ProductID,
		CategoryID:            req.CategoryID,
		ItemSKU:               req.ItemSKU,
		ItemName:              req.ItemName,
		ItemDescription:       req.ItemDescription,
		ItemSpecifications:    datatypes.NewJSONType(req.ItemSpecifications),
		ItemNotes:             req.ItemNotes,
		PackagingInstructions: datatypes.JSON(req.PackagingInstructions),
		Quantity:              req.Quantity,
		UnitPrice:             req.UnitPrice,
		Rate:                  req.Rate,
		Currency:              req.Currency,
	}
	if item.Currency == "" {
		item.Currency = "USD"
	}
	if err := s.repo.Create(ctx, item); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, validationError("采购订单不存在: %d", req.PurchaseOrderID)
		}
		return nil, fmt.Errorf("创建行项失败: %w", err)
	}
	s.changed(ctx, item.PurchaseOrderID)
	return item, nil
}

// UpdateItemRequest 更新行项请求
type UpdateItemRequest struct {
	ProductID             *int64                  `json:"product_id"`
	CategoryID            *int64                  `json:"category_id"`
	ItemSKU               *string                 `json:"item_sku"`
	ItemName              *string                 `json:"item_name"`
	ItemDescription       *string                 `json:"item_description"`
	ItemSpecifications    *[]entity.Specification `json:"item_specifications"`
	ItemNotes             *string                 `json:"item_notes"`
	PackagingInstructions json.RawMessage         `json:"packaging_instructions"`
	Quantity              *int                    `json:"quantity"`
	UnitPrice             *decimal.Decimal        `json:"unit_price"`
	Rate                  *decimal.Decimal        `json:"rate"`
	Currency              *string                 `json:"currency"`
}

// Update 部分更新行项，保存时重算行合计
func (s *ItemService) Update(ctx context.Context, id int64, req *UpdateItemRequest) (*entity.PurchaseOrderItem, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.ProductID != nil {
		item.ProductID = *req.ProductID
	}
	if req.CategoryID != nil {
		item.CategoryID = *req.CategoryID
	}
	if req.ItemSKU != nil {
		item.ItemSKU = *req.ItemSKU
	}
	if req.ItemName != nil {
		if *req.ItemName == "" {
			return nil, validationError("品名不能为空")
		}
		item.ItemName = *req.ItemName
	}
	if req.ItemDescription != nil {
		item.ItemDescription = *req.ItemDescription
	}
	if req.ItemSpecifications != nil {
		item.ItemSpecifications = datatypes.NewJSONType(*req.ItemSpecifications)
	}
	if req.ItemNotes != nil {
		item.ItemNotes = *req.ItemNotes
	}
	if len(req.PackagingInstructions) > 0 {
		item.PackagingInstructions = datatypes.JSON(req.PackagingInstructions)
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			return nil, validationError("数量不能为负")
		}
		item.Quantity = *req.Quantity
	}
	if req.UnitPrice != nil {
		item.UnitPrice = *req.UnitPrice
	}
	if req.Rate != nil {
		item.Rate = *req.Rate
	}
	if req.Currency != nil {
		item.Currency = *req.Currency
	}

	if err := s.repo.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("更新行项失败: %w", err)
	}
	s.changed(ctx, item.PurchaseOrderID)
	return item, nil
}

// Delete 删除行项
func (s *ItemService) Delete(ctx context.Context, id int64) error {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, item.PurchaseOrderID)
	return nil
}

func (s *ItemService) changed(ctx context.Context, poID int64) {
	invalidate(ctx, s.cache, cachePrefixDashboard)
	s.hub.PublishPOUpdate(poID, "items_changed")
}
