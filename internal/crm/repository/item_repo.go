package repository

import (
	"context"
	"fmt"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ItemRepository 采购订单行项仓库
type ItemRepository struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// FindAll 查询行项列表
func (r *ItemRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PurchaseOrderItem, int64, error) {
	var items []entity.PurchaseOrderItem
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.PurchaseOrderItem{})
	if poID := filters["purchase_order_id"]; poID != "" {
		query = query.Where("purchase_order_id = ?", poID)
	}
	if search := filters["search"]; search != "" {
		query = query.Where("item_name ILIKE ? OR item_sku ILIKE ?", "%"+search+"%", "%"+search+"%")
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Offset(offsetOf(page, pageSize)).Limit(pageSize).Find(&items).Error
	return items, total, err
}

// FindByPurchaseOrder 某采购订单下的全部行项（按创建时间倒序）
func (r *ItemRepository) FindByPurchaseOrder(ctx context.Context, poID int64) ([]entity.PurchaseOrderItem, error) {
	var items []entity.PurchaseOrderItem
	err := r.db.WithContext(ctx).
		Where("purchase_order_id = ?", poID).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

// FindByID 查找行项
func (r *ItemRepository) FindByID(ctx context.Context, id int64) (*entity.PurchaseOrderItem, error) {
	var item entity.PurchaseOrderItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

// Create 创建行项并生成行项编号 {编号器}-{订单}-{行项}
// 生成编号期间锁定所属采购订单行
func (r *ItemRepository) Create(ctx context.Context, item *entity.PurchaseOrderItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var po entity.PurchaseOrder
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id, serial_encoder_id").
			Where("id = ?", item.PurchaseOrderID).
			First(&po).Error
		if err != nil {
			return translate(err)
		}
		item.ComputeLineTotal()
		if err := tx.Create(item).Error; err != nil {
			return err
		}
		item.ItemNumber = fmt.Sprintf("%d-%d-%d", po.SerialEncoderID, po.ID, item.ID)
		return tx.Model(item).Update("item_number", item.ItemNumber).Error
	})
}

// Update 更新行项（总是重算行合计）
func (r *ItemRepository) Update(ctx context.Context, item *entity.PurchaseOrderItem) error {
	item.ComputeLineTotal()
	return r.db.WithContext(ctx).Save(item).Error
}

// Delete 删除行项
func (r *ItemRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.PurchaseOrderItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ItemTotals 行项汇总
type ItemTotals struct {
	TotalQuantity  int64           `json:"total_quantity"`
	TotalUnitPrice decimal.Decimal `json:"total_unit_price"`
	TotalRate      decimal.Decimal `json:"total_rate"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

// Totals 汇总某采购订单行项的数量与金额
func (r *ItemRepository) Totals(ctx context.Context, poID int64) (*ItemTotals, error) {
	var t ItemTotals
	err := r.db.WithContext(ctx).Model(&entity.PurchaseOrderItem{}).
		Select(`COALESCE(SUM(quantity), 0) AS total_quantity,
			COALESCE(SUM(unit_price), 0) AS total_unit_price,
			COALESCE(SUM(rate), 0) AS total_rate,
			COALESCE(SUM(line_total), 0) AS total_amount`).
		Where("purchase_order_id = ?", poID).
		Scan(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}
