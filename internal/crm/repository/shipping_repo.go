package repository

import (
	"context"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ShippingSpecRepository 发货包裹规格仓库
type ShippingSpecRepository struct {
	db *gorm.DB
}

func NewShippingSpecRepository(db *gorm.DB) *ShippingSpecRepository {
	return &ShippingSpecRepository{db: db}
}

// FindAll 查询包裹规格列表
func (r *ShippingSpecRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.ShippingPackageSpecification, int64, error) {
	var items []entity.ShippingPackageSpecification
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.ShippingPackageSpecification{})
	if so := filters["shipping_order_id"]; so != "" {
		query = query.Where("shipping_order_id = ?", so)
	}
	if carrier := filters["carrier"]; carrier != "" {
		query = query.Where("carrier = ?", carrier)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Offset(offsetOf(page, pageSize)).Limit(pageSize).Find(&items).Error
	return items, total, err
}

// FindByShippingOrder 某发货单下的包裹（按创建时间升序）
func (r *ShippingSpecRepository) FindByShippingOrder(ctx context.Context, shippingOrderID int64) ([]entity.ShippingPackageSpecification, error) {
	var items []entity.ShippingPackageSpecification
	err := r.db.WithContext(ctx).
		Where("shipping_order_id = ?", shippingOrderID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

func (r *ShippingSpecRepository) FindByID(ctx context.Context, id int64) (*entity.ShippingPackageSpecification, error) {
	var s entity.ShippingPackageSpecification
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *ShippingSpecRepository) Create(ctx context.Context, s *entity.ShippingPackageSpecification) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *ShippingSpecRepository) Update(ctx context.Context, s *entity.ShippingPackageSpecification) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *ShippingSpecRepository) Delete(ctx context.Context, id int64) error {
	return deleteByID(r.db.WithContext(ctx), &entity.ShippingPackageSpecification{}, id)
}

// DeleteByShippingOrder 删除某发货单下全部包裹，返回删除数
func (r *ShippingSpecRepository) DeleteByShippingOrder(ctx context.Context, shippingOrderID int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("shipping_order_id = ?", shippingOrderID).
		Delete(&entity.ShippingPackageSpecification{})
	return res.RowsAffected, res.Error
}

// ShippingStats 发货单包裹统计
type ShippingStats struct {
	TotalPackages int64           `json:"total_packages"`
	TotalWeight   decimal.Decimal `json:"total_weight"`
	TotalVolume   decimal.Decimal `json:"total_volume"`
}

// Stats 统计包裹数、总重量、总体积
func (r *ShippingSpecRepository) Stats(ctx context.Context, shippingOrderID int64) (*ShippingStats, error) {
	var s ShippingStats
	err := r.db.WithContext(ctx).Model(&entity.ShippingPackageSpecification{}).
		Select(`COUNT(*) AS total_packages,
			COALESCE(SUM(weight), 0) AS total_weight,
			COALESCE(SUM(length * width * height), 0) AS total_volume`).
		Where("shipping_order_id = ?", shippingOrderID).
		Scan(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}
