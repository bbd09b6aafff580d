package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DashboardRepository 仪表盘统计查询
type DashboardRepository struct {
	db *gorm.DB
}

func NewDashboardRepository(db *gorm.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// Revenue 区间内已完成采购订单的行合计总额
func (r *DashboardRepository) Revenue(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(i.line_total), 0)
		FROM crm_purchase_order_items i
		JOIN crm_purchase_orders po ON po.id = i.purchase_order_id
		WHERE po.status = ? AND po.created_at >= ? AND po.created_at < ?`,
		entity.POStatusCompleted, from, to).Row().Scan(&total)
	return total, err
}

// CountCustomers 区间内新增客户数
func (r *DashboardRepository) CountCustomers(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.Customer{}).
		Where("created_at >= ? AND created_at < ?", from, to).Count(&n).Error
	return n, err
}

// CountPurchaseOrders 区间内新建采购订单数
func (r *DashboardRepository) CountPurchaseOrders(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.PurchaseOrder{}).
		Where("created_at >= ? AND created_at < ?", from, to).Count(&n).Error
	return n, err
}

// CountTouched 区间内有变更的采购订单数
func (r *DashboardRepository) CountTouched(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.PurchaseOrder{}).
		Where("updated_at >= ? AND updated_at < ?", from, to).Count(&n).Error
	return n, err
}

// CountCompleted 区间内已完成的采购订单数
func (r *DashboardRepository) CountCompleted(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.PurchaseOrder{}).
		Where("status = ? AND created_at >= ? AND created_at < ?", entity.POStatusCompleted, from, to).
		Count(&n).Error
	return n, err
}

// SaleRow 最近成交行
type SaleRow struct {
	PurchaseOrderID int64
	CustomerName    string
	OwnerName       string
	Email           string
	Amount          decimal.Decimal
	CreatedAt       time.Time
}

// RecentCompleted 最近完成的采购订单及其客户信息
func (r *DashboardRepository) RecentCompleted(ctx context.Context, limit int) ([]SaleRow, error) {
	var rows []SaleRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT po.id AS purchase_order_id,
			COALESCE(c.name, '') AS customer_name,
			COALESCE(c.owner_name, '') AS owner_name,
			COALESCE(NULLIF(c.email, ''), ct.email, '') AS email,
			COALESCE((SELECT SUM(i.line_total) FROM crm_purchase_order_items i WHERE i.purchase_order_id = po.id), 0) AS amount,
			po.created_at
		FROM crm_purchase_orders po
		LEFT JOIN crm_customers c ON c.id = po.customer_id
		LEFT JOIN LATERAL (
			SELECT email FROM crm_contacts
			WHERE fk_id = c.id AND ref_table = ? ORDER BY id LIMIT 1
		) ct ON TRUE
		WHERE po.status = ?
		ORDER BY po.created_at DESC
		LIMIT ?`, entity.RefTableCustomers, entity.POStatusCompleted, limit).Scan(&rows).Error
	return rows, err
}
