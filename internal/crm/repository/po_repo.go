package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PORepository 采购订单仓库
type PORepository struct {
	db *gorm.DB
}

func NewPORepository(db *gorm.DB) *PORepository {
	return &PORepository{db: db}
}

// FindAll 查询采购订单列表
func (r *PORepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PurchaseOrder, int64, error) {
	var items []entity.PurchaseOrder
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.PurchaseOrder{})
	for _, col := range []string{"customer_id", "vendor_id", "factory_id", "status", "priority"} {
		if v := filters[col]; v != "" {
			query = query.Where(col+" = ?", v)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Preload("Customer").
		Preload("Vendor").
		Preload("Factory").
		Order("created_at DESC").
		Offset(offsetOf(page, pageSize)).
		Limit(pageSize).
		Find(&items).Error
	return items, total, err
}

// Search 按编号、客户名称及关联方名称模糊搜索
func (r *PORepository) Search(ctx context.Context, q string, page, pageSize int) ([]entity.PurchaseOrder, int64, error) {
	var items []entity.PurchaseOrder
	var total int64

	like := "%" + q + "%"
	query := r.db.WithContext(ctx).Model(&entity.PurchaseOrder{}).
		Joins("LEFT JOIN crm_customers c ON c.id = crm_purchase_orders.customer_id").
		Joins("LEFT JOIN crm_vendors v ON v.id = crm_purchase_orders.vendor_id").
		Joins("LEFT JOIN crm_factories f ON f.id = crm_purchase_orders.factory_id")
	if q != "" {
		query = query.Where(
			"crm_purchase_orders.purchase_order_number ILIKE ? OR crm_purchase_orders.client_name ILIKE ? OR c.name ILIKE ? OR v.name ILIKE ? OR f.name ILIKE ?",
			like, like, like, like, like)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.
		Preload("Customer").
		Preload("Vendor").
		Preload("Factory").
		Order("crm_purchase_orders.created_at DESC").
		Offset(offsetOf(page, pageSize)).
		Limit(pageSize).
		Find(&items).Error
	return items, total, err
}

// FindByID 根据ID查找采购订单（含行项与关联方）
func (r *PORepository) FindByID(ctx context.Context, id int64) (*entity.PurchaseOrder, error) {
	var po entity.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Preload("Vendor").
		Preload("Factory").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Where("id = ?", id).
		First(&po).Error
	if err != nil {
		return nil, translate(err)
	}
	return &po, nil
}

// Create 在一个事务内创建编号器、采购订单并生成单号
func (r *PORepository) Create(ctx context.Context, po *entity.PurchaseOrder) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		serial := entity.SerialEncoder{}
		if err := tx.Create(&serial).Error; err != nil {
			return fmt.Errorf("创建编号器失败: %w", err)
		}
		po.SerialEncoderID = serial.ID
		if err := tx.Omit(clause.Associations).Create(po).Error; err != nil {
			return err
		}
		po.PurchaseOrderNumber = fmt.Sprintf("%d-%d", serial.ID, po.ID)
		if err := tx.Model(po).Update("purchase_order_number", po.PurchaseOrderNumber).Error; err != nil {
			return err
		}
		serial.Purpose = serialPurpose(entity.SerialPurpose{PurchaseOrderIDs: []int64{po.ID}})
		return tx.Model(&serial).Update("purpose", serial.Purpose).Error
	})
}

// serialPurpose 编号器记录其关联的采购订单
func serialPurpose(p entity.SerialPurpose) datatypes.JSONType[entity.SerialPurpose] {
	return datatypes.NewJSONType(p)
}

// Update 更新采购订单（不级联关联）
func (r *PORepository) Update(ctx context.Context, po *entity.PurchaseOrder) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(po).Error
}

// Delete 删除采购订单及行项
func (r *PORepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("purchase_order_id = ?", id).Delete(&entity.PurchaseOrderItem{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&entity.PurchaseOrder{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// FindAllForExport 导出用，按创建时间排序的全部订单
func (r *PORepository) FindAllForExport(ctx context.Context, filters map[string]string) ([]entity.PurchaseOrder, error) {
	var items []entity.PurchaseOrder
	query := r.db.WithContext(ctx).Model(&entity.PurchaseOrder{})
	for _, col := range []string{"customer_id", "vendor_id", "factory_id", "status", "priority"} {
		if v := filters[col]; v != "" {
			query = query.Where(col+" = ?", v)
		}
	}
	err := query.Preload("Customer").Preload("Vendor").Preload("Factory").
		Order("created_at ASC").Find(&items).Error
	return items, err
}

// KPIFilter KPI查询条件
type KPIFilter struct {
	StartDate  *time.Time
	EndDate    *time.Time
	CustomerID int64
	VendorID   int64
	FactoryID  int64
	Priority   string
	Status     int
	Limit      int
}

func (f KPIFilter) apply(db *gorm.DB, table string) *gorm.DB {
	col := func(name string) string {
		if table == "" {
			return name
		}
		return table + "." + name
	}
	if f.StartDate != nil {
		db = db.Where(col("created_at")+" >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		db = db.Where(col("created_at")+" <= ?", *f.EndDate)
	}
	if f.CustomerID > 0 {
		db = db.Where(col("customer_id")+" = ?", f.CustomerID)
	}
	if f.VendorID > 0 {
		db = db.Where(col("vendor_id")+" = ?", f.VendorID)
	}
	if f.FactoryID > 0 {
		db = db.Where(col("factory_id")+" = ?", f.FactoryID)
	}
	if f.Priority != "" {
		db = db.Where(col("priority")+" = ?", f.Priority)
	}
	if f.Status > 0 {
		db = db.Where(col("status")+" = ?", f.Status)
	}
	return db
}

// FindForKPI 按条件加载KPI计算所需字段
func (r *PORepository) FindForKPI(ctx context.Context, f KPIFilter) ([]entity.PurchaseOrder, error) {
	var items []entity.PurchaseOrder
	err := f.apply(r.db.WithContext(ctx).Model(&entity.PurchaseOrder{}), "").
		Select("id, status, priority, total_quantity, quote_approved_date, shipping_date, created_at, updated_at").
		Find(&items).Error
	return items, err
}

// EntityRanking 关联方排名行
type EntityRanking struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Count         int64   `json:"count"`
	TotalQuantity int64   `json:"total_quantity"`
	AvgLeadTime   float64 `json:"average_lead_time"`
}

var rankingTables = map[string]string{
	"customer_id": "crm_customers",
	"vendor_id":   "crm_vendors",
	"factory_id":  "crm_factories",
}

// TopBy 按客户/供应商/工厂分组统计订单数，降序取前N
func (r *PORepository) TopBy(ctx context.Context, fkColumn string, f KPIFilter) ([]EntityRanking, error) {
	table, ok := rankingTables[fkColumn]
	if !ok {
		return nil, fmt.Errorf("不支持的分组字段: %s", fkColumn)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}

	var rows []EntityRanking
	query := r.db.WithContext(ctx).Table("crm_purchase_orders po").
		Select(fmt.Sprintf(`po.%s AS id, COALESCE(t.name, '') AS name, COUNT(*) AS count,
			COALESCE(SUM(po.total_quantity), 0) AS total_quantity,
			COALESCE(AVG(po.shipping_date - po.quote_approved_date), 0) AS avg_lead_time`, fkColumn)).
		Joins(fmt.Sprintf("LEFT JOIN %s t ON t.id = po.%s", table, fkColumn))
	query = f.apply(query, "po").
		Group(fmt.Sprintf("po.%s, t.name", fkColumn)).
		Clauses(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: "count"}, Desc: true},
			{Column: clause.Column{Name: "id"}},
		}}).
		Limit(limit)
	err := query.Scan(&rows).Error
	return rows, err
}
