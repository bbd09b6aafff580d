package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"gorm.io/gorm"
)

// CustomerRepository 客户仓库
type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// FindAll 查询客户列表
func (r *CustomerRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Customer, int64, error) {
	var items []entity.Customer
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Customer{})
	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if ct := filters["customer_type"]; ct != "" {
		query = query.Where("customer_type = ?", ct)
	}
	if search := filters["search"]; search != "" {
		like := "%" + search + "%"
		query = query.Where("name ILIKE ? OR owner_name ILIKE ? OR email ILIKE ?", like, like, like)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Offset(offsetOf(page, pageSize)).Limit(pageSize).Find(&items).Error
	return items, total, err
}

// FindByID 查找客户
func (r *CustomerRepository) FindByID(ctx context.Context, id int64) (*entity.Customer, error) {
	var c entity.Customer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *CustomerRepository) Create(ctx context.Context, c *entity.Customer) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *CustomerRepository) Update(ctx context.Context, c *entity.Customer) error {
	return r.db.WithContext(ctx).Save(c).Error
}

// Delete 删除客户
func (r *CustomerRepository) Delete(ctx context.Context, id int64) error {
	return deleteByID(r.db.WithContext(ctx), &entity.Customer{}, id)
}

// CustomerCounts 客户统计
type CustomerCounts struct {
	Total           int64
	TotalLastMonth  int64
	Active          int64
	ActiveLastMonth int64
	NewThisMonth    int64
	NewLastMonth    int64
	ByType          []StatusCount
}

// Counts 客户KPI原始计数，monthStart为本月第一天
func (r *CustomerRepository) Counts(ctx context.Context, monthStart, now time.Time) (*CustomerCounts, error) {
	db := r.db.WithContext(ctx)
	prevMonthStart := monthStart.AddDate(0, -1, 0)
	c := &CustomerCounts{}
	steps := []struct {
		dst   *int64
		where string
		args  []interface{}
	}{
		{&c.Total, "1 = 1", nil},
		{&c.TotalLastMonth, "created_at < ?", []interface{}{monthStart}},
		{&c.Active, "status = ?", []interface{}{"ACTIVE"}},
		{&c.ActiveLastMonth, "status = ? AND created_at < ?", []interface{}{"ACTIVE", monthStart}},
		{&c.NewThisMonth, "created_at >= ? AND created_at <= ?", []interface{}{monthStart, now}},
		{&c.NewLastMonth, "created_at >= ? AND created_at < ?", []interface{}{prevMonthStart, monthStart}},
	}
	for _, s := range steps {
		if err := db.Model(&entity.Customer{}).Where(s.where, s.args...).Count(s.dst).Error; err != nil {
			return nil, err
		}
	}
	err := db.Model(&entity.Customer{}).
		Select("COALESCE(customer_type, '') AS key, COUNT(*) AS count").
		Group("customer_type").
		Order("count DESC").
		Scan(&c.ByType).Error
	if err != nil {
		return nil, err
	}
	return c, nil
}

// VendorRepository 供应商仓库
type VendorRepository struct {
	db *gorm.DB
}

func NewVendorRepository(db *gorm.DB) *VendorRepository {
	return &VendorRepository{db: db}
}

// FindAll 查询供应商列表
func (r *VendorRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Vendor, int64, error) {
	var items []entity.Vendor
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Vendor{})
	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if vt := filters["vendor_type_id"]; vt != "" {
		query = query.Where("vendor_type_id = ?", vt)
	}
	if search := filters["search"]; search != "" {
		query = query.Where("name ILIKE ?", "%"+search+"%")
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Offset(offsetOf(page, pageSize)).Limit(pageSize).Find(&items).Error
	return items, total, err
}

// FindByID 查找供应商
func (r *VendorRepository) FindByID(ctx context.Context, id int64) (*entity.Vendor, error) {
	var v entity.Vendor
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func (r *VendorRepository) Create(ctx context.Context, v *entity.Vendor) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *VendorRepository) Update(ctx context.Context, v *entity.Vendor) error {
	return r.db.WithContext(ctx).Save(v).Error
}

func (r *VendorRepository) Delete(ctx context.Context, id int64) error {
	return deleteByID(r.db.WithContext(ctx), &entity.Vendor{}, id)
}

// CountByStatus 按状态统计供应商数量
func (r *VendorRepository) CountByStatus(ctx context.Context) (map[string]int64, int64, error) {
	return countByStatus(r.db.WithContext(ctx), &entity.Vendor{})
}

// Registrations 近30天/前30天注册数
func (r *VendorRepository) Registrations(ctx context.Context, now time.Time) (RegistrationCounts, error) {
	return countRegistrations(r.db.WithContext(ctx), &entity.Vendor{}, now)
}

// FactoryRepository 工厂仓库
type FactoryRepository struct {
	db *gorm.DB
}

func NewFactoryRepository(db *gorm.DB) *FactoryRepository {
	return &FactoryRepository{db: db}
}

// FindAll 查询工厂列表
func (r *FactoryRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Factory, int64, error) {
	var items []entity.Factory
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Factory{})
	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if industry := filters["industry"]; industry != "" {
		query = query.Where("industry = ?", industry)
	}
	if search := filters["search"]; search != "" {
		like := "%" + search + "%"
		query = query.Where("name ILIKE ? OR email ILIKE ?", like, like)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Offset(offsetOf(page, pageSize)).Limit(pageSize).Find(&items).Error
	return items, total, err
}

// FindByID 查找工厂
func (r *FactoryRepository) FindByID(ctx context.Context, id int64) (*entity.Factory, error) {
	var f entity.Factory
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&f).Error; err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

func (r *FactoryRepository) Create(ctx context.Context, f *entity.Factory) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *FactoryRepository) Update(ctx context.Context, f *entity.Factory) error {
	return r.db.WithContext(ctx).Save(f).Error
}

func (r *FactoryRepository) Delete(ctx context.Context, id int64) error {
	return deleteByID(r.db.WithContext(ctx), &entity.Factory{}, id)
}

// CountByStatus 按状态统计工厂数量
func (r *FactoryRepository) CountByStatus(ctx context.Context) (map[string]int64, int64, error) {
	return countByStatus(r.db.WithContext(ctx), &entity.Factory{})
}

// Registrations 近30天/前30天注册数
func (r *FactoryRepository) Registrations(ctx context.Context, now time.Time) (RegistrationCounts, error) {
	return countRegistrations(r.db.WithContext(ctx), &entity.Factory{}, now)
}

// IndustryBreakdown 按行业统计
func (r *FactoryRepository) IndustryBreakdown(ctx context.Context) ([]StatusCount, error) {
	var rows []StatusCount
	err := r.db.WithContext(ctx).Model(&entity.Factory{}).
		Select("COALESCE(industry, '') AS key, COUNT(*) AS count").
		Group("industry").
		Order("count DESC").
		Scan(&rows).Error
	return rows, err
}

func countByStatus(db *gorm.DB, model interface{}) (map[string]int64, int64, error) {
	var rows []StatusCount
	err := db.Model(model).
		Select("status AS key, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	out := make(map[string]int64, len(rows))
	var total int64
	for _, row := range rows {
		out[row.Key] = row.Count
		total += row.Count
	}
	return out, total, nil
}

func deleteByID(db *gorm.DB, model interface{}, id int64) error {
	res := db.Where("id = ?", id).Delete(model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
