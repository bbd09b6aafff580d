package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories CRM仓库集合
type Repositories struct {
	db        *gorm.DB
	PO        *PORepository
	Item      *ItemRepository
	Image     *ImageRepository
	Customer  *CustomerRepository
	Vendor    *VendorRepository
	Factory   *FactoryRepository
	Contact   *ContactRepository
	Address   *AddressRepository
	Shipping  *ShippingSpecRepository
	Activity  *ActivityRepository
	Dashboard *DashboardRepository
}

// NewRepositories 创建CRM仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:        db,
		PO:        NewPORepository(db),
		Item:      NewItemRepository(db),
		Image:     NewImageRepository(db),
		Customer:  NewCustomerRepository(db),
		Vendor:    NewVendorRepository(db),
		Factory:   NewFactoryRepository(db),
		Contact:   NewContactRepository(db),
		Address:   NewAddressRepository(db),
		Shipping:  NewShippingSpecRepository(db),
		Activity:  NewActivityRepository(db),
		Dashboard: NewDashboardRepository(db),
	}
}

// DB 底层连接（健康检查用）
func (r *Repositories) DB() *gorm.DB {
	return r.db
}

// translate 把gorm未找到错误转换为ErrNotFound
func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func offsetOf(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}

// RegistrationCounts 注册数统计（近30天与前30天）
type RegistrationCounts struct {
	Recent   int64
	Previous int64
}

// countRegistrations 统计近30天和前一个30天新建的记录数
func countRegistrations(db *gorm.DB, model interface{}, now time.Time) (RegistrationCounts, error) {
	var rc RegistrationCounts
	thirty := now.AddDate(0, 0, -30)
	sixty := now.AddDate(0, 0, -60)
	if err := db.Model(model).Where("created_at >= ?", thirty).Count(&rc.Recent).Error; err != nil {
		return rc, err
	}
	if err := db.Model(model).Where("created_at >= ? AND created_at < ?", sixty, thirty).Count(&rc.Previous).Error; err != nil {
		return rc, err
	}
	return rc, nil
}

// StatusCount 分组计数
type StatusCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}
