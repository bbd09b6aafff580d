package repository

import (
	"context"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"gorm.io/gorm"
)

// ContactRepository 联系人仓库
type ContactRepository struct {
	db *gorm.DB
}

func NewContactRepository(db *gorm.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// FindAll 查询联系人列表
func (r *ContactRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Contact, int64, error) {
	var items []entity.Contact
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Contact{})
	if t := filters["table"]; t != "" {
		query = query.Where("ref_table = ?", t)
	}
	if fk := filters["fk_id"]; fk != "" {
		query = query.Where("fk_id = ?", fk)
	}
	if search := filters["search"]; search != "" {
		like := "%" + search + "%"
		query = query.Where("firstname ILIKE ? OR lastname ILIKE ? OR email ILIKE ?", like, like, like)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Offset(offsetOf(page, pageSize)).Limit(pageSize).Find(&items).Error
	return items, total, err
}

// FindByReference 按归属对象与类型查询
func (r *ContactRepository) FindByReference(ctx context.Context, fkID int64, table, contactType string) ([]entity.Contact, error) {
	var items []entity.Contact
	err := r.db.WithContext(ctx).
		Where("fk_id = ? AND ref_table = ? AND contact_type = ?", fkID, table, contactType).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

func (r *ContactRepository) FindByID(ctx context.Context, id int64) (*entity.Contact, error) {
	var c entity.Contact
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *ContactRepository) Create(ctx context.Context, c *entity.Contact) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *ContactRepository) Update(ctx context.Context, c *entity.Contact) error {
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *ContactRepository) Delete(ctx context.Context, id int64) error {
	return deleteByID(r.db.WithContext(ctx), &entity.Contact{}, id)
}

// AddressRepository 地址仓库
type AddressRepository struct {
	db *gorm.DB
}

func NewAddressRepository(db *gorm.DB) *AddressRepository {
	return &AddressRepository{db: db}
}

// FindAll 查询地址列表
func (r *AddressRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Address, int64, error) {
	var items []entity.Address
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Address{})
	if t := filters["table"]; t != "" {
		query = query.Where("ref_table = ?", t)
	}
	if fk := filters["fk_id"]; fk != "" {
		query = query.Where("fk_id = ?", fk)
	}
	if country := filters["country"]; country != "" {
		query = query.Where("country = ?", country)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Offset(offsetOf(page, pageSize)).Limit(pageSize).Find(&items).Error
	return items, total, err
}

// FindByReference 按归属对象与类型查询
func (r *AddressRepository) FindByReference(ctx context.Context, fkID int64, table, addressType string) ([]entity.Address, error) {
	var items []entity.Address
	err := r.db.WithContext(ctx).
		Where("fk_id = ? AND ref_table = ? AND address_type = ?", fkID, table, addressType).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

func (r *AddressRepository) FindByID(ctx context.Context, id int64) (*entity.Address, error) {
	var a entity.Address
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (r *AddressRepository) Create(ctx context.Context, a *entity.Address) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AddressRepository) Update(ctx context.Context, a *entity.Address) error {
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *AddressRepository) Delete(ctx context.Context, id int64) error {
	return deleteByID(r.db.WithContext(ctx), &entity.Address{}, id)
}
