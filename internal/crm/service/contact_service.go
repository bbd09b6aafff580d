package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/bitfantasy/nimo-crm/internal/crm/repository"
)

// ContactService 联系人与地址服务
type ContactService struct {
	contacts  *repository.ContactRepository
	addresses *repository.AddressRepository
}

func NewContactService(contacts *repository.ContactRepository, addresses *repository.AddressRepository) *ContactService {
	return &ContactService{contacts: contacts, addresses: addresses}
}

func validRefTable(t string) bool {
	switch t {
	case entity.RefTableCustomers, entity.RefTableVendors, entity.RefTableFactories, entity.RefTablePurchaseOrders:
		return true
	}
	return false
}

func validContactType(t string) bool {
	switch t {
	case entity.ContactTypePrimary, entity.ContactTypeBilling, entity.ContactTypeShipping:
		return true
	}
	return false
}

func checkReference(fkID int64, table, kind string) error {
	if fkID <= 0 {
		return validationError("fk_id 无效")
	}
	if !validRefTable(table) {
		return validationError("归属表无效: %s", table)
	}
	if !validContactType(kind) {
		return validationError("类型无效: %s", kind)
	}
	return nil
}

// === 联系人 ===

func (s *ContactService) ListContacts(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Contact, int64, error) {
	return s.contacts.FindAll(ctx, page, pageSize, filters)
}

// ContactsByReference 按归属对象与类型查询联系人
func (s *ContactService) ContactsByReference(ctx context.Context, fkID int64, table, contactType string) ([]entity.Contact, error) {
	if err := checkReference(fkID, table, contactType); err != nil {
		return nil, err
	}
	return s.contacts.FindByReference(ctx, fkID, table, contactType)
}

func (s *ContactService) GetContact(ctx context.Context, id int64) (*entity.Contact, error) {
	return s.contacts.FindByID(ctx, id)
}

// ContactRequest 联系人请求
type ContactRequest struct {
	FKID          *int64  `json:"fk_id"`
	Table         *string `json:"table"`
	ContactType   *string `json:"contact_type"`
	Firstname     *string `json:"firstname"`
	Lastname      *string `json:"lastname"`
	Email         *string `json:"email"`
	PhoneNumber   *string `json:"phone_number"`
	MobileNumber  *string `json:"mobile_number"`
	PositionTitle *string `json:"position_title"`
}

func (r *ContactRequest) apply(c *entity.Contact) {
	setInt64(&c.FKID, r.FKID)
	setString(&c.Table, r.Table)
	setString(&c.ContactType, r.ContactType)
	setString(&c.Firstname, r.Firstname)
	setString(&c.Lastname, r.Lastname)
	setString(&c.Email, r.Email)
	setString(&c.PhoneNumber, r.PhoneNumber)
	setString(&c.MobileNumber, r.MobileNumber)
	setString(&c.PositionTitle, r.PositionTitle)
}

// CreateContact 创建联系人
func (s *ContactService) CreateContact(ctx context.Context, req *ContactRequest) (*entity.Contact, error) {
	c := &entity.Contact{ContactType: entity.ContactTypePrimary}
	req.apply(c)
	if err := checkReference(c.FKID, c.Table, c.ContactType); err != nil {
		return nil, err
	}
	if err := s.contacts.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("创建联系人失败: %w", err)
	}
	return c, nil
}

// UpdateContact 更新联系人
func (s *ContactService) UpdateContact(ctx context.Context, id int64, req *ContactRequest) (*entity.Contact, error) {
	c, err := s.contacts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	req.apply(c)
	if err := checkReference(c.FKID, c.Table, c.ContactType); err != nil {
		return nil, err
	}
	if err := s.contacts.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("更新联系人失败: %w", err)
	}
	return c, nil
}

func (s *ContactService) DeleteContact(ctx context.Context, id int64) error {
	return s.contacts.Delete(ctx, id)
}

// === 地址 ===

func (s *ContactService) ListAddresses(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Address, int64, error) {
	return s.addresses.FindAll(ctx, page, pageSize, filters)
}

// AddressesByReference 按归属对象与类型查询地址
func (s *ContactService) AddressesByReference(ctx context.Context, fkID int64, table, addressType string) ([]entity.Address, error) {
	if err := checkReference(fkID, table, addressType); err != nil {
		return nil, err
	}
	return s.addresses.FindByReference(ctx, fkID, table, addressType)
}

func (s *ContactService) GetAddress(ctx context.Context, id int64) (*entity.Address, error) {
	return s.addresses.FindByID(ctx, id)
}

// AddressRequest 地址请求
type AddressRequest struct {
	FKID        *int64  `json:"fk_id"`
	Table       *string `json:"table"`
	AddressType *string `json:"address_type"`
	Address1    *string `json:"address1"`
	Address2    *string `json:"address2"`
	City        *string `json:"city"`
	State       *string `json:"state"`
	Zip         *string `json:"zip"`
	Country     *string `json:"country"`
}

func (r *AddressRequest) apply(a *entity.Address) {
	setInt64(&a.FKID, r.FKID)
	setString(&a.Table, r.Table)
	setString(&a.AddressType, r.AddressType)
	setString(&a.Address1, r.Address1)
	setString(&a.Address2, r.Address2)
	setString(&a.City, r.City)
	setString(&a.State, r.State)
	setString(&a.Zip, r.Zip)
	setString(&a.Country, r.Country)
}

// CreateAddress 创建地址
func (s *ContactService) CreateAddress(ctx context.Context, req *AddressRequest) (*entity.Address, error) {
	a := &entity.Address{AddressType: entity.ContactTypePrimary}
	req.apply(a)
	if err := checkReference(a.FKID, a.Table, a.AddressType); err != nil {
		return nil, err
	}
	if err := s.addresses.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("创建地址失败: %w", err)
	}
	return a, nil
}

// UpdateAddress 更新地址
func (s *ContactService) UpdateAddress(ctx context.Context, id int64, req *AddressRequest) (*entity.Address, error) {
	a, err := s.addresses.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	req.apply(a)
	if err := checkReference(a.FKID, a.Table, a.AddressType); err != nil {
		return nil, err
	}
	if err := s.addresses.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("更新地址失败: %w", err)
	}
	return a, nil
}

func (s *ContactService) DeleteAddress(ctx context.Context, id int64) error {
	return s.addresses.Delete(ctx, id)
}
